package models

import (
	"strings"
	"time"

	dbtypes "github.com/nitesh/news_digest/internal/db"
)

// Sentiment is the classifier's label for an article.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the three known labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Article represents a news article record used across the service.
// Everything except IsRead and IsSaved is fixed once the article is ingested.
type Article struct {
	ID          string              `db:"id" json:"id"`
	Title       string              `db:"title" json:"title"`
	Source      string              `db:"source" json:"source"`
	Author      string              `db:"author" json:"author"`
	PublishedAt time.Time           `db:"published_at" json:"published_at"`
	URL         string              `db:"url" json:"url"`
	ImageURL    string              `db:"image_url" json:"image_url,omitempty"`
	Content     string              `db:"content" json:"content"`
	Summary     string              `db:"summary" json:"summary"`
	Sentiment   Sentiment           `db:"sentiment" json:"sentiment"`
	Explanation string              `db:"explanation" json:"explanation"`
	Topics      dbtypes.StringSlice `db:"topics" json:"topics"`

	IsRead  bool `db:"is_read" json:"is_read"`
	IsSaved bool `db:"is_saved" json:"is_saved"`
}

// Clone returns a copy that shares no slices with a.
func (a Article) Clone() Article {
	if a.Topics != nil {
		a.Topics = append(dbtypes.StringSlice{}, a.Topics...)
	}
	return a
}

// RawArticle is what the ingestion endpoint accepts before enrichment.
// Summary, Sentiment and Explanation may be empty; the classifier fills them in.
type RawArticle struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url,omitempty"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary,omitempty"`
	Sentiment   string    `json:"sentiment,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	Topics      []string  `json:"topics"`
}

// Preferences is the serializable form of one user's filter configuration.
type Preferences struct {
	UserID          string              `db:"user_id" json:"user_id" yaml:"-"`
	Topics          dbtypes.StringSlice `db:"topics" json:"topics" yaml:"topics"`
	Keywords        dbtypes.StringSlice `db:"keywords" json:"keywords" yaml:"keywords"`
	Sources         dbtypes.StringSlice `db:"sources" json:"sources" yaml:"sources"`
	ExcludedSources dbtypes.StringSlice `db:"excluded_sources" json:"excluded_sources" yaml:"excludedSources"`
}

// IsEmpty is true when no inclusion criteria are configured. Excluded
// sources do not count: they only ever remove articles.
func (p Preferences) IsEmpty() bool {
	return len(p.Topics) == 0 && len(p.Keywords) == 0 && len(p.Sources) == 0
}

// Filter selects which articles a feed view starts from.
type Filter string

const (
	FilterAll   Filter = "all"
	FilterSaved Filter = "saved"
)

// NormalizeFilter maps user input onto a Filter. ok is false for unknown values.
func NormalizeFilter(s string) (Filter, bool) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, true
	case FilterSaved:
		return FilterSaved, true
	}
	return "", false
}

// FeedItem is one entry of an assembled feed together with its relevance score.
type FeedItem struct {
	Article Article `json:"article"`
	Score   int     `json:"score"`
}
