package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	dbtypes "github.com/nitesh/news_digest/internal/db"
	"github.com/nitesh/news_digest/internal/digest"
	"github.com/nitesh/news_digest/internal/llm"
	"github.com/nitesh/news_digest/pkg/models"
)

// Enricher produces the summary, sentiment and explanation of an article.
type Enricher interface {
	Enrich(ctx context.Context, title, content string) (llm.Enrichment, error)
}

var _ Enricher = (*llm.Client)(nil)

// Pipeline turns raw submissions into fully formed articles.
type Pipeline struct {
	enricher Enricher
	now      func() time.Time
}

// NewPipeline returns a pipeline. enricher may be nil, in which case every
// submission must already carry a summary and a sentiment.
func NewPipeline(enricher Enricher) *Pipeline {
	return &Pipeline{enricher: enricher, now: time.Now}
}

// Normalize validates raw and fills in whatever the submitter left out.
func (p *Pipeline) Normalize(ctx context.Context, raw models.RawArticle) (models.Article, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return models.Article{}, fmt.Errorf("article %q: %w", raw.ID, digest.ErrInvalidInput)
	}

	a := models.Article{
		ID:          strings.TrimSpace(raw.ID),
		Title:       title,
		Source:      strings.TrimSpace(raw.Source),
		Author:      strings.TrimSpace(raw.Author),
		PublishedAt: raw.PublishedAt.UTC(),
		URL:         raw.URL,
		ImageURL:    raw.ImageURL,
		Content:     PlainText(raw.Content),
		Summary:     strings.TrimSpace(raw.Summary),
		Explanation: strings.TrimSpace(raw.Explanation),
		Topics:      normalizeTopics(raw.Topics),
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if raw.PublishedAt.IsZero() {
		a.PublishedAt = p.now().UTC()
	}

	if raw.Sentiment != "" {
		s, err := digest.ParseSentiment(raw.Sentiment)
		if err != nil {
			return models.Article{}, err
		}
		a.Sentiment = s
	}

	if a.Summary == "" || a.Sentiment == "" {
		if p.enricher == nil {
			return models.Article{}, fmt.Errorf("article %q: summary and sentiment are required: %w", a.ID, digest.ErrInvalidInput)
		}
		text := a.Content
		if text == "" {
			text = a.Title
		}
		e, err := p.enricher.Enrich(ctx, a.Title, text)
		if err != nil {
			return models.Article{}, fmt.Errorf("enrich article %q: %w", a.ID, err)
		}
		if a.Summary == "" {
			a.Summary = e.Summary
		}
		// the explanation justifies a specific label, so it is only taken
		// together with the model's sentiment
		if a.Sentiment == "" {
			a.Sentiment = e.Sentiment
			a.Explanation = e.Explanation
		}
	}

	return a, nil
}

// PlainText strips markup from s. Input without tags comes back trimmed.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// normalizeTopics lower-cases tags and drops blanks and repeats, keeping
// the first-seen order.
func normalizeTopics(in []string) dbtypes.StringSlice {
	out := make(dbtypes.StringSlice, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
