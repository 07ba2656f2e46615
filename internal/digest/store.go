package digest

import (
	"iter"
	"strings"
	"sync"

	"github.com/nitesh/news_digest/pkg/models"
)

// ParseSentiment validates a classifier label. Only the exact lower-case
// labels are accepted; "POSITIVE" or " neutral " is rejected, not coerced.
func ParseSentiment(v string) (models.Sentiment, error) {
	s := models.Sentiment(v)
	if !s.Valid() {
		return "", invalidSentiment(v)
	}
	return s, nil
}

// ParseFilter maps a query value onto a feed filter. Empty means all.
func ParseFilter(v string) (models.Filter, error) {
	f, ok := models.NormalizeFilter(v)
	if !ok {
		return "", invalidInput("filter must be all or saved")
	}
	return f, nil
}

// Store owns the canonical article records of one user. Content fields are
// never changed after Insert; the read and saved flags change only through
// a Mutator.
type Store struct {
	mu       sync.RWMutex
	order    []string
	articles map[string]*models.Article
	version  uint64
}

func NewStore() *Store {
	return &Store{articles: make(map[string]*models.Article)}
}

// Insert adds an ingested article. It reports false when the id is already
// present, in which case the stored record is left untouched.
func (s *Store) Insert(a models.Article) (bool, error) {
	if strings.TrimSpace(a.ID) == "" {
		return false, invalidInput("article id is required")
	}
	if !a.Sentiment.Valid() {
		return false, invalidSentiment(string(a.Sentiment))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[a.ID]; ok {
		return false, nil
	}
	rec := a.Clone()
	s.articles[a.ID] = &rec
	s.order = append(s.order, a.ID)
	s.version++
	return true, nil
}

// Restore replaces the whole collection with a persisted snapshot, flags
// included. Records with a bad sentiment or a duplicate id abort the restore
// and leave the store as it was.
func (s *Store) Restore(articles []models.Article) error {
	order := make([]string, 0, len(articles))
	byID := make(map[string]*models.Article, len(articles))
	for _, a := range articles {
		if !a.Sentiment.Valid() {
			return invalidSentiment(string(a.Sentiment))
		}
		if _, dup := byID[a.ID]; dup {
			return invalidInput("duplicate article id " + a.ID)
		}
		rec := a.Clone()
		byID[a.ID] = &rec
		order = append(order, a.ID)
	}

	s.mu.Lock()
	s.order = order
	s.articles = byID
	s.version++
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the article with the given id.
func (s *Store) Get(id string) (models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return models.Article{}, notFound(id)
	}
	return a.Clone(), nil
}

// All yields every article in insertion order. The sequence works off a
// snapshot taken when iteration starts, so it may be ranged over again and
// callers are free to mutate the store from inside the loop.
func (s *Store) All() iter.Seq[models.Article] {
	return func(yield func(models.Article) bool) {
		for _, a := range s.Snapshot() {
			if !yield(a) {
				return
			}
		}
	}
}

// Snapshot copies all articles in insertion order under the read lock.
func (s *Store) Snapshot() []models.Article {
	out, _ := s.SnapshotVersion()
	return out
}

// SnapshotVersion returns the snapshot together with the version it reflects.
func (s *Store) SnapshotVersion() ([]models.Article, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Article, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.articles[id].Clone())
	}
	return out, s.version
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Version increases on every effective write.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// setRead reports whether the flag actually changed.
func (s *Store) setRead(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return false, notFound(id)
	}
	if a.IsRead {
		return false, nil
	}
	a.IsRead = true
	s.version++
	return true, nil
}

// toggleSaved returns the new saved state.
func (s *Store) toggleSaved(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return false, notFound(id)
	}
	a.IsSaved = !a.IsSaved
	s.version++
	return a.IsSaved, nil
}
