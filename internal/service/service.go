package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nitesh/news_digest/internal/cache"
	"github.com/nitesh/news_digest/internal/digest"
	"github.com/nitesh/news_digest/internal/metrics"
	"github.com/nitesh/news_digest/pkg/models"
)

// Repository persists article and profile snapshots between runs.
type Repository interface {
	SaveArticles(ctx context.Context, articles []models.Article) error
	SaveArticleState(ctx context.Context, id string, isRead, isSaved bool) error
	LoadArticles(ctx context.Context) ([]models.Article, error)
	SavePreferences(ctx context.Context, prefs models.Preferences) error
	LoadPreferences(ctx context.Context, userID string) (models.Preferences, bool, error)
}

// FeedCache remembers assembled feeds by version key.
type FeedCache interface {
	Get(ctx context.Context, k cache.Key) ([]models.FeedItem, bool, error)
	Set(ctx context.Context, k cache.Key, items []models.FeedItem) error
}

// Normalizer is the ingestion collaborator: it validates a raw submission
// and fills in summary, sentiment and explanation.
type Normalizer interface {
	Normalize(ctx context.Context, raw models.RawArticle) (models.Article, error)
}

// Service serves one user's digest. It owns the article store and the
// preference profile; everything else reads or writes through it.
type Service struct {
	repo     Repository
	cache    FeedCache
	pipeline Normalizer
	metrics  *metrics.Metrics
	logger   *zap.Logger

	// epoch scopes cache keys to this instance; store and profile versions
	// restart from zero on every Load.
	epoch string

	// writeMu orders mutate-then-persist sequences so the repository never
	// ends up holding an older state than memory.
	writeMu sync.Mutex

	store   *digest.Store
	profile *digest.Profile
	state   *digest.Mutator
	feed    *digest.Feed
}

func NewService(userID string, repo Repository, feedCache FeedCache, pipeline Normalizer, m *metrics.Metrics, logger *zap.Logger) *Service {
	if feedCache == nil {
		feedCache = cache.Nop{}
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	store := digest.NewStore()
	profile := digest.NewProfile(userID)
	return &Service{
		repo:     repo,
		cache:    feedCache,
		pipeline: pipeline,
		metrics:  m,
		epoch:    uuid.NewString(),
		logger:   logger.With(zap.String("component", "service"), zap.String("user_id", userID)),
		store:    store,
		profile:  profile,
		state:    digest.NewMutator(store),
		feed:     digest.NewFeed(store, profile),
	}
}

// Load restores articles and preferences from the repository. When the user
// has no stored profile and seed is non-nil, seed becomes the profile and is
// saved.
func (s *Service) Load(ctx context.Context, seed *models.Preferences) error {
	articles, err := s.repo.LoadArticles(ctx)
	if err != nil {
		return fmt.Errorf("load articles: %w", err)
	}
	if err := s.store.Restore(articles); err != nil {
		return fmt.Errorf("restore articles: %w", err)
	}

	prefs, found, err := s.repo.LoadPreferences(ctx, s.profile.UserID())
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	switch {
	case found:
		prefs.UserID = s.profile.UserID()
		s.profile.Restore(prefs)
	case seed != nil:
		p := *seed
		p.UserID = s.profile.UserID()
		if err := s.repo.SavePreferences(ctx, s.profile.Restore(p)); err != nil {
			return fmt.Errorf("save seeded preferences: %w", err)
		}
	}

	s.logger.Info("digest loaded",
		zap.Int("articles", s.store.Len()),
		zap.Bool("stored_profile", found))
	return nil
}

// Rejection describes one submission that did not make it into the store.
type Rejection struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	Added      int         `json:"added"`
	Duplicates int         `json:"duplicates"`
	Rejected   []Rejection `json:"rejected"`
}

// Ingest normalizes and stores a batch. Bad submissions are reported per
// item and do not stop the batch; only a persistence failure is returned as
// an error. Ids already in the store are counted as duplicates before any
// enrichment call is made.
func (s *Service) Ingest(ctx context.Context, raws []models.RawArticle) (IngestResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res := IngestResult{Rejected: []Rejection{}}
	for i, raw := range raws {
		if id := strings.TrimSpace(raw.ID); id != "" {
			if _, err := s.store.Get(id); err == nil {
				res.Duplicates++
				s.metrics.IngestedArticles.WithLabelValues("duplicate").Inc()
				continue
			}
		}
		a, err := s.pipeline.Normalize(ctx, raw)
		if err == nil {
			var added bool
			added, err = s.store.Insert(a)
			if err == nil && !added {
				res.Duplicates++
				s.metrics.IngestedArticles.WithLabelValues("duplicate").Inc()
				continue
			}
		}
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Index: i, ID: raw.ID, Error: err.Error()})
			s.metrics.IngestedArticles.WithLabelValues("rejected").Inc()
			s.logger.Warn("article rejected", zap.Int("index", i), zap.String("id", raw.ID), zap.Error(err))
			continue
		}
		res.Added++
		s.metrics.IngestedArticles.WithLabelValues("added").Inc()
	}

	if res.Added > 0 {
		if err := s.repo.SaveArticles(ctx, s.store.Snapshot()); err != nil {
			return res, fmt.Errorf("save articles: %w", err)
		}
	}
	s.logger.Info("ingest finished",
		zap.Int("added", res.Added),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("rejected", len(res.Rejected)))
	return res, nil
}

// FeedResult is an assembled feed plus the counts the dashboard shows.
type FeedResult struct {
	Filter models.Filter     `json:"filter"`
	Items  []models.FeedItem `json:"items"`
	Unread int               `json:"unread"`
	Cached bool              `json:"-"`
}

// Feed returns the user's feed for filter. Cache failures are logged and
// the feed is assembled directly.
func (s *Service) Feed(ctx context.Context, filter models.Filter) (FeedResult, error) {
	s.metrics.FeedRequests.WithLabelValues(string(filter)).Inc()

	sv, pv := s.feed.Versions()
	key := cache.Key{UserID: s.profile.UserID(), Epoch: s.epoch, StoreVersion: sv, ProfileVersion: pv, Filter: filter}
	items, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("feed cache read failed", zap.Error(err))
	}
	if hit {
		s.metrics.FeedCacheHits.Inc()
		return newFeedResult(filter, items, true), nil
	}

	view := s.feed.Build(filter)
	key.StoreVersion, key.ProfileVersion = view.StoreVersion, view.ProfileVersion
	if err := s.cache.Set(ctx, key, view.Items); err != nil {
		s.logger.Warn("feed cache write failed", zap.Error(err))
	}
	return newFeedResult(filter, view.Items, false), nil
}

func newFeedResult(filter models.Filter, items []models.FeedItem, cached bool) FeedResult {
	if items == nil {
		items = []models.FeedItem{}
	}
	unread := 0
	for _, it := range items {
		if !it.Article.IsRead {
			unread++
		}
	}
	return FeedResult{Filter: filter, Items: items, Unread: unread, Cached: cached}
}

// Article returns one article by id.
func (s *Service) Article(ctx context.Context, id string) (models.Article, error) {
	return s.store.Get(id)
}

// MarkRead marks the article read and persists the change. Repeating it is
// a no-op that skips the write.
func (s *Service) MarkRead(ctx context.Context, id string) (models.Article, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	changed, err := s.state.MarkRead(id)
	if err != nil {
		return models.Article{}, err
	}
	a, err := s.store.Get(id)
	if err != nil {
		return models.Article{}, err
	}
	if !changed {
		return a, nil
	}
	s.metrics.ArticleMutations.WithLabelValues("mark_read").Inc()
	if err := s.repo.SaveArticleState(ctx, a.ID, a.IsRead, a.IsSaved); err != nil {
		s.logger.Error("persist read state failed", zap.String("id", id), zap.Error(err))
		return a, fmt.Errorf("save article state: %w", err)
	}
	return a, nil
}

// ToggleSaved flips the saved flag and persists the change.
func (s *Service) ToggleSaved(ctx context.Context, id string) (models.Article, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.state.ToggleSaved(id); err != nil {
		return models.Article{}, err
	}
	a, err := s.store.Get(id)
	if err != nil {
		return models.Article{}, err
	}
	s.metrics.ArticleMutations.WithLabelValues("toggle_saved").Inc()
	if err := s.repo.SaveArticleState(ctx, a.ID, a.IsRead, a.IsSaved); err != nil {
		s.logger.Error("persist saved state failed", zap.String("id", id), zap.Error(err))
		return a, fmt.Errorf("save article state: %w", err)
	}
	return a, nil
}

// Preferences returns the current profile snapshot.
func (s *Service) Preferences(ctx context.Context) models.Preferences {
	return s.profile.Snapshot()
}

func (s *Service) AddTopic(ctx context.Context, t string) (models.Preferences, error) {
	return s.editProfile(ctx, "add_topic", s.profile.AddTopic, t)
}

func (s *Service) RemoveTopic(ctx context.Context, t string) (models.Preferences, error) {
	return s.editProfile(ctx, "remove_topic", s.profile.RemoveTopic, t)
}

func (s *Service) ToggleTopic(ctx context.Context, t string) (models.Preferences, error) {
	return s.editProfile(ctx, "toggle_topic", s.profile.ToggleTopic, t)
}

func (s *Service) AddKeyword(ctx context.Context, k string) (models.Preferences, error) {
	return s.editProfile(ctx, "add_keyword", s.profile.AddKeyword, k)
}

func (s *Service) RemoveKeyword(ctx context.Context, k string) (models.Preferences, error) {
	return s.editProfile(ctx, "remove_keyword", s.profile.RemoveKeyword, k)
}

func (s *Service) AddExcludedSource(ctx context.Context, src string) (models.Preferences, error) {
	return s.editProfile(ctx, "add_excluded_source", s.profile.AddExcludedSource, src)
}

func (s *Service) RemoveExcludedSource(ctx context.Context, src string) (models.Preferences, error) {
	return s.editProfile(ctx, "remove_excluded_source", s.profile.RemoveExcludedSource, src)
}

func (s *Service) ToggleSource(ctx context.Context, src string) (models.Preferences, error) {
	return s.editProfile(ctx, "toggle_source", s.profile.ToggleSource, src)
}

// editProfile applies one profile mutator and saves the result when it
// changed anything. Blank values fall through the mutator as no-ops.
func (s *Service) editProfile(ctx context.Context, op string, mutate func(string) models.Preferences, value string) (models.Preferences, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	before := s.profile.Version()
	prefs := mutate(value)
	if s.profile.Version() == before {
		return prefs, nil
	}
	s.metrics.ProfileMutations.WithLabelValues(op).Inc()
	if err := s.repo.SavePreferences(ctx, prefs); err != nil {
		s.logger.Error("persist preferences failed", zap.String("op", op), zap.Error(err))
		return prefs, fmt.Errorf("save preferences: %w", err)
	}
	return prefs, nil
}
