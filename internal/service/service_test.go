package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nitesh/news_digest/internal/cache"
	dbtypes "github.com/nitesh/news_digest/internal/db"
	"github.com/nitesh/news_digest/internal/digest"
	"github.com/nitesh/news_digest/internal/ingest"
	"github.com/nitesh/news_digest/internal/llm"
	"github.com/nitesh/news_digest/internal/metrics"
	"github.com/nitesh/news_digest/internal/store"
	"github.com/nitesh/news_digest/pkg/models"
)

func newRepo(t *testing.T) *store.SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := store.NewSQLStore(db, "sqlite")
	require.NoError(t, repo.RunMigrations(context.Background()))
	return repo
}

func newFeedCache(t *testing.T) *cache.FeedCache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewFeedCache(rdb, time.Minute)
}

func rawArticles() []models.RawArticle {
	return []models.RawArticle{
		{
			ID:          "1",
			Title:       "Global Temperatures Hit New Record for Fifth Consecutive Year",
			Source:      "Climate News Network",
			PublishedAt: time.Date(2023, 6, 15, 14, 30, 0, 0, time.UTC),
			Summary:     "Global temperatures have hit a new record high.",
			Sentiment:   "negative",
			Explanation: "Alarming.",
			Topics:      []string{"climate", "science"},
		},
		{
			ID:          "2",
			Title:       "New AI Model Can Predict Protein Structures",
			Source:      "Tech Innovations",
			PublishedAt: time.Date(2023, 6, 14, 9, 15, 0, 0, time.UTC),
			Summary:     "Stanford researchers developed an AI model.",
			Sentiment:   "positive",
			Topics:      []string{"ai", "science"},
		},
		{
			ID:          "3",
			Title:       "Global Economy Faces Mixed Signals",
			Source:      "Financial Times",
			PublishedAt: time.Date(2023, 6, 13, 16, 45, 0, 0, time.UTC),
			Summary:     "Inflation cools while growth slows.",
			Sentiment:   "neutral",
			Topics:      []string{"economy", "finance"},
		},
	}
}

func newTestService(t *testing.T, repo Repository) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	svc := NewService("alice", repo, newFeedCache(t), ingest.NewPipeline(nil), m, nil)
	require.NoError(t, svc.Load(context.Background(), nil))
	return svc, m
}

func feedIDs(res FeedResult) []string {
	out := []string{}
	for _, it := range res.Items {
		out = append(out, it.Article.ID)
	}
	return out
}

func TestIngestAndFeed(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestService(t, newRepo(t))

	raws := append(rawArticles(), models.RawArticle{ID: "bad", Title: "x", Summary: "s", Sentiment: "mixed"})
	res, err := svc.Ingest(ctx, raws)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Added)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 3, res.Rejected[0].Index)

	res, err = svc.Ingest(ctx, rawArticles()[:1])
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 1, res.Duplicates)

	feed, err := svc.Feed(ctx, models.FilterAll)
	require.NoError(t, err)
	assert.False(t, feed.Cached)
	assert.Equal(t, []string{"1", "2", "3"}, feedIDs(feed))
	assert.Equal(t, 3, feed.Unread)

	feed, err = svc.Feed(ctx, models.FilterAll)
	require.NoError(t, err)
	assert.True(t, feed.Cached)
	assert.Equal(t, []string{"1", "2", "3"}, feedIDs(feed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedCacheHits))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IngestedArticles.WithLabelValues("added")))
}

func TestMutationsInvalidateCachedFeed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newRepo(t))
	_, err := svc.Ingest(ctx, rawArticles())
	require.NoError(t, err)

	feed, err := svc.Feed(ctx, models.FilterSaved)
	require.NoError(t, err)
	assert.Empty(t, feed.Items)

	a, err := svc.ToggleSaved(ctx, "1")
	require.NoError(t, err)
	assert.True(t, a.IsSaved)

	feed, err = svc.Feed(ctx, models.FilterSaved)
	require.NoError(t, err)
	assert.False(t, feed.Cached)
	assert.Equal(t, []string{"1"}, feedIDs(feed))

	_, err = svc.ToggleSaved(ctx, "1")
	require.NoError(t, err)
	feed, err = svc.Feed(ctx, models.FilterSaved)
	require.NoError(t, err)
	assert.Empty(t, feed.Items)

	_, err = svc.AddTopic(ctx, "Finance")
	require.NoError(t, err)
	feed, err = svc.Feed(ctx, models.FilterAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, feedIDs(feed))

	_, err = svc.AddExcludedSource(ctx, "Financial Times")
	require.NoError(t, err)
	feed, err = svc.Feed(ctx, models.FilterAll)
	require.NoError(t, err)
	assert.Empty(t, feed.Items)
}

func TestStatePersistsAcrossLoads(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc, _ := newTestService(t, repo)
	_, err := svc.Ingest(ctx, rawArticles())
	require.NoError(t, err)

	a, err := svc.MarkRead(ctx, "2")
	require.NoError(t, err)
	assert.True(t, a.IsRead)
	_, err = svc.MarkRead(ctx, "2")
	require.NoError(t, err)
	_, err = svc.ToggleSaved(ctx, "3")
	require.NoError(t, err)
	_, err = svc.ToggleSource(ctx, "BBC News")
	require.NoError(t, err)
	_, err = svc.AddKeyword(ctx, "climate")
	require.NoError(t, err)

	reloaded, _ := newTestService(t, repo)
	got, err := reloaded.Article(ctx, "2")
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	got, err = reloaded.Article(ctx, "3")
	require.NoError(t, err)
	assert.True(t, got.IsSaved)

	prefs := reloaded.Preferences(ctx)
	assert.Equal(t, "alice", prefs.UserID)
	assert.Equal(t, dbtypes.StringSlice{"BBC News"}, prefs.Sources)
	assert.Equal(t, dbtypes.StringSlice{"climate"}, prefs.Keywords)

	var order []string
	for _, a := range reloaded.store.Snapshot() {
		order = append(order, a.ID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, order)
}

func TestLoadSeedsDefaultsOnce(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	seed := &models.Preferences{
		Topics:  dbtypes.StringSlice{"Technology", "Science"},
		Sources: dbtypes.StringSlice{"BBC News", "Reuters"},
	}

	svc := NewService("bob", repo, nil, ingest.NewPipeline(nil), nil, nil)
	require.NoError(t, svc.Load(ctx, seed))
	assert.Equal(t, seed.Topics, svc.Preferences(ctx).Topics)

	_, err := svc.RemoveTopic(ctx, "Technology")
	require.NoError(t, err)

	again := NewService("bob", repo, nil, ingest.NewPipeline(nil), nil, nil)
	require.NoError(t, again.Load(ctx, seed))
	assert.Equal(t, dbtypes.StringSlice{"Science"}, again.Preferences(ctx).Topics)
}

func TestCachedFeedIsScopedToOneInstance(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	shared := newFeedCache(t)
	newInstance := func() *Service {
		svc := NewService("alice", repo, shared, ingest.NewPipeline(nil), nil, nil)
		require.NoError(t, svc.Load(ctx, nil))
		return svc
	}

	seeder := newInstance()
	_, err := seeder.Ingest(ctx, rawArticles())
	require.NoError(t, err)

	first := newInstance()
	_, err = first.ToggleSaved(ctx, "1")
	require.NoError(t, err)
	feed, err := first.Feed(ctx, models.FilterSaved)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, feedIDs(feed))

	// same store and profile versions as first, different state
	second := newInstance()
	a, err := second.ToggleSaved(ctx, "1")
	require.NoError(t, err)
	assert.False(t, a.IsSaved)
	assert.Equal(t, first.store.Version(), second.store.Version())

	feed, err = second.Feed(ctx, models.FilterSaved)
	require.NoError(t, err)
	assert.False(t, feed.Cached)
	assert.Empty(t, feed.Items)
}

type countingEnricher struct {
	calls int
}

func (c *countingEnricher) Enrich(context.Context, string, string) (llm.Enrichment, error) {
	c.calls++
	return llm.Enrichment{Summary: "generated", Sentiment: models.SentimentNeutral}, nil
}

func TestIngestSkipsEnrichmentForKnownIDs(t *testing.T) {
	ctx := context.Background()
	enr := &countingEnricher{}
	svc := NewService("alice", newRepo(t), nil, ingest.NewPipeline(enr), nil, nil)
	require.NoError(t, svc.Load(ctx, nil))

	_, err := svc.Ingest(ctx, rawArticles())
	require.NoError(t, err)
	require.Equal(t, 0, enr.calls)

	res, err := svc.Ingest(ctx, []models.RawArticle{
		{ID: "1", Title: "Resubmitted without a summary"},
		{ID: " 2 ", Title: "Resubmitted with padding"},
		{Title: "Fresh article"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Duplicates)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, enr.calls)
}

func TestUnknownArticle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newRepo(t))

	_, err := svc.Article(ctx, "nope")
	require.ErrorIs(t, err, digest.ErrNotFound)
	_, err = svc.MarkRead(ctx, "nope")
	require.ErrorIs(t, err, digest.ErrNotFound)
	_, err = svc.ToggleSaved(ctx, "nope")
	require.ErrorIs(t, err, digest.ErrNotFound)
}

type failingRepo struct {
	Repository
	saves int
}

func (f *failingRepo) SavePreferences(context.Context, models.Preferences) error {
	f.saves++
	return errors.New("disk full")
}

func TestProfileEditsSkipNoopWrites(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{Repository: newRepo(t)}
	svc := NewService("carol", repo, nil, ingest.NewPipeline(nil), nil, nil)
	require.NoError(t, svc.Load(ctx, nil))

	_, err := svc.AddKeyword(ctx, "   ")
	require.NoError(t, err)
	_, err = svc.RemoveExcludedSource(ctx, "CNN")
	require.NoError(t, err)
	assert.Equal(t, 0, repo.saves)

	prefs, err := svc.AddKeyword(ctx, "AI")
	require.Error(t, err)
	assert.Equal(t, 1, repo.saves)
	assert.Equal(t, dbtypes.StringSlice{"AI"}, prefs.Keywords)
}
