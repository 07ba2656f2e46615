package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	dbtypes "github.com/nitesh/news_digest/internal/db"
	"github.com/nitesh/news_digest/internal/digest"
	"github.com/nitesh/news_digest/pkg/models"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s := NewSQLStore(db, "sqlite")
	require.NoError(t, s.RunMigrations(context.Background()))
	return s
}

func testArticles() []models.Article {
	base := time.Date(2023, 6, 15, 14, 30, 0, 0, time.UTC)
	return []models.Article{
		{
			ID:          "1",
			Title:       "Global Temperatures Hit New Record",
			Source:      "Climate News Network",
			Author:      "Jane Smith",
			PublishedAt: base,
			URL:         "#",
			ImageURL:    "https://images.example/1.jpg",
			Content:     "Climate scientists have confirmed...",
			Summary:     "Record high for the fifth year.",
			Sentiment:   models.SentimentNegative,
			Explanation: "Alarming implications.",
			Topics:      dbtypes.StringSlice{"climate", "science"},
		},
		{
			ID:          "2",
			Title:       "New AI Model Predicts Protein Structures",
			Source:      "Tech Innovations",
			PublishedAt: base.Add(-24 * time.Hour),
			Sentiment:   models.SentimentPositive,
			Topics:      dbtypes.StringSlice{},
			IsSaved:     true,
		},
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RunMigrations(context.Background()))
}

func TestSaveAndLoadArticles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	in := testArticles()

	require.NoError(t, s.SaveArticles(ctx, in))
	got, err := s.LoadArticles(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
	assert.True(t, in[0].PublishedAt.Equal(got[0].PublishedAt))
	assert.Equal(t, in[0].Topics, got[0].Topics)
	assert.Equal(t, models.SentimentNegative, got[0].Sentiment)
	assert.Equal(t, in[0].ImageURL, got[0].ImageURL)
	assert.Empty(t, got[1].Topics)
	assert.True(t, got[1].IsSaved)
	assert.False(t, got[1].IsRead)
}

func TestSaveArticlesKeepsContentImmutable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	in := testArticles()
	require.NoError(t, s.SaveArticles(ctx, in))

	in[0].Title = "rewritten"
	in[0].IsRead = true
	require.NoError(t, s.SaveArticles(ctx, in))

	got, err := s.LoadArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Global Temperatures Hit New Record", got[0].Title)
	assert.True(t, got[0].IsRead)
}

func TestSaveArticleState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveArticles(ctx, testArticles()))

	require.NoError(t, s.SaveArticleState(ctx, "1", true, true))
	got, err := s.LoadArticles(ctx)
	require.NoError(t, err)
	assert.True(t, got[0].IsRead)
	assert.True(t, got[0].IsSaved)

	err = s.SaveArticleState(ctx, "missing", true, false)
	require.ErrorIs(t, err, digest.ErrNotFound)
}

func TestPreferencesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.LoadPreferences(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)

	prefs := models.Preferences{
		UserID:          "alice",
		Topics:          dbtypes.StringSlice{"Science"},
		Keywords:        dbtypes.StringSlice{"AI"},
		Sources:         dbtypes.StringSlice{"Reuters"},
		ExcludedSources: dbtypes.StringSlice{"BBC News"},
	}
	require.NoError(t, s.SavePreferences(ctx, prefs))

	prefs.Keywords = dbtypes.StringSlice{}
	require.NoError(t, s.SavePreferences(ctx, prefs))

	got, found, err := s.LoadPreferences(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, prefs, got)
}
