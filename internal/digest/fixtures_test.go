package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dbtypes "github.com/nitesh/news_digest/internal/db"
	"github.com/nitesh/news_digest/pkg/models"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

// sampleArticles mirrors the dashboard's hand-written sample feed.
func sampleArticles(t *testing.T) []models.Article {
	t.Helper()
	return []models.Article{
		{
			ID:          "1",
			Title:       "Global Temperatures Hit New Record for Fifth Consecutive Year",
			Source:      "Climate News Network",
			Author:      "Jane Smith",
			PublishedAt: mustTime(t, "2023-06-15T14:30:00Z"),
			URL:         "#",
			Summary:     "Global temperatures have hit a new record high for the fifth consecutive year, according to climate scientists.",
			Sentiment:   models.SentimentNegative,
			Explanation: "Concerning climate data with alarming implications.",
			Topics:      dbtypes.StringSlice{"climate", "science", "environment"},
		},
		{
			ID:          "2",
			Title:       "New AI Model Can Predict Protein Structures with Unprecedented Accuracy",
			Source:      "Tech Innovations",
			Author:      "Michael Chen",
			PublishedAt: mustTime(t, "2023-06-14T09:15:00Z"),
			URL:         "#",
			Summary:     "Stanford researchers have developed an AI model that predicts protein structures with remarkable accuracy.",
			Sentiment:   models.SentimentPositive,
			Explanation: "A significant scientific advancement.",
			Topics:      dbtypes.StringSlice{"ai", "science", "health"},
			IsSaved:     true,
		},
		{
			ID:          "3",
			Title:       "Global Economy Faces Mixed Signals as Inflation Cools But Growth Slows",
			Source:      "Financial Times",
			Author:      "Robert Johnson",
			PublishedAt: mustTime(t, "2023-06-13T16:45:00Z"),
			URL:         "#",
			Summary:     "The global economy presents a complex picture with inflation rates decreasing while growth forecasts are lowered.",
			Sentiment:   models.SentimentNeutral,
			Explanation: "Both positive and negative developments.",
			Topics:      dbtypes.StringSlice{"economy", "finance", "business"},
			IsRead:      true,
		},
		{
			ID:          "4",
			Title:       "Renewable Energy Capacity Surpasses Fossil Fuels for First Time",
			Source:      "Green Energy Report",
			Author:      "Sarah Williams",
			PublishedAt: mustTime(t, "2023-06-12T11:20:00Z"),
			URL:         "#",
			Summary:     "Renewable energy capacity has exceeded fossil fuel capacity globally for the first time.",
			Sentiment:   models.SentimentPositive,
			Explanation: "Environmental progress.",
			Topics:      dbtypes.StringSlice{"energy", "environment", "technology"},
		},
	}
}

func newSampleStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Restore(sampleArticles(t)))
	return s
}

func ids(items []models.FeedItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Article.ID)
	}
	return out
}
