package digest

import (
	"slices"

	"github.com/nitesh/news_digest/pkg/models"
)

// Assemble builds the feed view for one request: restrict to saved
// articles when asked, drop what the profile rejects, then order newest
// first. Articles published at the same instant keep their input order.
// An empty result is not an error.
//
// Items hold copies of the articles, identified by Article.ID. The flags
// they carry are those of the snapshot the feed was built from; later
// changes go through the Store and show up in the next Assemble.
func Assemble(articles []models.Article, prefs models.Preferences, filter models.Filter) []models.FeedItem {
	out := make([]models.FeedItem, 0, len(articles))
	for _, a := range articles {
		if filter == models.FilterSaved && !a.IsSaved {
			continue
		}
		ok, score := Match(a, prefs)
		if !ok {
			continue
		}
		out = append(out, models.FeedItem{Article: a, Score: score})
	}

	slices.SortStableFunc(out, func(x, y models.FeedItem) int {
		return y.Article.PublishedAt.Compare(x.Article.PublishedAt)
	})
	return out
}

// Feed pairs a store with a profile and assembles views from consistent
// snapshots of both.
type Feed struct {
	store   *Store
	profile *Profile
}

func NewFeed(store *Store, profile *Profile) *Feed {
	return &Feed{store: store, profile: profile}
}

// View is an assembled feed plus the versions of the inputs it was built from.
type View struct {
	Items          []models.FeedItem
	StoreVersion   uint64
	ProfileVersion uint64
}

// Build snapshots both inputs and assembles the view for filter.
func (f *Feed) Build(filter models.Filter) View {
	articles, sv := f.store.SnapshotVersion()
	prefs, pv := f.profile.SnapshotVersion()
	return View{
		Items:          Assemble(articles, prefs, filter),
		StoreVersion:   sv,
		ProfileVersion: pv,
	}
}

// Versions reports the current store and profile versions, which together
// with the filter identify a feed view.
func (f *Feed) Versions() (store, profile uint64) {
	return f.store.Version(), f.profile.Version()
}
