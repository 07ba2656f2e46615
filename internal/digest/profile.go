package digest

import (
	"slices"
	"strings"
	"sync"

	dbtypes "github.com/nitesh/news_digest/internal/db"
	"github.com/nitesh/news_digest/pkg/models"
)

// Profile holds one user's topic, keyword and source preferences.
// A source is never both preferred and excluded: whichever membership was
// written last wins.
type Profile struct {
	mu       sync.RWMutex
	userID   string
	topics   []string
	keywords []string
	sources  []string
	excluded []string
	version  uint64
}

// NewProfile returns an empty profile, which matches every article.
func NewProfile(userID string) *Profile {
	return &Profile{userID: userID}
}

// NewProfileFrom builds a profile from a persisted snapshot.
func NewProfileFrom(p models.Preferences) *Profile {
	pr := NewProfile(p.UserID)
	pr.Restore(p)
	return pr
}

func (p *Profile) UserID() string {
	return p.userID
}

// Restore replaces the profile contents. Blank and duplicate entries are
// dropped; a source listed as both preferred and excluded stays excluded.
func (p *Profile) Restore(prefs models.Preferences) models.Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = p.topics[:0]
	p.keywords = p.keywords[:0]
	p.sources = p.sources[:0]
	p.excluded = p.excluded[:0]
	for _, t := range prefs.Topics {
		p.topics = addTopic(p.topics, t)
	}
	for _, k := range prefs.Keywords {
		p.keywords = addToken(p.keywords, k)
	}
	for _, s := range prefs.Sources {
		p.sources = addToken(p.sources, s)
	}
	for _, s := range prefs.ExcludedSources {
		p.sources = removeToken(p.sources, s)
		p.excluded = addToken(p.excluded, s)
	}
	p.version++
	return p.snapshotLocked()
}

func (p *Profile) Snapshot() models.Preferences {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

// SnapshotVersion returns the snapshot together with the version it reflects.
func (p *Profile) SnapshotVersion() (models.Preferences, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked(), p.version
}

func (p *Profile) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// AddTopic checks membership ignoring case, as Match compares topics. The
// first spelling added is the one kept.
func (p *Profile) AddTopic(t string) models.Preferences {
	return p.update(func() { p.topics = addTopic(p.topics, t) })
}

func (p *Profile) RemoveTopic(t string) models.Preferences {
	return p.update(func() { p.topics = removeTopic(p.topics, t) })
}

// ToggleTopic flips topic membership the way the preferences panel chips do.
func (p *Profile) ToggleTopic(t string) models.Preferences {
	return p.update(func() {
		if hasTopic(p.topics, t) {
			p.topics = removeTopic(p.topics, t)
			return
		}
		p.topics = addTopic(p.topics, t)
	})
}

// AddKeyword ignores blank input and keywords already tracked.
func (p *Profile) AddKeyword(k string) models.Preferences {
	return p.update(func() { p.keywords = addToken(p.keywords, k) })
}

func (p *Profile) RemoveKeyword(k string) models.Preferences {
	return p.update(func() { p.keywords = removeToken(p.keywords, k) })
}

// AddExcludedSource drops s from the preferred sources before excluding it.
func (p *Profile) AddExcludedSource(s string) models.Preferences {
	return p.update(func() {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(p.excluded, s) {
			return
		}
		p.sources = removeToken(p.sources, s)
		p.excluded = addToken(p.excluded, s)
	})
}

func (p *Profile) RemoveExcludedSource(s string) models.Preferences {
	return p.update(func() { p.excluded = removeToken(p.excluded, s) })
}

// ToggleSource flips preferred membership. Preferring a source that is
// currently excluded lifts the exclusion.
func (p *Profile) ToggleSource(s string) models.Preferences {
	return p.update(func() {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if slices.Contains(p.sources, s) {
			p.sources = removeToken(p.sources, s)
			return
		}
		p.excluded = removeToken(p.excluded, s)
		p.sources = addToken(p.sources, s)
	})
}

// update runs fn under the write lock and bumps the version only when the
// profile actually changed.
func (p *Profile) update(fn func()) models.Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	before := p.snapshotLocked()
	fn()
	after := p.snapshotLocked()
	if !samePreferences(before, after) {
		p.version++
	}
	return after
}

func (p *Profile) snapshotLocked() models.Preferences {
	return models.Preferences{
		UserID:          p.userID,
		Topics:          cloneTokens(p.topics),
		Keywords:        cloneTokens(p.keywords),
		Sources:         cloneTokens(p.sources),
		ExcludedSources: cloneTokens(p.excluded),
	}
}

func samePreferences(a, b models.Preferences) bool {
	return slices.Equal(a.Topics, b.Topics) &&
		slices.Equal(a.Keywords, b.Keywords) &&
		slices.Equal(a.Sources, b.Sources) &&
		slices.Equal(a.ExcludedSources, b.ExcludedSources)
}

func cloneTokens(in []string) dbtypes.StringSlice {
	out := make(dbtypes.StringSlice, len(in))
	copy(out, in)
	return out
}

// addToken appends the trimmed token unless it is blank or already present.
func addToken(set []string, tok string) []string {
	tok = strings.TrimSpace(tok)
	if tok == "" || slices.Contains(set, tok) {
		return set
	}
	return append(set, tok)
}

func hasTopic(set []string, t string) bool {
	key := normalizeTopic(t)
	return slices.ContainsFunc(set, func(x string) bool { return normalizeTopic(x) == key })
}

func addTopic(set []string, t string) []string {
	t = strings.TrimSpace(t)
	if t == "" || hasTopic(set, t) {
		return set
	}
	return append(set, t)
}

func removeTopic(set []string, t string) []string {
	key := normalizeTopic(t)
	return slices.DeleteFunc(set, func(x string) bool { return normalizeTopic(x) == key })
}

func removeToken(set []string, tok string) []string {
	tok = strings.TrimSpace(tok)
	return slices.DeleteFunc(set, func(x string) bool { return x == tok })
}
