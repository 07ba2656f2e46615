package digest

import (
	"strings"

	"github.com/nitesh/news_digest/pkg/models"
)

// Match decides whether a is relevant under prefs and how strongly.
//
// An excluded source rejects the article outright. Otherwise the score is
// the number of shared topics, plus the number of tracked keywords found in
// the title or summary, plus one for a preferred source. A profile with no
// topics, keywords or preferred sources accepts everything it does not
// exclude.
func Match(a models.Article, prefs models.Preferences) (bool, int) {
	if prefs.ExcludedSources.Contains(a.Source) {
		return false, 0
	}

	score := topicOverlap(a.Topics, prefs.Topics) + keywordHits(a, prefs.Keywords)
	if prefs.Sources.Contains(a.Source) {
		score++
	}

	if score >= 1 || prefs.IsEmpty() {
		return true, score
	}
	return false, score
}

// topicOverlap counts distinct selected topics present among the article's
// tags, ignoring case.
func topicOverlap(tags, selected []string) int {
	if len(tags) == 0 || len(selected) == 0 {
		return 0
	}
	have := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		have[normalizeTopic(t)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(selected))
	n := 0
	for _, t := range selected {
		key := normalizeTopic(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := have[key]; ok {
			n++
		}
	}
	return n
}

// keywordHits counts keywords occurring in the title or summary. The body
// is not searched.
func keywordHits(a models.Article, keywords []string) int {
	if len(keywords) == 0 {
		return 0
	}
	title := strings.ToLower(a.Title)
	summary := strings.ToLower(a.Summary)
	n := 0
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if strings.Contains(title, k) || strings.Contains(summary, k) {
			n++
		}
	}
	return n
}

func normalizeTopic(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
