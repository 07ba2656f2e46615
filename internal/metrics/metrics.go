package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	FeedRequests     *prometheus.CounterVec
	FeedCacheHits    prometheus.Counter
	ArticleMutations *prometheus.CounterVec
	ProfileMutations *prometheus.CounterVec
	IngestedArticles *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digest",
			Name:      "feed_requests_total",
			Help:      "Feed views served, by filter.",
		}, []string{"filter"}),
		FeedCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "digest",
			Name:      "feed_cache_hits_total",
			Help:      "Feed views answered from the cache.",
		}),
		ArticleMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digest",
			Name:      "article_mutations_total",
			Help:      "Read and saved flag changes, by operation.",
		}, []string{"op"}),
		ProfileMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digest",
			Name:      "profile_mutations_total",
			Help:      "Preference profile edits, by operation.",
		}, []string{"op"}),
		IngestedArticles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digest",
			Name:      "ingested_articles_total",
			Help:      "Submitted articles, by result (added, duplicate, rejected).",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.FeedRequests,
		m.FeedCacheHits,
		m.ArticleMutations,
		m.ProfileMutations,
		m.IngestedArticles,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
