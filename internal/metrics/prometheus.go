package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProfilesMatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newsradar_profiles_matched_total",
			Help: "Total profiles successfully scored and persisted",
		},
	)

	ProfileFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newsradar_profile_failures_total",
			Help: "Total profiles whose matching pass failed",
		},
	)

	MatchesInserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newsradar_matches_inserted_total",
			Help: "Total match rows inserted",
		},
	)

	MatchesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newsradar_matches_skipped_total",
			Help: "Total match candidates skipped as already matched",
		},
	)

	ScoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsradar_scoring_duration_seconds",
			Help:    "Per-profile scoring duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsradar_match_query_duration_seconds",
			Help:    "Match read-path duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation"},
	)

	SimilarityResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsradar_similarity_results_count",
			Help:    "Number of candidates returned per similarity query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	ArticlesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newsradar_articles_ingested_total",
			Help: "Total articles ingested",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsradar_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsradar_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(ProfilesMatched)
	prometheus.MustRegister(ProfileFailures)
	prometheus.MustRegister(MatchesInserted)
	prometheus.MustRegister(MatchesSkipped)
	prometheus.MustRegister(ScoringDuration)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(SimilarityResults)
	prometheus.MustRegister(ArticlesIngested)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
