package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	contributionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ore_pool",
		Name:      "contributions_accepted_total",
		Help:      "Contributions accepted into the aggregator.",
	})
	contributionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ore_pool",
		Name:      "contributions_dropped_total",
		Help:      "Admitted contributions dropped at ingestion (duplicate or closed round).",
	})
	contributionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ore_pool",
		Name:      "contributions_rejected_total",
		Help:      "Contributions rejected by the admission filter.",
	}, []string{"reason"})
	submissionsLanded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ore_pool",
		Name:      "submissions_landed_total",
		Help:      "Winning solutions confirmed on-chain.",
	})
	submissionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ore_pool",
		Name:      "submissions_failed_total",
		Help:      "Rounds whose submission exhausted its retry budget.",
	})
	submissionsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ore_pool",
		Name:      "submissions_skipped_total",
		Help:      "Rounds with no contributions at cutoff.",
	})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ore_pool",
		Name:      "mine_events_dropped_total",
		Help:      "Webhook deliveries without usable pool return data.",
	})
	attributionBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ore_pool",
		Name:      "attribution_batches_total",
		Help:      "Attribute batches confirmed on-chain.",
	})
	attributionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ore_pool",
		Name:      "attribution_failures_total",
		Help:      "Attribute batches that failed and were left unsynced.",
	})
)
