package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demos_to_discord_workflows_total",
			Help: "Finished report workflows by terminal state.",
		},
		[]string{"outcome"},
	)
	artifactWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "demos_to_discord_artifact_wait_seconds",
		Help:    "Time spent waiting for a matching demo.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	reportsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demos_to_discord_reports_rejected_total",
			Help: "Report events dropped before a workflow ran, by reason.",
		},
		[]string{"reason"},
	)
)

// RejectReport counts a report dropped before or instead of a workflow.
func RejectReport(reason string) {
	reportsRejected.WithLabelValues(reason).Inc()
}
