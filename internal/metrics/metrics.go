// Package metrics provides Prometheus metrics for jb sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	savesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jb_document_saves_total",
			Help: "Total number of document writes by outcome",
		},
		[]string{"status"},
	)

	saveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jb_document_save_duration_seconds",
			Help:    "Time spent writing a document snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	savesCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jb_document_saves_coalesced_total",
			Help: "Schedule calls superseded by a later snapshot before being written",
		},
	)

	treeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jb_tree_nodes",
			Help: "Number of nodes in the open document tree",
		},
	)

	openTabs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jb_open_tabs",
			Help: "Number of open editor tabs",
		},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jb_tree_mutations_total",
			Help: "Structural tree operations by operation and outcome",
		},
		[]string{"op", "status"},
	)

	eventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jb_event_subscribers",
			Help: "Number of active change-event subscribers",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSave records the outcome and duration of a document write.
func RecordSave(err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	savesTotal.WithLabelValues(status).Inc()
	saveDuration.Observe(d.Seconds())
}

// RecordCoalesced counts a scheduled snapshot replaced before it was written.
func RecordCoalesced() {
	savesCoalesced.Inc()
}

// SetTreeNodes sets the node count of the open document.
func SetTreeNodes(n int) {
	treeNodes.Set(float64(n))
}

// SetOpenTabs sets the number of open tabs.
func SetOpenTabs(n int) {
	openTabs.Set(float64(n))
}

// RecordMutation records a structural operation outcome.
func RecordMutation(op string, err error) {
	status := "success"
	if err != nil {
		status = "rejected"
	}
	mutationsTotal.WithLabelValues(op, status).Inc()
}

// SetEventSubscribers sets the number of change-event subscribers.
func SetEventSubscribers(n int) {
	eventSubscribers.Set(float64(n))
}
