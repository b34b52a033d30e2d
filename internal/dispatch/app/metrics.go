package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_dispatch",
			Name:      "dispatches_total",
			Help:      "Total dispatch operations.",
		},
		[]string{"provider", "mode"}, // mode: "persisted" or "dry"
	)

	recipientOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_dispatch",
			Name:      "recipient_outcomes_total",
			Help:      "Per-recipient send outcomes.",
		},
		[]string{"provider", "status"},
	)

	carrierRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sms_dispatch",
			Name:      "carrier_batch_duration_seconds",
			Help:      "Duration of carrier batch sends.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)
