package storage

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	partsAttached = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "widepart_parts_attached_total",
		Help: "Parts attached successfully.",
	}, []string{"table"})

	partsBroken = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "widepart_parts_broken_total",
		Help: "Parts that failed to attach and were skipped.",
	}, []string{"table"})

	activeParts = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "widepart_active_parts",
		Help: "Active parts per table.",
	}, []string{"table"})

	attachDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "widepart_part_attach_duration_seconds",
		Help:    "Time to load and validate one part.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	})

	loadedMarks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "widepart_marks_loaded_total",
		Help: "Marks decoded from marks files.",
	})

	cacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "widepart_cache_requests_total",
		Help: "Mark and uncompressed cache lookups.",
	}, []string{"cache", "result"})
)

// RegisterMetrics registers the storage metrics with reg. Registering twice
// with the same registry is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		partsAttached, partsBroken, activeParts, attachDuration, loadedMarks, cacheRequests,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
