package sweeper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsObservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_events_observed_total",
		Help: "Capture records read from the kernel buffer.",
	})
	eventsScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_events_scheduled_total",
		Help: "Validated events enqueued for persistence.",
	})
	eventsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_events_rejected_total",
		Help: "Events dropped by the decoder's policy checks.",
	})
	queueDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_queue_drops_total",
		Help: "Validated events dropped because the request queue was full.",
	})
	lostSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_lost_samples_total",
		Help: "Records the kernel dropped because the consumer fell behind.",
	})
	deletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_deletions_total",
		Help: "Expired-file deletion attempts by result.",
	}, []string{"result"})
)
