package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "battlescore",
		Subsystem: "engine",
		Name:      "ticks_total",
		Help:      "Scheduler ticks executed.",
	})
	snapshotsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "battlescore",
		Subsystem: "engine",
		Name:      "snapshots_applied_total",
		Help:      "Gift snapshots diffed into the match state.",
	})
	effectsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "battlescore",
		Subsystem: "engine",
		Name:      "effects_queued_total",
		Help:      "Effects pushed onto a player queue.",
	}, []string{"player"})
	effectsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "battlescore",
		Subsystem: "engine",
		Name:      "effects_dropped_total",
		Help:      "Effects skipped by the per-tick budget or the queue capacity.",
	}, []string{"player"})
	driverFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "battlescore",
		Subsystem: "engine",
		Name:      "driver_faults_total",
		Help:      "Recovered panics per driver.",
	}, []string{"driver"})
)
