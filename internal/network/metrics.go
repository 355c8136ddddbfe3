package network

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// tickDuration measures one full network update.
	// Labels: method (default, priority, script)
	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "neuralsim",
		Subsystem: "network",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one network update",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"method"})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "neuralsim",
		Subsystem: "network",
		Name:      "ticks_total",
		Help:      "Total network updates completed",
	})

	synapsesAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "neuralsim",
		Subsystem: "synapse_group",
		Name:      "synapses_added_total",
		Help:      "Synapses added to synapse groups",
	})

	synapsesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "neuralsim",
		Subsystem: "synapse_group",
		Name:      "synapses_removed_total",
		Help:      "Synapses removed from synapse groups",
	})

	// polarityFlips counts synapses moved between the excitatory and
	// inhibitory sets by ratio changes or revalidation.
	polarityFlips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "neuralsim",
		Subsystem: "synapse_group",
		Name:      "polarity_flips_total",
		Help:      "Synapses moved between polarity sets",
	})

	groupDeletions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "neuralsim",
		Subsystem: "network",
		Name:      "group_deletions_total",
		Help:      "Groups deleted",
	})
)
