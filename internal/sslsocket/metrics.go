package sslsocket

//
// Metrics definitions
//

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsSummaryObjectives returns the summary objectives for promauto.NewSummary.
func metricsSummaryObjectives() map[float64]float64 {
	return map[float64]float64{
		0.25: 0.010,
		0.5:  0.010,
		0.75: 0.010,
		0.9:  0.010,
		0.99: 0.001,
	}
}

var (
	// metricConnectCount counts Connect results by outcome, which is either
	// "established" or the kind of the ConnectionError.
	metricConnectCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sslsocket_connect_count",
		Help: "Total number of completed Connect calls by outcome",
	}, []string{"outcome"})

	// metricConnectDurationSeconds summarizes the duration of successful connects.
	metricConnectDurationSeconds = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "sslsocket_connect_duration_seconds",
		Help:       "Summarizes the time to establish a secure connection (in seconds)",
		Objectives: metricsSummaryObjectives(),
	})

	// metricNonblockDowngradeCount counts non-blocking requests we downgraded.
	metricNonblockDowngradeCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sslsocket_nonblock_downgrade_count",
		Help: "Total number of connections where we downgraded nonblock to blocking",
	})
)
