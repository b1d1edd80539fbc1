package chain

import "github.com/prometheus/client_golang/prometheus"

var (
	txTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wager_tx_total",
			Help: "Operations executed, by action and result code",
		},
		[]string{"action", "code"},
	)
	matchesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wager_matches_finished_total",
			Help: "Matches that reached a terminal state",
		},
		[]string{"outcome"},
	)
	blockHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wager_block_height",
		Help: "Last committed block height",
	})
)

func init() {
	prometheus.MustRegister(txTotal)
	prometheus.MustRegister(matchesFinished)
	prometheus.MustRegister(blockHeight)
}
