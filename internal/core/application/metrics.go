package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	tradesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilswap_trades_opened_total",
		Help: "Number of trades opened since startup.",
	})
	tradesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilswap_trades_completed_total",
		Help: "Number of trades settled with a confirmed payout.",
	})
	tradesCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilswap_trades_canceled_total",
		Help: "Number of trades canceled before the deposit confirmed.",
	})
	tradesDisputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilswap_trades_disputed_total",
		Help: "Number of trades that entered the arbitration branch.",
	})
	confirmationEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilswap_tx_confirmation_events_total",
		Help: "Number of validated confirmation events consumed.",
	})
	crawlerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilswap_crawler_errors_total",
		Help: "Number of errors reported by the blockchain crawler.",
	})
)

// CrawlerErrorHandler logs crawler failures and accounts them. Validation
// failures land here too: the observation is retried on the next tick.
func CrawlerErrorHandler(err error) {
	crawlerErrors.Inc()
	log.WithError(err).Warn("crawler")
}
