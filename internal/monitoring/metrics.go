package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_trades_total",
			Help: "Total number of executed trades",
		},
		[]string{"symbol", "side"},
	)

	tradesBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_trades_blocked_total",
			Help: "Total number of trades blocked before execution",
		},
		[]string{"reason"},
	)

	tradeAmount = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trading_agent_trade_amount_usd",
			Help:    "Distribution of trade sizes in USD",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"symbol"},
	)

	portfolioValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_agent_portfolio_value_usd",
			Help: "Marked portfolio value per allocation bucket",
		},
		[]string{"bucket"},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_agent_current_price_usd",
			Help: "Last observed price per symbol",
		},
		[]string{"symbol"},
	)

	dailyLoss = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_agent_daily_loss_usd",
			Help: "Accumulated realized loss for the current UTC day",
		},
	)

	totalLoss = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_agent_total_loss_usd",
			Help: "Accumulated realized loss since start",
		},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trading_agent_cycle_duration_seconds",
			Help:    "Duration of one trading loop cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradesBlockedTotal)
	prometheus.MustRegister(tradeAmount)
	prometheus.MustRegister(portfolioValue)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(dailyLoss)
	prometheus.MustRegister(totalLoss)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus metrics endpoint.
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records one executed trade.
func RecordTrade(symbol, side string, amountUSD float64) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
	tradeAmount.WithLabelValues(symbol).Observe(amountUSD)
}

// RecordBlockedTrade records a trade stopped before execution.
func RecordBlockedTrade(reason string) {
	tradesBlockedTotal.WithLabelValues(reason).Inc()
}

// UpdatePortfolioValue updates the marked value of one allocation bucket
// ("conservative", "aggressive" or "total").
func UpdatePortfolioValue(bucket string, value float64) {
	portfolioValue.WithLabelValues(bucket).Set(value)
}

// UpdatePrice updates the last observed price for a symbol.
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateLossCounters updates the realized loss gauges.
func UpdateLossCounters(daily, total float64) {
	dailyLoss.Set(daily)
	totalLoss.Set(total)
}

// ObserveCycleDuration records the duration of one trading cycle.
func ObserveCycleDuration(seconds float64) {
	cycleDuration.Observe(seconds)
}

// RecordError records an error by type.
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
