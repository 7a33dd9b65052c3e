package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Compile-time interface check.
var _ Metrics = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Block metrics
	blockHeight   prometheus.Gauge
	blocksExec    prometheus.Counter
	blockDuration prometheus.Histogram
	blockTxs      prometheus.Gauge

	// Transaction metrics
	txsChecked  *prometheus.CounterVec
	txsExecuted *prometheus.CounterVec
	txsFailed   *prometheus.CounterVec

	// Claim metrics
	claimsSubmitted prometheus.Counter
	claimsApproved  prometheus.Counter
	claimsRejected  prometheus.Counter
	claimAmount     prometheus.Histogram
	claimsPending   prometheus.Gauge
	totalProcessed  prometheus.Gauge
	totalDisbursed  prometheus.Gauge

	// Query metrics
	queries *prometheus.CounterVec

	// Commit metrics
	commitDuration  prometheus.Histogram
	snapshotsSaved  prometheus.Counter
	snapshotsPruned prometheus.Counter
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,

		// Block metrics
		blockHeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "block_height",
				Help:      "Last committed block height",
			},
		),
		blocksExec: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blocks_executed_total",
				Help:      "Total number of blocks executed",
			},
		),
		blockDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "block_duration_seconds",
				Help:      "Time spent executing a block",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		blockTxs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "block_txs",
				Help:      "Number of transactions in the latest block",
			},
		),

		// Transaction metrics
		txsChecked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_checked_total",
				Help:      "Total number of transactions passed through the mempool gate",
			},
			[]string{"result"},
		),
		txsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_executed_total",
				Help:      "Total number of transactions executed in blocks",
			},
			[]string{"kind"},
		),
		txsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_failed_total",
				Help:      "Total number of transactions that failed during execution",
			},
			[]string{"kind", "code"},
		),

		// Claim metrics
		claimsSubmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claims_submitted_total",
				Help:      "Total number of claims accepted for review",
			},
		),
		claimsApproved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claims_approved_total",
				Help:      "Total number of claims approved and disbursed",
			},
		),
		claimsRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claims_rejected_total",
				Help:      "Total number of claims rejected",
			},
		),
		claimAmount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "claim_amount",
				Help:      "Requested amount per submitted claim",
				Buckets:   []float64{100, 1_000, 10_000, 100_000, 500_000, 1_000_000},
			},
		),
		claimsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "claims_pending",
				Help:      "Number of claims awaiting a decision",
			},
		),
		totalProcessed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "claims_processed_total",
				Help:      "Lifetime number of approved claims",
			},
		),
		totalDisbursed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "disbursed_total",
				Help:      "Lifetime sum of disbursed funds",
			},
		),

		// Query metrics
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of state queries served",
			},
			[]string{"path"},
		),

		// Commit metrics
		commitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_duration_seconds",
				Help:      "Time spent committing a block and persisting the snapshot",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		snapshotsSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_saved_total",
				Help:      "Total number of state snapshots persisted",
			},
		),
		snapshotsPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_pruned_total",
				Help:      "Total number of state snapshots pruned",
			},
		),
	}

	registry.MustRegister(
		// Block metrics
		m.blockHeight,
		m.blocksExec,
		m.blockDuration,
		m.blockTxs,

		// Transaction metrics
		m.txsChecked,
		m.txsExecuted,
		m.txsFailed,

		// Claim metrics
		m.claimsSubmitted,
		m.claimsApproved,
		m.claimsRejected,
		m.claimAmount,
		m.claimsPending,
		m.totalProcessed,
		m.totalDisbursed,

		// Query metrics
		m.queries,

		// Commit metrics
		m.commitDuration,
		m.snapshotsSaved,
		m.snapshotsPruned,
	)

	return m
}

// Block metrics implementation

func (m *PrometheusMetrics) SetBlockHeight(height uint64) {
	m.blockHeight.Set(float64(height))
}

func (m *PrometheusMetrics) IncBlocksExecuted() {
	m.blocksExec.Inc()
}

func (m *PrometheusMetrics) ObserveBlockDuration(d time.Duration) {
	m.blockDuration.Observe(d.Seconds())
}

func (m *PrometheusMetrics) SetBlockTxs(count int) {
	m.blockTxs.Set(float64(count))
}

// Transaction metrics implementation

func (m *PrometheusMetrics) IncTxsChecked(result string) {
	m.txsChecked.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) IncTxsExecuted(kind string) {
	m.txsExecuted.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) IncTxsFailed(kind, code string) {
	m.txsFailed.WithLabelValues(kind, code).Inc()
}

// Claim metrics implementation

func (m *PrometheusMetrics) IncClaimsSubmitted() {
	m.claimsSubmitted.Inc()
}

func (m *PrometheusMetrics) IncClaimsApproved() {
	m.claimsApproved.Inc()
}

func (m *PrometheusMetrics) IncClaimsRejected() {
	m.claimsRejected.Inc()
}

func (m *PrometheusMetrics) ObserveClaimAmount(amount uint64) {
	m.claimAmount.Observe(float64(amount))
}

func (m *PrometheusMetrics) SetClaimsPending(count int) {
	m.claimsPending.Set(float64(count))
}

func (m *PrometheusMetrics) SetTotalProcessed(count uint64) {
	m.totalProcessed.Set(float64(count))
}

func (m *PrometheusMetrics) SetTotalDisbursed(amount uint64) {
	m.totalDisbursed.Set(float64(amount))
}

// Query metrics implementation

func (m *PrometheusMetrics) IncQueries(path string) {
	m.queries.WithLabelValues(path).Inc()
}

// Commit metrics implementation

func (m *PrometheusMetrics) ObserveCommitDuration(d time.Duration) {
	m.commitDuration.Observe(d.Seconds())
}

func (m *PrometheusMetrics) IncSnapshotsSaved() {
	m.snapshotsSaved.Inc()
}

func (m *PrometheusMetrics) IncSnapshotsPruned(count int) {
	m.snapshotsPruned.Add(float64(count))
}

// Handler returns an HTTP handler for serving metrics.
func (m *PrometheusMetrics) Handler() any {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

// HTTPHandler returns a typed HTTP handler for serving metrics.
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
