package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chain_extractor"

var pipelineLabels = []string{"blockchain", "mode"}

// Metrics holds Prometheus collectors labelled by blockchain and mode.
type Metrics struct {
	blocksExtracted  *prometheus.CounterVec
	blocksEmitted    *prometheus.CounterVec
	transfersEmitted *prometheus.CounterVec
	retries          *prometheus.CounterVec
	cursor           *prometheus.GaugeVec
	chainHeight      *prometheus.GaugeVec
	queueDepth       *prometheus.GaugeVec
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics on the default registry (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = NewWithRegistry(prometheus.DefaultRegisterer)
	})
	return metrics
}

// NewWithRegistry builds a metrics set registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		blocksExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_extracted_total",
			Help:      "Total number of blocks extracted from the chain node",
		}, pipelineLabels),
		blocksEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_emitted_total",
			Help:      "Total number of blocks published downstream",
		}, pipelineLabels),
		transfersEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_emitted_total",
			Help:      "Total number of transfer events published downstream",
		}, pipelineLabels),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retried operations by pipeline stage",
		}, append(append([]string{}, pipelineLabels...), "stage")),
		cursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor_block",
			Help:      "Last block durably emitted",
		}, pipelineLabels),
		chainHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "safe_height_block",
			Help:      "Last observed chain height minus the confirmation depth",
		}, pipelineLabels),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Blocks extracted but not yet durably emitted",
		}, pipelineLabels),
	}
	reg.MustRegister(
		m.blocksExtracted,
		m.blocksEmitted,
		m.transfersEmitted,
		m.retries,
		m.cursor,
		m.chainHeight,
		m.queueDepth,
	)
	return m
}

// BlockExtracted increments the extracted blocks counter.
func (m *Metrics) BlockExtracted(blockchain, mode string) {
	if m != nil {
		m.blocksExtracted.WithLabelValues(blockchain, mode).Inc()
	}
}

// BlockEmitted records a published block and its transfer count.
func (m *Metrics) BlockEmitted(blockchain, mode string, transfers int) {
	if m != nil {
		m.blocksEmitted.WithLabelValues(blockchain, mode).Inc()
		m.transfersEmitted.WithLabelValues(blockchain, mode).Add(float64(transfers))
	}
}

// Retry increments the retry counter for stage.
func (m *Metrics) Retry(blockchain, mode, stage string) {
	if m != nil {
		m.retries.WithLabelValues(blockchain, mode, stage).Inc()
	}
}

// SetCursor records the persisted cursor.
func (m *Metrics) SetCursor(blockchain, mode string, block uint64) {
	if m != nil {
		m.cursor.WithLabelValues(blockchain, mode).Set(float64(block))
	}
}

// SetSafeHeight records the last observed safe height.
func (m *Metrics) SetSafeHeight(blockchain, mode string, block uint64) {
	if m != nil {
		m.chainHeight.WithLabelValues(blockchain, mode).Set(float64(block))
	}
}

// SetQueueDepth records the number of occupied queue slots.
func (m *Metrics) SetQueueDepth(blockchain, mode string, depth int) {
	if m != nil {
		m.queueDepth.WithLabelValues(blockchain, mode).Set(float64(depth))
	}
}

// Handler returns an HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
