// Package asmetrics implements as.PoolObserver, as.CommandObserver and
// as.TendObserver backed by Prometheus collectors, in the shape of a
// metrics plugin that hooks a client's observer callbacks.
package asmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/as"
)

// Reporter registers and updates the collectors backing cluster
// observability: pool size/opens/closes per node, tend duration, and
// command latency/retry counts per command kind.
type Reporter struct {
	connsOpened  *prometheus.CounterVec
	connsClosed  *prometheus.CounterVec
	poolSize     *prometheus.GaugeVec
	poolTotal    *prometheus.GaugeVec
	tendDuration prometheus.Histogram
	tendErrors   prometheus.Counter
	cmdDuration  *prometheus.HistogramVec
	cmdErrors    *prometheus.CounterVec
	cmdRetries   *prometheus.CounterVec
}

// New constructs a Reporter and registers its collectors against reg. If
// reg is nil, the default Prometheus registry is used.
func New(reg prometheus.Registerer) *Reporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Reporter{
		connsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aerospike_client",
			Name:      "conns_opened_total",
			Help:      "Connections opened per node.",
		}, []string{"node"}),
		connsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aerospike_client",
			Name:      "conns_closed_total",
			Help:      "Connections closed per node, labeled by cause.",
		}, []string{"node", "cause"}),
		poolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aerospike_client",
			Name:      "pool_idle_size",
			Help:      "Idle connections currently held per node.",
		}, []string{"node"}),
		poolTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aerospike_client",
			Name:      "pool_total_open",
			Help:      "Total open connections (idle + checked out) per node.",
		}, []string{"node"}),
		tendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aerospike_client",
			Name:      "tend_duration_seconds",
			Help:      "Duration of each tend iteration.",
			Buckets:   prometheus.DefBuckets,
		}),
		tendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aerospike_client",
			Name:      "tend_errors_total",
			Help:      "Tend iterations that returned an error.",
		}),
		cmdDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aerospike_client",
			Name:      "command_duration_seconds",
			Help:      "Command latency, labeled by command kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		cmdErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aerospike_client",
			Name:      "command_errors_total",
			Help:      "Command failures, labeled by command kind.",
		}, []string{"kind"}),
		cmdRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aerospike_client",
			Name:      "command_retries_total",
			Help:      "Command retry attempts, labeled by command kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		r.connsOpened, r.connsClosed, r.poolSize, r.poolTotal,
		r.tendDuration, r.tendErrors, r.cmdDuration, r.cmdErrors, r.cmdRetries,
	)
	return r
}

var (
	_ as.PoolObserver    = (*Reporter)(nil)
	_ as.CommandObserver = (*Reporter)(nil)
	_ as.TendObserver    = (*Reporter)(nil)
)

func (r *Reporter) OnConnOpened(node string) {
	r.connsOpened.WithLabelValues(node).Inc()
}

func (r *Reporter) OnConnClosed(node string, cause string) {
	r.connsClosed.WithLabelValues(node, cause).Inc()
}

func (r *Reporter) OnPoolSize(node string, size, totalOpen int) {
	r.poolSize.WithLabelValues(node).Set(float64(size))
	r.poolTotal.WithLabelValues(node).Set(float64(totalOpen))
}

func (r *Reporter) OnCommandComplete(kind string, d time.Duration, err error) {
	r.cmdDuration.WithLabelValues(kind).Observe(d.Seconds())
	if err != nil {
		r.cmdErrors.WithLabelValues(kind).Inc()
	}
}

func (r *Reporter) OnCommandRetry(kind string, iteration int) {
	r.cmdRetries.WithLabelValues(kind).Inc()
}

func (r *Reporter) OnTendComplete(d time.Duration, nodeCount int, err error) {
	r.tendDuration.Observe(d.Seconds())
	if err != nil {
		r.tendErrors.Inc()
	}
}
