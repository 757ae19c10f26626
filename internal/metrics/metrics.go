// Package metrics exposes the system's Prometheus counters and a
// periodic structured-log reporter, grounded on the reference
// implementation's stats module (a lock-free counter set sampled on an
// interval) and on DMRHub's use of prometheus/client_golang for a
// service's runtime counters.
package metrics

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xpanvictor/vadbridge/pkg/Logger"
)

// Metrics holds every Prometheus counter the system exports, plus the
// atomic counters the periodic reporter snapshots for structured
// logging.
type Metrics struct {
	Registry *prometheus.Registry

	RecvPackets  prometheus.Counter
	RecvBytes    prometheus.Counter
	Processed    prometheus.Counter
	VadActive    prometheus.Counter
	ParseErrors  prometheus.Counter
	RecvErrors   prometheus.Counter
	ChannelDrops prometheus.Counter

	recvPackets  atomic.Uint64
	recvBytes    atomic.Uint64
	processed    atomic.Uint64
	vadActive    atomic.Uint64
	parseErrors  atomic.Uint64
	recvErrors   atomic.Uint64
	channelDrops atomic.Uint64
}

// New builds a private registry and registers the Prometheus counters
// against it, following DMRHub's promhttp.Handler() pattern but against
// a per-instance registry rather than prometheus.DefaultRegisterer so
// that New is re-entrant (each call, e.g. from a test, gets its own
// collector set instead of panicking on duplicate registration).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RecvPackets: f.NewCounter(prometheus.CounterOpts{
			Name: "vadbridge_recv_packets_total",
			Help: "UDP datagrams received across both ingress endpoints.",
		}),
		RecvBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "vadbridge_recv_bytes_total",
			Help: "Bytes received across both ingress endpoints.",
		}),
		Processed: f.NewCounter(prometheus.CounterOpts{
			Name: "vadbridge_processed_total",
			Help: "Sensor packets processed by the affective engine.",
		}),
		VadActive: f.NewCounter(prometheus.CounterOpts{
			Name: "vadbridge_vad_active_total",
			Help: "Affective results flagged active.",
		}),
		ParseErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "vadbridge_parse_errors_total",
			Help: "Datagrams dropped for failing to parse.",
		}),
		RecvErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "vadbridge_recv_errors_total",
			Help: "Transient socket receive errors.",
		}),
		ChannelDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "vadbridge_channel_drops_total",
			Help: "Items dropped because a bounded queue was full.",
		}),
	}
}

// Handler serves the registry's collected metrics in the Prometheus
// exposition format, for mounting at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordRecv records one received datagram of the given size.
func (m *Metrics) RecordRecv(bytes int) {
	m.RecvPackets.Inc()
	m.RecvBytes.Add(float64(bytes))
	m.recvPackets.Add(1)
	m.recvBytes.Add(uint64(bytes))
}

// RecordProcessed records one processed sensor packet and whether its
// result was active.
func (m *Metrics) RecordProcessed(active bool) {
	m.Processed.Inc()
	m.processed.Add(1)
	if active {
		m.VadActive.Inc()
		m.vadActive.Add(1)
	}
}

// RecordParseError records one dropped malformed datagram.
func (m *Metrics) RecordParseError() {
	m.ParseErrors.Inc()
	m.parseErrors.Add(1)
}

// RecordRecvError records one transient socket receive error.
func (m *Metrics) RecordRecvError() {
	m.RecvErrors.Inc()
	m.recvErrors.Add(1)
}

// RecordChannelDrop records one item dropped because a bounded queue
// was full.
func (m *Metrics) RecordChannelDrop() {
	m.ChannelDrops.Inc()
	m.channelDrops.Add(1)
}

// snapshot swaps every local atomic counter back to zero and returns
// the values observed since the last snapshot.
func (m *Metrics) snapshot() (pkts, bytes, proc, active, perr, rerr, drops uint64) {
	return m.recvPackets.Swap(0), m.recvBytes.Swap(0), m.processed.Swap(0),
		m.vadActive.Swap(0), m.parseErrors.Swap(0), m.recvErrors.Swap(0), m.channelDrops.Swap(0)
}

// Report runs a ticking reporter that snapshots the counters every
// interval and logs them when there was any activity. An interval of 0
// disables reporting entirely. Mirrors the reference implementation's
// stats_reporter task, substituting structured logging for println.
func (m *Metrics) Report(ctx context.Context, interval time.Duration, log *Logger.Logger) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			if elapsed <= 0 {
				elapsed = 0.001
			}
			last = now

			pkts, bytes, proc, active, perr, rerr, drops := m.snapshot()
			if pkts == 0 && proc == 0 && active == 0 && perr == 0 && rerr == 0 && drops == 0 {
				continue
			}

			log.Infow("stats",
				"recv_pps", float64(pkts)/elapsed,
				"recv_mbps", float64(bytes)*8/(elapsed*1_000_000),
				"proc_pps", float64(proc)/elapsed,
				"vad_active", active,
				"parse_errors", perr,
				"recv_errors", rerr,
				"channel_drops", drops,
			)
		}
	}
}
