// Package metrics exposes Prometheus collectors for the tick loop.
//
// Every method is nil-safe so components can be built without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the desk's collectors and the registry they live in
type Metrics struct {
	Registry *prometheus.Registry

	tickDuration     prometheus.Histogram
	overruns         prometheus.Counter
	ticks            prometheus.Counter
	panics           *prometheus.CounterVec
	runningFunctions prometheus.Gauge
	dmxSources       prometheus.Gauge
	droppedFrames    prometheus.Counter
	listChanges      prometheus.Counter
}

// New creates and registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "lightdesk_tick_duration_seconds",
			Help: "Time spent composing one tick",
			// 12 buckets from 50us to 100ms.
			Buckets: prometheus.ExponentialBucketsRange(0.00005, 0.1, 12),
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lightdesk_tick_overruns_total",
			Help: "Ticks that took longer than the tick interval",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lightdesk_ticks_total",
			Help: "Ticks executed",
		}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lightdesk_producer_panics_total",
			Help: "Producers removed after panicking during a tick",
		}, []string{"kind"}),
		runningFunctions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lightdesk_running_functions",
			Help: "Functions in the running set",
		}),
		dmxSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lightdesk_dmx_sources",
			Help: "Registered DMX sources",
		}),
		droppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lightdesk_output_dropped_frames_total",
			Help: "Frames dropped because the transmitter was still busy",
		}),
		listChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lightdesk_function_list_changes_total",
			Help: "Coalesced running function list change notifications",
		}),
	}
	m.Registry.MustRegister(
		m.tickDuration,
		m.overruns,
		m.ticks,
		m.panics,
		m.runningFunctions,
		m.dmxSources,
		m.droppedFrames,
		m.listChanges,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveTick records one tick and whether it overran the interval
func (m *Metrics) ObserveTick(d time.Duration, overrun bool) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
	if overrun {
		m.overruns.Inc()
	}
}

// ProducerPanic counts a panicking producer of the given kind
func (m *Metrics) ProducerPanic(kind string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(kind).Inc()
}

// SetRunningFunctions updates the running function gauge
func (m *Metrics) SetRunningFunctions(n int) {
	if m == nil {
		return
	}
	m.runningFunctions.Set(float64(n))
}

// SetDMXSources updates the DMX source gauge
func (m *Metrics) SetDMXSources(n int) {
	if m == nil {
		return
	}
	m.dmxSources.Set(float64(n))
}

// DroppedFrame counts one dropped output frame
func (m *Metrics) DroppedFrame() {
	if m == nil {
		return
	}
	m.droppedFrames.Inc()
}

// ListChanged counts one function list change notification
func (m *Metrics) ListChanged() {
	if m == nil {
		return
	}
	m.listChanges.Inc()
}
