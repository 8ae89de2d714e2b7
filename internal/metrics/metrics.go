// Package metrics exposes Prometheus counters and histograms for the
// receive pipeline, grounded on madpsy-ka9q_ubersdr's promauto-registered
// GaugeVec/Counter usage and its promhttp.Handler exposition endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Receiver holds every metric the gateway updates as frames pass
// through qam.FrameSynchroniser.
type Receiver struct {
	framesTotal     *prometheus.CounterVec
	preambleFound   prometheus.Counter
	phaseConflicts  prometheus.Counter
	decodedError    prometheus.Histogram
	payloadLength   prometheus.Histogram
	desyncBitcount  prometheus.Histogram
	connectedClients prometheus.Gauge
}

// NewReceiver registers every metric with the default Prometheus
// registry, following promauto's register-on-construct pattern.
func NewReceiver() *Receiver {
	return &Receiver{
		framesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qamrx_frames_total",
			Help: "Frames processed by outcome.",
		}, []string{"kind"}),
		preambleFound: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qamrx_preamble_found_total",
			Help: "Preamble patterns detected.",
		}),
		phaseConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qamrx_phase_conflicts_total",
			Help: "Preamble detections where more than one phase hypothesis matched on the same symbol.",
		}),
		decodedError: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "qamrx_decoded_error",
			Help:    "Viterbi best-path metric of decoded payload frames.",
			Buckets: prometheus.DefBuckets,
		}),
		payloadLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "qamrx_payload_length_bytes",
			Help:    "Decoded payload length in bytes.",
			Buckets: prometheus.LinearBuckets(0, 16, 16),
		}),
		desyncBitcount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "qamrx_desync_bitcount",
			Help:    "Bits elapsed between consecutive preamble detections beyond the preamble width.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		connectedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "qamrx_transport_clients",
			Help: "Websocket clients currently connected to the transport hub.",
		}),
	}
}

// ObserveFrame records the outcome of one qam.Event.
func (r *Receiver) ObserveFrame(kind string) {
	r.framesTotal.WithLabelValues(kind).Inc()
}

func (r *Receiver) ObservePreambleFound(phaseConflict bool) {
	r.preambleFound.Inc()
	if phaseConflict {
		r.phaseConflicts.Inc()
	}
}

func (r *Receiver) ObservePayload(decodedError float64, payloadLength int) {
	r.decodedError.Observe(decodedError)
	r.payloadLength.Observe(float64(payloadLength))
}

func (r *Receiver) ObserveDesync(bits int) {
	if bits > 0 {
		r.desyncBitcount.Observe(float64(bits))
	}
}

func (r *Receiver) SetConnectedClients(n int) {
	r.connectedClients.Set(float64(n))
}

// Handler returns the /metrics HTTP handler for this process's default
// registry, as wired directly in madpsy-ka9q_ubersdr's main.go.
func Handler() http.Handler {
	return promhttp.Handler()
}
