package cask

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Failure kinds used as the value of the "kind" label on failures_total.
const (
	failNotFound        = "not_found"
	failSegmentMismatch = "segment_mismatch"
	failRead            = "read"
	failChecksum        = "checksum"
	failKeyCorruption   = "key_corruption"
	failAppend          = "append"
)

type metrics struct {
	puts         prometheus.Counter
	gets         prometheus.Counter
	failures     *prometheus.CounterVec
	rotations    prometheus.Counter
	bytesWritten prometheus.Counter
	segments     prometheus.Gauge
	keys         prometheus.Gauge
}

func newMetrics(r prometheus.Registerer) *metrics {
	m := &metrics{
		puts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "puts_total",
			Help: "Total number of successful puts.",
		}),
		gets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gets_total",
			Help: "Total number of successful gets.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "failures_total",
			Help: "Total number of failed operations by kind.",
		}, []string{"kind"}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "segment_rotations_total",
			Help: "Total number of times the active segment was rotated.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "written_bytes_total",
			Help: "Total number of bytes appended to segments.",
		}),
		segments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "segments",
			Help: "Number of segments known to the store.",
		}),
		keys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keys",
			Help: "Number of keys in the keydir.",
		}),
	}

	if r != nil {
		r = prometheus.WrapRegistererWithPrefix("caskdb_", r)
		r.MustRegister(m.puts, m.gets, m.failures, m.rotations, m.bytesWritten, m.segments, m.keys)
	}

	return m
}
