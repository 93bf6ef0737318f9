package prometheus

import (
	"strings"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var namespace string

// SetNamespace sets the prometheus namespace prefix for all exported
// metrics. Call it before PrometheusListener.
func SetNamespace(ns string) {
	namespace = ns
}

var nameSanitizer = strings.NewReplacer("/", "_", ".", "_", "-", "_")

// convertToPrometheusMetric bridges a go-metrics metric into a prometheus
// collector. Unsupported metric kinds are skipped.
func convertToPrometheusMetric(name string, metric interface{}) (prometheus.Collector, bool) {
	opts := prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      nameSanitizer.Replace(name),
	}
	switch m := metric.(type) {
	case metrics.Counter:
		return prometheus.NewCounterFunc(prometheus.CounterOpts(opts), func() float64 {
			return float64(m.Snapshot().Count())
		}), true
	case metrics.Gauge:
		return prometheus.NewGaugeFunc(opts, func() float64 {
			return float64(m.Snapshot().Value())
		}), true
	case metrics.GaugeFloat64:
		return prometheus.NewGaugeFunc(opts, func() float64 {
			return m.Snapshot().Value()
		}), true
	case metrics.Meter:
		return prometheus.NewGaugeFunc(opts, func() float64 {
			return m.Snapshot().Rate1()
		}), true
	case metrics.Histogram:
		return prometheus.NewGaugeFunc(opts, func() float64 {
			return m.Snapshot().Mean()
		}), true
	case metrics.Timer:
		return prometheus.NewGaugeFunc(opts, func() float64 {
			return m.Snapshot().Mean()
		}), true
	default:
		return nil, false
	}
}
