package observability

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raywall/fast-service-stubber/pkg/metrics"
)

// Labels fixos; tags "journey:x" e "backend:y" viram labels.
var promLabels = []string{"journey", "backend"}

// PrometheusProvider expõe as métricas do stubber num registry próprio.
type PrometheusProvider struct {
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusProvider pré-registra as métricas conhecidas. Nomes com ponto
// viram snake case (stubber.recorded -> stubber_recorded_total).
func NewPrometheusProvider(defs []metrics.MetricDefinition) (*PrometheusProvider, error) {
	p := &PrometheusProvider{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	for _, def := range defs {
		name := promName(def.Name)
		var collector prometheus.Collector

		switch def.Type {
		case metrics.TypeCount:
			vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name + "_total", Help: def.Help}, promLabels)
			p.counters[def.Name] = vec
			collector = vec
		case metrics.TypeGauge:
			vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: def.Help}, promLabels)
			p.gauges[def.Name] = vec
			collector = vec
		case metrics.TypeHistogram:
			vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    name,
				Help:    def.Help,
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			}, promLabels)
			p.histograms[def.Name] = vec
			collector = vec
		default:
			return nil, fmt.Errorf("tipo de métrica desconhecido: %s", def.Type)
		}

		if err := p.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("falha ao registrar %s: %w", def.Name, err)
		}
	}

	return p, nil
}

func (p *PrometheusProvider) Count(name string, value float64, tags []string) error {
	vec, ok := p.counters[name]
	if !ok {
		return fmt.Errorf("contador não registrado: %s", name)
	}
	vec.With(labelsFromTags(tags)).Add(value)
	return nil
}

func (p *PrometheusProvider) Gauge(name string, value float64, tags []string) error {
	vec, ok := p.gauges[name]
	if !ok {
		return fmt.Errorf("gauge não registrado: %s", name)
	}
	vec.With(labelsFromTags(tags)).Set(value)
	return nil
}

func (p *PrometheusProvider) Histogram(name string, value float64, tags []string) error {
	vec, ok := p.histograms[name]
	if !ok {
		return fmt.Errorf("histograma não registrado: %s", name)
	}
	vec.With(labelsFromTags(tags)).Observe(value)
	return nil
}

// Handler serve o formato de exposição do Prometheus.
func (p *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusProvider) Registry() *prometheus.Registry {
	return p.registry
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

func labelsFromTags(tags []string) prometheus.Labels {
	labels := prometheus.Labels{}
	for _, l := range promLabels {
		labels[l] = ""
	}
	for _, tag := range tags {
		k, v, ok := strings.Cut(tag, ":")
		if !ok {
			continue
		}
		if _, known := labels[k]; known {
			labels[k] = v
		}
	}
	return labels
}
