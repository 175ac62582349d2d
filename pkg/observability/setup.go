package observability

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/raywall/fast-service-stubber/pkg/config"
	"github.com/raywall/fast-service-stubber/pkg/metrics"
)

// NoopProvider é um placeholder para quando métricas estão desabilitadas.
type NoopProvider struct{}

func (n *NoopProvider) Count(name string, value float64, tags []string) error     { return nil }
func (n *NoopProvider) Gauge(name string, value float64, tags []string) error     { return nil }
func (n *NoopProvider) Histogram(name string, value float64, tags []string) error { return nil }

// DatadogProvider adapta a lib oficial do Datadog para nossa interface.
type DatadogProvider struct {
	client statsd.ClientInterface
}

func NewDatadogProvider(client statsd.ClientInterface) *DatadogProvider {
	return &DatadogProvider{client: client}
}

func (d *DatadogProvider) Count(name string, value float64, tags []string) error {
	return d.client.Count(name, int64(value), tags, 1)
}

func (d *DatadogProvider) Gauge(name string, value float64, tags []string) error {
	return d.client.Gauge(name, value, tags, 1)
}

func (d *DatadogProvider) Histogram(name string, value float64, tags []string) error {
	return d.client.Histogram(name, value, tags, 1)
}

// MultiProvider replica cada métrica para todos os provedores.
type MultiProvider []metrics.Provider

func (m MultiProvider) Count(name string, value float64, tags []string) error {
	return m.each(func(p metrics.Provider) error { return p.Count(name, value, tags) })
}

func (m MultiProvider) Gauge(name string, value float64, tags []string) error {
	return m.each(func(p metrics.Provider) error { return p.Gauge(name, value, tags) })
}

func (m MultiProvider) Histogram(name string, value float64, tags []string) error {
	return m.each(func(p metrics.Provider) error { return p.Histogram(name, value, tags) })
}

func (m MultiProvider) each(fn func(metrics.Provider) error) error {
	var errs []error
	for _, p := range m {
		if err := fn(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetupMetrics inicializa os provedores habilitados no YAML. O handler só é
// devolvido quando o Prometheus está ativo.
func SetupMetrics(cfg config.MetricsConf) (metrics.Provider, http.Handler, error) {
	var (
		providers MultiProvider
		handler   http.Handler
	)

	if cfg.Datadog.Enabled {
		// Configurações do cliente StatsD
		opts := []statsd.Option{
			statsd.WithNamespace(cfg.Datadog.Namespace),
		}

		client, err := statsd.New(cfg.Datadog.Addr, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("falha ao conectar no datadog statsd: %w", err)
		}
		providers = append(providers, NewDatadogProvider(client))
	}

	if cfg.Prometheus.Enabled {
		prom, err := NewPrometheusProvider(metrics.Definitions())
		if err != nil {
			return nil, nil, err
		}
		providers = append(providers, prom)
		handler = prom.Handler()
	}

	switch len(providers) {
	case 0:
		return &NoopProvider{}, nil, nil
	case 1:
		return providers[0], handler, nil
	default:
		return providers, handler, nil
	}
}
