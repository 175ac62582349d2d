package metrics

import "fmt"

// Provider define o contrato para envio de métricas.
// Isso permite trocar Datadog por Prometheus sem alterar o motor de jornadas.
type Provider interface {
	Count(name string, value float64, tags []string) error
	Gauge(name string, value float64, tags []string) error
	Histogram(name string, value float64, tags []string) error
}

// MetricType define os tipos suportados.
type MetricType string

const (
	TypeCount     MetricType = "count"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// MetricDefinition armazena os metadados da métrica (nome real, tipo).
type MetricDefinition struct {
	Name string
	Type MetricType
	Help string
}

// Métricas emitidas pelo motor de jornadas.
var (
	Recorded = MetricDefinition{Name: "stubber.recorded", Type: TypeCount, Help: "Chamadas gravadas"}
	Played   = MetricDefinition{Name: "stubber.played", Type: TypeCount, Help: "Chamadas reproduzidas"}
	Misses   = MetricDefinition{Name: "stubber.misses", Type: TypeCount, Help: "Requisições sem chamada gravada"}

	UpstreamLatency = MetricDefinition{Name: "stubber.upstream.latency_ms", Type: TypeHistogram, Help: "Latência das chamadas upstream em ms"}
)

// Definitions lista todas as métricas conhecidas, usado para pré-registro.
func Definitions() []MetricDefinition {
	return []MetricDefinition{Recorded, Played, Misses, UpstreamLatency}
}

// Tags monta as tags padrão journey:/backend:. Valores vazios são omitidos.
func Tags(journey, backend string) []string {
	tags := make([]string, 0, 2)
	if journey != "" {
		tags = append(tags, fmt.Sprintf("journey:%s", journey))
	}
	if backend != "" {
		tags = append(tags, fmt.Sprintf("backend:%s", backend))
	}
	return tags
}

// Emit envia a métrica pelo tipo declarado.
func Emit(p Provider, def MetricDefinition, value float64, tags []string) error {
	if p == nil {
		return nil
	}
	switch def.Type {
	case TypeCount:
		return p.Count(def.Name, value, tags)
	case TypeGauge:
		return p.Gauge(def.Name, value, tags)
	case TypeHistogram:
		return p.Histogram(def.Name, value, tags)
	default:
		return fmt.Errorf("tipo de métrica desconhecido: %s", def.Type)
	}
}
