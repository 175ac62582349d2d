package config

import (
	"path/filepath"
	"time"
)

// StubberConfig representa a estrutura raiz do arquivo YAML do stubber.
type StubberConfig struct {
	Version  string         `yaml:"version" validate:"required"`
	Service  ServiceDetails `yaml:"service" validate:"required"`
	Backends []BackendConf  `yaml:"backends" validate:"dive"`
}

// ServiceDetails contém as opções de runtime do servidor de jornadas.
type ServiceDetails struct {
	Name        string `yaml:"name" env:"STUBBER_NAME" envDefault:"stubber" validate:"required,hostname_rfc1123"`
	Port        int    `yaml:"port" env:"STUBBER_PORT" envDefault:"3000" validate:"gte=1,lte=65535"`
	Root        string `yaml:"root" env:"STUBBER_ROOT"`
	JourneyPath string `yaml:"journey_path" env:"STUBBER_JOURNEY_PATH" envDefault:"journeys" validate:"required"`
	ReadOnly    bool   `yaml:"read_only" env:"STUBBER_READ_ONLY"`
	ClientCert  string `yaml:"client_cert" env:"STUBBER_CLIENT_CERT" validate:"required_with=ClientKey"`
	ClientKey   string `yaml:"client_key" env:"STUBBER_CLIENT_KEY" validate:"required_with=ClientCert"`
	Proxy       string `yaml:"proxy" env:"STUBBER_PROXY" validate:"omitempty,url"`
	CACert      string `yaml:"ca_cert" env:"STUBBER_CA_CERT"`
	// Backends lista os nomes permitidos. Vazio = todos os definidos.
	Backends     []string         `yaml:"backends"`
	Upstream     UpstreamConf     `yaml:"upstream"`
	Logging      LoggingConf      `yaml:"logging"`
	Metrics      MetricsConf      `yaml:"metrics"`
	Control      ControlConf      `yaml:"control"`
	StatusMirror StatusMirrorConf `yaml:"status_mirror"`
}

// BackendConf declara um backend sem código Go: URL base, expressão CEL de
// seleção automática e regras de reescrita de URL e body.
type BackendConf struct {
	Name      string        `yaml:"name" validate:"required,excludesall=/\\"`
	URL       string        `yaml:"url" validate:"required,url"`
	Match     string        `yaml:"match"`
	ParseURL  []RewriteRule `yaml:"parse_url" validate:"dive"`
	ParseBody []RewriteRule `yaml:"parse_body" validate:"dive"`
}

// RewriteRule é uma substituição por expressão regular (sintaxe RE2).
type RewriteRule struct {
	Pattern string `yaml:"pattern" validate:"required"`
	Replace string `yaml:"replace"`
}

type UpstreamConf struct {
	Timeout   string        `yaml:"timeout" env:"STUBBER_UPSTREAM_TIMEOUT" envDefault:"30s"`
	RateLimit RateLimitConf `yaml:"rate_limit"`
}

type RateLimitConf struct {
	RPS   float64 `yaml:"rps" env:"STUBBER_UPSTREAM_RPS" validate:"gte=0"`
	Burst int     `yaml:"burst" validate:"gte=0"`
}

type LoggingConf struct {
	Enabled bool   `yaml:"enabled" env:"STUBBER_LOG_ENABLED"`
	Level   string `yaml:"level" env:"STUBBER_LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" env:"STUBBER_LOG_FORMAT" validate:"omitempty,oneof=json console"`
}

type MetricsConf struct {
	Datadog    DatadogConf    `yaml:"datadog"`
	Prometheus PrometheusConf `yaml:"prometheus"`
}

type DatadogConf struct {
	Enabled   bool   `yaml:"enabled" env:"DD_ENABLED"`
	Addr      string `yaml:"addr" env:"DD_AGENT_HOST" validate:"required_if=Enabled true"`
	Namespace string `yaml:"namespace"`
}

type PrometheusConf struct {
	Enabled bool   `yaml:"enabled" env:"STUBBER_PROMETHEUS_ENABLED"`
	Addr    string `yaml:"addr" env:"STUBBER_PROMETHEUS_ADDR" validate:"required_if=Enabled true"`
	Path    string `yaml:"path" envDefault:"/metrics" validate:"omitempty,startswith=/"`
}

// ControlConf habilita o controle remoto de jornadas via fila SQS.
type ControlConf struct {
	SQSQueueURL string `yaml:"sqs_queue_url" env:"STUBBER_CONTROL_QUEUE" validate:"omitempty,url"`
	Region      string `yaml:"region" env:"AWS_REGION"`
}

type StatusMirrorConf struct {
	Redis RedisConf `yaml:"redis"`
}

type RedisConf struct {
	Enabled  bool   `yaml:"enabled" env:"STUBBER_REDIS_ENABLED"`
	Addr     string `yaml:"addr" env:"STUBBER_REDIS_ADDR" validate:"required_if=Enabled true"`
	Password string `yaml:"password" env:"STUBBER_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key" envDefault:"stubber:current_journey"`
}

// Default devolve a configuração base sobre a qual o YAML é decodificado.
func Default() StubberConfig {
	return StubberConfig{
		Version: "1.0",
		Service: ServiceDetails{
			Logging: LoggingConf{Enabled: true, Level: "info", Format: "json"},
		},
	}
}

// GetTimeout devolve o timeout das chamadas upstream (default 30s).
func (u UpstreamConf) GetTimeout() time.Duration {
	d, err := time.ParseDuration(u.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// ResolvePath resolve caminhos relativos a partir de Root.
func (s ServiceDetails) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || s.Root == "" {
		return p
	}
	return filepath.Join(s.Root, p)
}

// Permits informa se o backend pode ser registrado.
func (s ServiceDetails) Permits(name string) bool {
	if len(s.Backends) == 0 {
		return true
	}
	for _, b := range s.Backends {
		if b == name {
			return true
		}
	}
	return false
}
