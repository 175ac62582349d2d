package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/raywall/fast-service-stubber/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Configure inicializa o logger global baseando-se na configuração do YAML.
// O logger resultante também vira o default de zerolog.Ctx, então componentes
// que recebem um contexto sem logger continuam logando.
func Configure(cfg config.LoggingConf, service string) zerolog.Logger {
	logger := New(cfg, service, os.Stdout)

	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}

// New monta o logger sem alterar o estado global, exceto o nível.
func New(cfg config.LoggingConf, service string, out io.Writer) zerolog.Logger {
	// Define o nível de log (default: info)
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// JSON para produção, Console "bonito" para local se solicitado
	output := out
	if !cfg.Enabled {
		output = io.Discard
	} else if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}
	return ctx.Logger()
}
