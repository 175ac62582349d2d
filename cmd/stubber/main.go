package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/raywall/fast-service-stubber/pkg/engine"
	"github.com/spf13/cobra"
)

var (
	configPath string
	// Variável injetável para mocking
	serverStarter = func(ctx context.Context, s *engine.Stubber) error {
		return s.Serve(ctx)
	}
)

var (
	rootCmd = &cobra.Command{
		Use:   "stubber",
		Short: "Grava e reproduz jornadas HTTP contra backends reais",
		Long: `stubber fica entre a aplicação e seus backends. Em modo de gravação
repassa as chamadas e salva as respostas em disco; em modo de reprodução
devolve as respostas gravadas, na mesma ordem.`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Sobe o servidor HTTP do stubber",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, path)
		},
	}

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Valida o arquivo de configuração sem subir o servidor",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			return runValidate(cmd.Context(), path, cmd.OutOrStdout())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Caminho do YAML (local, file://, s3:// ou dynamodb://). Padrão: $CONFIG_FILE_PATH")
	rootCmd.AddCommand(serveCmd, validateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	if env := os.Getenv("CONFIG_FILE_PATH"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("informe --config ou CONFIG_FILE_PATH")
}

// run contém a lógica principal testável
func run(ctx context.Context, cfgPath string) error {
	cfg, err := engine.Load(ctx, cfgPath)
	if err != nil {
		return err
	}

	stubber, err := engine.NewStubber(cfg)
	if err != nil {
		return err
	}

	return serverStarter(ctx, stubber)
}

func runValidate(ctx context.Context, path string, out io.Writer) error {
	fmt.Fprintf(out, "🔍 Analisando configuração: %s ...\n", path)

	cfg, err := engine.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("erro de carregamento/estrutura: %w", err)
	}

	fmt.Fprintf(out, "✅ Configuração válida: %s (porta %d, %d backend(s))\n",
		cfg.Service.Name, cfg.Service.Port, len(cfg.Backends))
	return nil
}
