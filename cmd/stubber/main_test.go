package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/raywall/fast-service-stubber/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootYAML = `
version: "1.0"
service:
  name: "boot-test"
  port: 9999
  journey_path: "journeys"
  logging: {level: "error", format: "json"}
backends:
  - name: api
    url: "http://up.example/"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stubber.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_ServerBootstrap(t *testing.T) {
	t.Setenv("STUBBER_ROOT", t.TempDir())
	path := writeTemp(t, bootYAML)

	// Mock do Starter para não bloquear o teste
	serverStarterCalled := false
	originalStarter := serverStarter
	serverStarter = func(ctx context.Context, s *engine.Stubber) error {
		serverStarterCalled = true
		assert.Equal(t, "boot-test", s.Config.Service.Name)
		assert.Equal(t, 9999, s.Config.Service.Port)
		assert.Equal(t, []string{"api"}, s.Registry.Names())
		return nil
	}
	defer func() { serverStarter = originalStarter }()

	err := run(context.Background(), path)

	require.NoError(t, err)
	assert.True(t, serverStarterCalled, "o servidor HTTP não foi iniciado")
}

func TestRun_InvalidConfig(t *testing.T) {
	called := false
	originalStarter := serverStarter
	serverStarter = func(ctx context.Context, s *engine.Stubber) error {
		called = true
		return nil
	}
	defer func() { serverStarter = originalStarter }()

	err := run(context.Background(), writeTemp(t, "version: \"1.0\"\nservice:\n  name: \"Nome Inválido\"\n"))

	assert.Error(t, err)
	assert.False(t, called)
}

func TestResolveConfigPath(t *testing.T) {
	original := configPath
	defer func() { configPath = original }()

	configPath = ""
	t.Setenv("CONFIG_FILE_PATH", "")
	_, err := resolveConfigPath()
	assert.Error(t, err)

	t.Setenv("CONFIG_FILE_PATH", "s3://bucket/stubber.yaml")
	path, err := resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/stubber.yaml", path)

	configPath = "local.yaml"
	path, err = resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "local.yaml", path)
}

func TestRunValidate(t *testing.T) {
	var out bytes.Buffer
	err := runValidate(context.Background(), writeTemp(t, bootYAML), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "boot-test")
	assert.Contains(t, out.String(), "1 backend(s)")

	out.Reset()
	err = runValidate(context.Background(), writeTemp(t, "service: ["), &out)
	assert.ErrorContains(t, err, "YAML malformado")
}
