package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Validate(t *testing.T) {
	validator := NewValidator()

	validService := ServiceDetails{
		Name:        "stubber",
		Port:        3000,
		JourneyPath: "journeys",
		Logging:     LoggingConf{Enabled: true, Level: "info", Format: "console"},
	}

	tests := []struct {
		name    string
		cfg     *StubberConfig
		wantErr bool
	}{
		{
			name: "Valid Config",
			cfg: &StubberConfig{
				Version: "1.0",
				Service: validService,
				Backends: []BackendConf{
					{
						Name:     "jsonplaceholder",
						URL:      "http://jsonplaceholder.typicode.com/",
						ParseURL: []RewriteRule{{Pattern: `/[0-9]+`, Replace: `/[0-9]+`}},
					},
				},
			},
			wantErr: false,
		},
		{
			name: "Backend sem URL",
			cfg: &StubberConfig{
				Version:  "1.0",
				Service:  validService,
				Backends: []BackendConf{{Name: "api"}},
			},
			wantErr: true,
		},
		{
			name: "Backend duplicado",
			cfg: &StubberConfig{
				Version: "1.0",
				Service: validService,
				Backends: []BackendConf{
					{Name: "api", URL: "http://a.example/"},
					{Name: "api", URL: "http://b.example/"},
				},
			},
			wantErr: true,
		},
		{
			name: "Regex inválida",
			cfg: &StubberConfig{
				Version: "1.0",
				Service: validService,
				Backends: []BackendConf{
					{Name: "api", URL: "http://a.example/", ParseBody: []RewriteRule{{Pattern: "(["}}},
				},
			},
			wantErr: true,
		},
		{
			name: "Certificado sem chave",
			cfg: func() *StubberConfig {
				s := validService
				s.ClientCert = "client.pem"
				return &StubberConfig{Version: "1.0", Service: s}
			}(),
			wantErr: true,
		},
		{
			name: "Nível de log desconhecido",
			cfg: func() *StubberConfig {
				s := validService
				s.Logging.Level = "trace"
				return &StubberConfig{Version: "1.0", Service: s}
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServiceDetails_Helpers(t *testing.T) {
	s := ServiceDetails{Root: "/srv/stubber", Backends: []string{"bbc"}}

	assert.Equal(t, "/srv/stubber/journeys", s.ResolvePath("journeys"))
	assert.Equal(t, "/abs/path", s.ResolvePath("/abs/path"))
	assert.True(t, s.Permits("bbc"))
	assert.False(t, s.Permits("electron"))
	assert.True(t, ServiceDetails{}.Permits("qualquer"))
}
