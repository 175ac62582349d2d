// Copyright 2025 Raywall Malheiros de Souza
// Licensed under the Mozilla Public License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package backend mantém o registro de backends do stubber.
//
// Um backend é o alvo real de uma gravação. Além da URL base, ele pode
// decidir se atende uma requisição (Match), generalizar segmentos voláteis
// da URL antes que ela vire chave do manifesto (ParseURL) e transformar o
// corpo capturado (ParseBody). Apenas a URL é obrigatória; os demais ganchos
// têm implementações padrão.
//
// Exemplo de registro programático:
//
//	reg := backend.NewRegistry()
//	reg.Register("api", backend.Capabilities{
//		GetURL: func() (string, error) { return "http://up.example/", nil },
//		ParseURL: func(p string) string {
//			return regexp.MustCompile(`/[0-9]+`).ReplaceAllString(p, `/[0-9]+`)
//		},
//	})
package backend

import (
	"fmt"
	"net/url"
)

// Backend é o contrato consumido pelo gravador.
type Backend interface {
	Name() string
	// URL devolve a URL base absoluta do backend.
	URL() (string, error)
	// Match é usado apenas na seleção automática.
	Match(requestURL string) bool
	// ParseURL recebe o padrão já escapado e ancorado (^...$).
	ParseURL(pattern string) string
	// ParseBody transforma o corpo antes de gravar e responder.
	ParseBody(body []byte) []byte
}

// Capabilities reúne as sobrescritas de um backend. Campos nil usam o padrão:
// GetURL falha, Match aprova tudo, ParseURL e ParseBody são identidade.
type Capabilities struct {
	GetURL    func() (string, error)
	Match     func(requestURL string) bool
	ParseURL  func(pattern string) string
	ParseBody func(body []byte) []byte
}

type capabilityBackend struct {
	name string
	caps Capabilities
}

func newCapabilityBackend(name string, caps Capabilities) *capabilityBackend {
	return &capabilityBackend{name: name, caps: caps}
}

func (b *capabilityBackend) Name() string {
	return b.name
}

func (b *capabilityBackend) URL() (string, error) {
	if b.caps.GetURL == nil {
		return "", fmt.Errorf("backend '%s' must implement a getUrl method", b.name)
	}
	raw, err := b.caps.GetURL()
	if err != nil {
		return "", fmt.Errorf("backend '%s': %w", b.name, err)
	}
	u, err := url.Parse(raw)
	if err != nil || raw == "" || !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("backend '%s' returned an invalid base URL %q", b.name, raw)
	}
	return raw, nil
}

func (b *capabilityBackend) Match(requestURL string) bool {
	if b.caps.Match == nil {
		return true
	}
	return b.caps.Match(requestURL)
}

func (b *capabilityBackend) ParseURL(pattern string) string {
	if b.caps.ParseURL == nil {
		return pattern
	}
	return b.caps.ParseURL(pattern)
}

func (b *capabilityBackend) ParseBody(body []byte) []byte {
	if b.caps.ParseBody == nil {
		return body
	}
	return b.caps.ParseBody(body)
}
