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
package journey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Headers guarda os cabeçalhos de uma resposta gravada. As chaves são
// canônicas em memória e minúsculas no JSON; um único valor é serializado
// como string e múltiplos valores como array.
type Headers http.Header

func (h Headers) Header() http.Header {
	return http.Header(h).Clone()
}

func (h Headers) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(strings.ToLower(k))
		buf.Write(key)
		buf.WriteByte(':')

		var (
			val []byte
			err error
		)
		if values := h[k]; len(values) == 1 {
			val, err = json.Marshal(values[0])
		} else {
			val, err = json.Marshal(values)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (h *Headers) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Headers, len(raw))
	for k, v := range raw {
		key := http.CanonicalHeaderKey(k)

		var single string
		if err := json.Unmarshal(v, &single); err == nil {
			out[key] = append(out[key], single)
			continue
		}
		var multi []string
		if err := json.Unmarshal(v, &multi); err != nil {
			return fmt.Errorf("header %s: valor deve ser string ou lista de strings", k)
		}
		out[key] = append(out[key], multi...)
	}
	*h = out
	return nil
}

// RecordedCall é uma troca HTTP capturada. Played não é persistido.
type RecordedCall struct {
	Method     string  `json:"method"`
	StatusCode int     `json:"statusCode"`
	Headers    Headers `json:"headers"`
	// File é relativo ao diretório da jornada.
	File   string `json:"file"`
	Played bool   `json:"-"`
}

func (c *RecordedCall) validate() error {
	switch {
	case c.Method == "":
		return errors.New("method ausente")
	case c.StatusCode < 100 || c.StatusCode > 999:
		return fmt.Errorf("statusCode inválido: %d", c.StatusCode)
	case c.File == "" || !filepath.IsLocal(filepath.FromSlash(c.File)):
		return fmt.Errorf("file inválido: %q", c.File)
	}
	return nil
}

type entry struct {
	pattern string
	re      *regexp.Regexp
	calls   []*RecordedCall
}

// Manifest é o mapa ordenado padrão -> chamadas. A ordem de inserção dos
// padrões é a prioridade de match na reprodução. Não é seguro para uso
// concorrente; o Journey dono serializa o acesso.
type Manifest struct {
	entries []*entry
	index   map[string]*entry
}

func NewManifest() *Manifest {
	return &Manifest{index: make(map[string]*entry)}
}

// Ensure garante a lista do padrão e devolve quantas chamadas ela já tem.
func (m *Manifest) Ensure(pattern string) (int, error) {
	if e, ok := m.index[pattern]; ok {
		return len(e.calls), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("padrão inválido %q: %w", pattern, err)
	}
	e := &entry{pattern: pattern, re: re, calls: []*RecordedCall{}}
	m.entries = append(m.entries, e)
	m.index[pattern] = e
	return 0, nil
}

// Append adiciona a chamada ao fim da lista do padrão.
func (m *Manifest) Append(pattern string, call RecordedCall) error {
	if _, err := m.Ensure(pattern); err != nil {
		return err
	}
	e := m.index[pattern]
	e.calls = append(e.calls, &call)
	return nil
}

// Next procura, na ordem dos padrões, a primeira chamada não reproduzida com
// o mesmo método. Não marca a chamada.
func (m *Manifest) Next(method, requestURI string) *RecordedCall {
	for _, e := range m.entries {
		if !e.re.MatchString(requestURI) {
			continue
		}
		for _, call := range e.calls {
			if !call.Played && call.Method == method {
				return call
			}
		}
	}
	return nil
}

// Patterns lista os padrões em ordem de inserção.
func (m *Manifest) Patterns() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.pattern
	}
	return out
}

// Calls devolve cópias das chamadas do padrão.
func (m *Manifest) Calls(pattern string) []RecordedCall {
	e, ok := m.index[pattern]
	if !ok {
		return nil
	}
	out := make([]RecordedCall, len(e.calls))
	for i, c := range e.calls {
		out[i] = *c
	}
	return out
}

func (m *Manifest) Len() int {
	return len(m.entries)
}

// MarshalJSON escreve o formato persistido, preservando a ordem.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return m.encode(func(c *RecordedCall) interface{} { return c })
}

type callStatus struct {
	*RecordedCall
	Played bool `json:"played"`
}

// StatusJSON inclui o flag played de cada chamada, para o /status.
func (m *Manifest) StatusJSON() ([]byte, error) {
	return m.encode(func(c *RecordedCall) interface{} {
		return callStatus{RecordedCall: c, Played: c.Played}
	})
}

func (m *Manifest) encode(view func(*RecordedCall) interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.pattern)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		calls := make([]interface{}, len(e.calls))
		for j, c := range e.calls {
			calls[j] = view(c)
		}
		val, err := json.Marshal(calls)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON lê o manifesto token a token para manter a ordem das chaves.
// Qualquer estrutura inesperada é erro; played sempre começa false.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("manifesto deve ser um objeto JSON")
	}

	fresh := NewManifest()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		pattern, ok := tok.(string)
		if !ok {
			return fmt.Errorf("chave inesperada: %v", tok)
		}
		if _, dup := fresh.index[pattern]; dup {
			return fmt.Errorf("padrão duplicado: %q", pattern)
		}

		var calls []RecordedCall
		if err := dec.Decode(&calls); err != nil {
			return fmt.Errorf("padrão %q: %w", pattern, err)
		}
		if _, err := fresh.Ensure(pattern); err != nil {
			return err
		}
		for i := range calls {
			if err := calls[i].validate(); err != nil {
				return fmt.Errorf("padrão %q, chamada %d: %w", pattern, i, err)
			}
			calls[i].Played = false
			if err := fresh.Append(pattern, calls[i]); err != nil {
				return err
			}
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("conteúdo após o fim do manifesto")
	}

	*m = *fresh
	return nil
}
