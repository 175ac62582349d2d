package backend

import (
	"sync"

	"github.com/raywall/fast-service-stubber/pkg/domain"
)

// Registry guarda os backends na ordem de registro. A ordem define a
// prioridade da seleção automática.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	backends map[string]Backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register cria um backend a partir das sobrescritas informadas. Registrar
// novamente o mesmo nome substitui a implementação mas mantém a posição.
func (r *Registry) Register(name string, caps Capabilities) Backend {
	b := newCapabilityBackend(name, caps)
	r.Add(b)
	return b
}

// Add registra uma implementação própria de Backend.
func (r *Registry) Add(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[b.Name()]; !exists {
		r.order = append(r.order, b.Name())
	}
	r.backends[b.Name()] = b
}

// Resolve busca um backend pelo nome.
func (r *Registry) Resolve(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return nil, domain.New(domain.KindUnknownBackend, "unknown backend: %s", name)
	}
	return b, nil
}

// AutoMatch devolve o primeiro backend, em ordem de registro, que aceita a URL.
func (r *Registry) AutoMatch(requestURL string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if b := r.backends[name]; b.Match(requestURL) {
			return b, nil
		}
	}
	return nil, domain.New(domain.KindNoBackendMatched, "No backend found to match your request")
}

// Names lista os backends em ordem de registro.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}
