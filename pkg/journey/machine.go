package journey

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/raywall/fast-service-stubber/pkg/backend"
	"github.com/rs/zerolog"
)

// State é o modo da jornada ativa. Idle só aparece em snapshots: não existe
// Journey ociosa, apenas a ausência de uma.
type State string

const (
	StateIdle      State = "Idle"
	StateRecording State = "Recording"
	StatePlaying   State = "Playing"
)

// Journey é uma sessão de gravação ou reprodução. Name, Backend e State não
// mudam depois da criação; o manifesto é protegido por mu.
type Journey struct {
	mu       sync.Mutex
	Name     string
	Backend  string
	State    State
	manifest *Manifest
}

// Snapshot é a visão serializável de uma jornada (ou do estado ocioso).
type Snapshot struct {
	Name      string          `json:"name"`
	Backend   string          `json:"backend,omitempty"`
	State     State           `json:"state"`
	Recording bool            `json:"recording"`
	Playing   bool            `json:"playing"`
	Content   json.RawMessage `json:"content"`
}

// IdleSnapshot é o marcador devolvido quando não há jornada ativa.
func IdleSnapshot() Snapshot {
	return Snapshot{State: StateIdle, Content: json.RawMessage("null")}
}

func (j *Journey) Snapshot() Snapshot {
	j.mu.Lock()
	content, err := j.manifest.StatusJSON()
	j.mu.Unlock()
	if err != nil {
		content = json.RawMessage("null")
	}

	return Snapshot{
		Name:      j.Name,
		Backend:   j.Backend,
		State:     j.State,
		Recording: j.State == StateRecording,
		Playing:   j.State == StatePlaying,
		Content:   content,
	}
}

// Observer é notificado após cada transição bem sucedida.
type Observer func(ctx context.Context, snap Snapshot)

// Machine guarda a jornada corrente do processo.
type Machine struct {
	store    *Store
	registry *backend.Registry

	mu        sync.RWMutex
	current   *Journey
	observers []Observer
}

func NewMachine(store *Store, registry *backend.Registry) *Machine {
	return &Machine{store: store, registry: registry}
}

// OnTransition registra um observador (ex: espelho no Redis).
func (m *Machine) OnTransition(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// StartRecording cria o diretório da jornada e passa a gravar. Um backend
// fixo, se informado, precisa estar registrado. Se o diretório já existe a
// chamada falha sem tocar em nada.
func (m *Machine) StartRecording(ctx context.Context, name, backendName string) (*Journey, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if backendName != "" {
		if _, err := m.registry.Resolve(backendName); err != nil {
			return nil, err
		}
	}
	if err := m.store.CreateJourneyDir(name); err != nil {
		return nil, err
	}

	j := &Journey{
		Name:     name,
		Backend:  backendName,
		State:    StateRecording,
		manifest: NewManifest(),
	}
	m.activate(ctx, j)
	return j, nil
}

// StartPlaying carrega o manifesto do disco com todas as chamadas pendentes.
func (m *Machine) StartPlaying(ctx context.Context, name string) (*Journey, error) {
	manifest, err := m.store.ReadManifest(name)
	if err != nil {
		return nil, err
	}

	j := &Journey{
		Name:     name,
		State:    StatePlaying,
		manifest: manifest,
	}
	m.activate(ctx, j)
	return j, nil
}

func (m *Machine) activate(ctx context.Context, j *Journey) {
	m.mu.Lock()
	m.current = j
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	zerolog.Ctx(ctx).Info().
		Str("journey", j.Name).
		Str("state", string(j.State)).
		Str("backend", j.Backend).
		Msg("Jornada ativada")

	if len(observers) == 0 {
		return
	}
	snap := j.Snapshot()
	for _, fn := range observers {
		fn(ctx, snap)
	}
}

// Current devolve a jornada ativa ou nil quando ocioso.
func (m *Machine) Current() *Journey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Status devolve o snapshot da jornada ativa ou o marcador de ocioso.
func (m *Machine) Status() Snapshot {
	j := m.Current()
	if j == nil {
		return IdleSnapshot()
	}
	return j.Snapshot()
}
