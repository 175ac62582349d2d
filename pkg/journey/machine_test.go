package journey

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/raywall/fast-service-stubber/pkg/backend"
	"github.com/raywall/fast-service-stubber/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(t *testing.T) (*Machine, *Store, *backend.Registry) {
	t.Helper()
	store := NewStore(t.TempDir())
	reg := backend.NewRegistry()
	reg.Register("api", backend.Capabilities{GetURL: func() (string, error) { return "http://up.example/", nil }})
	return NewMachine(store, reg), store, reg
}

func TestMachine_IdleStatus(t *testing.T) {
	m, _, _ := newMachine(t)

	assert.Nil(t, m.Current())
	snap := m.Status()
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.Recording)
	assert.False(t, snap.Playing)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"","state":"Idle","recording":false,"playing":false,"content":null}`, string(data))
}

func TestMachine_StartRecording(t *testing.T) {
	m, store, _ := newMachine(t)

	j, err := m.StartRecording(context.Background(), "j1", "api")
	require.NoError(t, err)

	assert.Equal(t, StateRecording, j.State)
	assert.Equal(t, "api", j.Backend)
	assert.Same(t, j, m.Current())
	assert.DirExists(t, store.JourneyDir("j1"))

	snap := m.Status()
	assert.True(t, snap.Recording)
	assert.JSONEq(t, `{}`, string(snap.Content))
}

func TestMachine_StartRecording_Failures(t *testing.T) {
	m, store, _ := newMachine(t)

	_, err := m.StartRecording(context.Background(), "j1", "desconhecido")
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
	assert.NoDirExists(t, store.JourneyDir("j1"))

	_, err = m.StartRecording(context.Background(), "../fora", "")
	assert.ErrorIs(t, err, domain.ErrInvalidJourneyName)

	// diretório existente não é alterado
	require.NoError(t, os.MkdirAll(filepath.Join(store.JourneyDir("j2"), "api"), 0o755))
	artifact := filepath.Join(store.JourneyDir("j2"), "api", "0-aaaa.json")
	require.NoError(t, os.WriteFile(artifact, []byte("antigo"), 0o644))

	_, err = m.StartRecording(context.Background(), "j2", "")
	assert.ErrorIs(t, err, domain.ErrJourneyAlreadyExists)
	data, _ := os.ReadFile(artifact)
	assert.Equal(t, "antigo", string(data))
	assert.Nil(t, m.Current())
}

func TestMachine_StartPlaying(t *testing.T) {
	m, store, _ := newMachine(t)

	_, err := m.StartPlaying(context.Background(), "fantasma")
	assert.ErrorIs(t, err, domain.ErrJourneyNotFound)
	assert.NoDirExists(t, store.JourneyDir("fantasma"))

	require.NoError(t, store.CreateJourneyDir("j1"))
	require.NoError(t, os.WriteFile(store.ManifestPath("j1"), []byte(`{"^/a$":[{"method":"GET","statusCode":200,"headers":{},"file":"api/0-x.rec"}]}`), 0o644))

	j, err := m.StartPlaying(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, j.State)
	assert.True(t, m.Status().Playing)

	require.NoError(t, os.WriteFile(store.ManifestPath("j1"), []byte(`nope`), 0o644))
	_, err = m.StartPlaying(context.Background(), "j1")
	assert.ErrorIs(t, err, domain.ErrManifestCorrupt)
	// a jornada anterior continua ativa
	assert.Same(t, j, m.Current())
}

func TestMachine_ObserversAndReplacement(t *testing.T) {
	m, _, _ := newMachine(t)

	var seen []Snapshot
	m.OnTransition(func(_ context.Context, s Snapshot) { seen = append(seen, s) })

	first, err := m.StartRecording(context.Background(), "j1", "")
	require.NoError(t, err)
	second, err := m.StartRecording(context.Background(), "j2", "")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Same(t, second, m.Current())
	require.Len(t, seen, 2)
	assert.Equal(t, "j1", seen[0].Name)
	assert.Equal(t, "j2", seen[1].Name)
}
