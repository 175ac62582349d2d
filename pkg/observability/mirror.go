package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raywall/fast-service-stubber/pkg/config"
	"github.com/raywall/fast-service-stubber/pkg/journey"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisClient é o subconjunto do go-redis usado pelo espelho.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// MirrorState é o que fica publicado no Redis a cada transição.
type MirrorState struct {
	Name      string        `json:"name"`
	Backend   string        `json:"backend,omitempty"`
	State     journey.State `json:"state"`
	Host      string        `json:"host,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RedisMirror publica a jornada corrente para outros processos.
type RedisMirror struct {
	client RedisClient
	key    string
	host   string
	now    func() time.Time
}

func NewRedisMirror(client RedisClient, key, host string) *RedisMirror {
	if key == "" {
		key = "stubber:current_journey"
	}
	return &RedisMirror{client: client, key: key, host: host, now: time.Now}
}

// SetupMirror conecta no Redis se o espelho estiver habilitado.
func SetupMirror(cfg config.StatusMirrorConf, host string) (*RedisMirror, func() error, error) {
	if !cfg.Redis.Enabled {
		return nil, func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewRedisMirror(client, cfg.Redis.Key, host), client.Close, nil
}

// Publish grava o estado resumido (sem o conteúdo do manifesto).
func (m *RedisMirror) Publish(ctx context.Context, snap journey.Snapshot) error {
	data, err := json.Marshal(MirrorState{
		Name:      snap.Name,
		Backend:   snap.Backend,
		State:     snap.State,
		Host:      m.host,
		UpdatedAt: m.now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := m.client.Set(ctx, m.key, data, 0).Err(); err != nil {
		return fmt.Errorf("falha ao publicar estado no redis: %w", err)
	}
	return nil
}

// Observe adapta Publish para journey.Observer; falhas só geram log.
func (m *RedisMirror) Observe(ctx context.Context, snap journey.Snapshot) {
	if err := m.Publish(ctx, snap); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", m.key).Msg("Espelho de estado indisponível")
	}
}

// Current lê o último estado publicado. Sem chave, devolve Idle.
func (m *RedisMirror) Current(ctx context.Context) (MirrorState, error) {
	val, err := m.client.Get(ctx, m.key).Result()
	if err == redis.Nil {
		return MirrorState{State: journey.StateIdle}, nil
	} else if err != nil {
		return MirrorState{}, err
	}

	var st MirrorState
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return MirrorState{}, fmt.Errorf("estado inválido em %s: %w", m.key, err)
	}
	return st, nil
}
