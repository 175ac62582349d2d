package observability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/raywall/fast-service-stubber/pkg/config"
	"github.com/raywall/fast-service-stubber/pkg/journey"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedis struct {
	mock.Mock
}

func (m *MockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return redis.NewStatusResult(args.String(0), args.Error(1))
}

func (m *MockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return redis.NewStringResult(args.String(0), args.Error(1))
}

func TestRedisMirror_Publish(t *testing.T) {
	client := new(MockRedis)
	mirror := NewRedisMirror(client, "", "host-1")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mirror.now = func() time.Time { return fixed }

	var published []byte
	client.On("Set", mock.Anything, "stubber:current_journey", mock.Anything, time.Duration(0)).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return("OK", nil).Once()

	err := mirror.Publish(context.Background(), journey.Snapshot{Name: "j1", Backend: "api", State: journey.StateRecording})
	require.NoError(t, err)

	var st MirrorState
	require.NoError(t, json.Unmarshal(published, &st))
	assert.Equal(t, "j1", st.Name)
	assert.Equal(t, journey.StateRecording, st.State)
	assert.Equal(t, "host-1", st.Host)
	assert.Equal(t, fixed, st.UpdatedAt)
	client.AssertExpectations(t)
}

func TestRedisMirror_ObserveSwallowsErrors(t *testing.T) {
	client := new(MockRedis)
	client.On("Set", mock.Anything, "k", mock.Anything, time.Duration(0)).Return("", errors.New("conn refused"))

	mirror := NewRedisMirror(client, "k", "")
	assert.NotPanics(t, func() {
		mirror.Observe(context.Background(), journey.IdleSnapshot())
	})
	assert.Error(t, mirror.Publish(context.Background(), journey.IdleSnapshot()))
}

func TestRedisMirror_Current(t *testing.T) {
	client := new(MockRedis)
	mirror := NewRedisMirror(client, "k", "")

	client.On("Get", mock.Anything, "k").Return("", redis.Nil).Once()
	st, err := mirror.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, journey.StateIdle, st.State)

	client.On("Get", mock.Anything, "k").Return(`{"name":"j2","state":"Playing"}`, nil).Once()
	st, err = mirror.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "j2", st.Name)
	assert.Equal(t, journey.StatePlaying, st.State)

	client.On("Get", mock.Anything, "k").Return(`{`, nil).Once()
	_, err = mirror.Current(context.Background())
	assert.Error(t, err)
}

func TestSetupMirror_Disabled(t *testing.T) {
	mirror, closeFn, err := SetupMirror(config.StatusMirrorConf{}, "h")

	require.NoError(t, err)
	assert.Nil(t, mirror)
	assert.NoError(t, closeFn())
}
