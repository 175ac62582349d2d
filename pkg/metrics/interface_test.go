package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Count(name string, value float64, tags []string) error {
	return m.Called(name, value, tags).Error(0)
}

func (m *MockProvider) Gauge(name string, value float64, tags []string) error {
	return m.Called(name, value, tags).Error(0)
}

func (m *MockProvider) Histogram(name string, value float64, tags []string) error {
	return m.Called(name, value, tags).Error(0)
}

func TestEmit_DispatchesByType(t *testing.T) {
	p := new(MockProvider)
	tags := Tags("j1", "api")

	p.On("Count", "stubber.recorded", 1.0, []string{"journey:j1", "backend:api"}).Return(nil).Once()
	p.On("Histogram", "stubber.upstream.latency_ms", 12.0, []string{"journey:j1", "backend:api"}).Return(nil).Once()

	assert.NoError(t, Emit(p, Recorded, 1, tags))
	assert.NoError(t, Emit(p, UpstreamLatency, 12, tags))
	p.AssertExpectations(t)
}

func TestEmit_NilAndUnknown(t *testing.T) {
	assert.NoError(t, Emit(nil, Played, 1, nil))
	assert.Error(t, Emit(new(MockProvider), MetricDefinition{Name: "x", Type: "summary"}, 1, nil))
}

func TestTags_SkipsEmpty(t *testing.T) {
	assert.Equal(t, []string{"journey:j1"}, Tags("j1", ""))
	assert.Empty(t, Tags("", ""))
}
