package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerAggregatesStatus(t *testing.T) {
	registry := NewRegistry(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute})
	registry.Get("history")

	hc := NewHealthChecker(time.Second)
	hc.RegisterComponent("store", DatabaseHealthCheck(healthy))
	hc.RegisterComponent("breakers", BreakerHealthCheck(registry.AllStats))

	health := hc.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, health.Status)
	require.Len(t, health.Components, 2)
	assert.Equal(t, "breakers", health.Components[0].Name)
	assert.Equal(t, "store", health.Components[1].Name)

	require.Error(t, registry.Get("history").Execute(context.Background(), failing))
	health = hc.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
	assert.Contains(t, health.Components[0].Message, "history")
}

func TestHealthCheckerRecoversPanics(t *testing.T) {
	hc := NewHealthChecker(0)
	hc.RegisterComponent("store", DatabaseHealthCheck(failing))
	hc.RegisterComponent("broken", func(context.Context) ComponentHealth { panic("boom") })

	health := hc.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
	require.Len(t, health.Components, 2)
	assert.Contains(t, health.Components[0].Message, "boom")
	assert.Contains(t, health.Components[1].Message, errSource.Error())
}
