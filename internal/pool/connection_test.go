package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

func TestNewConnection(t *testing.T) {
	c := newConnection(rpcprovider.ID("infura"), 3)

	assert.True(t, c.active)
	assert.False(t, c.busy)
	assert.Equal(t, 100, c.healthScore)
	assert.Equal(t, rpcprovider.ID("infura"), c.ProviderID())
	assert.Contains(t, c.ID(), "infura-")
}

func TestConnectionBusyIdleCycle(t *testing.T) {
	c := newConnection(rpcprovider.ID("infura"), 3)
	assert.Equal(t, StatusIdle, c.Status())

	c.markBusy()
	assert.Equal(t, StatusBusy, c.Status())
	assert.Equal(t, uint64(1), c.snapshot().RequestCount)

	c.markIdle()
	assert.Equal(t, StatusIdle, c.Status())
}

func TestConnectionIsCandidate(t *testing.T) {
	c := newConnection(rpcprovider.ID("infura"), 2)
	assert.True(t, c.isCandidate())

	c.markBusy()
	assert.False(t, c.isCandidate(), "a busy connection is never a candidate")

	c.markIdle()
	assert.True(t, c.isCandidate())
}

func TestConnectionDeactivatesAfterMaxConsecutiveErrors(t *testing.T) {
	c := newConnection(rpcprovider.ID("infura"), 2)

	deactivated := c.recordProbeFailure()
	assert.False(t, deactivated)
	assert.True(t, c.isCandidate())

	deactivated = c.recordProbeFailure()
	assert.True(t, deactivated)
	assert.False(t, c.isCandidate())
	assert.Equal(t, StatusUnhealthy, c.Status())
}

func TestConnectionRecordProbeSuccessResetsConsecutiveErrors(t *testing.T) {
	c := newConnection(rpcprovider.ID("infura"), 3)
	c.recordProbeFailure()
	assert.Equal(t, 1, c.snapshot().ConsecutiveErrors)

	c.recordProbeSuccess(20 * time.Millisecond)
	snap := c.snapshot()
	assert.Equal(t, 0, snap.ConsecutiveErrors)
	assert.Greater(t, snap.AvgResponseTime, 0.0)
	assert.Equal(t, 90, snap.HealthScore, "a failure costs 20 and a success restores 10")
}

func TestConnectionHealthScoreFloorsAtZero(t *testing.T) {
	c := newConnection(rpcprovider.ID("infura"), 100)
	for i := 0; i < 10; i++ {
		c.recordProbeFailure()
	}
	assert.Equal(t, 0, c.snapshot().HealthScore)
}

func TestConnectionAgeAndIdleExceed(t *testing.T) {
	c := newConnection(rpcprovider.ID("infura"), 3)
	c.createdAt = time.Now().Add(-time.Hour)
	c.lastUsed = time.Now().Add(-time.Hour)

	assert.True(t, c.ageExceeds(time.Minute))
	assert.False(t, c.ageExceeds(0), "zero disables the age check")
	assert.True(t, c.idleExceeds(time.Minute))

	c.busy = true
	assert.False(t, c.idleExceeds(time.Minute), "a busy connection is never idle-expired")
}
