package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitorSweepOnceLeavesBusyConnectionsAlone(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxConnectionAge = time.Millisecond
	p := newPoolWithProviders(t, cfg)

	c, err := p.Acquire(context.Background(), "infura", 0)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	p.janitorSweepOnce()

	_, err = p.GetConnectionStatus(c.ID())
	assert.NoError(t, err, "a busy connection must survive the sweep even past maxConnectionAge")
}

func TestJanitorSweepOnceReapsInactiveConnections(t *testing.T) {
	cfg := testConfig(t)
	p := newPoolWithProviders(t, cfg)

	c, err := p.Acquire(context.Background(), "infura", 0)
	require.NoError(t, err)
	require.NoError(t, p.Release(c.ID()))

	c.deactivate()
	p.janitorSweepOnce()

	_, err = p.GetConnectionStatus(c.ID())
	assert.ErrorIs(t, err, ErrUnknownConnection)
}
