package pool

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// TestMain overrides the Auto-Scaler and Janitor's fixed 10s/60s tick
// periods for the duration of this package's tests — otherwise every
// test relying on scaleUp/cleanup behavior would need to wait out the
// real interval. Production code always uses the spec-mandated values;
// only tests touch these package variables.
func TestMain(m *testing.M) {
	autoScaleInterval = 5 * time.Millisecond
	janitorInterval = 5 * time.Millisecond
	os.Exit(m.Run())
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		MaxConnections:       4,
		MinConnections:       0,
		HealthCheckInterval:  10 * time.Millisecond,
		MaxConsecutiveErrors: 2,
		ConnectionTimeout:    200 * time.Millisecond,
		ScaleUpThreshold:     80,
		ScaleDownThreshold:   20,
		LoadBalancer:         LoadBalancerConfig{Strategy: StrategyRoundRobin},
	}
}

func newTestPool(t *testing.T, opts ...Option) *Pool {
	t.Helper()
	return newPoolWithProviders(t, testConfig(t), opts...)
}

func newPoolWithProviders(t *testing.T, cfg Config, opts ...Option) *Pool {
	t.Helper()
	// Each pool gets its own registry: the default one rejects a second
	// set of collectors with the same names and "pool" label.
	p := New(cfg, append([]Option{WithRegisterer(prometheus.NewRegistry())}, opts...)...)
	p.AddProvider(rpcprovider.Descriptor{ID: "infura"})
	p.AddProvider(rpcprovider.Descriptor{ID: "alchemy"})
	t.Cleanup(func() { _ = p.Destroy() })
	return p
}

func TestAcquireReleaseBasic(t *testing.T) {
	p := newTestPool(t)
	ctx := context.Background()

	c, err := p.Acquire(ctx, "infura", 0)
	require.NoError(t, err)
	assert.Equal(t, rpcprovider.ID("infura"), c.ProviderID())
	assert.Equal(t, StatusBusy, c.Status())

	require.NoError(t, p.Release(c.ID()))
	assert.Equal(t, StatusIdle, c.Status())

	m := p.GetMetrics()
	assert.Equal(t, 1, m.TotalConnections)
	assert.Equal(t, uint64(1), m.ConnectionsCreated)
}

func TestAcquireReusesIdleConnectionInsteadOfCreating(t *testing.T) {
	p := newTestPool(t)
	ctx := context.Background()

	c1, err := p.Acquire(ctx, "infura", 0)
	require.NoError(t, err)
	require.NoError(t, p.Release(c1.ID()))

	c2, err := p.Acquire(ctx, "infura", 0)
	require.NoError(t, err)
	assert.Equal(t, c1.ID(), c2.ID(), "a released connection should be reused before a new one is created")

	m := p.GetMetrics()
	assert.Equal(t, uint64(1), m.ConnectionsCreated)
}

func TestAcquireRespectsMaxConnections(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxConnections = 1
	p := newPoolWithProviders(t, cfg)
	ctx := context.Background()

	c1, err := p.Acquire(ctx, "infura", 0)
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(shortCtx, "infura", 0)
	assert.Error(t, err, "the pool is at its ceiling and no connection will free up in time")

	require.NoError(t, p.Release(c1.ID()))
}

func TestQueuePumpServesHighestPriorityFirst(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxConnections = 1
	p := newPoolWithProviders(t, cfg)
	ctx := context.Background()

	held, err := p.Acquire(ctx, "infura", 0)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(2)
	start := func(priority int) {
		defer wg.Done()
		c, err := p.Acquire(ctx, "infura", priority)
		if err != nil {
			return
		}
		mu.Lock()
		order = append(order, priority)
		mu.Unlock()
		_ = p.Release(c.ID())
	}

	go start(1) // low priority, enqueued first
	time.Sleep(10 * time.Millisecond)
	go start(10) // high priority, enqueued second

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Release(held.ID()))

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, 10, order[0], "the higher priority waiter must be resolved first even though it enqueued later")
}

func TestHealthMonitorDeactivatesAfterConsecutiveFailures(t *testing.T) {
	cfg := testConfig(t)
	probeErr := errors.New("upstream unreachable")
	failing := FuncProber(func(ctx context.Context, c *Connection) error { return probeErr })

	var unhealthy []string
	var mu sync.Mutex

	p := newPoolWithProviders(t, cfg, WithProber(failing))
	p.On(func(ev Event) {
		if ev.Name == EventConnectionUnhealthy {
			mu.Lock()
			defer mu.Unlock()
			unhealthy = append(unhealthy, ev.Data.(ConnectionEventData).ConnectionID)
		}
	})

	c, err := p.Acquire(context.Background(), "infura", 0)
	require.NoError(t, err)
	require.NoError(t, p.Release(c.ID()))

	assert.Eventually(t, func() bool {
		return c.Status() == StatusUnhealthy
	}, 500*time.Millisecond, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(unhealthy) > 0
	}, 500*time.Millisecond, 5*time.Millisecond)
}

func TestJanitorReapsExceededMaxAge(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxConnectionAge = 5 * time.Millisecond
	p := newPoolWithProviders(t, cfg)

	c, err := p.Acquire(context.Background(), "infura", 0)
	require.NoError(t, err)
	require.NoError(t, p.Release(c.ID()))

	assert.Eventually(t, func() bool {
		_, err := p.GetConnectionStatus(c.ID())
		return errors.Is(err, ErrUnknownConnection)
	}, 500*time.Millisecond, 5*time.Millisecond, "the janitor should reap the aged-out connection")
}

func TestAutoScalerCreatesConnectionsUnderLoad(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxConnections = 3
	cfg.ScaleUpThreshold = 50
	p := newPoolWithProviders(t, cfg)

	c, err := p.Acquire(context.Background(), "infura", 0)
	require.NoError(t, err)
	_ = c // kept busy, driving utilization to 100%

	assert.Eventually(t, func() bool {
		return p.GetMetrics().TotalConnections > 1
	}, 500*time.Millisecond, 5*time.Millisecond, "utilization above threshold should trigger a scale-up")
}

func TestDrainWaitsForBusyConnectionsThenReturns(t *testing.T) {
	p := newTestPool(t)
	c, err := p.Acquire(context.Background(), "infura", 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = p.Release(c.ID())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	assert.NoError(t, p.Drain(ctx))

	_, err = p.Acquire(context.Background(), "infura", 0)
	assert.ErrorIs(t, err, ErrDraining)
}

func TestDrainRejectsQueuedWaiters(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxConnections = 1
	p := newPoolWithProviders(t, cfg)

	_, err := p.Acquire(context.Background(), "infura", 0)
	require.NoError(t, err)

	waitErr := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), "infura", 0)
		waitErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = p.Drain(ctx) // won't complete: the held connection is never released

	select {
	case err := <-waitErr:
		assert.ErrorIs(t, err, ErrDraining)
	case <-time.After(time.Second):
		t.Fatal("queued waiter was never rejected by Drain")
	}
}
