// Package pool implements the multi-provider RPC connection pool: the
// connection lifecycle state machine, the request-queue admission path,
// the load-balancing selector, the periodic health checker, the
// auto-scaler, the janitor, and the metrics that feed scaling
// decisions. It is the engine; the caller supplies the real probe (via
// Prober) and, optionally, the real connection handshake (via Opener).
package pool

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// Pool is the connection pool engine described by the specification: a
// single coarse mutex guards the registry, provider index, waiter
// queue, metrics state, and the selector's round-robin index. Probes
// and any other external I/O happen outside the mutex and are
// reconciled under it afterward.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg  Config
	name string
	log  zerolog.Logger
	hasLogger bool

	prober     Prober
	opener     Opener
	registerer prometheus.Registerer
	prom       *promMetrics
	mstate     metricsState

	reg   *registry
	sel   *selector
	queue *waiterQueue
	events *eventBus

	providers       []rpcprovider.ID
	providerWeights map[rpcprovider.ID]int

	draining  bool
	destroyed bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Pool from cfg, applies defaults for unset fields,
// starts the Health Monitor, Auto-Scaler, and Janitor background
// loops, and returns immediately with zero connections — callers
// should follow with Warmup for any provider that needs eager
// capacity.
func New(cfg Config, opts ...Option) *Pool {
	cfg.applyDefaults()

	p := &Pool{
		cfg:             cfg,
		name:            "default",
		prober:          NopProber,
		registerer:      prometheus.DefaultRegisterer,
		reg:             newRegistry(),
		queue:           newWaiterQueue(),
		events:          newEventBus(),
		providerWeights: make(map[rpcprovider.ID]int),
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.hasLogger {
		p.log = defaultLogger(p.name)
	}
	p.cond = sync.NewCond(&p.mu)
	p.sel = newSelector(cfg.LoadBalancer.Strategy, cfg.LoadBalancer.Weights)
	p.prom = newPromMetrics(p.registerer, p.name)

	p.wg.Add(3)
	go p.runHealthMonitor()
	go p.runAutoScaler()
	go p.runJanitor()

	return p
}

// AddProvider registers a provider the pool may create connections
// for. It does not create any connections itself — use Warmup for
// that. Registering the same provider id again overwrites its weight.
func (p *Pool) AddProvider(d rpcprovider.Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	found := false
	for _, id := range p.providers {
		if id == d.ID {
			found = true
			break
		}
	}
	if !found {
		p.providers = append(p.providers, d.ID)
	}
	p.providerWeights[d.ID] = d.EffectiveWeight()
}

// On registers a callback invoked (in its own goroutine) whenever the
// pool emits an event. See EventName for the full set.
func (p *Pool) On(fn func(Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.on(fn)
}

// GetMetrics returns a consistent snapshot of every metric named in
// spec.md §6, computed under the pool mutex.
func (p *Pool) GetMetrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metricsLocked()
}

func (p *Pool) metricsLocked() Metrics {
	total := p.reg.total()
	active, busy := 0, 0
	for _, c := range p.reg.all() {
		snap := c.snapshot()
		if snap.Active {
			active++
			if snap.Busy {
				busy++
			}
		}
	}
	idle := active - busy
	util := 0.0
	if total > 0 {
		util = float64(busy) / float64(total) * 100
	}
	return Metrics{
		TotalConnections:     total,
		ActiveConnections:    active,
		BusyConnections:      busy,
		IdleConnections:      idle,
		TotalRequests:        p.mstate.totalRequests,
		SuccessfulRequests:   p.mstate.successfulRequests,
		FailedRequests:       p.mstate.failedRequests,
		AverageResponseTime:  p.mstate.averageResponseTime,
		PoolUtilization:      util,
		ConnectionsCreated:   p.mstate.connectionsCreated,
		ConnectionsDestroyed: p.mstate.connectionsDestroyed,
		HealthChecksPassed:   p.mstate.healthChecksPassed,
		HealthChecksFailed:   p.mstate.healthChecksFailed,
	}
}

// updateGaugesLocked refreshes the Prometheus gauges from current
// registry + metrics state. Called after every mutation, mirroring the
// teacher's updateMetrics() idiom.
func (p *Pool) updateGaugesLocked() {
	m := p.metricsLocked()
	p.prom.totalConnections.Set(float64(m.TotalConnections))
	p.prom.activeConnections.Set(float64(m.ActiveConnections))
	p.prom.busyConnections.Set(float64(m.BusyConnections))
	p.prom.idleConnections.Set(float64(m.IdleConnections))
	p.prom.poolUtilization.Set(m.PoolUtilization)
	p.prom.averageResponseTime.Set(m.AverageResponseTime)
	p.prom.queueLength.Set(float64(p.queue.Len()))
}

// ConnectionStatus is the public view of a single connection returned
// by GetConnectionStatus.
type ConnectionStatus struct {
	Snapshot
}

// GetConnectionStatus returns the current status of one connection.
func (p *Pool) GetConnectionStatus(id string) (ConnectionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.reg.get(id)
	if !ok {
		return ConnectionStatus{}, fmt.Errorf("connection %s: %w", id, ErrUnknownConnection)
	}
	return ConnectionStatus{Snapshot: c.snapshot()}, nil
}

// ProviderStats aggregates per-provider numbers for GetProviderStats.
type ProviderStats struct {
	ProviderID         rpcprovider.ID
	Total              int
	Active             int
	Busy               int
	Idle               int
	AverageResponseTime float64
	AverageHealthScore  float64
}

// GetProviderStats aggregates the current state of every connection
// registered for providerID.
func (p *Pool) GetProviderStats(providerID rpcprovider.ID) ProviderStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.providerStatsLocked(providerID)
}

func (p *Pool) providerStatsLocked(providerID rpcprovider.ID) ProviderStats {
	conns := p.reg.forProvider(providerID)
	stats := ProviderStats{ProviderID: providerID, Total: len(conns)}
	var sumLatency, sumHealth float64
	for _, c := range conns {
		snap := c.snapshot()
		if snap.Active {
			stats.Active++
			if snap.Busy {
				stats.Busy++
			}
		}
		sumLatency += snap.AvgResponseTime
		sumHealth += float64(snap.HealthScore)
	}
	stats.Idle = stats.Active - stats.Busy
	if len(conns) > 0 {
		stats.AverageResponseTime = sumLatency / float64(len(conns))
		stats.AverageHealthScore = sumHealth / float64(len(conns))
	}
	return stats
}

// isKnownProviderLocked reports whether providerID was registered via
// AddProvider.
func (p *Pool) isKnownProviderLocked(providerID rpcprovider.ID) bool {
	for _, id := range p.providers {
		if id == providerID {
			return true
		}
	}
	return false
}

// emitLocked records an event. Must be called with the mutex held; the
// event bus itself dispatches to subscribers on separate goroutines so
// this never blocks.
func (p *Pool) emitLocked(name EventName, data any) {
	p.events.emit(name, data)
}

func nowMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
