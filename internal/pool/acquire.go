package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// Acquire returns an idle connection for providerID, creates one if the
// pool has headroom, or waits in the priority queue until one becomes
// available, the context is cancelled, or connectionTimeout elapses
// (§4.1). priority follows the Waiter Queue ordering: higher values are
// served first, ties broken by enqueue order.
func (p *Pool) Acquire(ctx context.Context, providerID rpcprovider.ID, priority int) (*Connection, error) {
	start := time.Now()
	conn, err := p.acquire(ctx, providerID, priority)
	p.recordAcquireResult(start, err == nil)
	return conn, err
}

func (p *Pool) recordAcquireResult(start time.Time, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mstate.recordAcquire(nowMs(start), success)
	p.prom.totalRequests.Inc()
	if success {
		p.prom.successfulRequests.Inc()
	} else {
		p.prom.failedRequests.Inc()
	}
	p.prom.averageResponseTime.Set(p.mstate.averageResponseTime)
}

func (p *Pool) acquire(ctx context.Context, providerID rpcprovider.ID, priority int) (*Connection, error) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil, ErrDestroyed
	}
	if p.draining {
		p.mu.Unlock()
		return nil, ErrDraining
	}
	if !p.isKnownProviderLocked(providerID) {
		p.mu.Unlock()
		return nil, fmt.Errorf("provider %s: %w", providerID, ErrUnknownProvider)
	}

	// Fast path (§4.1 step 1).
	cs := candidates(p.reg.forProvider(providerID))
	if c := p.sel.selectFrom(providerID, cs); c != nil {
		c.markBusy()
		p.updateGaugesLocked()
		p.mu.Unlock()
		return c, nil
	}

	// Grow path (§4.1 step 2). The connection is created already busy
	// (see createConnection's bornBusy doc) so it is never a selectable
	// idle candidate between creation and being handed back here.
	if p.canCreateLocked(providerID) {
		p.mu.Unlock()
		c, err := p.createConnection(ctx, providerID, true)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	// Wait path (§4.1 step 3).
	w := &waiter{
		resolve:  make(chan waiterResult, 1),
		priority: priority,
		enqueued: time.Now(),
	}
	w.timer = time.AfterFunc(p.cfg.ConnectionTimeout, func() {
		p.mu.Lock()
		p.queue.removeWaiter(w)
		p.updateGaugesLocked()
		p.mu.Unlock()
		sendResult(w, waiterResult{err: fmt.Errorf("provider %s: %w", providerID, ErrAcquireTimeout)})
	})
	p.queue.enqueue(w)
	p.updateGaugesLocked()
	p.mu.Unlock()

	select {
	case res := <-w.resolve:
		w.timer.Stop()
		return res.conn, res.err
	case <-ctx.Done():
		w.timer.Stop()
		p.mu.Lock()
		p.queue.removeWaiter(w)
		p.updateGaugesLocked()
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Release returns a connection to the pool and drives the Queue Pump.
// Releasing an unknown id is an error; releasing a connection twice is
// a caller bug (not detected — the spec trusts the caller to hold at
// most one reference per acquisition).
func (p *Pool) Release(connectionID string) error {
	p.mu.Lock()
	c, ok := p.reg.get(connectionID)
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("release %s: %w", connectionID, ErrUnknownConnection)
	}
	c.markIdle()
	p.updateGaugesLocked()
	p.cond.Broadcast()
	p.mu.Unlock()

	p.pump()
	return nil
}

// DestroyConnection removes a single connection from the pool and
// drives the Queue Pump. Idempotent: an unknown id is a no-op, per
// spec.md §4.1 (named Destroy(id) there; renamed here because Go has
// no method overloading and the pool-level Destroy() also needs the
// name Destroy — see DESIGN.md).
func (p *Pool) DestroyConnection(connectionID string) error {
	p.mu.Lock()
	c, ok := p.reg.get(connectionID)
	if !ok {
		p.mu.Unlock()
		return nil
	}
	p.destroyLocked(c)
	p.mu.Unlock()

	p.pump()
	return nil
}

func (p *Pool) pump() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectionTimeout)
	defer cancel()
	p.runQueuePump(ctx)
}
