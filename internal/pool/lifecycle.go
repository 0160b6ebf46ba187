package pool

import (
	"context"
	"fmt"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// Warmup eagerly creates up to max(0, n - |providerPool[providerID]|)
// connections for providerID, bringing it up to n total rather than
// adding n more. It returns the number actually created. Reaching the
// pool's ceilings ends the run early without an error. The run also
// ends early, with an error alongside the partial count, when the
// caller's context ends, the pool is draining or destroyed, or a
// creation fails; earlier creations are not rolled back (§4.8).
func (p *Pool) Warmup(ctx context.Context, providerID rpcprovider.ID, n int) (int, error) {
	p.mu.Lock()
	known := p.isKnownProviderLocked(providerID)
	existing := p.reg.countForProvider(providerID)
	p.mu.Unlock()
	if !known {
		return 0, fmt.Errorf("provider %s: %w", providerID, ErrUnknownProvider)
	}

	target := n - existing
	if target < 0 {
		target = 0
	}

	created := 0
	for i := 0; i < target; i++ {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		p.mu.Lock()
		if p.destroyed {
			p.mu.Unlock()
			return created, ErrDestroyed
		}
		if p.draining {
			p.mu.Unlock()
			return created, ErrDraining
		}
		canCreate := p.canCreateLocked(providerID)
		p.mu.Unlock()
		if !canCreate {
			break
		}

		if _, err := p.createConnection(ctx, providerID, false); err != nil {
			p.mu.Lock()
			p.emitLocked(EventScaledUpFailed, ScaleEventData{ProviderID: string(providerID), Reason: err.Error()})
			p.mu.Unlock()
			return created, err
		}
		created++
	}

	p.mu.Lock()
	p.emitLocked(EventWarmupCompleted, WarmupEventData{ProviderID: string(providerID), Count: created})
	p.mu.Unlock()
	p.pump()
	return created, nil
}

// Drain stops admitting new Acquire calls, rejects every waiter
// currently queued with ErrDraining, and blocks until every busy
// connection is released or ctx ends (§4.8). Drain may be called more
// than once; subsequent calls simply wait alongside the first.
func (p *Pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	p.draining = true
	drained := p.queue.drainAll()
	p.mu.Unlock()
	for _, w := range drained {
		w.timer.Stop()
		sendResult(w, waiterResult{err: ErrDraining})
	}

	// cond.Wait() can't observe ctx directly; a watcher goroutine turns
	// context cancellation into a spurious broadcast so the wait loop
	// below gets a chance to re-check ctx.Err().
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-stop:
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.busyCountLocked() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.cond.Wait()
	}
	return nil
}

func (p *Pool) busyCountLocked() int {
	n := 0
	for _, c := range p.reg.all() {
		if c.snapshot().Busy {
			n++
		}
	}
	return n
}

// Destroy permanently shuts the pool down: every queued waiter is
// rejected with ErrDestroyed, every connection is destroyed, every
// background loop stops, and the event bus is cleared. Idempotent.
func (p *Pool) Destroy() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	drained := p.queue.drainAll()
	for _, c := range p.reg.all() {
		p.destroyLocked(c)
	}
	p.events.clear()
	p.mu.Unlock()

	for _, w := range drained {
		w.timer.Stop()
		sendResult(w, waiterResult{err: ErrDestroyed})
	}

	close(p.stopCh)
	p.wg.Wait()
	p.log.Info().Msg("pool destroyed")
	return nil
}
