package pool

import (
	"context"
	"fmt"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// canCreateLocked reports whether a new connection may be created for
// providerID under the current registry state (§4.1 step 2's
// preconditions): the pool-wide ceiling and the per-provider ceiling
// both leave headroom.
func (p *Pool) canCreateLocked(providerID rpcprovider.ID) bool {
	if p.reg.total() >= p.cfg.MaxConnections {
		return false
	}
	if p.reg.countForProvider(providerID) >= p.cfg.MaxConnections {
		return false
	}
	return true
}

// createConnection builds and registers a new connection for
// providerID (§4.4). The Opener hook, if any, runs without holding the
// pool mutex; on failure the record is never inserted and
// ErrCreateFailed is returned.
//
// bornBusy controls whether the connection is inserted already marked
// busy. The Acquirer's grow path and the Queue Pump's create path both
// hand the new connection straight to a specific caller/waiter, so they
// pass true: the connection becomes a selectable idle candidate only
// for the instant between "record exists" and "marked busy" if it is
// inserted idle first, and a concurrent Acquire fast-path, Queue Pump,
// or auto-scaler scale-down could claim or destroy it in that gap.
// Marking it busy before it is ever visible in the registry closes that
// gap entirely. Warmup and the auto-scaler's scale-up instead want the
// connection left idle for whoever picks it up next, so they pass
// false.
func (p *Pool) createConnection(ctx context.Context, providerID rpcprovider.ID, bornBusy bool) (*Connection, error) {
	var handle any
	if p.opener != nil {
		var err error
		handle, err = p.opener.Open(ctx, providerID)
		if err != nil {
			return nil, fmt.Errorf("opening connection for provider %s: %w: %v", providerID, ErrCreateFailed, err)
		}
	}

	c := newConnection(providerID, p.cfg.MaxConsecutiveErrors)
	c.Handle = handle
	if bornBusy {
		c.markBusy()
	}

	p.mu.Lock()
	p.reg.add(c)
	p.mstate.connectionsCreated++
	p.prom.connectionsCreated.WithLabelValues(string(providerID)).Inc()
	p.updateGaugesLocked()
	p.emitLocked(EventConnectionCreated, ConnectionEventData{ConnectionID: c.id, ProviderID: string(providerID)})
	p.mu.Unlock()

	p.log.Debug().Str("connection_id", c.id).Str("provider_id", string(providerID)).Msg("connection created")
	return c, nil
}

// destroyLocked removes a connection from the registry. Caller must
// hold the mutex and must not rely on c being usable afterward. Does
// not serve queued waiters — callers run the Queue Pump (pump) after
// releasing the mutex where required.
func (p *Pool) destroyLocked(c *Connection) {
	p.reg.remove(c.id)
	c.deactivate()
	p.mstate.connectionsDestroyed++
	p.prom.connectionsDestroyed.WithLabelValues(string(c.providerID)).Inc()
	p.updateGaugesLocked()
	p.emitLocked(EventConnectionDestroyed, ConnectionEventData{ConnectionID: c.id, ProviderID: string(c.providerID)})
	p.cond.Broadcast()
}
