package pool

import (
	"context"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// runQueuePump drives pumpOnce until either the waiter queue empties or
// a pump iteration can't obtain a connection, per §4.2. It is called
// after Release, after DestroyConnection, and after the Janitor reaps a
// connection — anywhere the registry grows or a connection frees up.
func (p *Pool) runQueuePump(ctx context.Context) {
	for p.pumpOnce(ctx) {
	}
}

// pumpOnce resolves at most one waiter. It first looks for an idle
// candidate across every known provider (stable order, §4.2 step 1);
// failing that, it tries to create one for the first provider whose
// preconditions allow it, skipping providers whose creation fails
// (§4.2 step 2). The resolution — which connection goes to which
// waiter — is always computed under the mutex and the result is only
// sent to the waiter's channel after the mutex is released, breaking
// the cycle described in §9: a waiter's resolve channel must never be
// written to while the pump still holds the lock the waiter's own
// goroutine might need to re-acquire.
func (p *Pool) pumpOnce(ctx context.Context) bool {
	p.mu.Lock()
	if p.queue.Len() == 0 {
		p.mu.Unlock()
		return false
	}
	providerOrder := p.reg.providerIDs(p.providers)

	for _, pid := range providerOrder {
		cs := candidates(p.reg.forProvider(pid))
		c := p.sel.selectFrom(pid, cs)
		if c == nil {
			continue
		}
		w := p.queue.popHighest()
		w.timer.Stop()
		c.markBusy()
		p.updateGaugesLocked()
		p.mu.Unlock()
		sendResult(w, waiterResult{conn: c})
		return true
	}

	var createCandidates []rpcprovider.ID
	for _, pid := range providerOrder {
		if p.canCreateLocked(pid) {
			createCandidates = append(createCandidates, pid)
		}
	}
	p.mu.Unlock()

	if len(createCandidates) == 0 {
		return false
	}

	// Created already busy (see createConnection's bornBusy doc): it is
	// never a selectable idle candidate between creation and being
	// handed to the waiter popped below, so a concurrent Acquire fast
	// path or another pump iteration can't claim it out from under us.
	var conn *Connection
	for _, pid := range createCandidates {
		c, err := p.createConnection(ctx, pid, true)
		if err == nil {
			conn = c
			break
		}
		p.log.Warn().Str("provider_id", string(pid)).Err(err).Msg("queue pump: create failed, trying next provider")
	}
	if conn == nil {
		return false
	}

	p.mu.Lock()
	w := p.queue.popHighest()
	if w == nil {
		// Every waiter left (timed out or its caller's context was
		// cancelled) while we were creating. Mark the connection idle
		// again and leave it for the next Acquire or pump to pick up.
		conn.markIdle()
		p.updateGaugesLocked()
		p.mu.Unlock()
		return false
	}
	w.timer.Stop()
	p.updateGaugesLocked()
	p.mu.Unlock()
	sendResult(w, waiterResult{conn: conn})
	return true
}

// sendResult delivers a result to a waiter exactly once. The channel is
// buffered to depth 1, so a losing writer (the deadline timer firing at
// the same moment the pump resolves the same waiter) falls through to
// default instead of blocking forever.
func sendResult(w *waiter, res waiterResult) {
	select {
	case w.resolve <- res:
	default:
	}
}
