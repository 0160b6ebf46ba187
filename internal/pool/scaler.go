package pool

import (
	"context"
	"time"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// autoScaleInterval is the Auto-Scaler's tick period. A package variable,
// not a Config field, because spec.md §4.6 fixes it at 10s rather than
// exposing it as a tuning knob; tests override it to drive the loop
// without sleeping for ten real seconds.
var autoScaleInterval = 10 * time.Second

// runAutoScaler is the §4.6 background loop: one scale action per tick,
// at most.
func (p *Pool) runAutoScaler() {
	defer p.wg.Done()
	ticker := time.NewTicker(autoScaleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.autoScaleOnce()
		}
	}
}

type scaleUpPlan struct {
	providerID rpcprovider.ID
}

type scaleDownPlan struct {
	providerID rpcprovider.ID
	conn       *Connection
}

func (p *Pool) autoScaleOnce() {
	p.mu.Lock()
	if p.destroyed || p.draining {
		p.mu.Unlock()
		return
	}

	total := p.reg.total()
	busy := 0
	for _, c := range p.reg.all() {
		if c.snapshot().Busy {
			busy++
		}
	}
	util := 0.0
	if total > 0 {
		util = float64(busy) / float64(total) * 100
	}

	var up *scaleUpPlan
	var down *scaleDownPlan

	switch {
	case util > p.cfg.ScaleUpThreshold:
		up = p.pickScaleUpProviderLocked()
	case util < p.cfg.ScaleDownThreshold:
		down = p.pickScaleDownConnectionLocked(total)
	}
	p.mu.Unlock()

	switch {
	case up != nil:
		p.scaleUp(up.providerID)
	case down != nil:
		p.scaleDown(down.providerID, down.conn)
	}
}

// pickScaleUpProviderLocked finds the provider with the highest local
// load (busy/|providerPool|) that still satisfies the create
// preconditions (§4.1 step 2). Providers with no connections yet have
// no defined local load and are skipped — Warmup, not the scaler,
// seeds a provider's first connection.
func (p *Pool) pickScaleUpProviderLocked() *scaleUpPlan {
	var best rpcprovider.ID
	bestLoad := -1.0
	found := false
	for _, pid := range p.reg.providerIDs(p.providers) {
		stats := p.providerStatsLocked(pid)
		if stats.Total == 0 || !p.canCreateLocked(pid) {
			continue
		}
		load := float64(stats.Busy) / float64(stats.Total)
		if load > bestLoad {
			bestLoad = load
			best = pid
			found = true
		}
	}
	if !found {
		return nil
	}
	return &scaleUpPlan{providerID: best}
}

// pickScaleDownConnectionLocked finds the idle active connection with
// the smallest lastUsed across every provider, provided destroying it
// would not drop the pool below minConnections.
func (p *Pool) pickScaleDownConnectionLocked(total int) *scaleDownPlan {
	if total-1 < p.cfg.MinConnections {
		return nil
	}
	var oldest *Connection
	var oldestSnap Snapshot
	for _, c := range p.reg.all() {
		if !c.isCandidate() {
			continue
		}
		snap := c.snapshot()
		if oldest == nil || snap.LastUsed.Before(oldestSnap.LastUsed) {
			oldest, oldestSnap = c, snap
		}
	}
	if oldest == nil {
		return nil
	}
	return &scaleDownPlan{providerID: oldestSnap.ProviderID, conn: oldest}
}

func (p *Pool) scaleUp(providerID rpcprovider.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectionTimeout)
	defer cancel()
	_, err := p.createConnection(ctx, providerID, false)

	p.mu.Lock()
	if err != nil {
		p.emitLocked(EventScaledUpFailed, ScaleEventData{ProviderID: string(providerID), Reason: err.Error()})
	} else {
		p.emitLocked(EventScaledUp, ScaleEventData{ProviderID: string(providerID), Reason: "utilization above scale-up threshold"})
	}
	p.mu.Unlock()

	if err == nil {
		p.pump()
	}
}

func (p *Pool) scaleDown(providerID rpcprovider.ID, c *Connection) {
	p.mu.Lock()
	// Re-check: the connection may have been claimed or reaped since the
	// decision snapshot was taken.
	if !c.isCandidate() {
		p.mu.Unlock()
		return
	}
	p.destroyLocked(c)
	p.emitLocked(EventScaledDown, ScaleEventData{ProviderID: string(providerID), Reason: "utilization below scale-down threshold"})
	p.mu.Unlock()
}
