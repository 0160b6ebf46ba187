package pool

import "time"

// janitorInterval is the Janitor's tick period. Per spec.md §4.7 this
// is fixed at 60s rather than configurable; it's a package variable,
// not a literal, purely so tests can drive the sweep without waiting a
// full minute.
var janitorInterval = 60 * time.Second

// runJanitor is the §4.7 background loop: it reaps connections that are
// deactivated, have exceeded maxConnectionAge, or have sat idle longer
// than idleTimeout. Busy connections are never touched, even if they
// would otherwise qualify — a caller holding one still owns it.
func (p *Pool) runJanitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.janitorSweepOnce()
		}
	}
}

func (p *Pool) janitorSweepOnce() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	var reap []*Connection
	for _, c := range p.reg.all() {
		snap := c.snapshot()
		if snap.Busy {
			continue
		}
		if !snap.Active || c.ageExceeds(p.cfg.MaxConnectionAge) || c.idleExceeds(p.cfg.IdleTimeout) {
			reap = append(reap, c)
		}
	}
	for _, c := range reap {
		p.destroyLocked(c)
	}
	if len(reap) > 0 {
		p.emitLocked(EventCleanupCompleted, CleanupEventData{Count: len(reap)})
	}
	p.mu.Unlock()

	if len(reap) > 0 {
		p.pump()
	}
}
