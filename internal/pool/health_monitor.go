package pool

import (
	"context"
	"sync"
	"time"
)

// runHealthMonitor is the §4.5 background loop: on every tick it probes
// every registered connection, outside the pool mutex, and reconciles
// the result under it. Stops when stopCh closes.
func (p *Pool) runHealthMonitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.healthCheckOnce()
		}
	}
}

func (p *Pool) healthCheckOnce() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	conns := p.reg.all()
	prober := p.prober
	p.mu.Unlock()

	// §4.5: every connection is probed in parallel, failures isolated
	// per connection. Each probe runs outside the mutex; only the
	// bookkeeping it produces is reconciled under it.
	var wg sync.WaitGroup
	wg.Add(len(conns))
	for _, c := range conns {
		go func(c *Connection) {
			defer wg.Done()
			p.probeOne(c, prober)
		}(c)
	}
	wg.Wait()
}

func (p *Pool) probeOne(c *Connection, prober Prober) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectionTimeout)
	elapsed, err := probeTimed(ctx, prober, c)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		deactivated := c.recordProbeFailure()
		p.mstate.healthChecksFailed++
		p.prom.healthChecksFailed.Inc()
		if deactivated {
			p.emitLocked(EventConnectionUnhealthy, ConnectionEventData{ConnectionID: c.id, ProviderID: string(c.providerID)})
		}
	} else {
		c.recordProbeSuccess(elapsed)
		p.mstate.healthChecksPassed++
		p.prom.healthChecksPassed.Inc()
	}
	p.updateGaugesLocked()
}
