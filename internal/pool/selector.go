package pool

import (
	"math/rand"
	"sort"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// Strategy names the four load-balancing policies from §4.3.
type Strategy string

const (
	StrategyRoundRobin       Strategy = "round-robin"
	StrategyLeastConnections Strategy = "least-connections"
	StrategyWeighted         Strategy = "weighted"
	StrategyLatencyBased     Strategy = "latency-based"
)

// selector implements §4.3's candidate resolution and the four
// selection strategies. It owns the process-wide round-robin index,
// the only state a selection can mutate. Every method assumes the pool
// mutex is already held.
type selector struct {
	strategy        Strategy
	weights         map[rpcprovider.ID]int
	roundRobinIndex int
}

func newSelector(strategy Strategy, weights map[rpcprovider.ID]int) *selector {
	if strategy == "" {
		strategy = StrategyRoundRobin
	}
	return &selector{strategy: strategy, weights: weights}
}

// candidates resolves the eligible set for a provider per §4.3 step 1.
func candidates(conns []*Connection) []*Connection {
	out := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		if c.isCandidate() {
			out = append(out, c)
		}
	}
	return out
}

// selectFrom picks one connection out of an already-filtered candidate
// set, or nil if it's empty.
func (s *selector) selectFrom(providerID rpcprovider.ID, cs []*Connection) *Connection {
	if len(cs) == 0 {
		return nil
	}
	switch s.strategy {
	case StrategyLeastConnections:
		return s.selectLeastConnections(cs)
	case StrategyWeighted:
		return s.selectWeighted(providerID, cs)
	case StrategyLatencyBased:
		return s.selectLatencyBased(cs)
	default:
		return s.selectRoundRobin(cs)
	}
}

// selectRoundRobin is the only strategy with side effects: it advances
// the shared rolling index.
func (s *selector) selectRoundRobin(cs []*Connection) *Connection {
	c := cs[s.roundRobinIndex%len(cs)]
	s.roundRobinIndex++
	return c
}

// selectLeastConnections returns the candidate with the smallest
// requestCount, ties broken by iteration (slice) order.
func (s *selector) selectLeastConnections(cs []*Connection) *Connection {
	best := cs[0]
	bestSnap := best.snapshot()
	for _, c := range cs[1:] {
		snap := c.snapshot()
		if snap.RequestCount < bestSnap.RequestCount {
			best, bestSnap = c, snap
		}
	}
	return best
}

// selectWeighted does a random pick weighted by weights[providerID]
// (default 1). Because every candidate here already belongs to the
// same providerID (the Selector resolves candidates per-provider
// before applying a strategy, §4.3 step 1), the configured weight is
// uniform across the whole candidate set and the pick is a uniform
// random choice among them, so the weight is never read. Nothing else
// in the pool, the Queue Pump included, compares providers by weight
// either. This is a faithful, not an
// approximate, reading of §4.3's rule.
func (s *selector) selectWeighted(providerID rpcprovider.ID, cs []*Connection) *Connection {
	return cs[rand.Intn(len(cs))]
}

// selectLatencyBased sorts by avgResponseTime ascending; if the top two
// differ by less than 10ms, breaks the tie by healthScore descending.
func (s *selector) selectLatencyBased(cs []*Connection) *Connection {
	sorted := make([]Snapshot, len(cs))
	byID := make(map[string]*Connection, len(cs))
	for i, c := range cs {
		sorted[i] = c.snapshot()
		byID[c.id] = c
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AvgResponseTime < sorted[j].AvgResponseTime
	})
	if len(sorted) >= 2 {
		if sorted[1].AvgResponseTime-sorted[0].AvgResponseTime < 10 {
			if sorted[1].HealthScore > sorted[0].HealthScore {
				sorted[0], sorted[1] = sorted[1], sorted[0]
			}
		}
	}
	return byID[sorted[0].ID]
}

// reset clears the round-robin index. No code in the package calls it;
// Drain and Destroy leave the index as it is.
func (s *selector) reset() {
	s.roundRobinIndex = 0
}
