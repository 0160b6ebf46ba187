package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

func makeCandidates(n int) []*Connection {
	out := make([]*Connection, n)
	for i := range out {
		out[i] = newConnection(rpcprovider.ID("infura"), 3)
	}
	return out
}

func TestSelectorRoundRobinCycles(t *testing.T) {
	s := newSelector(StrategyRoundRobin, nil)
	cs := makeCandidates(3)

	picked := map[string]int{}
	for i := 0; i < 6; i++ {
		c := s.selectFrom("infura", cs)
		picked[c.ID()]++
	}
	for _, c := range cs {
		assert.Equal(t, 2, picked[c.ID()], "round robin must visit every candidate evenly")
	}
}

func TestSelectorLeastConnectionsPicksSmallestRequestCount(t *testing.T) {
	s := newSelector(StrategyLeastConnections, nil)
	cs := makeCandidates(3)
	cs[0].markBusy()
	cs[0].markIdle()
	cs[1].markBusy()
	cs[1].markIdle()
	cs[1].markBusy()
	cs[1].markIdle()

	best := s.selectFrom("infura", cs)
	assert.Equal(t, cs[2].ID(), best.ID())
}

func TestSelectorLatencyBasedPrefersLowerLatency(t *testing.T) {
	s := newSelector(StrategyLatencyBased, nil)
	cs := makeCandidates(2)
	cs[0].avgResponseTime = 50
	cs[1].avgResponseTime = 5

	best := s.selectFrom("infura", cs)
	assert.Equal(t, cs[1].ID(), best.ID())
}

func TestSelectorLatencyBasedTieBreaksOnHealthScore(t *testing.T) {
	s := newSelector(StrategyLatencyBased, nil)
	cs := makeCandidates(2)
	cs[0].avgResponseTime = 10
	cs[0].healthScore = 60
	cs[1].avgResponseTime = 15 // within the 10ms tie window
	cs[1].healthScore = 90

	best := s.selectFrom("infura", cs)
	assert.Equal(t, cs[1].ID(), best.ID(), "within 10ms, the healthier connection wins")
}

func TestSelectorWeightedReturnsOneOfTheCandidates(t *testing.T) {
	s := newSelector(StrategyWeighted, map[rpcprovider.ID]int{"infura": 5})
	cs := makeCandidates(4)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		c := s.selectFrom("infura", cs)
		seen[c.ID()] = true
	}
	assert.NotEmpty(t, seen)
	for id := range seen {
		found := false
		for _, c := range cs {
			if c.ID() == id {
				found = true
			}
		}
		assert.True(t, found, "weighted selection must only ever return a known candidate")
	}
}

func TestSelectorEmptyCandidatesReturnsNil(t *testing.T) {
	s := newSelector(StrategyRoundRobin, nil)
	assert.Nil(t, s.selectFrom("infura", nil))
}

func TestCandidatesFiltersIneligible(t *testing.T) {
	cs := makeCandidates(3)
	cs[0].markBusy()
	cs[1].deactivate()

	eligible := candidates(cs)
	assert.Len(t, eligible, 1)
	assert.Equal(t, cs[2].ID(), eligible[0].ID())
}
