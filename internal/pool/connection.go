package pool

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// Status is the externally observable state of a Connection, per the
// pool's status enumeration (busy / idle / unhealthy).
type Status string

const (
	StatusBusy      Status = "busy"
	StatusIdle      Status = "idle"
	StatusUnhealthy Status = "unhealthy"
)

// Connection is a logical handle to one upstream provider endpoint. The
// pool owns every field; callers only ever see a *Connection through
// Acquire and must stop using it after Release.
type Connection struct {
	mu sync.Mutex

	id         string
	providerID rpcprovider.ID

	active bool
	busy   bool

	createdAt time.Time
	lastUsed  time.Time

	requestCount uint64
	errorCount   uint64

	avgResponseTime      float64 // EMA, milliseconds
	consecutiveErrors    int
	maxConsecutiveErrors int

	healthScore int // [0, 100]

	// Handle is whatever the Opener hook attached on creation (a real
	// RPC client, socket, whatever). The pool never inspects it; it
	// only exists so a plugged-in Prober/Opener pair has somewhere to
	// stash state across probes.
	Handle any
}

// newConnection builds a fresh record per §4.4: active, not busy,
// healthScore 100, zero counters, an id derived from the provider id, a
// timestamp and a random suffix.
func newConnection(providerID rpcprovider.ID, maxConsecutiveErrors int) *Connection {
	now := time.Now()
	return &Connection{
		id:                   string(providerID) + "-" + now.UTC().Format("20060102T150405.000000000") + "-" + uuid.NewString(),
		providerID:           providerID,
		active:               true,
		busy:                 false,
		createdAt:            now,
		lastUsed:             now,
		healthScore:          100,
		maxConsecutiveErrors: maxConsecutiveErrors,
	}
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string {
	return c.id
}

// ProviderID returns the provider this connection serves. Immutable
// after creation, so no lock is needed.
func (c *Connection) ProviderID() rpcprovider.ID {
	return c.providerID
}

// Status summarizes the connection's observable state.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Connection) statusLocked() Status {
	if !c.active {
		return StatusUnhealthy
	}
	if c.busy {
		return StatusBusy
	}
	return StatusIdle
}

// Snapshot is an immutable, race-free copy of a Connection's fields for
// reporting (GetConnectionStatus, GetProviderStats, event payloads).
type Snapshot struct {
	ID                string
	ProviderID        rpcprovider.ID
	Active            bool
	Busy              bool
	CreatedAt         time.Time
	LastUsed          time.Time
	RequestCount      uint64
	ErrorCount        uint64
	AvgResponseTime   float64
	ConsecutiveErrors int
	HealthScore       int
	Status            Status
}

func (c *Connection) snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ID:                c.id,
		ProviderID:        c.providerID,
		Active:            c.active,
		Busy:              c.busy,
		CreatedAt:         c.createdAt,
		LastUsed:          c.lastUsed,
		RequestCount:      c.requestCount,
		ErrorCount:        c.errorCount,
		AvgResponseTime:   c.avgResponseTime,
		ConsecutiveErrors: c.consecutiveErrors,
		HealthScore:       c.healthScore,
		Status:            c.statusLocked(),
	}
}

// isCandidate reports whether the connection is eligible for selection:
// active, not busy, and not quarantined (consecutiveErrors below the
// deactivation threshold).
func (c *Connection) isCandidate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active && !c.busy && c.consecutiveErrors < c.maxConsecutiveErrors
}

// markBusy transitions the connection to busy and bumps usage counters.
// busy ⇒ active is enforced by the caller only invoking this after
// confirming isCandidate() (or immediately after creation).
func (c *Connection) markBusy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = true
	c.lastUsed = time.Now()
	c.requestCount++
}

// markIdle transitions the connection back to idle.
func (c *Connection) markIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.lastUsed = time.Now()
}

// recordProbeSuccess applies the §4.5 success update.
func (c *Connection) recordProbeSuccess(elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := float64(elapsed.Milliseconds())
	c.avgResponseTime = 0.8*c.avgResponseTime + 0.2*t
	c.consecutiveErrors = 0
	c.healthScore = min(100, c.healthScore+10)
}

// recordProbeFailure applies the §4.5 failure update and reports
// whether the connection just crossed the deactivation threshold.
func (c *Connection) recordProbeFailure() (deactivated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors++
	c.errorCount++
	c.healthScore = max(0, c.healthScore-20)
	if c.consecutiveErrors >= c.maxConsecutiveErrors && c.active {
		c.active = false
		return true
	}
	return false
}

// deactivate forces active=false; destroyLocked calls it on the destroy
// path.
func (c *Connection) deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}

// ageExceeds reports whether the connection is older than maxAge.
func (c *Connection) ageExceeds(maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maxAge > 0 && time.Since(c.createdAt) > maxAge
}

// idleExceeds reports whether a non-busy connection has been idle
// longer than idleTimeout.
func (c *Connection) idleExceeds(idleTimeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return idleTimeout > 0 && !c.busy && time.Since(c.lastUsed) > idleTimeout
}

// isInactive reports whether the connection has been deactivated.
func (c *Connection) isInactive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.active
}
