// Package rpcprovider defines the descriptor for an upstream RPC provider
// (for example a blockchain node endpoint) that a connection pool serves.
package rpcprovider

// ID identifies an upstream provider uniquely within a pool.
type ID string

// Descriptor is the static information the pool needs to know about a
// provider before it ever opens a connection to it. It carries no
// connection state — that lives entirely in the pool's own Connection
// records.
type Descriptor struct {
	// ID is the provider identifier used as the key into the pool's
	// per-provider index.
	ID ID

	// Endpoint is an opaque, provider-specific address (URL, multiaddr,
	// DSN — whatever the Opener hook understands). The pool never
	// parses or dials it directly.
	Endpoint string

	// Weight is the provider's weight, recorded by Pool.AddProvider.
	// Zero and negative values are treated as 1. Connection selection
	// does not read it: the weighted strategy picks uniformly among one
	// provider's candidates.
	Weight int
}

// EffectiveWeight returns w.Weight, defaulting to 1 for non-positive values.
func (d Descriptor) EffectiveWeight() int {
	if d.Weight <= 0 {
		return 1
	}
	return d.Weight
}
