package pool

import (
	"context"
	"time"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// Prober is the opaque external collaborator the Health Monitor invokes
// for every connection on each tick (§4.5). The pool never knows how a
// probe talks to the upstream provider — that's the RPC manager's job.
type Prober interface {
	Probe(ctx context.Context, c *Connection) error
}

// FuncProber adapts a plain function to Prober.
type FuncProber func(ctx context.Context, c *Connection) error

func (f FuncProber) Probe(ctx context.Context, c *Connection) error { return f(ctx, c) }

// NopProber always succeeds immediately. Useful for callers that have
// not wired a real RPC manager yet, and for tests that drive health
// transitions by hand via recordProbeFailure.
var NopProber Prober = FuncProber(func(context.Context, *Connection) error { return nil })

// Opener is the optional hook the Creator invokes to attach a real
// handle to a freshly minted connection record (§4.4, §9). If nil, the
// Creator performs no I/O and the record is considered ready
// immediately, per spec.
type Opener interface {
	Open(ctx context.Context, providerID rpcprovider.ID) (any, error)
}

// FuncOpener adapts a plain function to Opener.
type FuncOpener func(ctx context.Context, providerID rpcprovider.ID) (any, error)

func (f FuncOpener) Open(ctx context.Context, providerID rpcprovider.ID) (any, error) {
	return f(ctx, providerID)
}

// probeTimed runs p.Probe and reports elapsed wall time alongside the error.
func probeTimed(ctx context.Context, p Prober, c *Connection) (time.Duration, error) {
	start := time.Now()
	err := p.Probe(ctx, c)
	return time.Since(start), err
}
