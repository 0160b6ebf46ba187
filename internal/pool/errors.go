package pool

import "errors"

// Sentinel errors surfaced to callers. Wrap with fmt.Errorf("...: %w", Err...)
// at call sites that can attach identifying context (provider id, connection id).
var (
	// ErrAcquireTimeout is returned when a waiter's deadline elapses before
	// a connection becomes available.
	ErrAcquireTimeout = errors.New("pool: acquire timeout")

	// ErrUnknownConnection is returned by Release and GetConnectionStatus
	// for an id the registry has no record of. DestroyConnection treats an
	// unknown id as a no-op instead.
	ErrUnknownConnection = errors.New("pool: unknown connection")

	// ErrDraining is returned by Acquire once Drain has been called, and
	// delivered to every waiter already queued at that time.
	ErrDraining = errors.New("pool: draining")

	// ErrDestroyed is returned by Acquire after Destroy, and by Warmup when
	// it still has connections to create. Other operations do not check
	// for it: after Destroy, Release reports ErrUnknownConnection, and
	// DestroyConnection and Drain return nil.
	ErrDestroyed = errors.New("pool: destroyed")

	// ErrCreateFailed is returned by Acquire's grow path when the Opener
	// hook fails to attach a handle to a freshly created connection.
	ErrCreateFailed = errors.New("pool: connection creation failed")

	// ErrUnknownProvider is returned when an operation names a provider
	// that was never registered with AddProvider.
	ErrUnknownProvider = errors.New("pool: unknown provider")
)
