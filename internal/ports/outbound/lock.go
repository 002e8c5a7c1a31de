package outbound

import "context"

// LeaderLock guarantees a single active settlement instance
type LeaderLock interface {
	// Acquire takes the lease, or extends it when this instance already holds it.
	// It returns false when another instance is the leader.
	Acquire(ctx context.Context) (bool, error)

	// Release gives the lease up if this instance holds it
	Release(ctx context.Context) error
}
