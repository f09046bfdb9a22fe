// Package sensor resolves sensor names to their durable store ids
// through a short-lived cache with negative-result caching.
package sensor

import "context"

// Querier is the slice of the store the resolver needs.
type Querier interface {
	// SensorIDByName returns the id for an exact name match, or nil
	// when the name is unknown.
	SensorIDByName(ctx context.Context, name string) (*int, error)
}

// Resolver answers name→id lookups, hitting the store only on cache
// misses. Concurrent misses for the same name may each query the store;
// the lookup is idempotent so no coalescing is done.
type Resolver struct {
	cache Cache
}

// NewResolver builds a resolver on the given cache.
func NewResolver(cache Cache) *Resolver {
	return &Resolver{cache: cache}
}

// Resolve returns the id for name, or nil when the store does not know
// it. Unknown names are cached too, so a burst of readings from an
// unregistered sensor does not hammer the store.
func (r *Resolver) Resolve(ctx context.Context, q Querier, name string) (*int, error) {
	if id, ok := r.cache.Lookup(name); ok {
		return id, nil
	}

	id, err := q.SensorIDByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if id == nil {
		r.cache.StoreNegative(name)
		return nil, nil
	}

	r.cache.StorePositive(name, *id)
	return id, nil
}
