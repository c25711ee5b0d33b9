// Package cache tracks invalidations of the customer's query keys, such as
// "orders" or "order:42". Every Invalidate bumps a per-key version; the UI
// compares versions it has seen with the current ones to decide what to
// refetch. Invalidation is fire-and-forget: failures are logged, never
// returned.
package cache

import "context"

const opVersion = "version"

type Cache interface {
	Invalidate(ctx context.Context, key string)
	// Version returns how many times key has been invalidated; 0 if never.
	Version(ctx context.Context, key string) (int64, error)
	GenerateKey(operation, key string) string
}

// Versions reads the version of each key.
func Versions(ctx context.Context, c Cache, keys []string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		v, err := c.Version(ctx, k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
