package ttscache

import "context"

// Chain is an ordered list of remote backends consulted highest-priority
// first. On a hit at index i, the payload is backfilled into every backend
// at indices 0..i-1 before being returned, tagged with the producing
// backend's name.
type Chain struct {
	backends []RemoteCache
}

// NewChain builds a Chain over backends in priority order. Disabled
// backends are kept in the slice (Enabled() is re-checked per call, since
// a backend's enablement can only ever go from true to permanently false,
// never the reverse) so construction order is stable regardless of which
// backends happen to be up.
func NewChain(backends ...RemoteCache) *Chain {
	return &Chain{backends: backends}
}

// Enabled reports whether the chain has at least one backend.
func (c *Chain) Enabled() bool {
	return len(c.backends) > 0
}

// Get queries backends in order; on the first hit at index i, backfills
// indices 0..i-1 and returns the hit tagged with the producing backend's
// name.
func (c *Chain) Get(ctx context.Context, key string) (pcm []byte, source string, ok bool) {
	for i, b := range c.backends {
		if !b.Enabled() {
			continue
		}
		if v, hit := b.Get(ctx, key); hit {
			for j := 0; j < i; j++ {
				if c.backends[j].Enabled() {
					c.backends[j].Set(ctx, key, v)
				}
			}
			return v, b.Name(), true
		}
	}
	return nil, "", false
}

// Set writes to every enabled backend; per-backend failures (already
// swallowed inside each RemoteCache) are independent of one another.
func (c *Chain) Set(ctx context.Context, key string, pcm []byte) {
	for _, b := range c.backends {
		if b.Enabled() {
			b.Set(ctx, key, pcm)
		}
	}
}
