package ttscache

import "context"

// SourceLocal is the hit-source tag for a local-tier hit; remote hits are
// tagged with the producing backend's own Name().
const SourceLocal = "local"

// Facade composes one LocalCache and one optional Chain behind a single
// get/set interface, reporting which tier produced a hit. The facade is
// process-wide shared state: a caller typically constructs one during
// worker startup and injects it into every session rather than relying on
// a lazy singleton.
type Facade struct {
	local *LocalCache
	chain *Chain
}

// NewFacade composes local (required) with chain (optional; pass nil or an
// empty Chain to disable the remote tier entirely).
func NewFacade(local *LocalCache, chain *Chain) *Facade {
	return &Facade{local: local, chain: chain}
}

// Get tries the local tier first. On a local miss, if a remote chain is
// configured and enabled, it is queried; a remote hit backfills the local
// tier before being returned with its own source tag preserved.
func (f *Facade) Get(ctx context.Context, key string) (pcm []byte, source string, ok bool) {
	if v, hit := f.local.Get(key); hit {
		return v, SourceLocal, true
	}
	if f.chain == nil || !f.chain.Enabled() {
		return nil, "", false
	}
	v, src, hit := f.chain.Get(ctx, key)
	if !hit {
		return nil, "", false
	}
	f.local.Set(key, v)
	return v, src, true
}

// Set writes to the local tier and, if configured and enabled, to the
// remote chain as well.
func (f *Facade) Set(ctx context.Context, key string, pcm []byte) {
	f.local.Set(key, pcm)
	if f.chain != nil && f.chain.Enabled() {
		f.chain.Set(ctx, key, pcm)
	}
}

// LocalStats exposes the local tier's counters for diagnostics.
func (f *Facade) LocalStats() Stats {
	return f.local.Stats()
}
