package ttscache

import "context"

// RemoteCache is a single best-effort, optionally-TTL'd key/value backend.
// Any transport or decoding fault is swallowed: a faulty Get behaves like
// an absent key, a faulty Set is a silent no-op. Name is a stable
// identifier surfaced in cache-hit telemetry.
type RemoteCache interface {
	Name() string
	// Enabled is false if the backend was never configured or failed to
	// initialize. It may go from true to false once (e.g. after a failed
	// lazy connection) and never goes back to true.
	Enabled() bool
	Get(ctx context.Context, key string) (pcm []byte, ok bool)
	Set(ctx context.Context, key string, pcm []byte)
}
