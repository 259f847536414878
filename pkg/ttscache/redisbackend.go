package ttscache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the reference RemoteCache realization: a Redis-style
// key/value store reached over the network. Construction is lazy — the
// client is dialed and pinged on first use — and a failed construction
// permanently disables the backend rather than retrying; every subsequent
// Get/Set becomes a no-op. mu guards the dial/ping and the resulting
// client/enabled state, mirroring LocalCache's mutex-guarded state, so two
// sessions racing on first use never double-dial or tear each other's view
// of the client.
type RedisCache struct {
	url           string
	ttl           time.Duration
	maxAudioBytes int64
	log           Logger

	mu            sync.Mutex
	client        *redis.Client
	enabled       bool
	initAttempted bool
}

// Logger is the narrow logging seam this package accepts; callers pass
// their own Logger implementation (see package edgeworker), or nil for
// silent operation.
type Logger interface {
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noOpLogger struct{}

func (noOpLogger) Debug(string, ...interface{}) {}
func (noOpLogger) Warn(string, ...interface{})  {}
func (noOpLogger) Error(string, ...interface{}) {}

// NewRedisCache builds a RedisCache against url (a redis:// connection
// string). An empty url disables the backend outright — the caller is not
// required to special-case "no remote tier configured". The underlying
// connection is not dialed until the first Get or Set.
func NewRedisCache(url string, ttl time.Duration, maxAudioBytes int64, log Logger) *RedisCache {
	if log == nil {
		log = noOpLogger{}
	}
	return &RedisCache{url: url, ttl: ttl, maxAudioBytes: maxAudioBytes, log: log}
}

func (r *RedisCache) Name() string { return "redis" }

// Enabled reports whether the backend is usable. It is false before the
// first operation if url is empty, and permanently false after a failed
// dial/ping.
func (r *RedisCache) Enabled() bool {
	if r.url == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initAttempted {
		return true // not yet known to be broken; ensureClient decides
	}
	return r.enabled
}

// ensureClient dials and pings on the first call and caches the outcome;
// concurrent callers block on mu so at most one client is ever created.
func (r *RedisCache) ensureClient() *redis.Client {
	if r.url == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initAttempted {
		if r.enabled {
			return r.client
		}
		return nil
	}
	r.initAttempted = true

	opts, err := redis.ParseURL(r.url)
	if err != nil {
		r.log.Error("ttscache: parse redis url: %v", err)
		r.enabled = false
		return nil
	}
	opts.DialTimeout = 500 * time.Millisecond
	opts.ReadTimeout = 500 * time.Millisecond
	opts.WriteTimeout = 500 * time.Millisecond
	opts.MaxRetries = 0

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		r.log.Warn("ttscache: redis unavailable, disabling remote tier: %v", err)
		_ = client.Close()
		r.enabled = false
		return nil
	}

	r.client = client
	r.enabled = true
	return r.client
}

// Get returns the stored PCM payload for key, or absent on any fault
// (disabled backend, transport error, oversize payload). Reads do not
// refresh the entry's TTL.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	client := r.ensureClient()
	if client == nil {
		return nil, false
	}

	pcm, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn("ttscache: redis get fault for %s: %v", key, err)
		}
		return nil, false
	}
	if int64(len(pcm)) > r.maxAudioBytes {
		return nil, false
	}
	return pcm, true
}

// Set stores pcm under key with the configured TTL. A payload larger than
// maxAudioBytes is silently rejected; any transport fault is swallowed.
func (r *RedisCache) Set(ctx context.Context, key string, pcm []byte) {
	client := r.ensureClient()
	if client == nil {
		return
	}
	if int64(len(pcm)) > r.maxAudioBytes {
		return
	}
	if err := client.Set(ctx, key, pcm, r.ttl).Err(); err != nil {
		r.log.Warn("ttscache: redis set fault for %s: %v", key, err)
	}
}
