package ttscache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRedisCacheEmptyURLDisabled(t *testing.T) {
	r := NewRedisCache("", time.Hour, 1024, nil)
	if r.Enabled() {
		t.Fatal("empty url should report disabled")
	}
	if _, ok := r.Get(context.Background(), "k"); ok {
		t.Error("Get should miss when disabled")
	}
	r.Set(context.Background(), "k", []byte("v")) // must not panic
}

func TestRedisCacheUnreachablePermanentlyDisables(t *testing.T) {
	// A syntactically valid but unreachable address: construction should
	// fail fast (sub-second timeouts) and permanently disable the backend
	// rather than retrying on every call.
	r := NewRedisCache("redis://127.0.0.1:1/0", 10*time.Second, 1024, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, ok := r.Get(ctx, "k"); ok {
		t.Error("expected miss against unreachable backend")
	}
	if r.enabled {
		t.Error("expected backend to be marked disabled after failed dial")
	}
	if !r.initAttempted {
		t.Error("expected initAttempted to be set after the first call")
	}

	// A second call must not attempt to redial.
	if _, ok := r.Get(ctx, "k"); ok {
		t.Error("expected continued miss on second call")
	}
}

func TestRedisCacheConcurrentFirstUseDialsOnce(t *testing.T) {
	// Run with -race: concurrent first-use callers must serialize on the
	// dial/ping rather than racing on client/enabled.
	r := NewRedisCache("redis://127.0.0.1:1/0", 10*time.Second, 1024, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Get(ctx, "k")
			r.Set(ctx, "k", []byte("v"))
		}()
	}
	wg.Wait()

	if r.enabled {
		t.Error("expected backend to remain disabled after a failed dial")
	}
}

func TestRedisCacheName(t *testing.T) {
	if (NewRedisCache("", 0, 0, nil)).Name() != "redis" {
		t.Error("unexpected backend name")
	}
}
