package ttssynth

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/lokutor-ai/lokutor-edgeworker/pkg/ttscache"
)

type fakeFrameStream struct {
	frames []Frame
	failAt int // -1 disables; otherwise index at which Next returns err
	err    error
	idx    int
}

func (s *fakeFrameStream) Next(ctx context.Context) (Frame, error) {
	if s.failAt >= 0 && s.idx == s.failAt {
		s.idx++
		return Frame{}, s.err
	}
	if s.idx >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.idx]
	s.idx++
	return f, nil
}

type fakeTTS struct {
	mu          sync.Mutex
	sampleRate  int
	numChannels int
	calls       []string
	synth       func(text string) (FrameStream, error)
}

func (t *fakeTTS) SampleRate() int  { return t.sampleRate }
func (t *fakeTTS) NumChannels() int { return t.numChannels }
func (t *fakeTTS) Abort()           {}
func (t *fakeTTS) Synthesize(ctx context.Context, text string) (FrameStream, error) {
	t.mu.Lock()
	t.calls = append(t.calls, text)
	t.mu.Unlock()
	return t.synth(text)
}
func (t *fakeTTS) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{store: make(map[string][]byte)} }

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	return v, "local", ok
}

func (c *fakeCache) Set(ctx context.Context, key string, pcm []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = append([]byte{}, pcm...)
}

func runTurn(t *testing.T, a *Adapter, deltas []string) (TurnMetrics, *Emitter) {
	t.Helper()
	input := make(chan InputEvent, len(deltas)+1)
	for _, d := range deltas {
		input <- InputEvent{Delta: d}
	}
	close(input)

	emitter := NewEmitter(nil)
	var got TurnMetrics
	err := a.RunTurn(context.Background(), "", input, emitter, func(m TurnMetrics) { got = m })
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	return got, emitter
}

func testFingerprint() ttscache.Fingerprint {
	return ttscache.Fingerprint{Provider: "p", Model: "m", Voice: "v"}
}

// S1 — cache miss then hit.
func TestAdapterCacheMissThenHit(t *testing.T) {
	cache := newFakeCache()
	tts := &fakeTTS{
		sampleRate:  24000,
		numChannels: 1,
		synth: func(text string) (FrameStream, error) {
			return &fakeFrameStream{
				failAt: -1,
				frames: []Frame{{Data: make([]byte, 48000), Duration: time.Second}},
			}, nil
		},
	}
	adapter, err := NewAdapter(tts, cache, testFingerprint(), "joi:tts:v1", 280, 2*1024*1024, nil)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	m1, _ := runTurn(t, adapter, []string{"Hello there."})
	if m1.Segments != 1 || m1.CacheMisses != 1 || m1.CacheHits != 0 {
		t.Fatalf("turn1 metrics = %+v", m1)
	}
	if m1.CacheMissAudioBytes != 48000 {
		t.Errorf("turn1 CacheMissAudioBytes = %d, want 48000", m1.CacheMissAudioBytes)
	}

	m2, emitter := runTurn(t, adapter, []string{"Hello there."})
	if m2.Segments != 1 || m2.CacheHits != 1 || m2.CacheMisses != 0 {
		t.Fatalf("turn2 metrics = %+v", m2)
	}
	if m2.CacheHitAudioBytes != 48000 {
		t.Errorf("turn2 CacheHitAudioBytes = %d, want 48000", m2.CacheHitAudioBytes)
	}
	if tts.callCount() != 1 {
		t.Errorf("wrapped TTS invoked %d times, want 1 (second turn should hit cache)", tts.callCount())
	}
	if len(emitter.TurnPCM()) != 48000 {
		t.Errorf("turn2 emitted %d bytes, want 48000", len(emitter.TurnPCM()))
	}
}

// S2 — oversize rejection.
func TestAdapterOversizeRejection(t *testing.T) {
	cache := newFakeCache()
	tts := &fakeTTS{
		sampleRate:  24000,
		numChannels: 1,
		synth: func(text string) (FrameStream, error) {
			return &fakeFrameStream{failAt: -1, frames: []Frame{{Data: make([]byte, 20000), Duration: time.Second}}}, nil
		},
	}
	adapter, _ := NewAdapter(tts, cache, testFingerprint(), "joi:tts:v1", 280, 16384, nil)

	m, _ := runTurn(t, adapter, []string{"Hello there."})
	if m.CacheMisses != 1 || m.CacheMissAudioBytes != 20000 {
		t.Fatalf("metrics = %+v", m)
	}
	if len(cache.store) != 0 {
		t.Errorf("expected oversize payload not to be cached, store has %d entries", len(cache.store))
	}

	runTurn(t, adapter, []string{"Hello there."})
	if tts.callCount() != 2 {
		t.Errorf("expected synthesis invoked again on second turn (never cached), got %d calls", tts.callCount())
	}
}

// S5 — per-segment fault isolation.
func TestAdapterPerSegmentFaultIsolation(t *testing.T) {
	cache := newFakeCache()
	tts := &fakeTTS{
		sampleRate:  24000,
		numChannels: 1,
		synth: func(text string) (FrameStream, error) {
			if text == "Sb." {
				return nil, errors.New("synthesis boom")
			}
			return &fakeFrameStream{failAt: -1, frames: []Frame{{Data: make([]byte, 100), Duration: 10 * time.Millisecond}}}, nil
		},
	}
	adapter, _ := NewAdapter(tts, cache, testFingerprint(), "joi:tts:v1", 280, 2*1024*1024, nil)

	m, _ := runTurn(t, adapter, []string{"Sa. Sb. Sc."})
	if m.Segments != 3 {
		t.Fatalf("Segments = %d, want 3", m.Segments)
	}
	if m.CacheMisses != 2 {
		t.Errorf("CacheMisses = %d, want 2 (Sb should be skipped, not counted)", m.CacheMisses)
	}
}

// S6 — a zero-segment turn reports Empty() == true and invokes no
// synthesis; the POST suppression itself is tested in package collab.
func TestAdapterZeroSegmentTurnIsEmpty(t *testing.T) {
	cache := newFakeCache()
	tts := &fakeTTS{sampleRate: 24000, numChannels: 1, synth: func(string) (FrameStream, error) {
		t := &fakeFrameStream{failAt: -1}
		return t, nil
	}}
	adapter, _ := NewAdapter(tts, cache, testFingerprint(), "joi:tts:v1", 280, 2*1024*1024, nil)

	m, _ := runTurn(t, adapter, nil)
	if !m.Empty() {
		t.Errorf("expected Empty() turn metrics, got %+v", m)
	}
	if tts.callCount() != 0 {
		t.Errorf("expected no synthesis calls for an empty turn, got %d", tts.callCount())
	}
}

func TestAdapterDurationMonotone(t *testing.T) {
	cache := newFakeCache()
	tts := &fakeTTS{
		sampleRate:  24000,
		numChannels: 1,
		synth: func(text string) (FrameStream, error) {
			return &fakeFrameStream{failAt: -1, frames: []Frame{{Data: make([]byte, 1000), Duration: 5 * time.Millisecond}}}, nil
		},
	}
	adapter, _ := NewAdapter(tts, cache, testFingerprint(), "joi:tts:v1", 280, 2*1024*1024, nil)

	var markers []TranscriptMarker
	input := make(chan InputEvent, 1)
	input <- InputEvent{Delta: "One. Two. Three."}
	close(input)
	emitter := NewEmitter(nil)
	_ = adapter.RunTurn(context.Background(), "", input, emitter, func(TurnMetrics) {})
	markers = emitter.Markers()

	for i := 1; i < len(markers); i++ {
		if markers[i].Duration < markers[i-1].Duration {
			t.Errorf("marker duration not monotone: %v", markers)
			break
		}
	}
}

func TestNewAdapterRejectsNilDeps(t *testing.T) {
	cache := newFakeCache()
	tts := &fakeTTS{sampleRate: 24000, numChannels: 1}
	if _, err := NewAdapter(nil, cache, testFingerprint(), "p", 280, 1024, nil); err != ErrNilWrappedTTS {
		t.Errorf("expected ErrNilWrappedTTS, got %v", err)
	}
	if _, err := NewAdapter(tts, nil, testFingerprint(), "p", 280, 1024, nil); err != ErrNilFacade {
		t.Errorf("expected ErrNilFacade, got %v", err)
	}
}
