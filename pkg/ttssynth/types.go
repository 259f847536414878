// Package ttssynth implements the Cached Synthesis Adapter: the
// orchestration core that turns a backend's text-delta stream into a
// single timed PCM audio stream, consulting the two-tier cache for each
// sentence segment and falling back to the wrapped TTS provider on a miss.
package ttssynth

import (
	"context"
	"time"
)

// Logger is the narrow logging seam this package accepts.
type Logger interface {
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noOpLogger struct{}

func (noOpLogger) Debug(string, ...interface{}) {}
func (noOpLogger) Warn(string, ...interface{})  {}
func (noOpLogger) Error(string, ...interface{}) {}

// Frame is one chunk of synthesized audio: raw signed-16-bit little-endian
// PCM plus the provider-reported duration it represents.
type Frame struct {
	Data     []byte
	Duration time.Duration
}

// FrameStream is a one-shot iterator over the audio frames a single
// Synthesize call produces. Next returns io.EOF once the call completes
// successfully, or any other error on a mid-stream failure.
type FrameStream interface {
	Next(ctx context.Context) (Frame, error)
}

// WrappedTTS is the streaming TTS provider the adapter wraps. Synthesize
// opens a one-shot synthesis call with no built-in retry; Abort
// cooperatively cancels whatever call is currently in flight.
type WrappedTTS interface {
	SampleRate() int
	NumChannels() int
	Synthesize(ctx context.Context, text string) (FrameStream, error)
	Abort()
}

// InputEvent is pushed into a turn's input channel: either a text delta or
// a flush sentinel. Closing the channel signals end-of-input.
type InputEvent struct {
	Delta string
	Flush bool
}

// TurnMetrics accumulates per-turn cache telemetry. All counters are
// non-negative and CacheHits+CacheMisses never exceeds Segments.
type TurnMetrics struct {
	Segments            int
	CacheHits           int
	CacheMisses         int
	CacheHitChars       int
	CacheMissChars      int
	CacheHitAudioBytes  int64
	CacheMissAudioBytes int64
}

// Empty reports whether the turn produced no segments at all. The
// cache-metrics POST is suppressed by collab.CacheMetricsBody.IsEmpty
// instead, which checks for zero cache hits and misses.
func (m TurnMetrics) Empty() bool {
	return m.Segments == 0
}
