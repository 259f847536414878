package ttssynth

import (
	"context"
	"sync"
)

// Sink is where the emitter's PCM frames ultimately go — the room
// publisher in production, a test double or a local playback device
// elsewhere. It mirrors collab.RoomPublisher's shape without importing it,
// so this package stays usable without pulling in room-publishing
// concerns.
type Sink interface {
	PublishPCM(ctx context.Context, pcm []byte) error
}

// TranscriptMarker is a timed caption emitted alongside audio: the text of
// a segment paired with the cumulative turn duration at the moment
// synthesis of that segment began.
type TranscriptMarker struct {
	Text     string
	Duration float64 // seconds
}

// Emitter is the adapter's output: it pushes PCM frames downstream via
// Sink and records timed transcript markers (read back with Markers; they
// are not sent to Sink), while also retaining the full turn's PCM so a
// caller can export it later (see edgeworker.Session.ExportLastTurnAudio).
type Emitter struct {
	sink      Sink
	markers   []TranscriptMarker
	requestID string

	mu       sync.Mutex
	turnPCM  []byte
	segments []string
}

// NewEmitter constructs an Emitter that publishes PCM to sink. sink may be
// nil, in which case PCM is retained (for export/testing) but not
// published anywhere.
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

// Init resets per-turn state and records the request id. sampleRate,
// numChannels and mime are accepted for parity with the adapter's
// per-turn protocol (a caller publishing over a real transport uses them
// to build the stream header); this in-process emitter does not need them
// itself.
func (e *Emitter) Init(requestID string, sampleRate, numChannels int, mime string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requestID = requestID
	e.turnPCM = nil
	e.markers = nil
	e.segments = nil
}

// StartSegment records a fresh segment boundary in the emitter's bookkeeping.
func (e *Emitter) StartSegment(segmentID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.segments = append(e.segments, segmentID)
}

// PushTranscriptMarker records a timed transcript marker for the segment
// currently being synthesized.
func (e *Emitter) PushTranscriptMarker(text string, durationSeconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markers = append(e.markers, TranscriptMarker{Text: text, Duration: durationSeconds})
}

// PushPCM forwards pcm to the sink (if any) and retains a copy for export.
func (e *Emitter) PushPCM(ctx context.Context, pcm []byte) error {
	e.mu.Lock()
	e.turnPCM = append(e.turnPCM, pcm...)
	e.mu.Unlock()

	if e.sink == nil {
		return nil
	}
	return e.sink.PublishPCM(ctx, pcm)
}

// Flush is a no-op for this in-process emitter; it exists so the adapter's
// per-segment protocol has a symmetric flush point to call regardless of
// which downstream transport is wired in (a chunked-HTTP or websocket sink
// would flush its buffer here).
func (e *Emitter) Flush() {}

// TurnPCM returns a copy of every PCM byte pushed since the last Init.
func (e *Emitter) TurnPCM() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]byte, len(e.turnPCM))
	copy(out, e.turnPCM)
	return out
}

// Markers returns a copy of the transcript markers recorded since the last Init.
func (e *Emitter) Markers() []TranscriptMarker {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TranscriptMarker, len(e.markers))
	copy(out, e.markers)
	return out
}
