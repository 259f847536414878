package collab

import "context"

// STTStream is the out-of-scope speech-to-text boundary: the worker's
// session wiring accepts any implementation, the cache/adapter core never
// touches it directly. Mirrors the shape a streaming STT vendor client
// naturally exposes (push raw PCM in, get transcripts out).
type STTStream interface {
	// StreamTranscribe starts a transcription session and returns a
	// channel the caller writes raw PCM frames into; onTranscript is
	// invoked for every partial or final transcript.
	StreamTranscribe(ctx context.Context, onTranscript func(text string, isFinal bool) error) (chan<- []byte, error)
}
