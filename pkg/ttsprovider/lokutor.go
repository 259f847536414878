// Package ttsprovider adapts the Lokutor streaming TTS WebSocket API to
// the ttssynth.WrappedTTS shape the Cached Synthesis Adapter consumes.
package ttsprovider

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/lokutor-edgeworker/pkg/ttssynth"
)

const (
	defaultHost   = "api.lokutor.com"
	frameDuration = 20 * time.Millisecond // provider-documented frame size at 1x speed
)

// LokutorTTS is a ttssynth.WrappedTTS realization over Lokutor's streaming
// synthesis WebSocket endpoint: one JSON request per call, a stream of
// binary PCM frames terminated by a text "EOS"/"ERR:" sentinel.
type LokutorTTS struct {
	apiKey      string
	host        string
	voice       string
	lang        string
	sampleRate  int
	numChannels int

	mu   sync.Mutex
	conn *websocket.Conn
}

// Option configures a LokutorTTS at construction.
type Option func(*LokutorTTS)

// WithHost overrides the default api.lokutor.com endpoint, mainly for tests.
func WithHost(host string) Option {
	return func(t *LokutorTTS) { t.host = host }
}

// NewLokutorTTS builds a client fixed to one voice/language/fingerprint for
// the lifetime of the session — the adapter's cache key depends on these
// staying constant across calls.
func NewLokutorTTS(apiKey, voice, lang string, sampleRate, numChannels int, opts ...Option) *LokutorTTS {
	t := &LokutorTTS{
		apiKey:      apiKey,
		host:        defaultHost,
		voice:       voice,
		lang:        lang,
		sampleRate:  sampleRate,
		numChannels: numChannels,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *LokutorTTS) SampleRate() int  { return t.sampleRate }
func (t *LokutorTTS) NumChannels() int { return t.numChannels }

func (t *LokutorTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: "wss", Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("lokutor: dial: %w", err)
	}
	t.conn = conn
	return conn, nil
}

// Synthesize opens a one-shot synthesis request and returns a FrameStream
// over the binary frames the server streams back. No retry is attempted
// here — that policy belongs to the caller (the adapter treats a failed
// Synthesize call as a skipped segment).
func (t *LokutorTTS) Synthesize(ctx context.Context, text string) (ttssynth.FrameStream, error) {
	conn, err := t.getConn(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	req := map[string]interface{}{
		"text":        text,
		"voice":       t.voice,
		"lang":        t.lang,
		"sample_rate": t.sampleRate,
		"channels":    t.numChannels,
	}
	writeErr := wsjson.Write(ctx, conn, req)
	t.mu.Unlock()

	if writeErr != nil {
		t.dropConn(conn)
		return nil, fmt.Errorf("lokutor: send synthesis request: %w", writeErr)
	}

	return &lokutorFrameStream{tts: t, conn: conn}, nil
}

// Abort drops the current connection so any in-flight Next() call returns
// an error promptly; the next Synthesize call dials fresh.
func (t *LokutorTTS) Abort() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "aborted")
	}
}

func (t *LokutorTTS) dropConn(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close(websocket.StatusAbnormalClosure, "lokutor transport fault")
}

// Close releases the underlying connection, if any.
func (t *LokutorTTS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "")
	t.conn = nil
	return err
}

// lokutorFrameStream adapts one synthesis call's WebSocket message stream
// to ttssynth.FrameStream.
type lokutorFrameStream struct {
	tts  *LokutorTTS
	conn *websocket.Conn
	done bool
}

func (s *lokutorFrameStream) Next(ctx context.Context) (ttssynth.Frame, error) {
	if s.done {
		return ttssynth.Frame{}, io.EOF
	}
	for {
		messageType, payload, err := s.conn.Read(ctx)
		if err != nil {
			s.tts.dropConn(s.conn)
			s.done = true
			return ttssynth.Frame{}, fmt.Errorf("lokutor: read: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			return ttssynth.Frame{Data: payload, Duration: frameDuration}, nil
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				s.done = true
				return ttssynth.Frame{}, io.EOF
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				s.done = true
				return ttssynth.Frame{}, fmt.Errorf("lokutor: server error: %s", msg)
			}
			// unrecognized control message; keep reading
		}
	}
}
