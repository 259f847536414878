package edgeworker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lokutor-ai/lokutor-edgeworker/pkg/collab"
	"github.com/lokutor-ai/lokutor-edgeworker/pkg/ttscache"
	"github.com/lokutor-ai/lokutor-edgeworker/pkg/ttssynth"
)

type fakeFrameStream struct {
	frames []ttssynth.Frame
	i      int
}

func (s *fakeFrameStream) Next(ctx context.Context) (ttssynth.Frame, error) {
	if s.i >= len(s.frames) {
		return ttssynth.Frame{}, io.EOF
	}
	f := s.frames[s.i]
	s.i++
	return f, nil
}

type fakeTTS struct {
	sampleRate  int
	numChannels int
}

func (t *fakeTTS) SampleRate() int  { return t.sampleRate }
func (t *fakeTTS) NumChannels() int { return t.numChannels }
func (t *fakeTTS) Synthesize(ctx context.Context, text string) (ttssynth.FrameStream, error) {
	return &fakeFrameStream{frames: []ttssynth.Frame{{Data: []byte("pcm:" + text)}}}, nil
}
func (t *fakeTTS) Abort() {}

type fakeCache struct {
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, string, bool) {
	v, ok := c.store[key]
	return v, "local", ok
}
func (c *fakeCache) Set(ctx context.Context, key string, pcm []byte) {
	if c.store == nil {
		c.store = make(map[string][]byte)
	}
	c.store[key] = pcm
}

func TestSessionRunTurnHappyPath(t *testing.T) {
	chatSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"stream\",\"delta\":\"Hello there.\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"done\",\"messageId\":\"m1\"}\n\n")
	}))
	defer chatSrv.Close()

	var posted int
	metricsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posted++
		w.WriteHeader(http.StatusOK)
	}))
	defer metricsSrv.Close()

	sess := newTestSession(t, chatSrv.URL, metricsSrv.URL)

	metrics, err := sess.RunTurn(context.Background(), "hi")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if metrics.Segments == 0 {
		t.Errorf("expected at least one segment, got metrics = %+v", metrics)
	}
	if posted != 1 {
		t.Errorf("expected exactly one cache-metrics POST, got %d", posted)
	}

	wav, err := sess.ExportLastTurnAudio()
	if err != nil {
		t.Fatalf("ExportLastTurnAudio() error = %v", err)
	}
	if len(wav) < 44 {
		t.Errorf("expected a valid WAV buffer, got %d bytes", len(wav))
	}
}

func TestSessionExportBeforeAnyTurnFails(t *testing.T) {
	sess := newTestSession(t, "http://unused.invalid", "http://unused.invalid")
	if _, err := sess.ExportLastTurnAudio(); err != ErrNoTurnInProgress {
		t.Errorf("ExportLastTurnAudio() error = %v, want ErrNoTurnInProgress", err)
	}
}

func newTestSession(t *testing.T, chatURL, metricsURL string) *Session {
	t.Helper()
	backend := collab.NewBackendClient(chatURL, nil, nil)
	metricsSink := collab.NewMetricsSink(metricsURL, nil, nil)

	sess, err := NewSession(
		"conv1", "agent1",
		&fakeTTS{sampleRate: 24000, numChannels: 1},
		&fakeCache{},
		ttscache.Fingerprint{Provider: "lokutor", Model: "m1", Voice: "v1"},
		DefaultConfig(),
		backend,
		metricsSink,
		nil,
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return sess
}
