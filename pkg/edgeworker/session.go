package edgeworker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/lokutor-edgeworker/pkg/audio"
	"github.com/lokutor-ai/lokutor-edgeworker/pkg/collab"
	"github.com/lokutor-ai/lokutor-edgeworker/pkg/ttscache"
	"github.com/lokutor-ai/lokutor-edgeworker/pkg/ttssynth"
)

// Session binds one conversation's backend chat stream to the Cached
// Synthesis Adapter, applying the voice-marker and pronunciation
// corrections to every delta before it reaches the segmenter, and
// reporting each completed turn's cache telemetry to the gateway. Turns on
// a single Session run strictly one at a time: RunTurn serializes on mu so
// the pending-turn queue's FIFO assumption (see ttssynth.PendingTurnQueue)
// always holds for this session, even if a caller races two calls.
type Session struct {
	conversationID string
	agentID        string
	provider       string
	model          string
	voice          string

	backend *collab.BackendClient
	metrics *collab.MetricsSink
	adapter *ttssynth.Adapter
	emitter *ttssynth.Emitter
	pending *ttssynth.PendingTurnQueue
	log     Logger

	sampleRate  int
	numChannels int

	mu            sync.Mutex
	pronunciation *collab.PronunciationReplacer
}

// NewSession wires one conversation's adapter, backend client and metrics
// sink together. sink receives the turn's published PCM (a room publisher
// in production); it may be nil, in which case audio is still retained for
// ExportLastTurnAudio but never published anywhere.
func NewSession(
	conversationID, agentID string,
	tts ttssynth.WrappedTTS,
	cache ttssynth.Cache,
	fingerprint ttscache.Fingerprint,
	cfg Config,
	backend *collab.BackendClient,
	metricsSink *collab.MetricsSink,
	sink ttssynth.Sink,
	pronunciations map[string]string,
	log Logger,
) (*Session, error) {
	if tts == nil {
		return nil, ErrNilWrappedTTS
	}
	if backend == nil {
		return nil, ErrNilBackendClient
	}
	if log == nil {
		log = &NoOpLogger{}
	}

	adapter, err := ttssynth.NewAdapter(tts, cache, fingerprint, cfg.TTSCachePrefix, cfg.TTSCacheMaxTextChars, cfg.TTSCacheMaxAudioBytes, log)
	if err != nil {
		return nil, err
	}

	return &Session{
		conversationID: conversationID,
		agentID:        agentID,
		provider:       fingerprint.Provider,
		model:          fingerprint.Model,
		voice:          fingerprint.Voice,
		backend:        backend,
		metrics:        metricsSink,
		adapter:        adapter,
		emitter:        ttssynth.NewEmitter(sink),
		pending:        ttssynth.NewPendingTurnQueue(),
		log:            log,
		sampleRate:     tts.SampleRate(),
		numChannels:    tts.NumChannels(),
		pronunciation:  collab.NewPronunciationReplacer(pronunciations),
	}, nil
}

// RunTurn sends message to the backend, streams the reply through the
// voice-marker/pronunciation correction and sentence-cache pipeline, and
// reports the resulting cache telemetry once the turn completes. It
// returns the turn's metrics alongside any error from either the backend
// stream or the synthesis pipeline.
func (s *Session) RunTurn(ctx context.Context, message string) (ttssynth.TurnMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	input := make(chan ttssynth.InputEvent, 8)
	var markers collab.StripVoiceMarkers

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(input)
		return s.backend.StreamChat(gctx, collab.ChatRequest{
			ConversationID: s.conversationID,
			AgentID:        s.agentID,
			Message:        message,
		}, func(ev collab.ChatEvent) {
			switch ev.Type {
			case "stream":
				if text := s.pronunciation.Feed(markers.Feed(ev.Delta)); text != "" {
					input <- ttssynth.InputEvent{Delta: text}
				}
			case "done":
				s.pending.Push(ttssynth.PendingTurn{ConversationID: s.conversationID, AgentID: s.agentID, MessageID: ev.MessageID})
				if tail := s.pronunciation.Feed(markers.EndInput()) + s.pronunciation.EndInput(); tail != "" {
					input <- ttssynth.InputEvent{Delta: tail}
				}
			case "error":
				s.pending.Push(ttssynth.PendingTurn{ConversationID: s.conversationID, AgentID: s.agentID})
				if tail := s.pronunciation.Feed(markers.EndInput()) + s.pronunciation.EndInput(); tail != "" {
					input <- ttssynth.InputEvent{Delta: tail}
				}
				input <- ttssynth.InputEvent{Delta: ev.Error}
			}
		})
	})

	var turnMetrics ttssynth.TurnMetrics
	g.Go(func() error {
		return s.adapter.RunTurn(gctx, "", input, s.emitter, func(m ttssynth.TurnMetrics) {
			turnMetrics = m
		})
	})

	err := g.Wait()

	s.reportMetrics(ctx, turnMetrics)

	return turnMetrics, err
}

func (s *Session) reportMetrics(ctx context.Context, m ttssynth.TurnMetrics) {
	turn, _ := s.pending.Pop()

	if s.metrics == nil {
		return
	}
	s.metrics.PostCacheMetrics(ctx, collab.CacheMetricsReport{
		ConversationID: s.conversationID,
		AgentID:        s.agentID,
		MessageID:      turn.MessageID,
		Provider:       s.provider,
		Model:          s.model,
		Voice:          s.voice,
		Metrics: collab.CacheMetricsBody{
			Segments:            m.Segments,
			CacheHits:           m.CacheHits,
			CacheMisses:         m.CacheMisses,
			CacheHitChars:       m.CacheHitChars,
			CacheMissChars:      m.CacheMissChars,
			CacheHitAudioBytes:  m.CacheHitAudioBytes,
			CacheMissAudioBytes: m.CacheMissAudioBytes,
		},
	})
}

// ExportLastTurnAudio wraps the most recently completed turn's synthesized
// PCM as a standalone WAV file, mainly for offline debugging and the
// local-speaker demo entrypoint.
func (s *Session) ExportLastTurnAudio() ([]byte, error) {
	pcm := s.emitter.TurnPCM()
	if len(pcm) == 0 {
		return nil, ErrNoTurnInProgress
	}
	return audio.NewWavBuffer(pcm, s.sampleRate, s.numChannels), nil
}
