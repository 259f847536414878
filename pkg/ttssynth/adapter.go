package ttssynth

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/lokutor-edgeworker/pkg/segmenter"
	"github.com/lokutor-ai/lokutor-edgeworker/pkg/ttscache"
)

// Cache is the subset of the two-tier facade the adapter needs. Declaring
// it here (rather than depending on *ttscache.Facade directly) keeps the
// adapter testable against an in-memory fake without dragging Redis or the
// LRU implementation into its tests.
type Cache interface {
	Get(ctx context.Context, key string) (pcm []byte, source string, ok bool)
	Set(ctx context.Context, key string, pcm []byte)
}

var _ Cache = (*ttscache.Facade)(nil)

// Adapter is the Cached Synthesis Adapter: the orchestration core that
// turns a text-delta stream into a single timed PCM stream, consulting
// cache for each sentence segment and synthesizing on a miss.
type Adapter struct {
	tts           WrappedTTS
	cache         Cache
	fingerprint   ttscache.Fingerprint
	prefix        string
	maxTextChars  int
	maxAudioBytes int64
	log           Logger
}

// NewAdapter builds an Adapter. fingerprint's SampleRate/NumChannels are
// overwritten from tts so the cache key always reflects what the provider
// actually emits.
func NewAdapter(tts WrappedTTS, cache Cache, fingerprint ttscache.Fingerprint, prefix string, maxTextChars int, maxAudioBytes int64, log Logger) (*Adapter, error) {
	if tts == nil {
		return nil, ErrNilWrappedTTS
	}
	if cache == nil {
		return nil, ErrNilFacade
	}
	if log == nil {
		log = noOpLogger{}
	}
	fingerprint.SampleRate = tts.SampleRate()
	fingerprint.NumChannels = tts.NumChannels()
	return &Adapter{
		tts:           tts,
		cache:         cache,
		fingerprint:   fingerprint,
		prefix:        prefix,
		maxTextChars:  maxTextChars,
		maxAudioBytes: maxAudioBytes,
		log:           log,
	}, nil
}

// turnState carries the mutable bookkeeping for a single RunTurn call; it
// is private to avoid the adapter itself holding per-turn state across
// concurrent turns (a new one is built for every call).
type turnState struct {
	metrics  TurnMetrics
	duration time.Duration
}

// bytesPerSecond is the PCM byte rate for s16le audio at the adapter's
// fingerprint sample rate and channel count.
func (a *Adapter) bytesPerSecond() float64 {
	return float64(a.fingerprint.SampleRate * a.fingerprint.NumChannels * 2)
}

// RunTurn executes the per-turn protocol: it reads from input until
// closed, feeding a fresh sentence segmenter, and for each completed
// segment performs the segment synthesis protocol, pushing PCM and
// transcript markers into emitter. When input closes and the last segment
// has been processed, onMetrics (if non-nil) is invoked exactly once with
// the turn's accumulated metrics; a panic inside onMetrics is recovered so
// a buggy sink never destabilizes the surrounding session.
//
// RunTurn returns when both the input-forwarding and synthesizing tasks
// have terminated. A cancelled ctx terminates both promptly and aborts any
// in-flight wrapped-TTS call.
func (a *Adapter) RunTurn(ctx context.Context, requestID string, input <-chan InputEvent, emitter *Emitter, onMetrics func(TurnMetrics)) error {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	seg := segmenter.New(0)
	emitter.Init(requestID, a.fingerprint.SampleRate, a.fingerprint.NumChannels, "audio/pcm")
	emitter.StartSegment(uuid.NewString())

	st := &turnState{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev, ok := <-input:
				if !ok {
					seg.EndInput()
					return nil
				}
				if ev.Flush {
					seg.Flush()
				} else {
					seg.Feed(ev.Delta)
				}
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case text, ok := <-seg.Segments():
				if !ok {
					return nil
				}
				a.synthesizeSegment(gctx, text, emitter, st)
			}
		}
	})

	err := g.Wait()

	if onMetrics != nil {
		a.reportMetricsSafely(onMetrics, st.metrics)
	}

	return err
}

func (a *Adapter) reportMetricsSafely(onMetrics func(TurnMetrics), metrics TurnMetrics) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("ttssynth: metrics callback panicked: %v", r)
		}
	}()
	onMetrics(metrics)
}

// synthesizeSegment implements the segment synthesis protocol for one
// completed sentence. Faults are isolated here: a failed wrapped-TTS call
// is logged and the segment skipped, never propagated to RunTurn's caller.
func (a *Adapter) synthesizeSegment(ctx context.Context, rawText string, emitter *Emitter, st *turnState) {
	emitter.PushTranscriptMarker(rawText, st.duration.Seconds())

	text := strings.TrimSpace(rawText)
	if text == "" {
		return
	}
	st.metrics.Segments++

	eligible := ttscache.IsCacheable(text, a.maxTextChars)
	var key string
	if eligible {
		key = ttscache.BuildKey(a.prefix, text, a.fingerprint)
		if pcm, _, hit := a.cache.Get(ctx, key); hit {
			if err := emitter.PushPCM(ctx, pcm); err != nil {
				a.log.Warn("ttssynth: emit cached pcm: %v", err)
			}
			st.duration += durationOf(len(pcm), a.bytesPerSecond())
			emitter.Flush()
			st.metrics.CacheHits++
			st.metrics.CacheHitChars += len([]rune(text))
			st.metrics.CacheHitAudioBytes += int64(len(pcm))
			return
		}
	}

	buf, ok := a.synthesizeFresh(ctx, text, emitter, st)
	if !ok {
		return
	}
	emitter.Flush()

	st.metrics.CacheMisses++
	st.metrics.CacheMissChars += len([]rune(text))
	if len(buf) > 0 {
		st.metrics.CacheMissAudioBytes += int64(len(buf))
	}

	if eligible && len(buf) > 0 && int64(len(buf)) <= a.maxAudioBytes {
		a.cache.Set(ctx, key, buf)
	}
}

// synthesizeFresh opens a one-shot wrapped-TTS call and streams its frames
// into the emitter, accumulating the full segment PCM. ok is false when the
// call fails to open or the stream fails mid-segment; the caller then skips
// the segment without counting a miss or writing to the cache.
func (a *Adapter) synthesizeFresh(ctx context.Context, text string, emitter *Emitter, st *turnState) (buf []byte, ok bool) {
	stream, err := a.tts.Synthesize(ctx, text)
	if err != nil {
		a.log.Error("ttssynth: synthesis failed for segment: %v", err)
		return nil, false
	}

	for {
		frame, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf, true
			}
			a.log.Error("ttssynth: synthesis stream failed mid-segment: %v", err)
			return buf, false
		}
		if perr := emitter.PushPCM(ctx, frame.Data); perr != nil {
			a.log.Warn("ttssynth: emit pcm: %v", perr)
		}
		buf = append(buf, frame.Data...)
		st.duration += frame.Duration
	}
}

func durationOf(nbytes int, bytesPerSecond float64) time.Duration {
	if bytesPerSecond <= 0 {
		return 0
	}
	seconds := float64(nbytes) / bytesPerSecond
	return time.Duration(seconds * float64(time.Second))
}
