package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/lokutor-ai/lokutor-edgeworker/pkg/collab"
	"github.com/lokutor-ai/lokutor-edgeworker/pkg/edgeworker"
	"github.com/lokutor-ai/lokutor-edgeworker/pkg/ttscache"
	"github.com/lokutor-ai/lokutor-edgeworker/pkg/ttsprovider"
)

const (
	sampleRate  = 24000
	numChannels = 1
)

// stdlibLogger adapts the standard log package to edgeworker.Logger; the
// engine never reaches for a richer structured logger than what the
// teacher repo already used for its agent loop.
type stdlibLogger struct{}

func (stdlibLogger) Debug(msg string, args ...interface{}) { log.Printf("DEBUG "+msg, args...) }
func (stdlibLogger) Info(msg string, args ...interface{})  { log.Printf("INFO  "+msg, args...) }
func (stdlibLogger) Warn(msg string, args ...interface{})  { log.Printf("WARN  "+msg, args...) }
func (stdlibLogger) Error(msg string, args ...interface{}) { log.Printf("ERROR "+msg, args...) }

// speakerSink plays published PCM through the default audio device via
// malgo, mirroring the teacher agent's playback-buffer pattern.
type speakerSink struct {
	mu  sync.Mutex
	buf []byte
}

func (s *speakerSink) PublishPCM(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	s.buf = append(s.buf, pcm...)
	s.mu.Unlock()
	return nil
}

func (s *speakerSink) onSamples(pOutput, pInput []byte, frameCount uint32) {
	if pOutput == nil {
		return
	}
	s.mu.Lock()
	n := copy(pOutput, s.buf)
	s.buf = s.buf[n:]
	s.mu.Unlock()
	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	lokutorKey := os.Getenv("LOKUTOR_API_KEY")
	if lokutorKey == "" {
		log.Fatal("Error: LOKUTOR_API_KEY must be set.")
	}
	voice := envOr("LOKUTOR_VOICE", "nova")
	lang := envOr("AGENT_LANGUAGE", "en")
	gatewayURL := envOr("GATEWAY_URL", "http://localhost:8080")
	conversationID := envOr("CONVERSATION_ID", "demo-conversation")
	agentID := envOr("AGENT_ID", "demo-agent")

	logger := stdlibLogger{}
	cfg := edgeworker.LoadConfig(os.LookupEnv, logger)

	tts := ttsprovider.NewLokutorTTS(lokutorKey, voice, lang, sampleRate, numChannels)
	defer tts.Close()

	local := ttscache.NewLocalCache(cfg.TTSCacheLocalMaxItems, cfg.TTSCacheLocalMaxBytes)
	var chain *ttscache.Chain
	if cfg.TTSCacheEnabled && cfg.TTSCacheRedisURL != "" {
		redisCache := ttscache.NewRedisCache(cfg.TTSCacheRedisURL, cfg.TTSCacheRedisTTL, cfg.TTSCacheMaxAudioBytes, logger)
		chain = ttscache.NewChain(redisCache)
	} else {
		chain = ttscache.NewChain()
	}
	facade := ttscache.NewFacade(local, chain)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	backend := collab.NewBackendClient(gatewayURL, httpClient, logger)
	metricsSink := collab.NewMetricsSink(gatewayURL, httpClient, logger)

	sink := &speakerSink{}

	fingerprint := ttscache.Fingerprint{
		Provider: "lokutor",
		Model:    "lokutor-streaming",
		Voice:    voice,
	}

	pronunciations := loadPronunciations()

	session, err := edgeworker.NewSession(conversationID, agentID, tts, facade, fingerprint, cfg, backend, metricsSink, sink, pronunciations, logger)
	if err != nil {
		log.Fatalf("Error: building session: %v", err)
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer mctx.Uninit()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = numChannels
	deviceConfig.SampleRate = sampleRate

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: sink.onSamples,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Configured: TTS=Lokutor voice=%s | Sample Rate: %dHz | Language: %s\n", voice, sampleRate, lang)
	fmt.Println("Edge worker ready. Type a message and press Enter to send it to the backend; Ctrl+C to exit.")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		message := scanner.Text()
		if message == "" {
			continue
		}

		metrics, err := session.RunTurn(ctx, message)
		if err != nil {
			logger.Error("turn failed: %v", err)
			continue
		}
		fmt.Printf("turn complete: segments=%d cache_hits=%d cache_misses=%d\n", metrics.Segments, metrics.CacheHits, metrics.CacheMisses)

		if wav, err := session.ExportLastTurnAudio(); err == nil {
			if err := os.WriteFile("last_turn.wav", wav, 0o644); err != nil {
				logger.Warn("write last_turn.wav: %v", err)
			}
		}
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// loadPronunciations reads WORD=replacement pairs from
// PRONUNCIATION_OVERRIDES (comma-separated), e.g. "SQL=sequel,k8s=kates".
func loadPronunciations() map[string]string {
	raw := os.Getenv("PRONUNCIATION_OVERRIDES")
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range splitNonEmpty(raw, ',') {
		kv := splitNonEmpty(pair, '=')
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = kv[1]
	}
	return out
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if s[start:i] != "" {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if s[start:] != "" {
		out = append(out, s[start:])
	}
	return out
}
