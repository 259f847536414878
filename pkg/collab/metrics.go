package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	metricsConnectTimeout = 400 * time.Millisecond
	metricsReadTimeout    = 600 * time.Millisecond
)

// UsageReport is the body of POST /api/voice/usage.
type UsageReport struct {
	ConversationID string `json:"conversationId"`
	AgentID        string `json:"agentId"`
	Provider       string `json:"provider"`
	Service        string `json:"service"`
	Model          string `json:"model"`
	DurationMs     int64  `json:"durationMs"`
	Characters     int    `json:"characters"`
}

// CacheMetricsReport is the body of POST /api/voice/cache-metrics.
type CacheMetricsReport struct {
	ConversationID string            `json:"conversationId"`
	AgentID        string            `json:"agentId"`
	MessageID      string            `json:"messageId"`
	Provider       string            `json:"provider"`
	Model          string            `json:"model"`
	Voice          string            `json:"voice"`
	Metrics        CacheMetricsBody  `json:"metrics"`
}

// CacheMetricsBody mirrors ttssynth.TurnMetrics on the wire.
type CacheMetricsBody struct {
	Segments            int   `json:"segments"`
	CacheHits           int   `json:"cacheHits"`
	CacheMisses         int   `json:"cacheMisses"`
	CacheHitChars       int   `json:"cacheHitChars"`
	CacheMissChars      int   `json:"cacheMissChars"`
	CacheHitAudioBytes  int64 `json:"cacheHitAudioBytes"`
	CacheMissAudioBytes int64 `json:"cacheMissAudioBytes"`
}

// IsEmpty reports whether the turn produced no cache hits or misses —
// callers must suppress the POST entirely in that case (spec §4.8,
// scenario S6). This deliberately ignores Segments: a turn whose segments
// all failed synthesis still has Segments>0 with CacheHits==CacheMisses==0,
// and that report is suppressed too, matching the original's
// has_data() == (cache_hits + cache_misses) > 0.
func (b CacheMetricsBody) IsEmpty() bool {
	return b.CacheHits == 0 && b.CacheMisses == 0
}

// MetricsSink posts usage and cache-metrics documents to the gateway,
// fire-and-forget with short timeouts; non-2xx responses are logged and
// discarded, never surfaced as an error to the caller.
type MetricsSink struct {
	baseURL string
	http    *http.Client
	log     Logger
}

// NewMetricsSink builds a sink against baseURL.
func NewMetricsSink(baseURL string, httpClient *http.Client, log Logger) *MetricsSink {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = noOpLogger{}
	}
	return &MetricsSink{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, log: log}
}

// PostUsage fire-and-forget POSTs a usage report. Any fault is logged and
// swallowed.
func (s *MetricsSink) PostUsage(ctx context.Context, report UsageReport) {
	s.postJSON(ctx, "/api/voice/usage", report)
}

// PostCacheMetrics fire-and-forget POSTs a cache-metrics report, unless its
// Metrics body records no cache hit and no cache miss (see IsEmpty); such a
// turn is suppressed rather than posted.
func (s *MetricsSink) PostCacheMetrics(ctx context.Context, report CacheMetricsReport) {
	if report.Metrics.IsEmpty() {
		return
	}
	s.postJSON(ctx, "/api/voice/cache-metrics", report)
}

func (s *MetricsSink) postJSON(ctx context.Context, path string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("collab: marshal %s payload: %v", path, err)
		return
	}

	connectCtx, cancel := context.WithTimeout(ctx, metricsConnectTimeout+metricsReadTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(connectCtx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		s.log.Warn("collab: build %s request: %v", path, err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(httpReq)
	if err != nil {
		s.log.Warn("collab: post %s failed: %v", path, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Warn("collab: post %s returned status %s", path, fmt.Sprint(resp.StatusCode))
	}
}
