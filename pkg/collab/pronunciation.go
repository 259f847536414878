package collab

import "strings"

// PronunciationReplacer rewrites configured words in a streaming
// text-delta feed before it reaches the sentence segmenter, so the TTS
// engine pronounces them the way the caller intends (brand names,
// acronyms, ...). It buffers until the last safe word boundary so a word
// is never split across two Feed calls, and flushes any remainder on
// EndInput. Matching is per whitespace-separated word; multi-word phrases
// are not matched.
type PronunciationReplacer struct {
	replacements map[string]string
	buf          strings.Builder
}

// NewPronunciationReplacer builds a replacer from a case-insensitive
// word -> replacement map. Each key is compared with a single word stripped
// of surrounding punctuation, so a key containing whitespace never matches.
func NewPronunciationReplacer(replacements map[string]string) *PronunciationReplacer {
	normalized := make(map[string]string, len(replacements))
	for k, v := range replacements {
		normalized[strings.ToLower(k)] = v
	}
	return &PronunciationReplacer{replacements: normalized}
}

// Feed accepts a text delta and returns the portion now safe to forward —
// everything up to the last whitespace boundary, with replacements
// applied. The remainder (a possibly-partial word) stays buffered.
func (p *PronunciationReplacer) Feed(delta string) string {
	if len(p.replacements) == 0 {
		return delta
	}
	p.buf.WriteString(delta)
	text := p.buf.String()

	lastSpace := strings.LastIndexAny(text, " \t\n")
	if lastSpace < 0 {
		return ""
	}

	safe := text[:lastSpace+1]
	p.buf.Reset()
	p.buf.WriteString(text[lastSpace+1:])
	return p.apply(safe)
}

// EndInput flushes and returns whatever partial word remains buffered.
func (p *PronunciationReplacer) EndInput() string {
	tail := p.buf.String()
	p.buf.Reset()
	if tail == "" {
		return ""
	}
	return p.apply(tail)
}

func (p *PronunciationReplacer) apply(text string) string {
	words := strings.Fields(text)
	// Fields collapses whitespace; rebuild with single spaces, which is
	// acceptable since the segmenter normalizes whitespace anyway.
	for i, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool { return !isWordRune(r) })
		lower := strings.ToLower(trimmed)
		if repl, ok := p.replacements[lower]; ok && trimmed != "" {
			words[i] = strings.Replace(w, trimmed, repl, 1)
		}
	}
	out := strings.Join(words, " ")
	if strings.HasSuffix(text, " ") || strings.HasSuffix(text, "\t") || strings.HasSuffix(text, "\n") {
		out += " "
	}
	return out
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '\''
}
