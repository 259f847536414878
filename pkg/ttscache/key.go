// Package ttscache implements the two-tier (local LRU + remote chain)
// audio cache that sits between the sentence segmenter and the wrapped
// TTS provider: segments are looked up by a stable key derived from their
// normalized text and the rendering fingerprint, so repeated phrases never
// pay for synthesis twice.
package ttscache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Fingerprint identifies a unique TTS rendering configuration. Two
// segments with the same normalized text but different fingerprints never
// share a cache entry.
type Fingerprint struct {
	Provider    string
	Model       string
	Voice       string
	SampleRate  int
	NumChannels int
}

// Normalize collapses all runs of whitespace in s to a single space and
// strips leading/trailing whitespace. It is idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// IsCacheable reports whether text (after normalization) is eligible for
// caching: non-empty and no longer than maxTextChars runes.
func IsCacheable(text string, maxTextChars int) bool {
	n := Normalize(text)
	if n == "" {
		return false
	}
	return len([]rune(n)) <= maxTextChars
}

// BuildKey derives a stable cache key of the form "<prefix>:<hex-digest>"
// from the normalized text and fingerprint. It is a pure function: equal
// (normalized text, fingerprint) pairs always produce a byte-identical key
// across processes and hosts. The payload is hand-canonicalized rather
// than run through encoding/json: the wire format requires mapping keys
// sorted lexicographically and non-ASCII runes \uXXXX-escaped, which
// matches how the upstream Python reference builds the same key
// (json.dumps(..., sort_keys=True)) but is not encoding/json's default
// behavior (it leaves multi-byte UTF-8 runes unescaped).
func BuildKey(prefix, text string, fp Fingerprint) string {
	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(`"fp":{`)
	b.WriteString(`"model":`)
	writeJSONString(&b, fp.Model)
	b.WriteString(`,"num_channels":`)
	b.WriteString(strconv.Itoa(fp.NumChannels))
	b.WriteString(`,"provider":`)
	writeJSONString(&b, fp.Provider)
	b.WriteString(`,"sample_rate":`)
	b.WriteString(strconv.Itoa(fp.SampleRate))
	b.WriteString(`,"voice":`)
	writeJSONString(&b, fp.Voice)
	b.WriteString(`},"text":`)
	writeJSONString(&b, Normalize(text))
	b.WriteByte('}')

	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(sum[:]))
}

// writeJSONString appends the canonical-JSON quoted form of s to b:
// standard JSON control-character escaping plus \uXXXX escaping of every
// rune outside the printable ASCII range (ensure_ascii semantics).
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r >= 0x20 && r < 0x7f {
				b.WriteRune(r)
				continue
			}
			if r > 0xffff {
				// encode as a UTF-16 surrogate pair
				r -= 0x10000
				hi := 0xd800 + (r >> 10)
				lo := 0xdc00 + (r & 0x3ff)
				fmt.Fprintf(b, `\u%04x\u%04x`, hi, lo)
				continue
			}
			fmt.Fprintf(b, `\u%04x`, r)
		}
	}
	b.WriteByte('"')
}
