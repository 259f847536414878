package collab

import "strings"

// StripVoiceMarkers removes bracketed stage/emotion markers such as
// "[happy]" or "[pause]" from backend text deltas before they reach the
// segmenter. It operates delta-by-delta and is safe to call on a
// one-bracket-spans-two-deltas boundary: an unterminated "[" at the end of
// a delta is held back until a later delta closes it, or until EndInput
// returns it verbatim.
type StripVoiceMarkers struct {
	pending string // holds a "[" prefix not yet confirmed as a marker
}

// Feed strips complete bracketed markers from delta and returns the
// cleaned text.
func (s *StripVoiceMarkers) Feed(delta string) string {
	text := s.pending + delta
	s.pending = ""

	var out strings.Builder
	for {
		start := strings.IndexByte(text, '[')
		if start < 0 {
			out.WriteString(text)
			break
		}
		out.WriteString(text[:start])
		end := strings.IndexByte(text[start:], ']')
		if end < 0 {
			// incomplete marker; hold it back for the next delta
			s.pending = text[start:]
			break
		}
		text = text[start+end+1:]
	}
	return out.String()
}

// EndInput returns any held-back, never-terminated bracket content
// verbatim — it was not a marker after all.
func (s *StripVoiceMarkers) EndInput() string {
	tail := s.pending
	s.pending = ""
	return tail
}
