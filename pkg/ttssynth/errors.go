package ttssynth

import "errors"

var (
	// ErrNilWrappedTTS is returned by NewAdapter when tts is nil.
	ErrNilWrappedTTS = errors.New("ttssynth: wrapped tts provider is nil")

	// ErrNilFacade is returned by NewAdapter when the cache facade is nil.
	ErrNilFacade = errors.New("ttssynth: cache facade is nil")
)
