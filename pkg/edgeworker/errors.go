package edgeworker

import "errors"

var (
	// ErrNilWrappedTTS is returned when a session is constructed without a
	// wrapped TTS provider.
	ErrNilWrappedTTS = errors.New("wrapped tts provider is nil")

	// ErrNilBackendClient is returned when a session is constructed without
	// a backend chat client.
	ErrNilBackendClient = errors.New("backend chat client is nil")

	// ErrNoTurnInProgress is returned when ExportLastTurnAudio is called
	// before any turn has completed.
	ErrNoTurnInProgress = errors.New("no turn audio recorded yet")
)
