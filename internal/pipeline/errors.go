package pipeline

import "github.com/rotisserie/eris"

// Error taxonomy. Configuration and source-load failures abort a pipeline
// invocation before any remote call; row and batch failures are recovered
// locally and only counted; out-of-enum AI values are silently coerced.
var (
	// ErrConfiguration marks a fatal configuration problem: missing
	// required header, missing API key, invalid threshold.
	ErrConfiguration = eris.New("pipeline: configuration error")

	// ErrSourceLoad marks a fatal source problem: unsupported document
	// type, unreadable file, empty table set.
	ErrSourceLoad = eris.New("pipeline: source load error")
)
