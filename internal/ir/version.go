package ir

const (
	// IRVersion identifies the JSON encoding of values and definitions.
	// It is stored alongside every journaled frame and definition set.
	IRVersion = "1"

	// EngineVersion is reported by the CLI's --version flag.
	EngineVersion = "0.1.0"
)
