package ir

// Version constants for the engine and its wire formats.
const (
	// EngineVersion is the qgraph engine version.
	EngineVersion = "0.1.0"

	// DocumentVersion is the request document format version.
	DocumentVersion = "1"
)
