package ir

// Version constants for the node model and the analysis engine.
const (
	// IRVersion is the node-model schema version recorded with stored runs.
	IRVersion = "1"

	// EngineVersion is the typegraph engine version.
	EngineVersion = "0.1.0"
)
