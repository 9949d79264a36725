package ir

// Version constants for the declaration IR and the tool.
const (
	// IRVersion is the declaration IR schema version. It participates in
	// the decl hash, so bumping it invalidates every recorded identity.
	IRVersion = "1"

	// ToolVersion is the fixpoint tool version.
	ToolVersion = "0.1.0"
)
