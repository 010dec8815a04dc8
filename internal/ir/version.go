package ir

// Version constants for the graph IR and the planir tool.
const (
	// IRVersion is the serialized graph schema version.
	IRVersion = "1"

	// ToolVersion is the planir release version.
	ToolVersion = "0.1.0"
)
