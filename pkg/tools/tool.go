package tools

import (
	"context"
	"encoding/json"
)

// Tool is the interface for all tools exposed to an agent.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema describing the tool's arguments.
	Parameters() json.RawMessage
	Call(ctx context.Context, args map[string]any) (string, error)
}
