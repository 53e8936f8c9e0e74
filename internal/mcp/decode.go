package mcp

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// decode converts a tool call's arguments into the handler's request type.
// The arguments arrive as a generic map; a round trip through JSON applies
// the request's field tags and rejects values of the wrong type (a number
// where a node id is expected, say) with an error naming the field.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var in T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return in, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return in, fmt.Errorf("argument %q must be %s, got %s", typeErr.Field, typeErr.Type.Kind(), typeErr.Value)
		}
		return in, fmt.Errorf("invalid arguments: %w", err)
	}
	return in, nil
}
