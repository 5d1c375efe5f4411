package llms

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Tool is a function the model may call during generation. Parameters is a
// JSON schema describing the arguments object.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema

	execute func(arguments string) (string, error)
}

// NewTool declares a tool whose arguments unmarshal into T. The parameter
// schema is reflected from T's json tags.
func NewTool[T any](name, description string, execute func(T) (string, error)) Tool {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	var zero T

	return Tool{
		Name:        name,
		Description: description,
		Parameters:  reflector.Reflect(zero),
		execute: func(arguments string) (string, error) {
			var parameters T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &parameters); err != nil {
					return "", fmt.Errorf("failed to unmarshal tool arguments: %w", err)
				}
			}
			return execute(parameters)
		},
	}
}

// Execute runs the tool against raw JSON arguments.
func (t Tool) Execute(arguments string) (string, error) {
	if t.execute == nil {
		return "", fmt.Errorf("tool %q has no executor", t.Name)
	}
	return t.execute(arguments)
}
