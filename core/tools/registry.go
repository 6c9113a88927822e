package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ada-assistant/ada-core/core/llms"
	"github.com/invopop/jsonschema"
	"golang.org/x/sync/semaphore"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxInFlight = 3
)

// Tool is one registered capability the model may request. Its input schema
// is reflected from the handler's parameter type at construction.
type Tool struct {
	Name        string
	Description string

	parameters  map[string]any
	timeout     time.Duration
	maxInFlight int64

	validate func(arguments json.RawMessage) error
	run      func(ctx context.Context, arguments json.RawMessage) (string, error)

	sem *semaphore.Weighted
}

type ToolOption func(*Tool)

// WithTimeout overrides the per-call deadline.
func WithTimeout(timeout time.Duration) ToolOption {
	return func(t *Tool) {
		if timeout > 0 {
			t.timeout = timeout
		}
	}
}

// WithMaxInFlight overrides how many calls to this tool may run concurrently.
// The bound is per tool name, so one slow provider cannot starve the others.
func WithMaxInFlight(max int64) ToolOption {
	return func(t *Tool) {
		if max > 0 {
			t.maxInFlight = max
		}
	}
}

// New builds a tool whose arguments unmarshal into P. Malformed arguments are
// rejected before the handler runs.
func New[P any](name, description string, handler func(ctx context.Context, params P) (string, error), opts ...ToolOption) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(new(P))
	schema.Version = ""

	tool := Tool{
		Name:        name,
		Description: description,
		parameters:  schemaToMap(schema),
		timeout:     defaultTimeout,
		maxInFlight: defaultMaxInFlight,
		validate: func(arguments json.RawMessage) error {
			var params P
			decoder := json.NewDecoder(bytes.NewReader(arguments))
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&params); err != nil {
				return &ValidationError{Tool: name, Err: err}
			}
			return nil
		},
		run: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			var params P
			if err := json.Unmarshal(arguments, &params); err != nil {
				return "", &ValidationError{Tool: name, Err: err}
			}
			return handler(ctx, params)
		},
	}

	for _, opt := range opts {
		opt(&tool)
	}
	tool.sem = semaphore.NewWeighted(tool.maxInFlight)

	return tool
}

func schemaToMap(schema *jsonschema.Schema) map[string]any {
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}

	var parameters map[string]any
	if err := json.Unmarshal(raw, &parameters); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(parameters, "$schema")
	return parameters
}

// Declaration exposes the tool to the generative backend.
func (t Tool) Declaration() llms.ToolDeclaration {
	return llms.ToolDeclaration{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.parameters,
	}
}

// Registry is the static name → tool mapping, validated at construction.
// Unknown names at dispatch time are a validation failure, not a dispatch
// failure.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	registry := &Registry{tools: map[string]Tool{}}
	for _, tool := range tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, ok := registry.tools[tool.Name]; ok {
			return nil, fmt.Errorf("duplicate tool name: %s", tool.Name)
		}
		registry.tools[tool.Name] = tool
		registry.order = append(registry.order, tool.Name)
	}
	return registry, nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return Tool{}, false
	}

	tool, ok := r.tools[name]
	return tool, ok
}

// Declarations lists all tools in registration order.
func (r *Registry) Declarations() []llms.ToolDeclaration {
	if r == nil {
		return nil
	}

	declarations := make([]llms.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		declarations = append(declarations, r.tools[name].Declaration())
	}
	return declarations
}
