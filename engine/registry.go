// Package engine drives the conversation loop: one model round with the
// tool catalog, tool execution, an optional vision follow-up turn, and a
// final model round.
package engine

import (
	"sync"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/moneylens/moneylens/core"
)

// ToolRegistry holds the tool definitions sent to the model. Definitions
// are registered once at startup; the registered order is preserved so the
// model sees the same catalog on every round.
type ToolRegistry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]core.ToolDefinition
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]core.ToolDefinition),
	}
}

// Register adds a tool definition to the registry.
func (r *ToolRegistry) Register(def core.ToolDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[def.Name]; !ok {
		r.order = append(r.order, def.Name)
	}
	r.tools[def.Name] = def
}

// RegisterAll adds multiple tool definitions to the registry.
func (r *ToolRegistry) RegisterAll(defs ...core.ToolDefinition) {
	for _, def := range defs {
		r.Register(def)
	}
}

// Get retrieves a tool definition by name.
func (r *ToolRegistry) Get(name string) (core.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns all registered tool names in registration order.
func (r *ToolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// ToAPITools converts the registered definitions to Claude API format, in
// registration order.
func (r *ToolRegistry) ToAPITools() []anthropic.ToolUnionParam {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]anthropic.ToolUnionParam, 0, len(r.order))
	for _, name := range r.order {
		def := r.tools[name]
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: toInputSchema(def.InputSchema),
			},
		})
	}
	return tools
}

// toInputSchema lifts an object schema built by the tools package into the
// API parameter type.
func toInputSchema(schema map[string]interface{}) anthropic.ToolInputSchemaParam {
	param := anthropic.ToolInputSchemaParam{
		Properties: schema["properties"],
	}
	if required, ok := schema["required"].([]string); ok {
		param.Required = required
	}
	return param
}
