package engine

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/rivaldy/secondbrain-go/core"
	"github.com/rivaldy/secondbrain-go/tools"
)

// ToolRegistry holds the tool catalog in registration order.
type ToolRegistry struct {
	order  []string
	byName map[string]core.Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{byName: make(map[string]core.Tool)}
}

// Register adds a tool. Re-registering a name replaces it in place.
func (r *ToolRegistry) Register(t core.Tool) {
	if _, exists := r.byName[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.byName[t.Name()] = t
}

// Get looks up a tool by name.
func (r *ToolRegistry) Get(name string) (core.Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// ToAPITools converts the catalog to Anthropic API tool params.
func (r *ToolRegistry) ToAPITools() []anthropic.ToolUnionParam {
	apiTools := make([]anthropic.ToolUnionParam, 0, len(r.order))
	for _, name := range r.order {
		t := r.byName[name]
		schema := t.InputSchema()
		apiTools = append(apiTools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name(),
				Description: anthropic.String(t.Description()),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tools.Properties(schema),
					Required:   tools.Required(schema),
				},
			},
		})
	}
	return apiTools
}
