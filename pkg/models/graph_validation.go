package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// graphSchema is the structural contract for externally authored graphs.
// Referential checks (unique node IDs, edges pointing at real nodes) are
// enforced separately in Validate since JSON Schema cannot express them.
var graphSchema = map[string]any{
	"type":     "object",
	"required": []string{"nodes", "edges"},
	"properties": map[string]any{
		"nodes": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"id", "type"},
				"properties": map[string]any{
					"id":   map[string]any{"type": "string", "minLength": 1},
					"type": map[string]any{"type": "string", "minLength": 1},
					"data": map[string]any{"type": "object"},
				},
			},
		},
		"edges": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"source", "target"},
				"properties": map[string]any{
					"source":       map[string]any{"type": "string", "minLength": 1},
					"target":       map[string]any{"type": "string", "minLength": 1},
					"sourceHandle": map[string]any{"type": "string"},
					"label":        map[string]any{"type": "string"},
				},
			},
		},
	},
}

// Validate checks the graph against the structural schema and the
// referential invariants the engine depends on.
func (g *Graph) Validate() error {
	// Nil slices marshal as null, which the schema would reject; a graph
	// with no edges (or no nodes yet) is still structurally valid.
	normalized := Graph{Nodes: g.Nodes, Edges: g.Edges}
	if normalized.Nodes == nil {
		normalized.Nodes = []*Node{}
	}

	if normalized.Edges == nil {
		normalized.Edges = []*Edge{}
	}

	raw, err := json.Marshal(&normalized)
	if err != nil {
		return fmt.Errorf("failed to marshal graph for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewGoLoader(graphSchema)
	dataLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate graph: %w", err)
	}

	if !result.Valid() {
		var descriptions []string
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("invalid graph: %s", strings.Join(descriptions, "; "))
	}

	seen := make(map[string]bool, len(g.Nodes))

	for _, node := range g.Nodes {
		if seen[node.ID] {
			return fmt.Errorf("invalid graph: duplicate node id %q", node.ID)
		}

		seen[node.ID] = true
	}

	for _, edge := range g.Edges {
		if !seen[edge.Source] {
			return fmt.Errorf("invalid graph: edge references unknown source node %q", edge.Source)
		}

		if !seen[edge.Target] {
			return fmt.Errorf("invalid graph: edge references unknown target node %q", edge.Target)
		}
	}

	return nil
}
