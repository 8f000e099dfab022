package models

// NodeType is the authored type of a graph node.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeCondition NodeType = "condition"
	NodeTypeDelay     NodeType = "delay"
	NodeTypeWaitEvent NodeType = "wait_event"

	// NodeTypeFunnel is the alias the graph builder UI emits for generic
	// action nodes. Normalized by EffectiveType.
	NodeTypeFunnel NodeType = "funnelNode"
)

// Action sub-types carried in node data under "actionType".
const (
	ActionTypeEmail = "email"
	ActionTypeTag   = "tag"
	ActionTypeDelay = "delay"
)

// Node is a unit of work in an automation graph. Data is the authored
// configuration and is interpreted by the executor for the node kind.
type Node struct {
	ID   string         `json:"id"   validate:"required"`
	Type NodeType       `json:"type" validate:"required"`
	Data map[string]any `json:"data"`
}

// Edge is a directed transition between two nodes. SourceHandle or Label
// carries the condition outcome ("true"/"false") for edges leaving a
// condition node.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// Graph is the node/edge structure of an automation. Node IDs are unique
// within a graph and edges reference existing nodes; Validate enforces both.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// FindNode returns the node with the given ID, or nil when the graph does
// not contain it (stale executions may point at edited-away nodes).
func (g *Graph) FindNode(nodeID string) *Node {
	for _, node := range g.Nodes {
		if node.ID == nodeID {
			return node
		}
	}

	return nil
}

// TriggerNode returns the graph's trigger node, or nil when absent.
func (g *Graph) TriggerNode() *Node {
	for _, node := range g.Nodes {
		if node.Type == NodeTypeTrigger {
			return node
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (g *Graph) OutgoingEdges(nodeID string) []*Edge {
	var edges []*Edge

	for _, edge := range g.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// EffectiveType normalizes the node type for executor dispatch: generic
// action nodes (and the UI's funnelNode alias) route by their actionType
// sub-discriminator, except triggers which stay pass-through.
func (n *Node) EffectiveType() NodeType {
	nodeType := n.Type
	if nodeType == NodeTypeFunnel {
		if n.ActionType() == "trigger" {
			return NodeTypeTrigger
		}

		return NodeTypeAction
	}

	return nodeType
}

// ActionType returns the action sub-type from node data, or "".
func (n *Node) ActionType() string {
	actionType, _ := n.Data["actionType"].(string)

	return actionType
}

// DataString returns a string field from node data, or "" when absent or
// not a string.
func (n *Node) DataString(key string) string {
	value, _ := n.Data[key].(string)

	return value
}

// DataNumber returns a numeric field from node data. Graph JSON decodes
// numbers as float64 but authored graphs occasionally carry ints.
func (n *Node) DataNumber(key string) float64 {
	switch value := n.Data[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	case int64:
		return float64(value)
	default:
		return 0
	}
}

// Label returns the authored display label, falling back to the node ID.
func (n *Node) Label() string {
	if label := n.DataString("label"); label != "" {
		return label
	}

	return n.ID
}

// Outcome returns the branch name an edge is guarded by, preferring the
// source handle over the label.
func (e *Edge) Outcome() string {
	if e.SourceHandle != "" {
		return e.SourceHandle
	}

	return e.Label
}
