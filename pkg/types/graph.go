package types

// NodeType classifies a graph node. The set is open: ingesters for new
// languages may introduce kinds the core has never seen, and the store
// treats the value as an opaque label except where noted.
type NodeType string

const (
	NodeClass       NodeType = "Class"
	NodeInterface   NodeType = "Interface"
	NodeStruct      NodeType = "Struct"
	NodeRecord      NodeType = "Record"
	NodeEnum        NodeType = "Enum"
	NodeMethod      NodeType = "Method"
	NodeProperty    NodeType = "Property"
	NodeField       NodeType = "Field"
	NodeEvent       NodeType = "Event"
	NodeConstructor NodeType = "Constructor"
	NodeNamespace   NodeType = "Namespace"
	NodeProject     NodeType = "Project"
)

// EdgeType classifies a graph edge. Direction is semantically meaningful:
// Implements points from implementor to interface, Calls from caller to
// callee, Contains from container to member.
type EdgeType string

const (
	EdgeImplements EdgeType = "Implements"
	EdgeInherits   EdgeType = "Inherits"
	EdgeCalls      EdgeType = "Calls"
	EdgeReferences EdgeType = "References"
	EdgeContains   EdgeType = "Contains"
	EdgeUses       EdgeType = "Uses"
	EdgeOverrides  EdgeType = "Overrides"
	EdgeDeclares   EdgeType = "Declares"
)

// GraphNode is a typed code symbol in the structural index. Identity is
// supplied by the ingester; the store performs no symbol diffing, so a full
// re-index of a repository clears and rebuilds its node/edge set.
type GraphNode struct {
	ID             string
	NodeType       NodeType
	Name           string
	FullName       string
	FilePath       string
	LineNumber     int
	Signature      string
	Modifiers      string
	RepositoryPath string
	Properties     map[string]string
	Embedding      []float32 // Optional: nodes may also be semantically searchable
}

// GraphEdge is a typed, directed relationship between two nodes. Edges are
// deleted with either endpoint node.
type GraphEdge struct {
	ID         string
	EdgeType   EdgeType
	SourceID   string
	TargetID   string
	Properties map[string]string
}

// memberNodeTypes are the node kinds returned by type-member queries.
var memberNodeTypes = map[NodeType]bool{
	NodeMethod:      true,
	NodeProperty:    true,
	NodeField:       true,
	NodeEvent:       true,
	NodeConstructor: true,
}

// typeKindNodeTypes are the node kinds returned by namespace-content queries.
var typeKindNodeTypes = map[NodeType]bool{
	NodeClass:     true,
	NodeInterface: true,
	NodeStruct:    true,
	NodeRecord:    true,
	NodeEnum:      true,
}

// IsMemberKind reports whether nt is a member-kind node type (method,
// property, field, event, constructor).
func (nt NodeType) IsMemberKind() bool { return memberNodeTypes[nt] }

// IsTypeKind reports whether nt is a type-kind node type (class, interface,
// struct, record, enum).
func (nt NodeType) IsTypeKind() bool { return typeKindNodeTypes[nt] }

// MemberNodeTypes returns the member-kind node types in stable order.
func MemberNodeTypes() []NodeType {
	return []NodeType{NodeMethod, NodeProperty, NodeField, NodeEvent, NodeConstructor}
}

// TypeKindNodeTypes returns the type-kind node types in stable order.
func TypeKindNodeTypes() []NodeType {
	return []NodeType{NodeClass, NodeInterface, NodeStruct, NodeRecord, NodeEnum}
}
