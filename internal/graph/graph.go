package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/codeatlas/internal/storage"
	"github.com/dshills/codeatlas/pkg/types"
)

// Service is the structural graph store. Mutations are staged: AddNode and
// AddEdge buffer in memory and only become durable on SaveChanges, which
// commits the whole pending set in one transaction. This lets an ingester
// build a repository's entire graph before anything is visible to queries.
type Service struct {
	db *storage.Store

	// saveMu serializes SaveChanges so two concurrent commits cannot
	// trim each other's unsaved suffix.
	saveMu sync.Mutex

	mu           sync.Mutex
	pendingNodes []types.GraphNode
	pendingEdges []types.GraphEdge
}

// New creates a graph service over the given store.
func New(db *storage.Store) *Service {
	return &Service{db: db}
}

// AddNode stages a node for the next SaveChanges.
func (s *Service) AddNode(node types.GraphNode) error {
	if node.ID == "" {
		return fmt.Errorf("graph node %q has no id", node.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingNodes = append(s.pendingNodes, node)
	return nil
}

// AddEdge stages an edge for the next SaveChanges.
func (s *Service) AddEdge(edge types.GraphEdge) error {
	if edge.ID == "" {
		return fmt.Errorf("graph edge %s->%s has no id", edge.SourceID, edge.TargetID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingEdges = append(s.pendingEdges, edge)
	return nil
}

// AddResult stages a whole ingester result set.
func (s *Service) AddResult(nodes []types.GraphNode, edges []types.GraphEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingNodes = append(s.pendingNodes, nodes...)
	s.pendingEdges = append(s.pendingEdges, edges...)
}

// Pending returns the number of staged nodes and edges.
func (s *Service) Pending() (nodes, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingNodes), len(s.pendingEdges)
}

// Discard drops all staged mutations without saving.
func (s *Service) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingNodes = nil
	s.pendingEdges = nil
}

// SaveChanges commits every currently staged node and edge in a single
// transaction. On success only the committed prefix is dropped: anything
// staged concurrently while the save ran stays pending for the next
// commit. On failure the buffers are retained so the caller may retry.
func (s *Service) SaveChanges(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	nodes := s.pendingNodes[:len(s.pendingNodes):len(s.pendingNodes)]
	edges := s.pendingEdges[:len(s.pendingEdges):len(s.pendingEdges)]
	s.mu.Unlock()

	if len(nodes) == 0 && len(edges) == 0 {
		return nil
	}

	if err := s.db.SaveGraph(ctx, nodes, edges); err != nil {
		return fmt.Errorf("failed to save graph changes: %w", err)
	}

	s.mu.Lock()
	s.pendingNodes = append([]types.GraphNode(nil), s.pendingNodes[len(nodes):]...)
	s.pendingEdges = append([]types.GraphEdge(nil), s.pendingEdges[len(edges):]...)
	s.mu.Unlock()
	return nil
}

// ClearRepository removes a repository's entire node and edge set.
func (s *Service) ClearRepository(ctx context.Context, repositoryPath string) error {
	return s.db.ClearRepository(ctx, repositoryPath)
}

// FindImplementations returns the types implementing the named interface.
func (s *Service) FindImplementations(ctx context.Context, interfaceName, repositoryPath string) ([]types.GraphNode, error) {
	return s.db.FindImplementations(ctx, interfaceName, repositoryPath)
}

// FindDerivedTypes returns the types inheriting from the named base type.
func (s *Service) FindDerivedTypes(ctx context.Context, baseName, repositoryPath string) ([]types.GraphNode, error) {
	return s.db.FindDerivedTypes(ctx, baseName, repositoryPath)
}

// FindCallers returns the nodes calling the named method, optionally
// restricted to methods contained in containingType.
func (s *Service) FindCallers(ctx context.Context, methodName, containingType, repositoryPath string) ([]types.GraphNode, error) {
	return s.db.FindCallers(ctx, methodName, containingType, repositoryPath)
}

// FindDependencies returns the nodes the named method calls or uses.
func (s *Service) FindDependencies(ctx context.Context, methodName, containingType, repositoryPath string) ([]types.GraphNode, error) {
	return s.db.FindDependencies(ctx, methodName, containingType, repositoryPath)
}

// GetTypeMembers returns the member-kind nodes contained in the named type.
func (s *Service) GetTypeMembers(ctx context.Context, typeName, repositoryPath string) ([]types.GraphNode, error) {
	return s.db.TypeMembers(ctx, typeName, repositoryPath)
}

// GetTypesInNamespace returns the type-kind nodes declared by the named
// namespace.
func (s *Service) GetTypesInNamespace(ctx context.Context, namespaceName, repositoryPath string) ([]types.GraphNode, error) {
	return s.db.TypesInNamespace(ctx, namespaceName, repositoryPath)
}

// GetProjectReferences returns the nodes referenced by the named project.
func (s *Service) GetProjectReferences(ctx context.Context, projectName, repositoryPath string) ([]types.GraphNode, error) {
	return s.db.ProjectReferences(ctx, projectName, repositoryPath)
}

// FindNodes performs fuzzy, case-insensitive node lookup by simple or
// qualified name.
func (s *Service) FindNodes(ctx context.Context, name string, nodeType types.NodeType, repositoryPath string) ([]types.GraphNode, error) {
	return s.db.FindNodes(ctx, name, nodeType, repositoryPath)
}

// GetStats returns node and edge counts grouped by type.
func (s *Service) GetStats(ctx context.Context, repositoryPath string) (*storage.GraphStats, error) {
	return s.db.GraphStatistics(ctx, repositoryPath)
}
