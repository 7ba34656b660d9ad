package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/codeatlas/pkg/types"
)

// GraphStats summarizes the structural index. Edge counts are attributed
// via their source node's repository, since edges carry no repository
// column of their own.
type GraphStats struct {
	NodesByType map[types.NodeType]int
	EdgesByType map[types.EdgeType]int
}

// SaveGraph persists nodes then edges in one transaction. Existing rows
// with the same id are replaced, so an ingester that re-supplies identity
// deterministically updates in place.
func (s *Store) SaveGraph(ctx context.Context, nodes []types.GraphNode, edges []types.GraphEdge) error {
	if len(nodes) == 0 && len(edges) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range nodes {
		if err := insertNode(ctx, tx, &nodes[i]); err != nil {
			return err
		}
	}
	for i := range edges {
		if err := insertEdge(ctx, tx, &edges[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph save: %w", err)
	}
	return nil
}

func insertNode(ctx context.Context, tx *sql.Tx, node *types.GraphNode) error {
	if node.ID == "" {
		return fmt.Errorf("graph node %q has no id", node.Name)
	}

	props, err := marshalProps(node.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal node properties: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO graph_nodes (id, node_type, name, full_name, file_path, line_number, signature, modifiers, repository_path, properties, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			node_type = excluded.node_type,
			name = excluded.name,
			full_name = excluded.full_name,
			file_path = excluded.file_path,
			line_number = excluded.line_number,
			signature = excluded.signature,
			modifiers = excluded.modifiers,
			repository_path = excluded.repository_path,
			properties = excluded.properties,
			embedding = excluded.embedding`,
		node.ID, string(node.NodeType), node.Name, node.FullName, node.FilePath,
		node.LineNumber, node.Signature, node.Modifiers, node.RepositoryPath,
		props, serializeVector(node.Embedding))
	if err != nil {
		return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
	}
	return nil
}

func insertEdge(ctx context.Context, tx *sql.Tx, edge *types.GraphEdge) error {
	if edge.ID == "" {
		return fmt.Errorf("graph edge %s->%s has no id", edge.SourceID, edge.TargetID)
	}

	props, err := marshalProps(edge.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal edge properties: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO graph_edges (id, edge_type, source_id, target_id, properties)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			edge_type = excluded.edge_type,
			source_id = excluded.source_id,
			target_id = excluded.target_id,
			properties = excluded.properties`,
		edge.ID, string(edge.EdgeType), edge.SourceID, edge.TargetID, props)
	if err != nil {
		return fmt.Errorf("failed to insert edge %s: %w", edge.ID, err)
	}
	return nil
}

// ClearRepository deletes a repository's entire node/edge set. Edges go
// first so referential integrity holds without leaning on cascade; edges
// touching an in-scope node from either end are removed.
func (s *Store) ClearRepository(ctx context.Context, repositoryPath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM graph_edges WHERE source_id IN (SELECT id FROM graph_nodes WHERE repository_path = ?)
		   OR target_id IN (SELECT id FROM graph_nodes WHERE repository_path = ?)`,
		repositoryPath, repositoryPath); err != nil {
		return fmt.Errorf("failed to clear repository edges: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM graph_nodes WHERE repository_path = ?", repositoryPath); err != nil {
		return fmt.Errorf("failed to clear repository nodes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit repository clear: %w", err)
	}
	return nil
}

// nodeColumns is the select list every node query shares.
const nodeColumns = "n.id, n.node_type, n.name, n.full_name, n.file_path, n.line_number, n.signature, n.modifiers, n.repository_path, n.properties"

// nameMatch builds a case-insensitive match on name or full name for the
// aliased node table. Appends two copies of name to args.
func nameMatch(alias string, name string, args []interface{}) (string, []interface{}) {
	cond := fmt.Sprintf("(LOWER(%s.name) = LOWER(?) OR LOWER(%s.full_name) = LOWER(?))", alias, alias)
	return cond, append(args, name, name)
}

// repoScope appends an optional repository filter for the aliased table.
func repoScope(alias, repositoryPath, query string, args []interface{}) (string, []interface{}) {
	if repositoryPath == "" {
		return query, args
	}
	return query + fmt.Sprintf(" AND %s.repository_path = ?", alias), append(args, repositoryPath)
}

// FindImplementations returns nodes with an outgoing Implements edge to a
// node matching interfaceName.
func (s *Store) FindImplementations(ctx context.Context, interfaceName, repositoryPath string) ([]types.GraphNode, error) {
	return s.findEdgeSources(ctx, interfaceName, repositoryPath, types.EdgeImplements)
}

// FindDerivedTypes returns nodes with an outgoing Inherits edge to a node
// matching baseClassName.
func (s *Store) FindDerivedTypes(ctx context.Context, baseClassName, repositoryPath string) ([]types.GraphNode, error) {
	return s.findEdgeSources(ctx, baseClassName, repositoryPath, types.EdgeInherits)
}

func (s *Store) findEdgeSources(ctx context.Context, targetName, repositoryPath string, edgeType types.EdgeType) ([]types.GraphNode, error) {
	var args []interface{}
	match, args := nameMatch("t", targetName, args)
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM graph_nodes n
		JOIN graph_edges e ON e.source_id = n.id
		JOIN graph_nodes t ON e.target_id = t.id
		WHERE e.edge_type = '%s' AND %s`, nodeColumns, edgeType, match)
	query, args = repoScope("n", repositoryPath, query, args)

	return s.queryNodes(ctx, query, args...)
}

// FindCallers returns nodes with outgoing Calls edges to method nodes
// matching methodName, optionally restricted to methods contained in
// containingType.
func (s *Store) FindCallers(ctx context.Context, methodName, containingType, repositoryPath string) ([]types.GraphNode, error) {
	var args []interface{}
	match, args := nameMatch("m", methodName, args)
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM graph_nodes n
		JOIN graph_edges e ON e.source_id = n.id
		JOIN graph_nodes m ON e.target_id = m.id
		WHERE e.edge_type = '%s' AND %s`, nodeColumns, types.EdgeCalls, match)

	if containingType != "" {
		typeMatch, a := nameMatch("t", containingType, args)
		args = a
		query += fmt.Sprintf(`
			AND EXISTS (
				SELECT 1 FROM graph_edges c
				JOIN graph_nodes t ON c.source_id = t.id
				WHERE c.edge_type = '%s' AND c.target_id = m.id AND %s
			)`, types.EdgeContains, typeMatch)
	}

	query, args = repoScope("n", repositoryPath, query, args)
	return s.queryNodes(ctx, query, args...)
}

// FindDependencies returns nodes reached via Calls or Uses edges from the
// method matching methodName (optionally scoped to containingType) - the
// inverse direction of FindCallers.
func (s *Store) FindDependencies(ctx context.Context, methodName, containingType, repositoryPath string) ([]types.GraphNode, error) {
	var args []interface{}
	match, args := nameMatch("m", methodName, args)
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM graph_nodes n
		JOIN graph_edges e ON e.target_id = n.id
		JOIN graph_nodes m ON e.source_id = m.id
		WHERE e.edge_type IN ('%s', '%s') AND %s`,
		nodeColumns, types.EdgeCalls, types.EdgeUses, match)

	if containingType != "" {
		typeMatch, a := nameMatch("t", containingType, args)
		args = a
		query += fmt.Sprintf(`
			AND EXISTS (
				SELECT 1 FROM graph_edges c
				JOIN graph_nodes t ON c.source_id = t.id
				WHERE c.edge_type = '%s' AND c.target_id = m.id AND %s
			)`, types.EdgeContains, typeMatch)
	}

	query, args = repoScope("m", repositoryPath, query, args)
	return s.queryNodes(ctx, query, args...)
}

// TypeMembers returns member-kind nodes reached via Contains edges from
// the type matching typeName.
func (s *Store) TypeMembers(ctx context.Context, typeName, repositoryPath string) ([]types.GraphNode, error) {
	var args []interface{}
	match, args := nameMatch("t", typeName, args)
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM graph_nodes n
		JOIN graph_edges e ON e.target_id = n.id
		JOIN graph_nodes t ON e.source_id = t.id
		WHERE e.edge_type = '%s' AND %s AND n.node_type IN (%s)`,
		nodeColumns, types.EdgeContains, match, nodeTypeList(types.MemberNodeTypes()))
	query, args = repoScope("n", repositoryPath, query, args)

	return s.queryNodes(ctx, query, args...)
}

// TypesInNamespace returns type-kind nodes reached via Declares edges from
// a namespace node matching namespaceName.
func (s *Store) TypesInNamespace(ctx context.Context, namespaceName, repositoryPath string) ([]types.GraphNode, error) {
	var args []interface{}
	match, args := nameMatch("ns", namespaceName, args)
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM graph_nodes n
		JOIN graph_edges e ON e.target_id = n.id
		JOIN graph_nodes ns ON e.source_id = ns.id
		WHERE e.edge_type = '%s' AND ns.node_type = '%s' AND %s AND n.node_type IN (%s)`,
		nodeColumns, types.EdgeDeclares, types.NodeNamespace, match, nodeTypeList(types.TypeKindNodeTypes()))
	query, args = repoScope("n", repositoryPath, query, args)

	return s.queryNodes(ctx, query, args...)
}

// ProjectReferences returns nodes reached via References edges from a
// Project node matching projectName.
func (s *Store) ProjectReferences(ctx context.Context, projectName, repositoryPath string) ([]types.GraphNode, error) {
	var args []interface{}
	match, args := nameMatch("p", projectName, args)
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM graph_nodes n
		JOIN graph_edges e ON e.target_id = n.id
		JOIN graph_nodes p ON e.source_id = p.id
		WHERE e.edge_type = '%s' AND p.node_type = '%s' AND %s`,
		nodeColumns, types.EdgeReferences, types.NodeProject, match)
	query, args = repoScope("p", repositoryPath, query, args)

	return s.queryNodes(ctx, query, args...)
}

// FindNodes performs fuzzy node lookup: exact name, exact full name, or a
// full name ending in ".name", all case-insensitive.
func (s *Store) FindNodes(ctx context.Context, name string, nodeType types.NodeType, repositoryPath string) ([]types.GraphNode, error) {
	lower := strings.ToLower(name)
	query := fmt.Sprintf(`
		SELECT %s FROM graph_nodes n
		WHERE (LOWER(n.name) = ? OR LOWER(n.full_name) = ? OR LOWER(n.full_name) LIKE ? ESCAPE '\')`,
		nodeColumns)
	args := []interface{}{lower, lower, "%." + escapeLike(lower)}

	if nodeType != "" {
		query += " AND n.node_type = ?"
		args = append(args, string(nodeType))
	}
	query, args = repoScope("n", repositoryPath, query, args)
	query += " ORDER BY n.name"

	return s.queryNodes(ctx, query, args...)
}

// GetNode returns a node by id, or ErrNotFound.
func (s *Store) GetNode(ctx context.Context, id string) (*types.GraphNode, error) {
	nodes, err := s.queryNodes(ctx,
		fmt.Sprintf("SELECT %s FROM graph_nodes n WHERE n.id = ?", nodeColumns), id)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return &nodes[0], nil
}

// GraphStatistics returns node and edge counts grouped by type, optionally
// scoped to one repository.
func (s *Store) GraphStatistics(ctx context.Context, repositoryPath string) (*GraphStats, error) {
	stats := &GraphStats{
		NodesByType: make(map[types.NodeType]int),
		EdgesByType: make(map[types.EdgeType]int),
	}

	nodeQuery := "SELECT node_type, COUNT(*) FROM graph_nodes"
	var nodeArgs []interface{}
	if repositoryPath != "" {
		nodeQuery += " WHERE repository_path = ?"
		nodeArgs = append(nodeArgs, repositoryPath)
	}
	nodeQuery += " GROUP BY node_type"

	rows, err := s.db.QueryContext(ctx, nodeQuery, nodeArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query node stats: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var nt string
		var count int
		if err := rows.Scan(&nt, &count); err != nil {
			return nil, fmt.Errorf("failed to scan node stats: %w", err)
		}
		stats.NodesByType[types.NodeType(nt)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edgeQuery := `
		SELECT e.edge_type, COUNT(*) FROM graph_edges e
		JOIN graph_nodes n ON e.source_id = n.id`
	var edgeArgs []interface{}
	if repositoryPath != "" {
		edgeQuery += " WHERE n.repository_path = ?"
		edgeArgs = append(edgeArgs, repositoryPath)
	}
	edgeQuery += " GROUP BY e.edge_type"

	erows, err := s.db.QueryContext(ctx, edgeQuery, edgeArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edge stats: %w", err)
	}
	defer func() { _ = erows.Close() }()
	for erows.Next() {
		var et string
		var count int
		if err := erows.Scan(&et, &count); err != nil {
			return nil, fmt.Errorf("failed to scan edge stats: %w", err)
		}
		stats.EdgesByType[types.EdgeType(et)] = count
	}
	return stats, erows.Err()
}

func (s *Store) queryNodes(ctx context.Context, query string, args ...interface{}) ([]types.GraphNode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []types.GraphNode
	for rows.Next() {
		var node types.GraphNode
		var nodeType string
		var fullName, filePath, signature, modifiers, repoPath, props sql.NullString

		if err := rows.Scan(&node.ID, &nodeType, &node.Name, &fullName, &filePath,
			&node.LineNumber, &signature, &modifiers, &repoPath, &props); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		node.NodeType = types.NodeType(nodeType)
		node.FullName = fullName.String
		node.FilePath = filePath.String
		node.Signature = signature.String
		node.Modifiers = modifiers.String
		node.RepositoryPath = repoPath.String
		if props.Valid && props.String != "" {
			if err := json.Unmarshal([]byte(props.String), &node.Properties); err != nil {
				return nil, fmt.Errorf("failed to unmarshal node properties: %w", err)
			}
		}

		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func marshalProps(props map[string]string) ([]byte, error) {
	if len(props) == 0 {
		return nil, nil
	}
	return json.Marshal(props)
}

func nodeTypeList(kinds []types.NodeType) string {
	quoted := make([]string, len(kinds))
	for i, k := range kinds {
		quoted[i] = "'" + string(k) + "'"
	}
	return strings.Join(quoted, ",")
}
