package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeatlas/pkg/types"
)

// seedGraph loads a small fixture graph:
//
//	acme.core (namespace) declares IRepository (interface), UserRepository
//	and CachedRepository (classes). Both classes implement IRepository;
//	CachedRepository also inherits from UserRepository. UserRepository
//	contains Save and Find methods; OrderService.Process calls Save and
//	uses Logger. The Acme project references the NuGet.Lib node.
func seedGraph(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	node := func(id string, nt types.NodeType, name, fullName string) types.GraphNode {
		return types.GraphNode{
			ID: id, NodeType: nt, Name: name, FullName: fullName,
			FilePath: "/repo/src/" + name + ".cs", RepositoryPath: "/repo",
		}
	}
	edge := func(id string, et types.EdgeType, src, dst string) types.GraphEdge {
		return types.GraphEdge{ID: id, EdgeType: et, SourceID: src, TargetID: dst}
	}

	nodes := []types.GraphNode{
		node("ns", types.NodeNamespace, "core", "acme.core"),
		node("iface", types.NodeInterface, "IRepository", "acme.core.IRepository"),
		node("userRepo", types.NodeClass, "UserRepository", "acme.core.UserRepository"),
		node("cachedRepo", types.NodeClass, "CachedRepository", "acme.core.CachedRepository"),
		node("save", types.NodeMethod, "Save", "acme.core.UserRepository.Save"),
		node("find", types.NodeMethod, "Find", "acme.core.UserRepository.Find"),
		node("svc", types.NodeClass, "OrderService", "acme.core.OrderService"),
		node("process", types.NodeMethod, "Process", "acme.core.OrderService.Process"),
		node("logger", types.NodeClass, "Logger", "acme.core.Logger"),
		node("proj", types.NodeProject, "Acme", "Acme"),
		node("lib", types.NodeProject, "NuGet.Lib", "NuGet.Lib"),
	}
	edges := []types.GraphEdge{
		edge("e1", types.EdgeDeclares, "ns", "iface"),
		edge("e2", types.EdgeDeclares, "ns", "userRepo"),
		edge("e3", types.EdgeDeclares, "ns", "cachedRepo"),
		edge("e4", types.EdgeImplements, "userRepo", "iface"),
		edge("e5", types.EdgeImplements, "cachedRepo", "iface"),
		edge("e6", types.EdgeInherits, "cachedRepo", "userRepo"),
		edge("e7", types.EdgeContains, "userRepo", "save"),
		edge("e8", types.EdgeContains, "userRepo", "find"),
		edge("e9", types.EdgeContains, "svc", "process"),
		edge("e10", types.EdgeCalls, "process", "save"),
		edge("e11", types.EdgeUses, "process", "logger"),
		edge("e12", types.EdgeReferences, "proj", "lib"),
	}

	require.NoError(t, store.SaveGraph(ctx, nodes, edges))
}

func nodeNames(nodes []types.GraphNode) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}

func TestSaveGraph_UpsertsInPlace(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedGraph(t, store)

	// Re-saving the same id updates rather than duplicating
	updated := types.GraphNode{
		ID: "logger", NodeType: types.NodeClass, Name: "Logger",
		FullName: "acme.core.Logger", Signature: "class Logger",
		RepositoryPath: "/repo",
	}
	require.NoError(t, store.SaveGraph(ctx, []types.GraphNode{updated}, nil))

	got, err := store.GetNode(ctx, "logger")
	require.NoError(t, err)
	assert.Equal(t, "class Logger", got.Signature)

	stats, err := store.GraphStatistics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.NodesByType[types.NodeClass])
}

func TestGetNode_NotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.GetNode(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveGraph_RejectsDanglingEdge(t *testing.T) {
	store := setupTestDB(t)

	err := store.SaveGraph(context.Background(), nil, []types.GraphEdge{
		{ID: "bad", EdgeType: types.EdgeCalls, SourceID: "ghost", TargetID: "phantom"},
	})
	assert.Error(t, err) // Foreign keys on source/target
}

func TestFindImplementations(t *testing.T) {
	store := setupTestDB(t)
	seedGraph(t, store)

	impls, err := store.FindImplementations(context.Background(), "irepository", "/repo")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"UserRepository", "CachedRepository"}, nodeNames(impls))

	// Fully qualified name works too
	impls, err = store.FindImplementations(context.Background(), "acme.core.IRepository", "")
	require.NoError(t, err)
	assert.Len(t, impls, 2)

	// Wrong repository scope excludes everything
	impls, err = store.FindImplementations(context.Background(), "IRepository", "/elsewhere")
	require.NoError(t, err)
	assert.Empty(t, impls)
}

func TestFindDerivedTypes(t *testing.T) {
	store := setupTestDB(t)
	seedGraph(t, store)

	derived, err := store.FindDerivedTypes(context.Background(), "UserRepository", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CachedRepository"}, nodeNames(derived))
}

func TestFindCallers(t *testing.T) {
	store := setupTestDB(t)
	seedGraph(t, store)

	callers, err := store.FindCallers(context.Background(), "Save", "", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Process"}, nodeNames(callers))

	// Scoped to the containing type that holds the callee
	callers, err = store.FindCallers(context.Background(), "Save", "UserRepository", "")
	require.NoError(t, err)
	assert.Len(t, callers, 1)

	// A containing type that doesn't hold the method yields nothing
	callers, err = store.FindCallers(context.Background(), "Save", "OrderService", "")
	require.NoError(t, err)
	assert.Empty(t, callers)
}

func TestFindDependencies(t *testing.T) {
	store := setupTestDB(t)
	seedGraph(t, store)

	deps, err := store.FindDependencies(context.Background(), "Process", "", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Save", "Logger"}, nodeNames(deps))

	deps, err = store.FindDependencies(context.Background(), "Process", "OrderService", "")
	require.NoError(t, err)
	assert.Len(t, deps, 2)
}

func TestTypeMembers(t *testing.T) {
	store := setupTestDB(t)
	seedGraph(t, store)

	members, err := store.TypeMembers(context.Background(), "UserRepository", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Save", "Find"}, nodeNames(members))
}

func TestTypesInNamespace(t *testing.T) {
	store := setupTestDB(t)
	seedGraph(t, store)

	found, err := store.TypesInNamespace(context.Background(), "acme.core", "")
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"IRepository", "UserRepository", "CachedRepository"},
		nodeNames(found))
}

func TestProjectReferences(t *testing.T) {
	store := setupTestDB(t)
	seedGraph(t, store)

	refs, err := store.ProjectReferences(context.Background(), "Acme", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"NuGet.Lib"}, nodeNames(refs))
}

func TestFindNodes(t *testing.T) {
	store := setupTestDB(t)
	seedGraph(t, store)
	ctx := context.Background()

	// Exact simple name, case-insensitive
	found, err := store.FindNodes(ctx, "userrepository", "", "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "userRepo", found[0].ID)

	// Fully qualified suffix ".Save"
	found, err = store.FindNodes(ctx, "Save", "", "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, types.NodeMethod, found[0].NodeType)

	// Node type filter
	found, err = store.FindNodes(ctx, "core", types.NodeNamespace, "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ns", found[0].ID)

	found, err = store.FindNodes(ctx, "core", types.NodeClass, "")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestClearRepository(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedGraph(t, store)

	// A second repository must survive the clear
	other := types.GraphNode{
		ID: "other", NodeType: types.NodeClass, Name: "Keeper",
		FullName: "other.Keeper", RepositoryPath: "/other",
	}
	require.NoError(t, store.SaveGraph(ctx, []types.GraphNode{other}, nil))

	require.NoError(t, store.ClearRepository(ctx, "/repo"))

	stats, err := store.GraphStatistics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NodesByType[types.NodeClass])
	assert.Empty(t, stats.EdgesByType)

	_, err = store.GetNode(ctx, "userRepo")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.GetNode(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "Keeper", got.Name)
}

func TestGraphStatistics(t *testing.T) {
	store := setupTestDB(t)
	seedGraph(t, store)

	stats, err := store.GraphStatistics(context.Background(), "/repo")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.NodesByType[types.NodeNamespace])
	assert.Equal(t, 1, stats.NodesByType[types.NodeInterface])
	assert.Equal(t, 4, stats.NodesByType[types.NodeClass])
	assert.Equal(t, 3, stats.NodesByType[types.NodeMethod])
	assert.Equal(t, 2, stats.EdgesByType[types.EdgeImplements])
	assert.Equal(t, 3, stats.EdgesByType[types.EdgeContains])
	assert.Equal(t, 1, stats.EdgesByType[types.EdgeCalls])
}
