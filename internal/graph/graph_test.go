package graph

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeatlas/internal/storage"
	"github.com/dshills/codeatlas/pkg/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func stageSample(t *testing.T, s *Service) {
	t.Helper()
	require.NoError(t, s.AddNode(types.GraphNode{
		ID: "iface", NodeType: types.NodeInterface, Name: "Notifier",
		FullName: "app.Notifier", RepositoryPath: "/repo",
	}))
	require.NoError(t, s.AddNode(types.GraphNode{
		ID: "impl", NodeType: types.NodeClass, Name: "EmailNotifier",
		FullName: "app.EmailNotifier", RepositoryPath: "/repo",
	}))
	require.NoError(t, s.AddEdge(types.GraphEdge{
		ID: "e1", EdgeType: types.EdgeImplements, SourceID: "impl", TargetID: "iface",
	}))
}

func TestStagedMutationsInvisibleUntilSave(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	stageSample(t, s)

	// Nothing visible before SaveChanges
	found, err := s.FindNodes(ctx, "Notifier", "", "")
	require.NoError(t, err)
	assert.Empty(t, found)

	nodes, edges := s.Pending()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)

	require.NoError(t, s.SaveChanges(ctx))

	found, err = s.FindNodes(ctx, "Notifier", "", "")
	require.NoError(t, err)
	require.Len(t, found, 1)

	nodes, edges = s.Pending()
	assert.Equal(t, 0, nodes)
	assert.Equal(t, 0, edges)
}

func TestSaveChanges_EmptyIsNoop(t *testing.T) {
	s := newTestService(t)
	assert.NoError(t, s.SaveChanges(context.Background()))
}

func TestSaveChanges_FailureRetainsBuffer(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// Edge referencing nodes that don't exist fails the transaction
	require.NoError(t, s.AddEdge(types.GraphEdge{
		ID: "dangling", EdgeType: types.EdgeCalls, SourceID: "a", TargetID: "b",
	}))
	require.Error(t, s.SaveChanges(ctx))

	_, edges := s.Pending()
	assert.Equal(t, 1, edges)

	s.Discard()
	_, edges = s.Pending()
	assert.Equal(t, 0, edges)
}

func TestAddRejectsMissingID(t *testing.T) {
	s := newTestService(t)
	assert.Error(t, s.AddNode(types.GraphNode{Name: "NoID"}))
	assert.Error(t, s.AddEdge(types.GraphEdge{SourceID: "a", TargetID: "b"}))
}

func TestEdgeDirectionPreserved(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	stageSample(t, s)
	require.NoError(t, s.SaveChanges(ctx))

	// A --Implements--> B: querying B's name returns A, not the reverse
	impls, err := s.FindImplementations(ctx, "Notifier", "")
	require.NoError(t, err)
	require.Len(t, impls, 1)
	assert.Equal(t, "EmailNotifier", impls[0].Name)

	impls, err = s.FindImplementations(ctx, "EmailNotifier", "")
	require.NoError(t, err)
	assert.Empty(t, impls)
}

func TestClearRepository(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	stageSample(t, s)
	require.NoError(t, s.SaveChanges(ctx))

	require.NoError(t, s.ClearRepository(ctx, "/repo"))

	stats, err := s.GetStats(ctx, "/repo")
	require.NoError(t, err)
	assert.Empty(t, stats.NodesByType)
	assert.Empty(t, stats.EdgesByType)
}

func TestSaveChanges_ConcurrentStagingNotLost(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	const stagers = 4
	const perStager = 500

	done := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < stagers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perStager; i++ {
				id := fmt.Sprintf("n-%d-%d", g, i)
				_ = s.AddNode(types.GraphNode{
					ID: id, NodeType: types.NodeClass, Name: id,
					FullName: "app." + id, RepositoryPath: "/repo",
				})
			}
		}(g)
	}

	// Commit repeatedly while staging is still in flight
	var saveErr error
	var saveWG sync.WaitGroup
	saveWG.Add(1)
	go func() {
		defer saveWG.Done()
		for {
			select {
			case <-done:
				return
			default:
				if err := s.SaveChanges(ctx); err != nil && saveErr == nil {
					saveErr = err
					return
				}
			}
		}
	}()

	wg.Wait()
	close(done)
	saveWG.Wait()
	require.NoError(t, saveErr)
	require.NoError(t, s.SaveChanges(ctx))

	nodes, edges := s.Pending()
	assert.Equal(t, 0, nodes)
	assert.Equal(t, 0, edges)

	stats, err := s.GetStats(ctx, "/repo")
	require.NoError(t, err)
	assert.Equal(t, stagers*perStager, stats.NodesByType[types.NodeClass])
}

func TestConcurrentStaging(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			_ = s.AddNode(types.GraphNode{
				ID: id, NodeType: types.NodeClass, Name: "C" + id,
				FullName: "app.C" + id, RepositoryPath: "/repo",
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, s.SaveChanges(ctx))

	stats, err := s.GetStats(ctx, "/repo")
	require.NoError(t, err)
	assert.Equal(t, 8, stats.NodesByType[types.NodeClass])
}
