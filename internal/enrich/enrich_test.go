package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeatlas/internal/graph"
	"github.com/dshills/codeatlas/internal/storage"
	"github.com/dshills/codeatlas/pkg/types"
)

func TestExtractSymbols(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			"pascal case tokens",
			"How does UserRepository talk to OrderService?",
			[]string{"UserRepository", "OrderService"},
		},
		{
			"interface prefix",
			"Who implements IRepository here?",
			[]string{"IRepository"},
		},
		{
			"single capitalized words ignored",
			"The Server handles requests quickly",
			nil,
		},
		{
			"deduplicated",
			"UserRepository wraps UserRepository",
			[]string{"UserRepository"},
		},
		{
			"longer names first",
			"Does OrderService use OrderServiceFactory?",
			[]string{"OrderServiceFactory", "OrderService"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractSymbols(tt.text))
		})
	}
}

func TestExtractSymbols_CapsFanOut(t *testing.T) {
	text := "AaBb BbCc CcDd DdEe EeFf FfGg GgHh"
	symbols := ExtractSymbols(text)
	assert.Len(t, symbols, MaxSymbols)
}

func newTestEnricher(t *testing.T) (*Enricher, *graph.Service) {
	t.Helper()
	db, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	g := graph.New(db)
	return New(g), g
}

func seedEnrichGraph(t *testing.T, g *graph.Service) {
	t.Helper()
	ctx := context.Background()

	nodes := []types.GraphNode{
		{ID: "iface", NodeType: types.NodeInterface, Name: "INotifier", FullName: "app.INotifier", FilePath: "/repo/notifier.cs", LineNumber: 3, RepositoryPath: "/repo"},
		{ID: "email", NodeType: types.NodeClass, Name: "EmailNotifier", FullName: "app.EmailNotifier", RepositoryPath: "/repo"},
		{ID: "sms", NodeType: types.NodeClass, Name: "SmsNotifier", FullName: "app.SmsNotifier", RepositoryPath: "/repo"},
		{ID: "send", NodeType: types.NodeMethod, Name: "Send", FullName: "app.EmailNotifier.Send", Signature: "void Send(string to)", RepositoryPath: "/repo"},
	}
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}
	edges := []types.GraphEdge{
		{ID: "e1", EdgeType: types.EdgeImplements, SourceID: "email", TargetID: "iface"},
		{ID: "e2", EdgeType: types.EdgeImplements, SourceID: "sms", TargetID: "iface"},
		{ID: "e3", EdgeType: types.EdgeContains, SourceID: "email", TargetID: "send"},
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e))
	}
	require.NoError(t, g.SaveChanges(ctx))
}

func TestEnrich_InterfaceFansOutToImplementations(t *testing.T) {
	e, g := newTestEnricher(t)
	seedEnrichGraph(t, g)

	result, err := e.Enrich(context.Background(), "What implements the INotifier abstraction?", "/repo")
	require.NoError(t, err)
	require.Len(t, result.Symbols, 1)

	sym := result.Symbols[0]
	assert.Equal(t, types.NodeInterface, sym.Node.NodeType)

	var names []string
	for _, n := range sym.Related["Implementations"] {
		names = append(names, n.Name)
	}
	assert.ElementsMatch(t, []string{"EmailNotifier", "SmsNotifier"}, names)
}

func TestEnrich_TypeMembersIncluded(t *testing.T) {
	e, g := newTestEnricher(t)
	seedEnrichGraph(t, g)

	result, err := e.Enrich(context.Background(), "Show me EmailNotifier", "/repo")
	require.NoError(t, err)
	require.Len(t, result.Symbols, 1)

	members := result.Symbols[0].Related["Members"]
	require.Len(t, members, 1)
	assert.Equal(t, "Send", members[0].Name)
}

func TestEnrich_UnknownSymbolSkipped(t *testing.T) {
	e, g := newTestEnricher(t)
	seedEnrichGraph(t, g)

	result, err := e.Enrich(context.Background(), "Tell me about MissingWidget", "/repo")
	require.NoError(t, err)
	assert.Empty(t, result.Symbols)
	assert.Equal(t, "", result.Render())
}

func TestRender_Deterministic(t *testing.T) {
	e, g := newTestEnricher(t)
	seedEnrichGraph(t, g)

	result, err := e.Enrich(context.Background(), "INotifier details", "/repo")
	require.NoError(t, err)

	rendered := result.Render()
	assert.Contains(t, rendered, "## INotifier (Interface)")
	assert.Contains(t, rendered, "/repo/notifier.cs:3")
	assert.Contains(t, rendered, "app.EmailNotifier")

	// Email sorts before Sms under the Implementations group
	emailAt := strings.Index(rendered, "app.EmailNotifier")
	smsAt := strings.Index(rendered, "app.SmsNotifier")
	assert.Less(t, emailAt, smsAt)

	again, err := e.Enrich(context.Background(), "INotifier details", "/repo")
	require.NoError(t, err)
	assert.Equal(t, rendered, again.Render())
}
