package enrich

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/codeatlas/internal/graph"
	"github.com/dshills/codeatlas/pkg/types"
)

const (
	// MaxSymbols bounds how many extracted symbols are probed per prompt.
	MaxSymbols = 5

	// MaxRelated bounds each relationship group per symbol.
	MaxRelated = 10
)

// symbolPattern matches PascalCase identifiers with at least two humps,
// which covers conventional type and member names including I-prefixed
// interfaces (IRepository). Single capitalized words are ignored: they
// are far more often prose than symbols.
var symbolPattern = regexp.MustCompile(`\b[A-Z][a-z0-9]*(?:[A-Z][a-z0-9]*)+\b`)

// relation labels, in render order.
const (
	relImplementations = "Implementations"
	relDerivedTypes    = "Derived types"
	relMembers         = "Members"
	relCallers         = "Callers"
)

var relationOrder = []string{relImplementations, relDerivedTypes, relMembers, relCallers}

// Symbol is one resolved symbol with its related nodes grouped by
// relationship.
type Symbol struct {
	Name    string
	Node    types.GraphNode
	Related map[string][]types.GraphNode
}

// Result is the full enrichment output: resolved symbols plus every node
// touched, for callers that want the raw sets rather than the rendering.
type Result struct {
	Symbols []Symbol
	Nodes   []types.GraphNode
}

// Enricher turns a free-text prompt into graph context.
type Enricher struct {
	graph *graph.Service
}

// New creates an enricher over the graph service.
func New(g *graph.Service) *Enricher {
	return &Enricher{graph: g}
}

// ExtractSymbols returns candidate symbol names found in text:
// deduplicated, longer (more specific) names first, capped at MaxSymbols.
func ExtractSymbols(text string) []string {
	matches := symbolPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var symbols []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			symbols = append(symbols, m)
		}
	}

	sort.SliceStable(symbols, func(i, j int) bool {
		if len(symbols[i]) != len(symbols[j]) {
			return len(symbols[i]) > len(symbols[j])
		}
		return symbols[i] < symbols[j]
	})

	if len(symbols) > MaxSymbols {
		symbols = symbols[:MaxSymbols]
	}
	return symbols
}

// Enrich extracts symbols from prompt, resolves each against the graph,
// and pulls in related nodes per symbol kind: implementations for
// interfaces, derived types for classes, members for any type kind,
// callers for methods. Unresolved symbols are silently skipped.
func (e *Enricher) Enrich(ctx context.Context, prompt, repositoryPath string) (*Result, error) {
	result := &Result{}

	for _, name := range ExtractSymbols(prompt) {
		nodes, err := e.graph.FindNodes(ctx, name, "", repositoryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to look up symbol %s: %w", name, err)
		}
		if len(nodes) == 0 {
			continue
		}

		node := nodes[0]
		sym := Symbol{Name: name, Node: node, Related: make(map[string][]types.GraphNode)}

		switch {
		case node.NodeType == types.NodeInterface:
			impls, err := e.graph.FindImplementations(ctx, name, repositoryPath)
			if err != nil {
				return nil, err
			}
			sym.Related[relImplementations] = capNodes(impls)
		case node.NodeType == types.NodeClass || node.NodeType == types.NodeStruct:
			derived, err := e.graph.FindDerivedTypes(ctx, name, repositoryPath)
			if err != nil {
				return nil, err
			}
			sym.Related[relDerivedTypes] = capNodes(derived)
		case node.NodeType == types.NodeMethod:
			callers, err := e.graph.FindCallers(ctx, name, "", repositoryPath)
			if err != nil {
				return nil, err
			}
			sym.Related[relCallers] = capNodes(callers)
		}

		if node.NodeType.IsTypeKind() {
			members, err := e.graph.GetTypeMembers(ctx, name, repositoryPath)
			if err != nil {
				return nil, err
			}
			sym.Related[relMembers] = capNodes(members)
		}

		result.Symbols = append(result.Symbols, sym)
		result.Nodes = append(result.Nodes, node)
		for _, label := range relationOrder {
			result.Nodes = append(result.Nodes, sym.Related[label]...)
		}
	}

	return result, nil
}

// Render produces a deterministic, human-readable block suitable for
// inclusion in an LLM prompt: symbols in extraction order, relationships
// in fixed group order, related nodes sorted by full name.
func (r *Result) Render() string {
	if len(r.Symbols) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Code context:\n")
	for _, sym := range r.Symbols {
		fmt.Fprintf(&b, "\n## %s (%s)", sym.Node.Name, sym.Node.NodeType)
		if sym.Node.FullName != "" && sym.Node.FullName != sym.Node.Name {
			fmt.Fprintf(&b, " [%s]", sym.Node.FullName)
		}
		b.WriteString("\n")
		if sym.Node.Signature != "" {
			fmt.Fprintf(&b, "  %s\n", sym.Node.Signature)
		}
		if sym.Node.FilePath != "" {
			fmt.Fprintf(&b, "  %s", sym.Node.FilePath)
			if sym.Node.LineNumber > 0 {
				fmt.Fprintf(&b, ":%d", sym.Node.LineNumber)
			}
			b.WriteString("\n")
		}

		for _, label := range relationOrder {
			related := sym.Related[label]
			if len(related) == 0 {
				continue
			}
			sorted := make([]types.GraphNode, len(related))
			copy(sorted, related)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i].FullName < sorted[j].FullName
			})

			fmt.Fprintf(&b, "  %s:\n", label)
			for _, n := range sorted {
				fmt.Fprintf(&b, "    - %s (%s)", n.FullName, n.NodeType)
				if n.Signature != "" {
					fmt.Fprintf(&b, ": %s", n.Signature)
				}
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func capNodes(nodes []types.GraphNode) []types.GraphNode {
	if len(nodes) > MaxRelated {
		return nodes[:MaxRelated]
	}
	return nodes
}
