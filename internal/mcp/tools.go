package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codeatlas/internal/rag"
	"github.com/dshills/codeatlas/internal/storage"
	"github.com/dshills/codeatlas/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeQueueFull     = -32001 // Indexing queue is at capacity
	ErrorCodeNotIndexed    = -32002 // Nothing indexed under the requested scope
	ErrorCodeEmptyQuery    = -32003 // Query parameter is empty
)

// handleIndexDirectory handles the index_directory tool invocation
func (s *Server) handleIndexDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, paramError("path", "missing or empty")
	}
	if err := validateDirectory(path); err != nil {
		return nil, paramError("path", err.Error())
	}

	watchRequested := getBoolDefault(args, "watch", false)
	if watchRequested && s.watcher == nil {
		return nil, paramError("watch", "file watching is disabled in configuration")
	}

	jobID, err := s.jobs.QueueDirectory(path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to queue directory", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if watchRequested {
		if err := s.watcher.Add(path); err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to watch directory", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"job_id":   jobID,
		"state":    string(types.JobQueued),
		"watching": watchRequested,
	})), nil
}

// handleJobStatus handles the job_status tool invocation
func (s *Server) handleJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	jobID, ok := args["job_id"].(string)
	if !ok || jobID == "" {
		return nil, paramError("job_id", "missing or empty")
	}

	job := s.jobs.GetJobStatus(jobID)
	if job == nil {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"found":  false,
			"job_id": jobID,
		})), nil
	}

	response := map[string]interface{}{
		"found":            true,
		"job_id":           job.JobID,
		"source":           job.Source,
		"state":            string(job.State),
		"total_items":      job.TotalItems,
		"processed_items":  job.ProcessedItems,
		"failed_items":     job.FailedItems,
		"progress_percent": job.ProgressPercent(),
	}
	if !job.StartedAt.IsZero() {
		response["started_at"] = job.StartedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if !job.CompletedAt.IsZero() {
		response["completed_at"] = job.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if job.Error != "" {
		response["error"] = job.Error
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCancelJob handles the cancel_job tool invocation
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	jobID, ok := args["job_id"].(string)
	if !ok || jobID == "" {
		return nil, paramError("job_id", "missing or empty")
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"job_id":    jobID,
		"cancelled": s.jobs.CancelJob(jobID),
	})), nil
}

// handleQuery handles the query tool invocation
func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", rag.DefaultTopK)
	if topK < 1 || topK > 100 {
		return nil, paramError("top_k", "must be between 1 and 100")
	}

	opts := rag.QueryOptions{
		TopK:            topK,
		PathPrefix:      getStringDefault(args, "path_prefix", ""),
		MinScore:        getFloatDefault(args, "min_score", 0),
		PrioritizeFiles: getStringSlice(args, "prioritize_files"),
	}
	for _, raw := range getStringSlice(args, "content_types") {
		opts.ContentTypes = append(opts.ContentTypes, types.ContentType(raw))
	}

	results, err := s.rag.Query(ctx, query, opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "query failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	formatted := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		entry := map[string]interface{}{
			"content_id":  r.Chunk.ContentID,
			"chunk_index": r.Chunk.ChunkIndex,
			"score":       r.Score,
			"text":        r.Chunk.Text,
			"type":        string(r.Chunk.Type),
		}
		if r.Chunk.SourcePath != "" {
			entry["source_path"] = r.Chunk.SourcePath
		}
		if len(r.Chunk.Metadata) > 0 {
			entry["metadata"] = r.Chunk.Metadata
		}
		formatted = append(formatted, entry)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"count":   len(formatted),
		"results": formatted,
	})), nil
}

// handleGraphSearch handles the graph_search tool invocation
func (s *Server) handleGraphSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	relation, ok := args["relation"].(string)
	if !ok || relation == "" {
		return nil, paramError("relation", "missing or empty")
	}
	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, paramError("name", "missing or empty")
	}
	containingType := getStringDefault(args, "containing_type", "")
	repository := getStringDefault(args, "repository", "")

	var (
		nodes []types.GraphNode
		err   error
	)
	switch relation {
	case "implementations":
		nodes, err = s.graph.FindImplementations(ctx, name, repository)
	case "derived_types":
		nodes, err = s.graph.FindDerivedTypes(ctx, name, repository)
	case "callers":
		nodes, err = s.graph.FindCallers(ctx, name, containingType, repository)
	case "dependencies":
		nodes, err = s.graph.FindDependencies(ctx, name, containingType, repository)
	case "members":
		nodes, err = s.graph.GetTypeMembers(ctx, name, repository)
	case "namespace_types":
		nodes, err = s.graph.GetTypesInNamespace(ctx, name, repository)
	case "project_references":
		nodes, err = s.graph.GetProjectReferences(ctx, name, repository)
	case "find_nodes":
		nodeType := types.NodeType(getStringDefault(args, "node_type", ""))
		nodes, err = s.graph.FindNodes(ctx, name, nodeType, repository)
	default:
		return nil, paramError("relation", fmt.Sprintf("unknown relation %q", relation))
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "graph lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	formatted := make([]map[string]interface{}, 0, len(nodes))
	for _, node := range nodes {
		formatted = append(formatted, formatNode(node))
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"relation": relation,
		"name":     name,
		"count":    len(formatted),
		"nodes":    formatted,
	})), nil
}

// handleEnrichPrompt handles the enrich_prompt tool invocation
func (s *Server) handleEnrichPrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	text, ok := args["text"].(string)
	if !ok || text == "" {
		return nil, paramError("text", "missing or empty")
	}
	repository := getStringDefault(args, "repository", "")

	result, err := s.enricher.Enrich(ctx, text, repository)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "enrichment failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	symbols := make([]map[string]interface{}, 0, len(result.Symbols))
	for _, sym := range result.Symbols {
		entry := map[string]interface{}{
			"name": sym.Name,
			"node": formatNode(sym.Node),
		}
		related := map[string]interface{}{}
		for label, nodes := range sym.Related {
			group := make([]map[string]interface{}, 0, len(nodes))
			for _, node := range nodes {
				group = append(group, formatNode(node))
			}
			related[label] = group
		}
		if len(related) > 0 {
			entry["related"] = related
		}
		symbols = append(symbols, entry)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"symbols": symbols,
		"context": result.Render(),
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	pathPrefix := getStringDefault(args, "path_prefix", "")

	var (
		chunkStats *storage.ChunkStats
		err        error
	)
	if pathPrefix != "" {
		stats, derr := s.rag.GetDirectoryStats(ctx, pathPrefix)
		if errors.Is(derr, rag.ErrNotIndexed) {
			return mcp.NewToolResultText(formatJSON(map[string]interface{}{
				"indexed":     false,
				"path_prefix": pathPrefix,
			})), nil
		}
		chunkStats, err = stats, derr
	} else {
		chunkStats, err = s.rag.GetStats(ctx)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	graphStats, err := s.graph.GetStats(ctx, "")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read graph statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	indexer := s.jobs.GetStatus()
	response := map[string]interface{}{
		"indexed": chunkStats.ChunkCount > 0,
		"store": map[string]interface{}{
			"chunk_count":    chunkStats.ChunkCount,
			"document_count": chunkStats.DocumentCount,
		},
		"graph": map[string]interface{}{
			"nodes_by_type": graphStats.NodesByType,
			"edges_by_type": graphStats.EdgesByType,
		},
		"indexer": map[string]interface{}{
			"queued_items":    indexer.QueuedItems,
			"processed_items": indexer.ProcessedItems,
			"failed_items":    indexer.FailedItems,
			"is_processing":   indexer.IsProcessing,
			"active_jobs":     indexer.ActiveJobs,
		},
		"healthy": s.rag.IsHealthy(ctx),
	}
	if pathPrefix != "" {
		response["path_prefix"] = pathPrefix
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRemoveContent handles the remove_content tool invocation
func (s *Server) handleRemoveContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	contentID := getStringDefault(args, "content_id", "")
	path := getStringDefault(args, "path", "")
	if contentID == "" && path == "" {
		return nil, paramError("content_id", "either content_id or path is required")
	}

	var (
		removed bool
		err     error
	)
	if contentID != "" {
		removed, err = s.rag.Remove(ctx, contentID)
	} else {
		removed, err = s.rag.RemovePath(ctx, path)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "removal failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"removed": removed,
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func paramError(param, reason string) error {
	return newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("invalid %s parameter", param), map[string]interface{}{
		"param":  param,
		"reason": reason,
	})
}

// validateDirectory checks that path is an absolute, readable directory
func validateDirectory(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

func formatNode(node types.GraphNode) map[string]interface{} {
	entry := map[string]interface{}{
		"name":      node.Name,
		"full_name": node.FullName,
		"node_type": string(node.NodeType),
	}
	if node.FilePath != "" {
		entry["file_path"] = node.FilePath
		entry["line_number"] = node.LineNumber
	}
	if node.Signature != "" {
		entry["signature"] = node.Signature
	}
	if node.Modifiers != "" {
		entry["modifiers"] = node.Modifiers
	}
	return entry
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string-array parameter, tolerating the
// []interface{} shape JSON decoding produces
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
