package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// graphRelations are the lookups graph_search can perform.
var graphRelations = []string{
	"implementations",
	"derived_types",
	"callers",
	"dependencies",
	"members",
	"namespace_types",
	"project_references",
	"find_nodes",
}

// indexDirectoryTool returns the tool definition for index_directory
func indexDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_directory",
		Description: "Queue a background job that indexes every supported file under a directory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory to index",
				},
				"watch": map[string]interface{}{
					"type":        "boolean",
					"description": "Also register the directory for live file-watching so later edits are re-indexed incrementally (requires watching enabled in configuration)",
				},
			},
			Required: []string{"path"},
		},
	}
}

// jobStatusTool returns the tool definition for job_status
func jobStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "job_status",
		Description: "Poll the progress of a background indexing job",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job id returned by index_directory",
				},
			},
			Required: []string{"job_id"},
		},
	}
}

// cancelJobTool returns the tool definition for cancel_job
func cancelJobTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cancel_job",
		Description: "Request cooperative cancellation of a running or queued indexing job",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job id returned by index_directory",
				},
			},
			Required: []string{"job_id"},
		},
	}
}

// queryTool returns the tool definition for query
func queryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query",
		Description: "Semantic similarity search over indexed content",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language or keyword query",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"content_types": map[string]interface{}{
					"type":        "array",
					"description": "Restrict results to these content types",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"code", "markdown", "plaintext", "documentation", "other"},
					},
				},
				"path_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to source paths under this prefix",
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Minimum similarity score threshold (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"prioritize_files": map[string]interface{}{
					"type":        "array",
					"description": "File names or paths whose chunks are guaranteed result slots",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// graphSearchTool returns the tool definition for graph_search
func graphSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "graph_search",
		Description: "Structural lookups over the code graph: implementations, callers, members and more",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"relation": map[string]interface{}{
					"type":        "string",
					"description": "Which relationship to traverse",
					"enum":        graphRelations,
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name to look up (simple or fully qualified, case-insensitive)",
				},
				"containing_type": map[string]interface{}{
					"type":        "string",
					"description": "For callers: restrict to methods declared on this type",
				},
				"node_type": map[string]interface{}{
					"type":        "string",
					"description": "For find_nodes: restrict matches to one node type",
				},
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Restrict the lookup to one repository path",
				},
			},
			Required: []string{"relation", "name"},
		},
	}
}

// enrichPromptTool returns the tool definition for enrich_prompt
func enrichPromptTool() mcp.Tool {
	return mcp.Tool{
		Name:        "enrich_prompt",
		Description: "Extract type and member names from free text and return their graph context as a prompt block",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Free text to scan for PascalCase symbol names",
				},
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Restrict symbol resolution to one repository path",
				},
			},
			Required: []string{"text"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report indexer queue state, store statistics and provider health",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Scope chunk statistics to source paths under this prefix",
				},
			},
		},
	}
}

// removeContentTool returns the tool definition for remove_content
func removeContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remove_content",
		Description: "Remove all indexed chunks for a content id or source file path",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"content_id": map[string]interface{}{
					"type":        "string",
					"description": "Content id to remove",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Source file path whose chunks should be removed",
				},
			},
		},
	}
}
