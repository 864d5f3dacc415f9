// Package mcp exposes the artifact index over the Model Context Protocol
// so agent frontends can query the corpus without shelling out to the CLI.
// The server speaks the stdio transport; callers must keep stdout clean
// and route logging to stderr before serving.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/quayside/deckhand/pkg/apropos"
	"github.com/quayside/deckhand/pkg/artifacts"
	"github.com/quayside/deckhand/pkg/version"
)

// SearchArgs are the typed arguments of the search_artifacts tool.
type SearchArgs struct {
	Query string `json:"query"`          // Search terms, whitespace separated
	Type  string `json:"type,omitempty"` // Optional filter: "skill" or "command"
}

// ListArgs are the typed arguments of the list_artifacts tool.
type ListArgs struct {
	Type string `json:"type,omitempty"` // Optional filter: "skill" or "command"
}

// SearchResponse carries scored hits in the same shape the CLI prints.
type SearchResponse struct {
	Query   string           `json:"query"`
	Count   int              `json:"count"`
	Results []apropos.Result `json:"results"`
}

// ListEntry is one artifact in a list_artifacts response.
type ListEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ListResponse is the full catalog returned by list_artifacts.
type ListResponse struct {
	Count     int         `json:"count"`
	Artifacts []ListEntry `json:"artifacts"`
}

// NewServer builds an MCP server with the search_artifacts and
// list_artifacts tools registered. Every call reloads the index at
// indexPath and rebuilds it when stale, so long-running sessions see
// corpus edits without a restart.
func NewServer(indexPath string, roots []string) *server.MCPServer {
	s := server.NewMCPServer(
		"deckhand",
		version.Get().Version,
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_artifacts",
		mcp.WithDescription("Search the skill and command index and return matches scored by relevance"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search terms, e.g. 'markdown slides'"),
		),
		mcp.WithString("type",
			mcp.Description("Restrict results to 'skill' or 'command'"),
		),
	)
	s.AddTool(searchTool, mcp.NewTypedToolHandler(searchHandler(indexPath, roots)))

	listTool := mcp.NewTool("list_artifacts",
		mcp.WithDescription("List every skill and command in the index"),
		mcp.WithString("type",
			mcp.Description("Restrict the listing to 'skill' or 'command'"),
		),
	)
	s.AddTool(listTool, mcp.NewTypedToolHandler(listHandler(indexPath, roots)))

	return s
}

// ServeStdio serves s on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// searchHandler returns the typed handler for the search_artifacts tool.
func searchHandler(indexPath string, roots []string) func(ctx context.Context, request mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, error) {
		if strings.TrimSpace(args.Query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		if err := validateType(args.Type); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		index, err := apropos.BuildIndex(indexPath, roots, false)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to build artifact index: %v", err)), nil
		}

		results := apropos.Search(index, args.Query, args.Type)
		if results == nil {
			results = []apropos.Result{}
		}

		response := SearchResponse{
			Query:   args.Query,
			Count:   len(results),
			Results: results,
		}
		responseBytes, err := json.Marshal(response)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}

		return mcp.NewToolResultText(string(responseBytes)), nil
	}
}

// listHandler returns the typed handler for the list_artifacts tool.
func listHandler(indexPath string, roots []string) func(ctx context.Context, request mcp.CallToolRequest, args ListArgs) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ListArgs) (*mcp.CallToolResult, error) {
		if err := validateType(args.Type); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		index, err := apropos.BuildIndex(indexPath, roots, false)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to build artifact index: %v", err)), nil
		}

		entries := []ListEntry{}
		for _, artifact := range index.Artifacts {
			if args.Type != "" && artifact.Type != args.Type {
				continue
			}
			entries = append(entries, ListEntry{
				Name:        artifact.Name,
				Type:        artifact.Type,
				Description: artifact.Description,
			})
		}

		response := ListResponse{
			Count:     len(entries),
			Artifacts: entries,
		}
		responseBytes, err := json.Marshal(response)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}

		return mcp.NewToolResultText(string(responseBytes)), nil
	}
}

// validateType rejects filters other than the two known artifact types.
// Empty means no filter.
func validateType(artifactType string) error {
	switch artifactType {
	case "", artifacts.TypeSkill, artifacts.TypeCommand:
		return nil
	}
	return errors.Errorf("invalid type %q: must be %q or %q", artifactType, artifacts.TypeSkill, artifacts.TypeCommand)
}
