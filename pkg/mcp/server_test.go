package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside/deckhand/pkg/apropos"
)

// writeCorpus lays down a corpus with one skill and one command and
// returns its root.
func writeCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	skillDir := filepath.Join(root, "skills", "deck-builder")
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	skillMD := `---
name: deck-builder
description: Build markdown slide decks into static sites
---

# Deck Builder
`
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(skillMD), 0o644))

	commandsDir := filepath.Join(root, "commands")
	require.NoError(t, os.MkdirAll(commandsDir, 0o755))
	command := "# deploy\n\nPublish the built site to the pages branch.\n"
	require.NoError(t, os.WriteFile(filepath.Join(commandsDir, "deploy.md"), []byte(command), 0o644))

	return root
}

func indexPathFor(root string) string {
	return filepath.Join(root, apropos.DefaultIndexPath)
}

// resultText unwraps the text payload of a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestNewServer(t *testing.T) {
	root := writeCorpus(t)
	s := NewServer(indexPathFor(root), []string{root})
	require.NotNil(t, s)
}

func TestSearchHandler(t *testing.T) {
	root := writeCorpus(t)
	handler := searchHandler(indexPathFor(root), []string{root})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, SearchArgs{Query: "deck"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var response SearchResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, "deck", response.Query)
	require.GreaterOrEqual(t, response.Count, 1)
	assert.Equal(t, "deck-builder", response.Results[0].Name)
	assert.Equal(t, "Skill: deck-builder", response.Results[0].Invoke)
}

func TestSearchHandlerTypeFilter(t *testing.T) {
	root := writeCorpus(t)
	handler := searchHandler(indexPathFor(root), []string{root})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, SearchArgs{Query: "site", Type: "command"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var response SearchResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	for _, r := range response.Results {
		assert.Equal(t, "command", r.Type)
	}
}

func TestSearchHandlerEmptyQuery(t *testing.T) {
	root := writeCorpus(t)
	handler := searchHandler(indexPathFor(root), []string{root})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, SearchArgs{Query: "   "})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSearchHandlerInvalidType(t *testing.T) {
	root := writeCorpus(t)
	handler := searchHandler(indexPathFor(root), []string{root})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, SearchArgs{Query: "deck", Type: "plugin"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid type")
}

func TestSearchHandlerNoMatches(t *testing.T) {
	root := writeCorpus(t)
	handler := searchHandler(indexPathFor(root), []string{root})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, SearchArgs{Query: "zebra"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	// Empty hits serialize as an array, not null.
	assert.Contains(t, text, `"results":[]`)

	var response SearchResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response))
	assert.Equal(t, 0, response.Count)
}

func TestListHandler(t *testing.T) {
	root := writeCorpus(t)
	handler := listHandler(indexPathFor(root), []string{root})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, ListArgs{})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var response ListResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, 2, response.Count)

	names := make([]string, 0, len(response.Artifacts))
	for _, entry := range response.Artifacts {
		names = append(names, entry.Name)
	}
	assert.Contains(t, names, "deck-builder")
	assert.Contains(t, names, "deploy")
}

func TestListHandlerTypeFilter(t *testing.T) {
	root := writeCorpus(t)
	handler := listHandler(indexPathFor(root), []string{root})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, ListArgs{Type: "command"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var response ListResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	require.Equal(t, 1, response.Count)
	assert.Equal(t, "deploy", response.Artifacts[0].Name)
	assert.Equal(t, "command", response.Artifacts[0].Type)
}

func TestListHandlerInvalidType(t *testing.T) {
	root := writeCorpus(t)
	handler := listHandler(indexPathFor(root), []string{root})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, ListArgs{Type: "agent"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// A corpus edit between calls must show up without restarting the server.
func TestHandlersRefreshStaleIndex(t *testing.T) {
	root := writeCorpus(t)
	handler := listHandler(indexPathFor(root), []string{root})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, ListArgs{})
	require.NoError(t, err)
	var before ListResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &before))
	require.Equal(t, 2, before.Count)

	extra := "# release\n\nTag and publish a new version.\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "commands", "release.md"), []byte(extra), 0o644))

	result, err = handler(context.Background(), mcp.CallToolRequest{}, ListArgs{})
	require.NoError(t, err)
	var after ListResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &after))
	assert.Equal(t, 3, after.Count)
}
