package site

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDeckBuild records invocations and populates the output directory the
// way a successful external build would.
type fakeDeckBuild struct {
	calls []buildCall
	fail  map[string]error
}

type buildCall struct {
	sourcePath string
	outDir     string
	baseURL    string
}

func (f *fakeDeckBuild) build(_ context.Context, sourcePath, outDir, baseURL string) error {
	f.calls = append(f.calls, buildCall{sourcePath: sourcePath, outDir: outDir, baseURL: baseURL})
	if err, ok := f.fail[filepath.Base(sourcePath)]; ok {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "index.html"), []byte("<html>deck</html>"), 0o644)
}

func setupRepo(t *testing.T) (baseDir, sourceDir, outputDir string) {
	t.Helper()
	baseDir = t.TempDir()
	sourceDir = filepath.Join(baseDir, "slides")
	outputDir = filepath.Join(baseDir, "output")
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "package.json"), []byte(`{"name": "@acme/fixture-decks"}`), 0o644))
	return baseDir, sourceDir, outputDir
}

func writeSource(t *testing.T, sourceDir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, name), []byte(content), 0o644))
}

func TestBuilder_Build(t *testing.T) {
	baseDir, sourceDir, outputDir := setupRepo(t)
	writeSource(t, sourceDir, "bravo.slides.md", "---\ntitle: Bravo\n---\n")
	writeSource(t, sourceDir, "alpha.slides.md", "---\ntitle: Alpha\ninfo: the first deck\n---\n")

	fake := &fakeDeckBuild{}
	builder, err := NewBuilder(sourceDir, outputDir, WithBaseDir(baseDir), WithDeckBuildFunc(fake.build))
	require.NoError(t, err)

	built, err := builder.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, built, 2)

	// Decks compile in title order with slug-scoped base URLs.
	require.Len(t, fake.calls, 2)
	assert.Equal(t, filepath.Join(sourceDir, "alpha.slides.md"), fake.calls[0].sourcePath)
	assert.Equal(t, filepath.Join(outputDir, "alpha"), fake.calls[0].outDir)
	assert.Equal(t, "/fixture-decks/alpha/", fake.calls[0].baseURL)
	assert.Equal(t, "/fixture-decks/bravo/", fake.calls[1].baseURL)

	// Landing page links both decks.
	indexHTML, err := os.ReadFile(filepath.Join(outputDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(indexHTML), `href="/fixture-decks/alpha/"`)
	assert.Contains(t, string(indexHTML), `href="/fixture-decks/bravo/"`)

	// Hosting marker present and empty.
	marker, err := os.ReadFile(filepath.Join(outputDir, ".nojekyll"))
	require.NoError(t, err)
	assert.Empty(t, marker)

	// Per-deck output populated by the build step.
	for _, slug := range []string{"alpha", "bravo"} {
		entries, err := os.ReadDir(filepath.Join(outputDir, slug))
		require.NoError(t, err)
		assert.NotEmpty(t, entries)
	}
}

func TestBuilder_Build_RemovesStaleOutput(t *testing.T) {
	baseDir, sourceDir, outputDir := setupRepo(t)
	writeSource(t, sourceDir, "alpha.slides.md", "---\ntitle: Alpha\n---\n")

	staleDir := filepath.Join(outputDir, "removed-deck")
	require.NoError(t, os.MkdirAll(staleDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staleDir, "leftover.html"), []byte("stale"), 0o644))

	fake := &fakeDeckBuild{}
	builder, err := NewBuilder(sourceDir, outputDir, WithBaseDir(baseDir), WithDeckBuildFunc(fake.build))
	require.NoError(t, err)

	_, err = builder.Build(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(staleDir)
	assert.True(t, os.IsNotExist(err))
}

func TestBuilder_Build_FirstFailureAborts(t *testing.T) {
	baseDir, sourceDir, outputDir := setupRepo(t)
	writeSource(t, sourceDir, "alpha.slides.md", "---\ntitle: Alpha\n---\n")
	writeSource(t, sourceDir, "bravo.slides.md", "---\ntitle: Bravo\n---\n")

	fake := &fakeDeckBuild{fail: map[string]error{
		"alpha.slides.md": errors.New("exit status 1"),
	}}
	builder, err := NewBuilder(sourceDir, outputDir, WithBaseDir(baseDir), WithDeckBuildFunc(fake.build))
	require.NoError(t, err)

	_, err = builder.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "building deck alpha")

	// The run stopped at the first deck; no landing page was written.
	require.Len(t, fake.calls, 1)
	_, statErr := os.Stat(filepath.Join(outputDir, "index.html"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuilder_Build_MissingSourceDir(t *testing.T) {
	baseDir := t.TempDir()
	outputDir := filepath.Join(baseDir, "output")

	fake := &fakeDeckBuild{}
	builder, err := NewBuilder(filepath.Join(baseDir, "no-such-dir"), outputDir, WithBaseDir(baseDir), WithDeckBuildFunc(fake.build))
	require.NoError(t, err)

	_, err = builder.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading deck source directory")
	assert.Empty(t, fake.calls)
}

func TestBuilder_Build_EmptySourceDir(t *testing.T) {
	baseDir, sourceDir, outputDir := setupRepo(t)

	fake := &fakeDeckBuild{}
	builder, err := NewBuilder(sourceDir, outputDir, WithBaseDir(baseDir), WithDeckBuildFunc(fake.build))
	require.NoError(t, err)

	built, err := builder.Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, built)
	assert.Empty(t, fake.calls)

	indexHTML, err := os.ReadFile(filepath.Join(outputDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(indexHTML), "No decks here yet")
}

func TestBuilder_Build_Idempotent(t *testing.T) {
	baseDir, sourceDir, outputDir := setupRepo(t)
	writeSource(t, sourceDir, "alpha.slides.md", "---\ntitle: Alpha\ninfo: stable\n---\n")
	writeSource(t, sourceDir, "bravo.slides.md", "---\ntitle: Bravo\n---\n")

	fake := &fakeDeckBuild{}
	builder, err := NewBuilder(sourceDir, outputDir, WithBaseDir(baseDir), WithDeckBuildFunc(fake.build))
	require.NoError(t, err)

	_, err = builder.Build(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(outputDir, "index.html"))
	require.NoError(t, err)

	_, err = builder.Build(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(outputDir, "index.html"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNewBuilder_NilBuildFunc(t *testing.T) {
	_, err := NewBuilder("slides", "output", WithDeckBuildFunc(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nil")
}

func TestBuildDeckWithSlidev_MissingTool(t *testing.T) {
	// Point PATH at an empty directory so npx cannot be found; the error
	// must surface rather than being absorbed.
	t.Setenv("PATH", t.TempDir())

	err := BuildDeckWithSlidev(context.Background(), "deck.slides.md", filepath.Join(t.TempDir(), "out"), "/decks/deck/")
	require.Error(t, err)
	if !strings.Contains(err.Error(), "executable file not found") && !strings.Contains(err.Error(), "output:") {
		t.Fatalf("unexpected error: %v", err)
	}
}
