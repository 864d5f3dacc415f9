package repoinfo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644))
}

func TestRepoFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"https with .git", "https://github.com/acme/widgets.git", "widgets", false},
		{"https without .git", "https://github.com/acme/widgets", "widgets", false},
		{"trailing slash", "https://github.com/acme/widgets/", "widgets", false},
		{"scp-like ssh", "git@github.com:acme/widgets.git", "widgets", false},
		{"ssh scheme", "ssh://git@github.com/acme/widgets.git", "widgets", false},
		{"npm git+https", "git+https://github.com/acme/widgets.git", "widgets", false},
		{"nested group", "https://gitlab.com/group/subgroup/widgets.git", "widgets", false},
		{"host only", "https://github.com", "", true},
		{"host and org only", "https://github.com/acme", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repoFromURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_ManifestRepositoryURL(t *testing.T) {
	t.Run("object form", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeManifest(t, tmpDir, `{
  "name": "@acme/decks",
  "repository": {
    "type": "git",
    "url": "https://github.com/acme/widgets.git"
  }
}`)

		assert.Equal(t, "widgets", Resolve(context.Background(), tmpDir))
	})

	t.Run("string form", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeManifest(t, tmpDir, `{"repository": "git+https://github.com/acme/widgets.git"}`)

		assert.Equal(t, "widgets", Resolve(context.Background(), tmpDir))
	})
}

func TestResolve_ManifestName(t *testing.T) {
	t.Run("scoped name", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeManifest(t, tmpDir, `{"name": "@acme/team-decks"}`)

		assert.Equal(t, "team-decks", Resolve(context.Background(), tmpDir))
	})

	t.Run("plain name", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeManifest(t, tmpDir, `{"name": "team-decks"}`)

		assert.Equal(t, "team-decks", Resolve(context.Background(), tmpDir))
	})

	t.Run("unrecognizable url falls through to name", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeManifest(t, tmpDir, `{"name": "team-decks", "repository": "https://example.com"}`)

		assert.Equal(t, "team-decks", Resolve(context.Background(), tmpDir))
	})
}

func TestResolve_GitRemote(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	tmpDir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = tmpDir
		require.NoError(t, cmd.Run(), "git %v", args)
	}
	run("init", "--quiet")
	run("remote", "add", "origin", "git@github.com:acme/remote-widgets.git")

	assert.Equal(t, "remote-widgets", Resolve(context.Background(), tmpDir))
}

// initRepoWithoutRemote keeps the git strategy failing deterministically
// even when an ancestor of the temp directory is itself a repository.
func initRepoWithoutRemote(t *testing.T, dir string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		return
	}
	cmd := exec.Command("git", "init", "--quiet")
	cmd.Dir = dir
	_ = cmd.Run()
}

func TestResolve_Fallback(t *testing.T) {
	// No manifest, no origin remote: every strategy falls through.
	tmpDir := t.TempDir()
	initRepoWithoutRemote(t, tmpDir)

	assert.Equal(t, Fallback, Resolve(context.Background(), tmpDir))
}

func TestResolve_MalformedManifest(t *testing.T) {
	tmpDir := t.TempDir()
	initRepoWithoutRemote(t, tmpDir)
	writeManifest(t, tmpDir, `{this is not json`)

	assert.Equal(t, Fallback, Resolve(context.Background(), tmpDir))
}
