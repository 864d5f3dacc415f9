// Package repoinfo resolves the repository name used as the base path
// segment for the deployed site. Resolution walks an ordered chain of
// strategies (project manifest, git remote) and absorbs every failure,
// terminating at a fixed fallback, so callers never handle an error.
package repoinfo

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/quayside/deckhand/pkg/logger"
)

// Fallback is the repository name used when every strategy fails.
const Fallback = "decks"

type strategy struct {
	name    string
	resolve func(ctx context.Context, dir string) (string, error)
}

// Resolve determines the repository name for the project rooted at dir.
// Strategies are tried in order, first success wins:
//  1. package.json repository URL (object or string form)
//  2. package.json name, minus a leading @scope/
//  3. git origin remote URL
//  4. the Fallback literal
func Resolve(ctx context.Context, dir string) string {
	log := logger.G(ctx)

	strategies := []strategy{
		{name: "manifest repository url", resolve: fromManifestURL},
		{name: "manifest package name", resolve: fromManifestName},
		{name: "git origin remote", resolve: fromGitRemote},
	}

	for _, s := range strategies {
		name, err := s.resolve(ctx, dir)
		if err != nil {
			log.WithField("strategy", s.name).WithError(err).Debug("repository name strategy fell through")
			continue
		}
		log.WithField("strategy", s.name).WithField("repoName", name).Debug("resolved repository name")
		return name
	}

	log.WithField("repoName", Fallback).Debug("all repository name strategies fell through, using fallback")
	return Fallback
}

type manifest struct {
	Name       string          `json:"name"`
	Repository json.RawMessage `json:"repository"`
}

func readManifest(dir string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, errors.Wrap(err, "reading package.json")
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "parsing package.json")
	}
	return &m, nil
}

func fromManifestURL(_ context.Context, dir string) (string, error) {
	m, err := readManifest(dir)
	if err != nil {
		return "", err
	}

	// The repository field is either {"url": "..."} or a plain string.
	var url string
	if len(m.Repository) > 0 {
		var asString string
		if err := json.Unmarshal(m.Repository, &asString); err == nil {
			url = asString
		} else {
			var asObject struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(m.Repository, &asObject); err == nil {
				url = asObject.URL
			}
		}
	}

	if strings.TrimSpace(url) == "" {
		return "", errors.New("no repository url in package.json")
	}
	return repoFromURL(url)
}

func fromManifestName(_ context.Context, dir string) (string, error) {
	m, err := readManifest(dir)
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(m.Name)
	if strings.HasPrefix(name, "@") {
		if idx := strings.Index(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
	}
	if name == "" {
		return "", errors.New("no package name in package.json")
	}
	return name, nil
}

func fromGitRemote(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", "origin")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", errors.Wrap(err, "querying git origin remote")
	}
	return repoFromURL(string(output))
}

// repoFromURL extracts the trailing repository segment from a remote URL.
// Handles https, scp-like ssh (git@host:org/repo.git), and npm-style
// git+https forms. URLs without a host/org/repo shape are rejected.
func repoFromURL(raw string) (string, error) {
	url := strings.TrimSpace(raw)
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimPrefix(url, "git+")
	if idx := strings.Index(url, "://"); idx >= 0 {
		url = url[idx+3:]
	}
	url = strings.ReplaceAll(url, ":", "/")

	parts := strings.Split(url, "/")
	if len(parts) < 3 {
		return "", errors.Errorf("unrecognized repository url %q", raw)
	}

	repo := strings.TrimSuffix(parts[len(parts)-1], ".git")
	if repo == "" {
		return "", errors.Errorf("unrecognized repository url %q", raw)
	}
	return repo, nil
}
