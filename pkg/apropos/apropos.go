// Package apropos maintains the persisted keyword index over corpus
// artifacts and answers scored searches against it. The index lives as
// indented JSON and is rebuilt lazily: loads reuse it until a backing
// file's mtime drifts, an artifact disappears, or a new one shows up.
package apropos

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/quayside/deckhand/pkg/artifacts"
)

// DefaultIndexPath is where the index lives relative to the corpus root.
const DefaultIndexPath = ".deckhand/index.json"

// Index is the persisted artifact index.
type Index struct {
	Generated string               `json:"generated"`
	Artifacts []artifacts.Artifact `json:"artifacts"`
}

// Result is one scored search hit. Invoke carries the ready-to-paste
// invocation hint for the artifact ("Skill: name" or "/name").
type Result struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Score       int    `json:"score"`
	Invoke      string `json:"invoke"`
}

// Load reads the index file at path.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading index")
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, errors.Wrap(err, "parsing index")
	}
	return &index, nil
}

// Save writes the index to path atomically (temp file plus rename),
// creating parent directories as needed.
func Save(path string, index *Index) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating index directory")
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling index")
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "writing temporary index file")
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "renaming temporary index file")
	}
	return nil
}

// IsStale reports whether the index no longer matches the corpus on disk:
// a backing file's mtime changed, a new artifact appeared, or an indexed
// one went away.
func IsStale(index *Index, roots []string) bool {
	if index == nil || index.Artifacts == nil {
		return true
	}

	indexed := make(map[string]int64, len(index.Artifacts))
	for _, a := range index.Artifacts {
		indexed[a.Path] = a.ModTime
	}

	for _, root := range roots {
		skillsDir := filepath.Join(root, "skills")
		if entries, err := os.ReadDir(skillsDir); err == nil {
			for _, entry := range entries {
				if strings.HasPrefix(entry.Name(), ".") {
					continue
				}
				entryPath := filepath.Join(skillsDir, entry.Name())
				info, err := os.Stat(entryPath)
				if err != nil || !info.IsDir() {
					continue
				}
				mdInfo, err := os.Stat(filepath.Join(entryPath, "SKILL.md"))
				if err != nil {
					continue
				}
				mod, ok := indexed[entryPath]
				if !ok || mod != mdInfo.ModTime().Unix() {
					return true
				}
				delete(indexed, entryPath)
			}
		}

		commandsDir := filepath.Join(root, "commands")
		if entries, err := os.ReadDir(commandsDir); err == nil {
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() || !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, ".") {
					continue
				}
				entryPath := filepath.Join(commandsDir, name)
				info, err := os.Stat(entryPath)
				if err != nil {
					continue
				}
				mod, ok := indexed[entryPath]
				if !ok || mod != info.ModTime().Unix() {
					return true
				}
				delete(indexed, entryPath)
			}
		}
	}

	// Anything left was indexed but no longer exists on disk.
	return len(indexed) > 0
}

// BuildIndex returns a fresh or reused index for the given corpus roots.
// Unless force is set, a saved index that is not stale is returned as-is;
// otherwise the roots are rescanned and the result persisted to path.
func BuildIndex(path string, roots []string, force bool) (*Index, error) {
	if !force {
		if index, err := Load(path); err == nil && !IsStale(index, roots) {
			return index, nil
		}
	}

	index := &Index{
		Generated: time.Now().UTC().Format(time.RFC3339),
		Artifacts: artifacts.ScanAll(roots...),
	}
	if err := Save(path, index); err != nil {
		return nil, err
	}
	return index, nil
}

// Search scores every indexed artifact against the query words and returns
// the hits ordered by score, highest first. Equal scores keep index order.
// typeFilter narrows results to one artifact type when non-empty.
func Search(index *Index, query string, typeFilter string) []Result {
	if index == nil || len(index.Artifacts) == 0 {
		return nil
	}

	queryWords := strings.Fields(strings.ToLower(query))

	var results []Result
	for _, artifact := range index.Artifacts {
		if typeFilter != "" && artifact.Type != typeFilter {
			continue
		}

		score := scoreMatch(artifact, queryWords)
		if score <= 0 {
			continue
		}

		invoke := "/" + artifact.Name
		if artifact.Type == artifacts.TypeSkill {
			invoke = "Skill: " + artifact.Name
		}

		results = append(results, Result{
			Name:        artifact.Name,
			Type:        artifact.Type,
			Description: artifact.Description,
			Score:       score,
			Invoke:      invoke,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// scoreMatch accumulates per query word: exact name match 100, name
// substring 50, description substring 10, exact keyword 20, keyword
// substring 5.
func scoreMatch(artifact artifacts.Artifact, queryWords []string) int {
	score := 0
	nameLower := strings.ToLower(artifact.Name)
	descLower := strings.ToLower(artifact.Description)

	for _, qw := range queryWords {
		if nameLower == qw {
			score += 100
		} else if strings.Contains(nameLower, qw) {
			score += 50
		}
		if strings.Contains(descLower, qw) {
			score += 10
		}
		for _, kw := range artifact.Keywords {
			if kw == qw {
				score += 20
			} else if strings.Contains(kw, qw) {
				score += 5
			}
		}
	}
	return score
}
