// Package decks discovers slide deck sources and reads the metadata carried
// in their leading header block. Deck files are Slidev-style markdown whose
// first lines form a YAML region between two "---" separators; everything
// after the region (including further "---" slide separators) is ignored here.
package decks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Suffix identifies deck source files within the source directory.
const Suffix = ".slides.md"

// Deck describes one discovered slide deck source file. The collection is
// recomputed fresh on every run and never persisted.
type Deck struct {
	Slug       string
	Title      string
	Info       string
	SourcePath string
}

// ExtractFrontmatter reads the leading header block of the file at path and
// returns its title and info fields. Every failure mode degrades to a
// default instead of an error: an unreadable file, a missing or unclosed
// header block, malformed YAML, or a non-scalar field value all yield
// title = filename stem and info = "".
func ExtractFrontmatter(path string) (title, info string) {
	title = stem(path)
	info = ""

	data, err := os.ReadFile(path)
	if err != nil {
		return title, info
	}

	block, ok := headerBlock(data)
	if !ok {
		return title, info
	}

	var fields map[string]any
	if err := yaml.Unmarshal(block, &fields); err != nil {
		return title, info
	}

	if v, ok := scalarString(fields["title"]); ok && strings.TrimSpace(v) != "" {
		title = strings.TrimSpace(v)
	}
	if v, ok := scalarString(fields["info"]); ok {
		info = strings.TrimSpace(v)
	}

	return title, info
}

// FindDecks lists the immediate entries of sourceDir and returns one Deck
// per file carrying the deck suffix, sorted ascending by title
// (case-insensitive). Files with equal titles keep their directory order.
// Dotfiles and subdirectories are skipped. A missing source directory is an
// error; an empty one is not.
func FindDecks(sourceDir string) ([]Deck, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading deck source directory %s", sourceDir)
	}

	var found []Deck
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, Suffix) {
			continue
		}

		path := filepath.Join(sourceDir, name)
		title, info := ExtractFrontmatter(path)
		found = append(found, Deck{
			Slug:       strings.TrimSuffix(name, Suffix),
			Title:      title,
			Info:       info,
			SourcePath: path,
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return strings.ToLower(found[i].Title) < strings.ToLower(found[j].Title)
	})

	return found, nil
}

// headerBlock returns the region between the opening "---" on the first
// line and the next "---" line. CRLF line endings are tolerated.
func headerBlock(data []byte) ([]byte, bool) {
	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 {
		return nil, false
	}

	first := strings.TrimSuffix(lines[0], "\r")
	if strings.TrimSpace(first) != "---" {
		return nil, false
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSuffix(lines[i], "\r")
		if strings.TrimSpace(line) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, false
	}

	blockLines := make([]string, 0, end-1)
	for _, line := range lines[1:end] {
		blockLines = append(blockLines, strings.TrimSuffix(line, "\r"))
	}

	return []byte(strings.Join(blockLines, "\n")), true
}

// scalarString renders a decoded YAML scalar as text. Unquoted numbers and
// booleans count as text the same way a plain key-value reading would take
// them; maps, sequences, and null do not.
func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int:
		return fmt.Sprint(s), true
	case int64:
		return fmt.Sprint(s), true
	case float64:
		return fmt.Sprint(s), true
	case bool:
		return fmt.Sprint(s), true
	default:
		return "", false
	}
}

func stem(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, Suffix) {
		return strings.TrimSuffix(base, Suffix)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
