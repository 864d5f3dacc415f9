// Package readmegen regenerates the skill and command tables of the corpus
// README. The section bodies under "### Skills" and "### Commands" are
// replaced wholesale with generated markdown tables; everything else in the
// file is left untouched.
package readmegen

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const maxDescriptionLen = 80

// Item is one table row: a linked name plus a short description.
type Item struct {
	Name        string
	Description string
	Path        string
}

var (
	skillsSection   = regexp.MustCompile(`(?s)(### Skills\n\n).*?(\n\n### |\n\n## |$)`)
	commandsSection = regexp.MustCompile(`(?s)(### Commands\n\n).*?(\n\n### |\n\n## |$)`)
	headingPattern  = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// Skills collects one Item per directory under root/skills containing a
// SKILL.md, in filename order. The name falls back to the directory name
// when the frontmatter lacks one.
func Skills(root string) []Item {
	var items []Item

	skillsDir := filepath.Join(root, "skills")
	entries, err := os.ReadDir(skillsDir)
	if err != nil {
		return items
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillMD := filepath.Join(skillsDir, entry.Name(), "SKILL.md")
		content, err := os.ReadFile(skillMD)
		if err != nil {
			continue
		}

		name, description, _ := frontmatterFields(content)
		if name == "" {
			name = entry.Name()
		}

		items = append(items, Item{
			Name:        name,
			Description: truncate(description),
			Path:        "skills/" + entry.Name() + "/",
		})
	}
	return items
}

// Commands collects one Item per markdown file under root/commands, in
// filename order. Frontmatter wins; files without one fall back to the
// first level-one heading as the description.
func Commands(root string) []Item {
	var items []Item

	commandsDir := filepath.Join(root, "commands")
	entries, err := os.ReadDir(commandsDir)
	if err != nil {
		return items
	}

	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(fileName, ".md") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(commandsDir, fileName))
		if err != nil {
			continue
		}

		stem := strings.TrimSuffix(fileName, ".md")
		name, description, hasFrontmatter := frontmatterFields(content)
		if hasFrontmatter {
			if name == "" {
				name = stem
			}
		} else {
			name = stem
			if m := headingPattern.FindSubmatch(content); m != nil {
				description = string(m[1])
			}
		}

		items = append(items, Item{
			Name:        name,
			Description: truncate(description),
			Path:        "commands/" + fileName,
		})
	}
	return items
}

// GenerateTable renders items as a two-column markdown table with the name
// linked to the artifact path. No items renders a placeholder.
func GenerateTable(items []Item) string {
	if len(items) == 0 {
		return "*Coming soon*"
	}

	lines := []string{
		"| Name | Description |",
		"|------|-------------|",
	}
	for _, item := range items {
		lines = append(lines, "| ["+item.Name+"]("+item.Path+") | "+item.Description+" |")
	}
	return strings.Join(lines, "\n")
}

// UpdateReadme rewrites the Skills and Commands section bodies of the
// README at path. Returns whether the file changed; an unchanged file is
// not rewritten.
func UpdateReadme(path string, skills, commands []Item) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrap(err, "reading README")
	}

	updated := renderContent(string(content), skills, commands)
	if updated == string(content) {
		return false, nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return false, errors.Wrap(err, "writing README")
	}
	return true, nil
}

// CheckReadme reports whether UpdateReadme would change the file, without
// writing anything.
func CheckReadme(path string, skills, commands []Item) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrap(err, "reading README")
	}

	updated := renderContent(string(content), skills, commands)
	return updated != string(content), nil
}

func renderContent(content string, skills, commands []Item) string {
	content = replaceSection(content, skillsSection, GenerateTable(skills))
	content = replaceSection(content, commandsSection, GenerateTable(commands))
	return content
}

// replaceSection swaps the section body while re-emitting the heading and
// the terminator the match consumed. A function replacement keeps table
// text containing $ from being expanded as a capture reference.
func replaceSection(content string, re *regexp.Regexp, table string) string {
	return re.ReplaceAllStringFunc(content, func(match string) string {
		sub := re.FindStringSubmatch(match)
		return sub[1] + table + sub[2]
	})
}

// frontmatterFields pulls name and description out of a leading YAML
// frontmatter block, reporting whether a usable block was present at all.
// Multi-line descriptions contribute their first line.
func frontmatterFields(content []byte) (string, string, bool) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return "", "", false
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return "", "", false
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)

	if idx := strings.Index(description, "\n"); idx >= 0 {
		description = description[:idx]
	}
	return strings.TrimSpace(name), strings.TrimSpace(description), true
}

// truncate cuts long descriptions at a word boundary for table rows.
func truncate(description string) string {
	if len(description) <= maxDescriptionLen {
		return description
	}

	cut := description[:maxDescriptionLen]
	if idx := strings.LastIndex(cut, " "); idx >= 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
