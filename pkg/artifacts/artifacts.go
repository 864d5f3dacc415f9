// Package artifacts scans a corpus repository for the agent artifacts it
// publishes: skills (skills/<name>/SKILL.md with YAML frontmatter) and
// commands (commands/<name>.md). Scans absorb missing directories and
// unreadable files; a corpus with neither directory simply yields nothing.
package artifacts

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

const skillFileName = "SKILL.md"

// Artifact types.
const (
	TypeSkill   = "skill"
	TypeCommand = "command"
)

// Artifact is one indexable entry of the corpus. Path is the skill
// directory for skills and the markdown file for commands; ModTime tracks
// the backing file in Unix seconds.
type Artifact struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Path        string   `json:"path"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	ModTime     int64    `json:"mod_time"`
}

// stopwords are dropped during keyword extraction. Tuned for the phrasing
// of skill descriptions ("use when claude needs to ...").
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "as": {}, "is": {}, "was": {}, "are": {}, "were": {},
	"been": {}, "be": {}, "have": {}, "has": {}, "had": {}, "do": {},
	"does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "it": {}, "its": {}, "when": {},
	"claude": {}, "needs": {}, "use": {}, "using": {}, "used": {},
	"can": {}, "any": {}, "other": {}, "you": {}, "your": {}, "they": {},
	"them": {}, "their": {}, "which": {}, "what": {}, "who": {},
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// ExtractKeywords lowercases the description, strips non-alphanumerics,
// and returns the remaining words of three or more characters that are not
// stopwords, deduplicated in first-seen order.
func ExtractKeywords(description string) []string {
	normalized := nonAlnum.ReplaceAllString(strings.ToLower(description), " ")

	seen := make(map[string]struct{})
	var keywords []string
	for _, word := range strings.Fields(normalized) {
		if len(word) < 3 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}

// ScanSkills returns one Artifact per skill directory under root/skills
// whose SKILL.md carries a name in its frontmatter. Dot-prefixed entries
// and unparsable skill files are skipped.
func ScanSkills(root string) []Artifact {
	var skills []Artifact

	skillsDir := filepath.Join(root, "skills")
	entries, err := os.ReadDir(skillsDir)
	if err != nil {
		return skills
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		entryPath := filepath.Join(skillsDir, entry.Name())
		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		skillMD := filepath.Join(entryPath, skillFileName)
		mdInfo, err := os.Stat(skillMD)
		if err != nil {
			continue
		}

		name, description, err := parseSkillFrontmatter(skillMD)
		if err != nil {
			continue
		}

		skills = append(skills, Artifact{
			Name:        name,
			Type:        TypeSkill,
			Path:        entryPath,
			Description: description,
			Keywords:    ExtractKeywords(description),
			ModTime:     mdInfo.ModTime().Unix(),
		})
	}
	return skills
}

// ScanCommands returns one Artifact per markdown file under root/commands.
// The name is the filename stem; the description is the first paragraph
// line following the file's first "# " heading.
func ScanCommands(root string) []Artifact {
	var commands []Artifact

	commandsDir := filepath.Join(root, "commands")
	entries, err := os.ReadDir(commandsDir)
	if err != nil {
		return commands
	}

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

		content, err := os.ReadFile(entryPath)
		if err != nil {
			continue
		}

		description := parseCommandDescription(string(content))
		commands = append(commands, Artifact{
			Name:        strings.TrimSuffix(name, ".md"),
			Type:        TypeCommand,
			Path:        entryPath,
			Description: description,
			Keywords:    ExtractKeywords(description),
			ModTime:     info.ModTime().Unix(),
		})
	}
	return commands
}

// ScanAll scans every root in order and merges the results, deduplicating
// by (name, type) with earlier roots winning.
func ScanAll(roots ...string) []Artifact {
	var merged []Artifact
	seen := make(map[[2]string]struct{})

	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		for _, artifact := range ScanSkills(root) {
			key := [2]string{artifact.Name, artifact.Type}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, artifact)
		}
		for _, artifact := range ScanCommands(root) {
			key := [2]string{artifact.Name, artifact.Type}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, artifact)
		}
	}
	return merged
}

// parseSkillFrontmatter extracts name and description from a SKILL.md
// frontmatter block. The name is required; the description is not.
func parseSkillFrontmatter(path string) (string, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return "", "", errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return "", "", errors.New("missing frontmatter")
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)

	if name == "" {
		return "", "", errors.New("skill name is required in frontmatter")
	}

	return name, description, nil
}

// parseCommandDescription returns the first non-empty line that is neither
// a heading nor a code fence within the ten lines after the file's first
// "# " heading. No heading means no description.
func parseCommandDescription(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, "# ") {
			continue
		}

		limit := i + 10
		if limit > len(lines) {
			limit = len(lines)
		}
		for j := i + 1; j < limit; j++ {
			para := strings.TrimSpace(lines[j])
			if para != "" && !strings.HasPrefix(para, "#") && !strings.HasPrefix(para, "```") {
				return para
			}
		}
		break
	}
	return ""
}
