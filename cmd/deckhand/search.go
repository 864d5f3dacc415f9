package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/quayside/deckhand/pkg/apropos"
	"github.com/quayside/deckhand/pkg/artifacts"
	"github.com/quayside/deckhand/pkg/presenter"
	"github.com/spf13/cobra"
)

type SearchConfig struct {
	Roots   []string
	Type    string
	List    bool
	Rebuild bool
}

func NewSearchConfig() *SearchConfig {
	return &SearchConfig{
		Roots: []string{"."},
	}
}

// Output shapes. Search results keep the shape of apropos.Result; list
// entries carry only the identifying fields.
type searchOutput struct {
	Query   string           `json:"query"`
	Count   int              `json:"count"`
	Results []apropos.Result `json:"results"`
}

type listEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type listOutput struct {
	Action    string      `json:"action"`
	Count     int         `json:"count"`
	Artifacts []listEntry `json:"artifacts"`
}

type rebuildOutput struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

var searchCmd = &cobra.Command{
	Use:   "search [query words...]",
	Short: "Search the skill and command index",
	Long: `Search scores every indexed skill and command against the query words and
prints the hits as JSON, best match first. The index is rebuilt on the fly
when the corpus has changed since it was last written.

Examples:
  # Find artifacts about slide decks
  deckhand search slide deck

  # List everything in the index
  deckhand search --list

  # Restrict to one artifact type
  deckhand search convert --type command

  # Force a full reindex
  deckhand search --rebuild`,
	Run: func(cmd *cobra.Command, args []string) {
		config := getSearchConfigFromFlags(cmd)

		if len(args) == 0 && !config.List && !config.Rebuild {
			cmd.Help()
			os.Exit(1)
		}

		runSearchCommand(config, args)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	defaults := NewSearchConfig()
	searchCmd.Flags().StringArray("root", defaults.Roots, "Corpus root to index (repeatable)")
	searchCmd.Flags().String("type", defaults.Type, "Filter by artifact type (skill or command)")
	searchCmd.Flags().Bool("list", defaults.List, "List all indexed artifacts")
	searchCmd.Flags().Bool("rebuild", defaults.Rebuild, "Force a full index rebuild")
}

func getSearchConfigFromFlags(cmd *cobra.Command) *SearchConfig {
	config := NewSearchConfig()

	if roots, err := cmd.Flags().GetStringArray("root"); err == nil && len(roots) > 0 {
		config.Roots = roots
	}
	if artifactType, err := cmd.Flags().GetString("type"); err == nil {
		config.Type = artifactType
	}
	if list, err := cmd.Flags().GetBool("list"); err == nil {
		config.List = list
	}
	if rebuild, err := cmd.Flags().GetBool("rebuild"); err == nil {
		config.Rebuild = rebuild
	}

	return config
}

func validateSearchConfig(config *SearchConfig) error {
	if len(config.Roots) == 0 {
		return errors.New("at least one corpus root is required")
	}
	switch config.Type {
	case "", artifacts.TypeSkill, artifacts.TypeCommand:
	default:
		return errors.Errorf("invalid type %q: must be %q or %q", config.Type, artifacts.TypeSkill, artifacts.TypeCommand)
	}
	return nil
}

func runSearchCommand(config *SearchConfig, queryWords []string) {
	if err := validateSearchConfig(config); err != nil {
		presenter.Error(err, "invalid search configuration")
		os.Exit(1)
	}

	// The index lives under the first root; additional roots only
	// contribute artifacts.
	indexPath := filepath.Join(config.Roots[0], apropos.DefaultIndexPath)

	if config.Rebuild {
		index, err := apropos.BuildIndex(indexPath, config.Roots, true)
		if err != nil {
			presenter.Error(err, "failed to rebuild artifact index")
			os.Exit(1)
		}
		printJSON(rebuildOutput{Action: "rebuild", Count: len(index.Artifacts)})
		return
	}

	index, err := apropos.BuildIndex(indexPath, config.Roots, false)
	if err != nil {
		presenter.Error(err, "failed to build artifact index")
		os.Exit(1)
	}

	if config.List {
		entries := []listEntry{}
		for _, artifact := range index.Artifacts {
			if config.Type != "" && artifact.Type != config.Type {
				continue
			}
			entries = append(entries, listEntry{
				Name:        artifact.Name,
				Type:        artifact.Type,
				Description: artifact.Description,
			})
		}
		printJSON(listOutput{Action: "list", Count: len(entries), Artifacts: entries})
		return
	}

	query := strings.Join(queryWords, " ")
	results := apropos.Search(index, query, config.Type)
	if results == nil {
		results = []apropos.Result{}
	}
	printJSON(searchOutput{Query: query, Count: len(results), Results: results})
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		presenter.Error(err, "failed to encode output")
		os.Exit(1)
	}
	fmt.Println(string(data))
}
