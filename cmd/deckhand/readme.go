package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quayside/deckhand/pkg/presenter"
	"github.com/quayside/deckhand/pkg/readmegen"
	"github.com/spf13/cobra"
)

type ReadmeConfig struct {
	Root  string
	Check bool
}

func NewReadmeConfig() *ReadmeConfig {
	return &ReadmeConfig{
		Root: ".",
	}
}

var readmeCmd = &cobra.Command{
	Use:   "readme",
	Short: "Regenerate the skill and command tables in README.md",
	Long: `Readme rescans the skills/ and commands/ directories and rewrites the
Skills and Commands tables in README.md in place. All other README content
is preserved. With --check nothing is written; the command exits non-zero
if the tables are out of date, which makes it usable as a CI guard.`,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getReadmeConfigFromFlags(cmd)
		runReadmeCommand(config)
	},
}

func init() {
	rootCmd.AddCommand(readmeCmd)

	defaults := NewReadmeConfig()
	readmeCmd.Flags().String("root", defaults.Root, "Repository root containing README.md, skills/ and commands/")
	readmeCmd.Flags().Bool("check", defaults.Check, "Exit non-zero if README.md is out of date instead of writing it")
}

func getReadmeConfigFromFlags(cmd *cobra.Command) *ReadmeConfig {
	config := NewReadmeConfig()

	if root, err := cmd.Flags().GetString("root"); err == nil {
		config.Root = root
	}
	if check, err := cmd.Flags().GetBool("check"); err == nil {
		config.Check = check
	}

	return config
}

func runReadmeCommand(config *ReadmeConfig) {
	skills := readmegen.Skills(config.Root)
	commands := readmegen.Commands(config.Root)
	readmePath := filepath.Join(config.Root, "README.md")

	fmt.Printf("Skills: %d\n", len(skills))
	for _, skill := range skills {
		fmt.Printf("  - %s\n", skill.Name)
	}

	fmt.Printf("Commands: %d\n", len(commands))
	for _, command := range commands {
		fmt.Printf("  - %s\n", command.Name)
	}

	if config.Check {
		changed, err := readmegen.CheckReadme(readmePath, skills, commands)
		if err != nil {
			presenter.Error(err, "failed to check README.md")
			os.Exit(1)
		}
		if changed {
			fmt.Println("\nREADME.md is out of date.")
			os.Exit(1)
		}
		fmt.Println("\nREADME.md already up to date.")
		return
	}

	changed, err := readmegen.UpdateReadme(readmePath, skills, commands)
	if err != nil {
		presenter.Error(err, "failed to update README.md")
		os.Exit(1)
	}

	if changed {
		fmt.Println("\nREADME.md updated!")
	} else {
		fmt.Println("\nREADME.md already up to date.")
	}
}
