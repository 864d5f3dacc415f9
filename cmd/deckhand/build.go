package main

import (
	"context"
	"fmt"
	"os"

	"github.com/quayside/deckhand/pkg/presenter"
	"github.com/quayside/deckhand/pkg/site"
	"github.com/spf13/cobra"
)

type BuildConfig struct {
	SourceDir string
	OutputDir string
	BaseDir   string
}

func NewBuildConfig() *BuildConfig {
	return &BuildConfig{
		SourceDir: "slides",
		OutputDir: "output",
		BaseDir:   ".",
	}
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build every slide deck into a deployable static site",
	Long: `Build compiles every deck source under the source directory into a static
bundle and writes a landing page linking them all. The output directory is
recreated from scratch on every run; a single deck failure aborts the whole
build.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getBuildConfigFromFlags(cmd)
		runBuildCommand(ctx, config)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)

	defaults := NewBuildConfig()
	buildCmd.Flags().String("source", defaults.SourceDir, "Directory containing deck sources (*.slides.md)")
	buildCmd.Flags().String("output", defaults.OutputDir, "Directory to write the built site into")
	buildCmd.Flags().String("base-dir", defaults.BaseDir, "Repository root consulted for name resolution")
}

func getBuildConfigFromFlags(cmd *cobra.Command) *BuildConfig {
	config := NewBuildConfig()

	if sourceDir, err := cmd.Flags().GetString("source"); err == nil {
		config.SourceDir = sourceDir
	}
	if outputDir, err := cmd.Flags().GetString("output"); err == nil {
		config.OutputDir = outputDir
	}
	if baseDir, err := cmd.Flags().GetString("base-dir"); err == nil {
		config.BaseDir = baseDir
	}

	return config
}

func runBuildCommand(ctx context.Context, config *BuildConfig) {
	builder, err := site.NewBuilder(config.SourceDir, config.OutputDir, site.WithBaseDir(config.BaseDir))
	if err != nil {
		presenter.Error(err, "failed to create site builder")
		os.Exit(1)
	}

	built, err := builder.Build(ctx)
	if err != nil {
		presenter.Error(err, "site build failed")
		os.Exit(1)
	}

	presenter.Success(fmt.Sprintf("Built %d decks into %s", len(built), config.OutputDir))
	for _, deck := range built {
		presenter.Info("  - " + deck.Slug + ": " + deck.Title)
	}
}
