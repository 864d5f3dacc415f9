package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quayside/deckhand/pkg/logger"
	"github.com/quayside/deckhand/pkg/presenter"
	"github.com/quayside/deckhand/pkg/preview"
	"github.com/quayside/deckhand/pkg/repoinfo"
	"github.com/quayside/deckhand/pkg/site"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// PreviewConfig holds configuration for the preview command
type PreviewConfig struct {
	Host      string
	Port      int
	SourceDir string
	OutputDir string
	BaseDir   string
}

// NewPreviewConfig creates a new PreviewConfig with default values
func NewPreviewConfig() *PreviewConfig {
	return &PreviewConfig{
		Host:      "localhost",
		Port:      8080,
		SourceDir: "slides",
		OutputDir: "output",
		BaseDir:   ".",
	}
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Serve the built site locally with live reload",
	Long: `Preview runs a full site build, serves the output directory over HTTP, and
watches the deck sources for changes. Edits trigger a debounced rebuild and
connected browsers reload automatically. A failed rebuild keeps the last
good output on screen.

The server will be available at http://localhost:8080 by default.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getPreviewConfigFromFlags(cmd)
		runPreviewCommand(ctx, config)
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)

	defaults := NewPreviewConfig()
	previewCmd.Flags().String("host", defaults.Host, "Host to bind the preview server to")
	previewCmd.Flags().Int("port", defaults.Port, "Port to bind the preview server to")
	previewCmd.Flags().String("source", defaults.SourceDir, "Directory containing deck sources (*.slides.md)")
	previewCmd.Flags().String("output", defaults.OutputDir, "Directory to write the built site into")
	previewCmd.Flags().String("base-dir", defaults.BaseDir, "Repository root consulted for name resolution")
}

// getPreviewConfigFromFlags extracts preview configuration from command flags
func getPreviewConfigFromFlags(cmd *cobra.Command) *PreviewConfig {
	config := NewPreviewConfig()

	if host, err := cmd.Flags().GetString("host"); err == nil {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}
	if sourceDir, err := cmd.Flags().GetString("source"); err == nil {
		config.SourceDir = sourceDir
	}
	if outputDir, err := cmd.Flags().GetString("output"); err == nil {
		config.OutputDir = outputDir
	}
	if baseDir, err := cmd.Flags().GetString("base-dir"); err == nil {
		config.BaseDir = baseDir
	}

	// Allow override from viper config
	if viper.IsSet("preview.host") {
		config.Host = viper.GetString("preview.host")
	}
	if viper.IsSet("preview.port") {
		config.Port = viper.GetInt("preview.port")
	}

	return config
}

// validatePreviewConfig validates the preview configuration
func validatePreviewConfig(config *PreviewConfig) error {
	if config.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	// Check if host is a valid hostname or IP address
	if config.Host != "localhost" && config.Host != "0.0.0.0" {
		if ip := net.ParseIP(config.Host); ip == nil {
			if strings.Contains(config.Host, " ") || strings.Contains(config.Host, ":") {
				return fmt.Errorf("invalid host: %s", config.Host)
			}
		}
	}

	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}

	if config.Port < 1024 {
		logger.G(context.Background()).WithField("port", config.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}

	return nil
}

// runPreviewCommand builds the site and serves it with live reload
func runPreviewCommand(ctx context.Context, config *PreviewConfig) {
	if err := validatePreviewConfig(config); err != nil {
		presenter.Error(err, "invalid preview configuration")
		os.Exit(1)
	}

	builder, err := site.NewBuilder(config.SourceDir, config.OutputDir, site.WithBaseDir(config.BaseDir))
	if err != nil {
		presenter.Error(err, "failed to create site builder")
		os.Exit(1)
	}

	repoName := repoinfo.Resolve(ctx, config.BaseDir)

	server, err := preview.NewServer(&preview.Config{
		Host:      config.Host,
		Port:      config.Port,
		SourceDir: config.SourceDir,
		OutputDir: config.OutputDir,
		RepoName:  repoName,
		Rebuild: func(ctx context.Context) error {
			_, err := builder.Build(ctx)
			return err
		},
	})
	if err != nil {
		presenter.Error(err, "failed to create preview server")
		os.Exit(1)
	}

	// Create a context that cancels on interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	presenter.Success(fmt.Sprintf("Preview server starting on http://%s:%d/%s/", config.Host, config.Port, repoName))
	presenter.Info("Press Ctrl+C to stop the server")

	if err := server.Run(ctx); err != nil {
		logger.G(ctx).WithError(err).Error("preview server error")
		presenter.Error(err, "preview server failed")
		os.Exit(1)
	}

	presenter.Info("Preview server stopped")
}
