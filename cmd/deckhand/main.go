package main

import (
	"fmt"
	"os"

	"github.com/quayside/deckhand/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("DECKHAND")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.deckhand")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "deckhand",
	Short: "Deckhand builds slide deck repositories into static sites",
	Long: `Deckhand turns a repository of markdown slide decks into a deployable
static site, previews it locally with live reload, and keeps the
repository's artifact index and README tables up to date.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			logger.L.WithError(err).Warn("invalid log level, keeping default")
		}
		logger.SetLogFormat(viper.GetString("log_format"))

		fields := logrus.Fields{"command": cmd.CommandPath()}
		cmd.Flags().Visit(func(flag *pflag.Flag) {
			fields["flag."+flag.Name] = flag.Value.String()
		})
		logger.L.WithFields(fields).Debug("command invoked")
	},
	// Default behavior is to show help if no subcommand is provided
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	// Add global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json, text)")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
