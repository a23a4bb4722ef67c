package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const appName = "prompter"

var (
	cfgFile      string
	verbose      bool
	backendURL   string
	globalConfig Config
	configErr    error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Teleprompter that follows your voice",
	Long: `prompter highlights the part of a script you are reading and speaks the
current segment aloud when you stall.

Alignment and prompt audio come from the backend, configuration is stored in
~/.ema/prompter/config.yaml.`,
	SilenceUsage: true,
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.ema/prompter/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "backend base URL")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(segmentCmd)
	rootCmd.AddCommand(settingsCmd)
}

func initConfig() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	path := cfgFile
	if path == "" {
		path = defaultConfigPath()
	}
	globalConfig, configErr = LoadConfig(path, cfgFile != "")
	if backendURL != "" {
		globalConfig.BackendURL = backendURL
	}
}

// getConfig returns the loaded configuration, reporting a broken config file
// only when a command needs it.
func getConfig() (Config, error) {
	if configErr != nil {
		return Config{}, fmt.Errorf("%s config: %w", appName, configErr)
	}
	return globalConfig, nil
}
