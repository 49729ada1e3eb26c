// Package main is the entry point for the tryon local companion.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tryon-ai/tryon/internal/logger"
	"github.com/tryon-ai/tryon/pkg/types"
)

const version = "0.1.0"

var (
	configPath string
	verbose    bool
	debug      bool

	rootCmd = &cobra.Command{
		Use:     "tryon",
		Short:   "Local companion for the try-on generation service",
		Long:    `tryon keeps API credentials, submitted images and the task list on this machine and serves them to the try-on UI.`,
		Version: version,
	}
)

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(prefsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file at path, or the first of the usual
// locations that exists, and falls back to defaults.
func loadConfig(path string) (*types.Config, error) {
	if path == "" {
		// Try common paths
		candidates := []string{
			"tryon.yaml",
			"tryon.yml",
			".tryon/config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	config := types.DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if verbose {
		config.Log.Verbose = true
	}
	if debug {
		config.Log.Debug = true
	}
	return config, nil
}

func newLogger(config *types.Config) logger.Logger {
	return logger.Logger{
		Verbose: config.Log.Verbose,
		Debug:   config.Log.Debug,
	}
}
