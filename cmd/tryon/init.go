package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tryon-ai/tryon/internal/crypto"
	"github.com/tryon-ai/tryon/internal/store"
	"github.com/tryon-ai/tryon/pkg/types"
)

var (
	initPath  string
	initForce bool
	initNoPin bool

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a config file and an empty store",
		Long: `Writes tryon.yaml and creates the SQLite store.

Unless --no-pin is given, the current environment signals are written to the
config so that later runs derive the same credential secret even when the
terminal size or host name changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initializeTryon(initPath)
		},
	}
)

func init() {
	initCmd.Flags().StringVarP(&initPath, "path", "p", ".", "project path for initialization")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config")
	initCmd.Flags().BoolVar(&initNoPin, "no-pin", false, "do not pin environment signals in the config")
}

func initializeTryon(projectPath string) error {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return err
	}

	configFile := filepath.Join(absPath, "tryon.yaml")
	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config already exists: %s (use --force to overwrite)", configFile)
	}

	// Create .tryon directory
	dataDir := filepath.Join(absPath, ".tryon")
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create .tryon directory: %w", err)
	}

	// Create default config
	config := types.DefaultConfig()
	config.Store.Path = filepath.Join(dataDir, "tryon.db")
	if !initNoPin {
		signals := crypto.HostSignals{Version: version}.Signals()
		config.Environment = types.EnvironmentConfig{
			UserAgent:     signals.UserAgent,
			Language:      signals.Language,
			DisplayWidth:  signals.DisplayWidth,
			DisplayHeight: signals.DisplayHeight,
		}
	}

	configData, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configFile, configData, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Created config: %s\n", configFile)

	// Initialize store
	st := store.NewStore(config.Store.Path, newLogger(config))
	if err := st.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	st.Close()
	fmt.Printf("Created store: %s\n", config.Store.Path)

	fmt.Println("\ntryon initialization complete!")
	fmt.Println("Run 'tryon serve' to start the companion.")

	return nil
}
