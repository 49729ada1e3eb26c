package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tryon-ai/tryon/pkg/types"
)

var credentialNames = []string{types.CredentialVLAPIKey, types.CredentialImageAPIKey}

var (
	credentialValue string

	credentialsCmd = &cobra.Command{
		Use:   "credentials",
		Short: "Manage API keys stored for manual configuration",
	}

	credentialsSetCmd = &cobra.Command{
		Use:       "set <name>",
		Short:     "Store an API key",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: credentialNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			value := credentialValue
			if value == "" {
				v, err := readSecret(fmt.Sprintf("Enter %s: ", args[0]))
				if err != nil {
					return err
				}
				value = v
			}
			return withApp(func(a *app) error {
				if err := a.vault.Save(cmd.Context(), args[0], value); err != nil {
					return err
				}
				if value == "" {
					fmt.Printf("%s cleared\n", args[0])
				} else {
					fmt.Printf("%s saved\n", args[0])
				}
				return nil
			})
		},
	}

	credentialsClearCmd = &cobra.Command{
		Use:       "clear <name>",
		Short:     "Remove an API key",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: credentialNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.vault.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("%s cleared\n", args[0])
				return nil
			})
		},
	}

	credentialsStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show which API keys are configured in this environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				method := a.prefs.GetOr(cmd.Context(), types.PrefConfigMethod, string(types.ConfigManaged))
				fmt.Printf("config method: %s\n", method)
				for _, name := range credentialNames {
					state := "not configured"
					if a.vault.Configured(cmd.Context(), name) {
						state = "configured"
					}
					fmt.Printf("%-12s %s\n", name, state)
				}
				return nil
			})
		},
	}
)

func init() {
	credentialsSetCmd.Flags().StringVar(&credentialValue, "value", "", "key value (prompted when omitted)")

	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsClearCmd)
	credentialsCmd.AddCommand(credentialsStatusCmd)
}

// readSecret prompts without echo on a terminal and reads a line otherwise.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func withApp(fn func(a *app) error) error {
	config, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := openApp(config)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
