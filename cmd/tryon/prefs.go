package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tryon-ai/tryon/pkg/types"
)

var (
	prefsCmd = &cobra.Command{
		Use:   "prefs",
		Short: "Read and change user preferences",
	}

	prefsGetCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Show one preference, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if len(args) == 1 {
					if !types.IsPreference(args[0]) {
						return fmt.Errorf("unknown preference %s", args[0])
					}
					fmt.Println(a.prefs.GetOr(cmd.Context(), args[0], types.PreferenceDefaults()[args[0]]))
					return nil
				}

				stored, err := a.prefs.List(cmd.Context())
				if err != nil {
					return err
				}
				all := types.PreferenceDefaults()
				for k, v := range stored {
					all[k] = v
				}
				keys := make([]string, 0, len(all))
				for k := range all {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Printf("%s=%s\n", k, all[k])
				}
				return nil
			})
		},
	}

	prefsSetCmd = &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !types.ValidPreference(args[0], args[1]) {
				return fmt.Errorf("invalid value %q for preference %s", args[1], args[0])
			}
			return withApp(func(a *app) error {
				if err := a.prefs.Set(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				a.log.Infof("%s set to %s", args[0], args[1])
				return nil
			})
		},
	}
)

func init() {
	prefsCmd.AddCommand(prefsGetCmd)
	prefsCmd.AddCommand(prefsSetCmd)
}
