package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean the local image cache",
	}

	cacheListCmd = &cobra.Command{
		Use:   "list",
		Short: "List cached image sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				entries, err := a.assets.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println("No cached images.")
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TASK\tSAVED\tSLOTS")
				for _, e := range entries {
					slots := make([]string, 0, len(e.Slots))
					for _, s := range e.Slots {
						if s.Present {
							slots = append(slots, fmt.Sprintf("%s(%s, %d B)", s.Slot, s.MimeType, s.Size))
						} else {
							slots = append(slots, s.Slot+"(-)")
						}
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.TaskID, e.SavedAt.Format(time.RFC3339), strings.Join(slots, " "))
				}
				return w.Flush()
			})
		},
	}

	cacheRmCmd = &cobra.Command{
		Use:   "rm <task-id>...",
		Short: "Remove cached images of tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				for _, id := range args {
					if !a.assets.Delete(cmd.Context(), id) {
						return fmt.Errorf("failed to remove %s", id)
					}
					fmt.Printf("Removed %s\n", id)
				}
				return nil
			})
		},
	}

	cacheSweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Remove cached images of tasks no longer in the task list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				result, err := a.client.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range result.Removed {
					fmt.Printf("Removed %s\n", id)
				}
				fmt.Printf("Scanned %d, removed %d\n", result.Scanned, len(result.Removed))
				return nil
			})
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheRmCmd)
	cacheCmd.AddCommand(cacheSweepCmd)
}
