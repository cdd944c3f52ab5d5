package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewThreadsCmd creates the threads command.
func NewThreadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "List your private threads in the event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := newClientContext(cmd, nil)
			if err != nil {
				return err
			}
			defer cc.Close()

			threads, err := cc.engine.RefreshThreads(cmd.Context(), cc.scope.EventID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(threads) == 0 {
				fmt.Fprintln(out, "no threads")
				return nil
			}
			for _, t := range threads {
				fmt.Fprintf(out, "%s  with %s  as %s  last %s\n",
					t.ID, t.CounterpartID, t.Role, t.LastActivityAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
