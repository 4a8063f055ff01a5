package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"linebridge/internal/subscription"
)

func newLinksCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "links",
		Short: "List active channel/group bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := subscription.Open(cfg.DatabasePath())
			if err != nil {
				return err
			}
			defer store.Close()

			subs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(subs) == 0 {
				fmt.Fprintln(out, "No active bindings.")
				return nil
			}

			rows := make([][]string, 0, len(subs))
			for _, sub := range subs {
				rows = append(rows, []string{
					strconv.FormatInt(sub.Number, 10),
					displayName(sub.ChannelName, sub.ChannelID),
					displayName(sub.GroupName, sub.GroupID),
					sub.CreatedAt.Format("2006-01-02 15:04"),
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"#", "Discord channel", "LINE group", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func displayName(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
