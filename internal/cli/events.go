package cli

import (
	"github.com/spf13/cobra"
)

// NewEventsCmd создаёт команду просмотра журнала событий workspace.
func NewEventsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events WORKSPACE_ID",
		Short: "Show lifecycle events of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			events, err := client.ListEvents(args[0], limit)
			if err != nil {
				return err
			}

			headers := []string{"TIME", "TYPE", "ERROR"}
			rows := make([][]string, len(events))
			for i, e := range events {
				rows[i] = []string{e.Timestamp, e.Type, valueOr(e.Error, "-")}
			}

			out.Print(headers, rows, events)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of events (default: server default)")

	return cmd
}
