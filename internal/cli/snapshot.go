package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSnapshotCmd создаёт группу команд для управления snapshots.
func NewSnapshotCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage machine snapshots",
	}

	cmd.AddCommand(
		newSnapshotListCmd(clientFn, outputFn),
		newSnapshotRemoveCmd(clientFn, outputFn),
	)

	return cmd
}

func newSnapshotListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list WORKSPACE_ID",
		Short: "List snapshots of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			snapshots, err := client.ListSnapshots(args[0])
			if err != nil {
				return err
			}

			printSnapshots(out, snapshots, snapshots)
			return nil
		},
	}
}

func newSnapshotRemoveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:     "remove SNAPSHOT_ID",
		Aliases: []string{"rm"},
		Short:   "Remove a snapshot and its image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.RemoveSnapshot(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Snapshot %s removed", args[0]))
			return nil
		},
	}
}

func printSnapshots(out *Output, snapshots []SnapshotResponse, jsonData any) {
	headers := []string{"ID", "MACHINE", "ENV", "DEV", "IMAGE", "CREATED"}
	rows := make([][]string, len(snapshots))
	for i, s := range snapshots {
		rows[i] = []string{s.ID, s.MachineName, s.EnvName, boolMark(s.Dev), shortImage(s.ImageID), s.CreatedAt}
	}
	out.Print(headers, rows, jsonData)
}

// shortImage сокращает sha256 образа до 12 символов, как docker.
func shortImage(id string) string {
	const prefix = "sha256:"
	if len(id) > len(prefix) && id[:len(prefix)] == prefix {
		id = id[len(prefix):]
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
