package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMachineCmd создаёт группу команд для управления машинами runtime.
func NewMachineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machine",
		Short: "Manage machines of a running workspace",
	}

	cmd.AddCommand(
		newMachineStartCmd(clientFn, outputFn),
		newMachineShowCmd(clientFn, outputFn),
		newMachineStopCmd(clientFn, outputFn),
		newMachineSaveCmd(clientFn, outputFn),
	)

	return cmd
}

func newMachineStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "start WORKSPACE_ID --file machine.yaml",
		Short: "Start a machine in a running workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cfg, err := loadDocument(file)
			if err != nil {
				return err
			}

			m, err := client.StartMachine(args[0], cfg)
			if err != nil {
				return err
			}

			printMachine(out, m)
			out.Success(fmt.Sprintf("Machine %s started: %s", m.Name, m.ID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Machine config (YAML or JSON)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newMachineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show WORKSPACE_ID MACHINE_ID",
		Short: "Show a machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			m, err := client.GetMachine(args[0], args[1])
			if err != nil {
				return err
			}

			printMachine(out, m)
			return nil
		},
	}
}

func newMachineStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop WORKSPACE_ID MACHINE_ID",
		Short: "Stop a non-dev machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.StopMachine(args[0], args[1]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Machine %s stopped", args[1]))
			return nil
		},
	}
}

func newMachineSaveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "save WORKSPACE_ID MACHINE_ID",
		Short: "Save a snapshot of a machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			s, err := client.SaveMachine(args[0], args[1], namespace)
			if err != nil {
				return err
			}

			printSnapshots(out, []SnapshotResponse{*s}, s)
			out.Success(fmt.Sprintf("Snapshot %s saved", s.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Snapshot namespace (default: workspace namespace)")

	return cmd
}

func printMachine(out *Output, m *MachineResponse) {
	headers := []string{"MACHINE_ID", "NAME", "DEV", "READY", "ADDRESS", "PORTS"}
	out.Print(headers, [][]string{machineRow(*m)}, m)
}
