package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewWorkspaceCmd создаёт группу команд для управления runtime workspace.
func NewWorkspaceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspace runtimes",
	}

	cmd.AddCommand(
		newWorkspaceListCmd(clientFn, outputFn),
		newWorkspaceStartCmd(clientFn, outputFn),
		newWorkspaceShowCmd(clientFn, outputFn),
		newWorkspaceStopCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkspaceListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces that have a runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			states, err := client.ListWorkspaces(status)
			if err != nil {
				return err
			}

			headers := []string{"WORKSPACE", "STATUS", "ENV"}
			rows := make([][]string, len(states))
			for i, s := range states {
				rows[i] = []string{s.WorkspaceID, s.Status, s.EnvName}
			}

			out.Print(headers, rows, states)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (STARTING, RUNNING, STOPPING)")

	return cmd
}

func newWorkspaceStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var env string
	var recoverState bool

	cmd := &cobra.Command{
		Use:   "start WORKSPACE_ID",
		Short: "Start a workspace runtime",
		Long: `Start a workspace runtime.

Without --file the workspace must be defined in the server's workspaces file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := StartRuntimeRequest{Env: env, Recover: recoverState}
			if file != "" {
				doc, err := loadDocument(file)
				if err != nil {
					return err
				}
				req.Workspace = doc
			}

			rt, err := client.StartRuntime(args[0], req)
			if err != nil {
				return err
			}

			printRuntime(out, rt)
			out.Success(fmt.Sprintf("Workspace %s is %s", rt.WorkspaceID, rt.Status))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Workspace definition (YAML or JSON)")
	cmd.Flags().StringVar(&env, "env", "", "Environment name (default: workspace default env)")
	cmd.Flags().BoolVar(&recoverState, "recover", false, "Recover machines from existing containers or snapshots")

	return cmd
}

func newWorkspaceShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show WORKSPACE_ID",
		Short: "Show a workspace runtime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rt, err := client.GetRuntime(args[0])
			if err != nil {
				return err
			}

			printRuntime(out, rt)
			return nil
		},
	}
}

func newWorkspaceStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop WORKSPACE_ID",
		Short: "Stop a workspace runtime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.StopRuntime(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workspace %s stopped", args[0]))
			return nil
		},
	}
}

// printRuntime выводит машины runtime.
func printRuntime(out *Output, rt *RuntimeResponse) {
	headers := []string{"MACHINE_ID", "NAME", "DEV", "READY", "ADDRESS", "PORTS"}
	rows := make([][]string, len(rt.Machines))
	for i, m := range rt.Machines {
		rows[i] = machineRow(m)
	}
	out.Print(headers, rows, rt)
}

func machineRow(m MachineResponse) []string {
	return []string{
		m.ID,
		m.Name,
		boolMark(m.Dev),
		boolMark(m.Ready),
		valueOr(m.Address, "-"),
		formatPorts(m.Ports),
	}
}

// formatPorts форматирует опубликованные порты: "4401/tcp→32768".
func formatPorts(ports map[string]string) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ports))
	for container, host := range ports {
		parts = append(parts, container+"→"+host)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// loadDocument читает YAML или JSON файл в произвольную структуру.
func loadDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return doc, nil
}
