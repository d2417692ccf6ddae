// wsmaster CLI — инструмент командной строки для управления
// runtime'ами workspace через HTTP API.
//
// Использование:
//
//	wsmaster [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	workspace  Управление runtime'ами
//	machine    Управление машинами runtime
//	snapshot   Управление snapshots
//	events     Журнал событий workspace
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/wsmaster/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "wsmaster",
		Short:         "wsmaster CLI: workspace runtime management",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("WSMASTER_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewWorkspaceCmd(clientFn, outputFn),
		cli.NewMachineCmd(clientFn, outputFn),
		cli.NewSnapshotCmd(clientFn, outputFn),
		cli.NewEventsCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
