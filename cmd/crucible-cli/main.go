// Crucible CLI — инструмент командной строки для запуска прогонов
// и просмотра их истории через HTTP API.
//
// Использование:
//
//	crucible [--api-url URL] [--json] run <subcommand> [flags]
//
// Команды:
//
//	run start   Запустить прогон и стримить прогресс
//	run list    История запусков
//	run show    Детали запуска с артефактами
//	run watch   Подписаться на чужой прогон через обменник прогресса
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koshkarov/crucible/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "crucible",
		Short:         "Crucible CLI — generate, validate and repair code artifacts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
