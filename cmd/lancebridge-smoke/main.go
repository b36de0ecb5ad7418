package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel        string
	queueCapacity   int
	callbackWorkers int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lancebridge-smoke",
		Short: "lancebridge-smoke - debug driver for the bridge engine's Go API",
		Long:  "Exercises the dispatcher/lifecycle/registries directly, bypassing the cgo C-ABI surface, for local development and smoke testing.",
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&queueCapacity, "queue-capacity", 100, "Dispatcher command queue capacity")
	rootCmd.PersistentFlags().IntVar(&callbackWorkers, "callback-workers", 16, "Callback pool worker count")

	rootCmd.AddCommand(
		runCmd(),
		queryCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the smoke driver version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("lancebridge-smoke dev")
			return nil
		},
	}
}
