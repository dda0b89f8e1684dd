package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diagx/converge/internal/logging"
)

const Version = "0.1.0"

var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:   "converge",
	Short: "Converge - diagnostic decision and evidence orchestration engine",
	Long: `Converge turns unstructured troubleshooting inputs (text, logs, command
output) into a converging, evidence-backed diagnosis. Each turn reconciles
new evidence against open evidence requests, aggregates confidence, and
watches for non-productive conversational loops.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Initialize(logLevelFlag)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info",
		"Log level: debug, info, warn, error")

	rootCmd.AddCommand(runCmd)
}

// HandleError prints the error and exits.
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}
