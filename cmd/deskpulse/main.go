package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags holds flags for the run command
type RunFlags struct {
	Listen         string
	NoVision       bool
	SimulateVision bool
	LogLevel       string
	StatsPath      string
}

// StatusFlags holds flags for commands that talk to a running daemon
type StatusFlags struct {
	APIUrl string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	statusFlags := &StatusFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags, runFlags),
		createStatusCommand(statusFlags),
		createVersionCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "deskpulse",
		Short: "Desk activity inference and break reminders",
		Long: `Deskpulse watches input, window and camera signals, scores how
active you are at your desk and reminds you to take breaks.

Examples:
  deskpulse run                          # Start the tracker daemon
  deskpulse run --simulate-vision        # No camera, synthetic presence
  deskpulse status                       # Query a running daemon`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")

	return root
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("deskpulse %s\n", version)
		},
	}
}
