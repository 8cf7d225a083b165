// Package commands implements mediabrokerd's CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version and Commit are set by main from build-time ldflags.
	Version = "dev"
	Commit  = "none"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "mediabrokerd",
	Short: "mediabrokerd - media node broker daemon",
	Long: `mediabrokerd runs the broker process described by the media node
graph specification: it owns the node, add-on, buffer, format, and
default-endpoint registries, and exposes a read-only admin HTTP surface
for operators.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("mediabrokerd %s (commit %s)\n", Version, Commit)
	},
}
