// Package commands implements mediabrokerctl's CLI commands.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/alxayo/mediabroker/pkg/adminclient"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "mediabrokerctl",
	Short: "mediabrokerctl - inspect a running mediabrokerd",
	Long: `mediabrokerctl is a read-only client for mediabrokerd's admin HTTP
surface: it lists live nodes, interned formats, live buffers, and the
seven default-endpoint slots' binding status.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8088", "admin HTTP server base URL")
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(buffersCmd)
	rootCmd.AddCommand(defaultsCmd)
}

func client() *adminclient.Client {
	return adminclient.New(serverURL)
}
