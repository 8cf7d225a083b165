package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Show the seven default-endpoint slots' binding status",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := client().Defaults()
		if err != nil {
			return fmt.Errorf("list defaults: %w", err)
		}
		cmd.Printf("%-20s %-8s %-8s\n", "SLOT", "BOUND", "NODE_ID")
		for _, e := range entries {
			cmd.Printf("%-20s %-8s %-8d\n", e.Slot, boolToYesNo(e.Bound), e.NodeID)
		}
		return nil
	},
}

func boolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
