package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List live nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := client().Nodes()
		if err != nil {
			return fmt.Errorf("list nodes: %w", err)
		}
		if len(nodes) == 0 {
			cmd.Println("No live nodes.")
			return nil
		}
		cmd.Printf("%-8s %-24s %-10s\n", "ID", "NAME", "KINDS")
		for _, n := range nodes {
			cmd.Printf("%-8d %-24s %#010x\n", n.ID, n.Name, uint32(n.Kinds))
		}
		return nil
	},
}
