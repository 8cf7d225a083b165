package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buffersCmd = &cobra.Command{
	Use:   "buffers",
	Short: "List live buffers",
	RunE: func(cmd *cobra.Command, args []string) error {
		bufs, err := client().Buffers()
		if err != nil {
			return fmt.Errorf("list buffers: %w", err)
		}
		if len(bufs) == 0 {
			cmd.Println("No live buffers.")
			return nil
		}
		cmd.Printf("%-8s %-10s %-8s %-8s %-8s\n", "ID", "REGION", "OFFSET", "SIZE", "REFS")
		for _, b := range bufs {
			cmd.Printf("%-8d %-10d %-8d %-8d %-8d\n", b.ID, b.RegionID, b.Offset, b.Size, b.RefCount)
		}
		return nil
	},
}
