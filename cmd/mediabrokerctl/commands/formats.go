package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List interned media format descriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		formats, err := client().Formats()
		if err != nil {
			return fmt.Errorf("list formats: %w", err)
		}
		if len(formats) == 0 {
			cmd.Println("No interned formats.")
			return nil
		}
		cmd.Printf("%-10s %-16s %-10s %-8s\n", "ENCODING", "FAMILY", "FAMILY_ID", "NAME")
		for _, f := range formats {
			cmd.Printf("%-10d %-16d %-10d %-8s\n", f.EncodingID, f.Family, f.FamilyID, f.Name)
		}
		return nil
	},
}
