package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "branches",
		Short: "List branch pointers with their latest generation",
		Run:   runBranches,
	}

	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	RootCmd.AddCommand(cmd)
}

func runBranches(cmd *cobra.Command, args []string) {
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	branches, err := s.Branches(cmd.Context(), currentNS())
	if err != nil {
		exitErr("branches", err)
	}

	if asJSON {
		b, _ := json.MarshalIndent(branches, "", "  ")
		fmt.Println(string(b))
		return
	}

	if len(branches) == 0 {
		fmt.Println("No branches yet.")
		return
	}
	for _, b := range branches {
		line := fmt.Sprintf("%-10s gen %-3d latest %s  updated %s",
			b.Name, b.LatestGeneration, b.LatestInstanceID, b.UpdatedAt.Format("2006-01-02 15:04"))
		if b.ForkPoint != nil {
			line += fmt.Sprintf("  (forked from %s)", b.ForkPoint.Branch)
		}
		fmt.Println(line)
	}
}
