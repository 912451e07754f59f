package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List serialized instances, newest first",
		Run:   runList,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	summaries, err := s.List(cmd.Context(), currentNS(), limit)
	if err != nil {
		exitErr("list", err)
	}

	if asJSON {
		b, _ := json.MarshalIndent(summaries, "", "  ")
		fmt.Println(string(b))
		return
	}

	if len(summaries) == 0 {
		fmt.Println("No instances serialized yet.")
		return
	}
	for _, sum := range summaries {
		mark := " "
		if sum.ParentCount > 1 {
			mark = "M"
		}
		fmt.Printf("%s %-26s gen %-3d %-10s %4d memories  %s\n",
			mark, sum.ID, sum.Generation, sum.Branch, sum.MessageCount,
			sum.CreatedAt.Format("2006-01-02 15:04"))
	}
}
