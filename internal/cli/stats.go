package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show project index counters",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	idx, err := s.ProjectIndex(cmd.Context(), currentNS())
	if err != nil {
		exitErr("stats", err)
	}

	b, _ := json.MarshalIndent(idx, "", "  ")
	fmt.Println(string(b))
}
