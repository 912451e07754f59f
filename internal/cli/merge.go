package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/cips/internal/merge"
	"github.com/rcliao/cips/internal/resolver"
)

func init() {
	cmd := &cobra.Command{
		Use:   "merge <reference> <reference>...",
		Short: "Merge branches into one confluence instance",
		Long: "Resolves two or more source references, consolidates their memories and\n" +
			"achievements, and writes a confluence instance whose parents reference\n" +
			"every source. Fails closed if any source is an ancestor of another.",
		Args: cobra.MinimumNArgs(2),
		Run:  runMerge,
	}

	cmd.Flags().String("into", "main", "Target branch for the merged instance")
	cmd.Flags().Bool("dry-run", false, "Preview the projected instance without persisting")
	cmd.Flags().BoolP("json", "j", false, "Output full instance as JSON")

	RootCmd.AddCommand(cmd)
}

func runMerge(cmd *cobra.Command, args []string) {
	target, _ := cmd.Flags().GetString("into")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	engine := merge.New(s, resolver.New(s))
	inst, err := engine.Merge(cmd.Context(), merge.Params{
		NS:           currentNS(),
		SourceRefs:   args,
		TargetBranch: target,
		DryRun:       dryRun,
	})
	if err != nil {
		exitErr("merge", err)
	}

	if asJSON {
		b, _ := json.MarshalIndent(inst, "", "  ")
		fmt.Println(string(b))
		return
	}

	verb := "merged"
	if dryRun {
		verb = "would merge"
	}
	fmt.Printf("%s %d sources into %s\n", verb, len(inst.Parents), target)
	fmt.Printf("instance: %s (gen %d)\n", inst.ID, inst.Generation)
	fmt.Printf("memories: %d, achievements: %d\n", inst.MessageCount, len(inst.Achievements))
}
