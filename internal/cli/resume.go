package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/cips/internal/model"
	"github.com/rcliao/cips/internal/resolver"
)

func init() {
	cmd := &cobra.Command{
		Use:   "resume [reference]",
		Short: "Resolve a reference to its host session handle",
		Long: "Resolves latest, gen:N, branch:NAME, an instance id prefix, or a raw\n" +
			"session handle, and prints the opaque handle the host uses to resume the\n" +
			"interactive session.",
		Args: cobra.MaximumNArgs(1),
		Run:  runResume,
	}

	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	RootCmd.AddCommand(cmd)
}

func runResume(cmd *cobra.Command, args []string) {
	ref := "latest"
	if len(args) > 0 {
		ref = args[0]
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	inst, err := resolver.New(s).Resolve(cmd.Context(), currentNS(), ref)
	if err != nil {
		exitErr(fmt.Sprintf("resolve %q", ref), err)
	}
	if inst.SessionHandle == "" {
		exitErr(fmt.Sprintf("resume %q", ref),
			fmt.Errorf("instance %s has no session handle: %w", inst.ID, model.ErrNotFound))
	}

	if asJSON {
		b, _ := json.Marshal(map[string]interface{}{
			"session_handle": inst.SessionHandle,
			"instance_id":    inst.ID,
			"generation":     inst.Generation,
			"branch":         inst.Branch,
		})
		fmt.Println(string(b))
		return
	}
	fmt.Println(inst.SessionHandle)
}
