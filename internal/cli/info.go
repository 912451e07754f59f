package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/cips/internal/resolver"
)

func init() {
	cmd := &cobra.Command{
		Use:   "info <reference>",
		Short: "Show a resolved instance in full",
		Args:  cobra.ExactArgs(1),
		Run:   runInfo,
	}

	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	RootCmd.AddCommand(cmd)
}

func runInfo(cmd *cobra.Command, args []string) {
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	inst, err := resolver.New(s).Resolve(cmd.Context(), currentNS(), args[0])
	if err != nil {
		exitErr(fmt.Sprintf("resolve %q", args[0]), err)
	}

	if asJSON {
		b, _ := json.MarshalIndent(inst, "", "  ")
		fmt.Println(string(b))
		return
	}

	fmt.Printf("Instance:   %s\n", inst.ID)
	fmt.Printf("Branch:     %s\n", inst.Branch)
	fmt.Printf("Generation: %d\n", inst.Generation)
	fmt.Printf("Memories:   %d\n", inst.MessageCount)
	fmt.Printf("Created:    %s\n", inst.CreatedAt.Format("2006-01-02 15:04:05"))
	for _, p := range inst.Parents {
		fmt.Printf("Parent:     %s (%s)\n", p.InstanceID, p.Branch)
	}
	if inst.ForkPoint != nil {
		fmt.Printf("Fork point: %s (%s)\n", inst.ForkPoint.InstanceID, inst.ForkPoint.Branch)
	}
	if inst.SessionHandle != "" {
		fmt.Printf("Session:    %s\n", inst.SessionHandle)
	}
	for _, a := range inst.Achievements {
		fmt.Printf("Achieved:   %s\n", a)
	}
	if inst.Summary != "" {
		fmt.Printf("Summary:    %s\n", inst.Summary)
	}
}
