package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/cips/internal/registry"
)

func init() {
	cmd := &cobra.Command{
		Use:   "deregister",
		Short: "Release this session's branch lock",
		Long:  "Removes the session's lock. Idempotent: a missing or foreign lock is a no-op.",
		Run:   runDeregister,
	}

	cmd.Flags().StringP("branch", "b", "", "Branch to release (required)")
	cmd.Flags().StringP("session", "s", "", "Session handle (default: $CIPS_SESSION_ID)")
	cmd.MarkFlagRequired("branch")

	RootCmd.AddCommand(cmd)
}

func runDeregister(cmd *cobra.Command, args []string) {
	branch, _ := cmd.Flags().GetString("branch")
	session, _ := cmd.Flags().GetString("session")
	session = sessionHandle(session)

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	reg := registry.New(s, nil, nil)
	if err := reg.Deregister(cmd.Context(), currentNS(), branch, session); err != nil {
		exitErr("deregister", err)
	}
	fmt.Println("deregistered")
}
