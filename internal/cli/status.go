package cli

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rcliao/cips/internal/registry"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show currently-live session locks",
		Run:   runStatus,
	}

	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	RootCmd.AddCommand(cmd)
}

var (
	branchStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func runStatus(cmd *cobra.Command, args []string) {
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	reg := registry.New(s, nil, nil)
	locks, err := reg.ListActive(cmd.Context(), currentNS())
	if err != nil {
		exitErr("status", err)
	}

	if asJSON {
		b, _ := json.MarshalIndent(locks, "", "  ")
		fmt.Println(string(b))
		return
	}

	if len(locks) == 0 {
		fmt.Println("No active sessions")
		return
	}
	fmt.Printf("Active sessions (%d):\n", len(locks))
	for _, l := range locks {
		fmt.Printf("  %s  %s\n",
			branchStyle.Render(fmt.Sprintf("%-10s", l.Branch)),
			dimStyle.Render(fmt.Sprintf("pid %d, since %s", l.OwnerPID, l.RegisteredAt.Format("2006-01-02 15:04:05"))))
	}
}
