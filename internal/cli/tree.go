package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Render the project's lineage graph",
		Run:   runTree,
	}

	RootCmd.AddCommand(cmd)
}

var (
	genStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	mainStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	sideStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#4EC9B0"))
	confluenceStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C586C0"))
	edgeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

func runTree(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	nodes, err := s.Tree(cmd.Context(), currentNS())
	if err != nil {
		exitErr("tree", err)
	}
	if len(nodes) == 0 {
		fmt.Println("No instances serialized yet.")
		return
	}

	for _, n := range nodes {
		style := sideStyle
		if n.Branch == "main" {
			style = mainStyle
		}

		label := n.Branch
		if len(n.Parents) > 1 {
			style = confluenceStyle
			label = fmt.Sprintf("%s (confluence)", n.Branch)
		}

		line := fmt.Sprintf("%s %s %s  %d memories",
			genStyle.Render(fmt.Sprintf("gen %-3d", n.Generation)),
			shortID(n.ID),
			style.Render(fmt.Sprintf("%-20s", label)),
			n.MessageCount)
		fmt.Println(line)

		if len(n.Parents) > 0 {
			refs := make([]string, len(n.Parents))
			for i, p := range n.Parents {
				refs[i] = fmt.Sprintf("%s (%s)", shortID(p.InstanceID), p.Branch)
			}
			fmt.Println(edgeStyle.Render("        └─ from " + strings.Join(refs, ", ")))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
