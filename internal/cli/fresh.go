package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/cips/internal/resolver"
	"github.com/rcliao/cips/internal/view"
)

func init() {
	cmd := &cobra.Command{
		Use:   "fresh [reference]",
		Short: "Build a resurrection primer for a new session",
		Long: "Resolves a reference and prints a token-bounded primer the host seeds\n" +
			"into a fresh interactive session.",
		Args: cobra.MaximumNArgs(1),
		Run:  runFresh,
	}

	cmd.Flags().IntP("tokens", "t", 0, "Token budget (default from config)")
	cmd.Flags().Bool("complete", false, "Summarize the whole project tree instead of one instance")

	RootCmd.AddCommand(cmd)
}

func runFresh(cmd *cobra.Command, args []string) {
	ref := "latest"
	if len(args) > 0 {
		ref = args[0]
	}
	tokens, _ := cmd.Flags().GetInt("tokens")
	complete, _ := cmd.Flags().GetBool("complete")
	if tokens <= 0 {
		tokens = loadConfig().PrimerTokens
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ns := currentNS()

	if complete {
		instances, err := s.List(cmd.Context(), ns, 1000)
		if err != nil {
			exitErr("list", err)
		}
		branches, err := s.Branches(cmd.Context(), ns)
		if err != nil {
			exitErr("branches", err)
		}
		fmt.Print(view.NewProjectView(ns, instances, branches).ResurrectionPrimer(tokens))
		return
	}

	inst, err := resolver.New(s).Resolve(cmd.Context(), ns, ref)
	if err != nil {
		exitErr(fmt.Sprintf("resolve %q", ref), err)
	}
	fmt.Print(view.NewInstanceView(inst, nil).ResurrectionPrimer(tokens))
}
