package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/cips/internal/registry"
)

func init() {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this session and print its branch",
		Long: "Assigns a free branch to the session: main first, then alpha, bravo, ...\n" +
			"Stale locks from dead processes are reclaimed. Never fails session start:\n" +
			"if storage is unavailable the command degrades to printing main.",
		Run: runRegister,
	}

	cmd.Flags().StringP("session", "s", "", "Session handle (default: $CIPS_SESSION_ID or generated)")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	RootCmd.AddCommand(cmd)
}

func sessionHandle(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("CIPS_SESSION_ID"); env != "" {
		return env
	}
	return registry.NewSessionHandle()
}

func runRegister(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	asJSON, _ := cmd.Flags().GetBool("json")
	session = sessionHandle(session)

	s, err := openStore()
	if err != nil {
		// Degraded mode per the registry contract: the session still starts.
		if asJSON {
			fmt.Println(`{"branch":"main","degraded":true}`)
		} else {
			fmt.Println("main")
		}
		return
	}
	defer s.Close()

	reg := registry.New(s, nil, loadConfig().ExtraBranches)
	branch := reg.Register(cmd.Context(), currentNS(), session)

	if asJSON {
		b, _ := json.Marshal(map[string]string{"branch": branch, "session": session})
		fmt.Println(string(b))
		return
	}
	fmt.Println(branch)
}
