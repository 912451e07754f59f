package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/cips/internal/model"
	"github.com/rcliao/cips/internal/resolver"
	"github.com/rcliao/cips/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serialize",
		Short: "Serialize session state into a new instance",
		Long: "Writes an immutable instance from memory records piped as JSONL on stdin\n" +
			"(one {content, kind, timestamp, source} object per line) and moves the\n" +
			"branch pointer to it.",
		Run: runSerialize,
	}

	cmd.Flags().StringP("branch", "b", "main", "Branch to serialize onto")
	cmd.Flags().String("parent", "latest", "Parent reference, or 'none' for a root instance")
	cmd.Flags().StringP("achievement", "a", "", "Key achievement of this session")
	cmd.Flags().String("summary", "", "Short free-text summary")
	cmd.Flags().StringP("session", "s", "", "Session handle to record (default: $CIPS_SESSION_ID)")
	cmd.Flags().BoolP("json", "j", false, "Output full instance as JSON")

	RootCmd.AddCommand(cmd)
}

func readMemories() ([]model.MemoryRecord, error) {
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return nil, nil
	}

	var out []model.MemoryRecord
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var m model.MemoryRecord
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, fmt.Errorf("parse memory line: %w", err)
		}
		if m.Kind == "" {
			m.Kind = "conversation"
		}
		if !model.ValidKinds[m.Kind] {
			return nil, fmt.Errorf("invalid memory kind %q", m.Kind)
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = time.Now().UTC()
		}
		out = append(out, m)
	}
	return out, sc.Err()
}

func runSerialize(cmd *cobra.Command, args []string) {
	branch, _ := cmd.Flags().GetString("branch")
	parentRef, _ := cmd.Flags().GetString("parent")
	achievement, _ := cmd.Flags().GetString("achievement")
	summary, _ := cmd.Flags().GetString("summary")
	session, _ := cmd.Flags().GetString("session")
	asJSON, _ := cmd.Flags().GetBool("json")

	if session == "" {
		session = os.Getenv("CIPS_SESSION_ID")
	}

	memories, err := readMemories()
	if err != nil {
		exitErr("read memories", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ns := currentNS()

	var parent *model.Instance
	if parentRef != "none" {
		parent, err = resolver.New(s).Resolve(cmd.Context(), ns, parentRef)
		if err != nil {
			// A latest-parent default on an empty project means root.
			if parentRef == "latest" && errors.Is(err, model.ErrNotFound) {
				parent = nil
			} else {
				exitErr(fmt.Sprintf("resolve parent %q", parentRef), err)
			}
		}
	}

	var achievements []string
	if achievement != "" {
		achievements = []string{achievement}
	}

	inst, err := s.Serialize(cmd.Context(), store.SerializeParams{
		NS:            ns,
		Branch:        branch,
		Memories:      memories,
		Achievements:  achievements,
		Parent:        parent,
		SessionHandle: session,
		Summary:       summary,
	})
	if err != nil {
		exitErr("serialize", err)
	}

	if asJSON {
		b, _ := json.MarshalIndent(inst, "", "  ")
		fmt.Println(string(b))
		return
	}
	fmt.Printf("Instance serialized: %s\n", inst.ID)
	fmt.Printf("Branch: %s (gen %d)\n", inst.Branch, inst.Generation)
}
