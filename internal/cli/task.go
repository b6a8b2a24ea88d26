package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/conductor/internal/core"
	"github.com/valter-silva-au/conductor/pkg/models"
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Append a new subtask to the plan",
	Long: `Append a new root-level subtask at the end of the plan.

The subtask id is assigned automatically. Adding is rejected once the
configured max_tasks ceiling is reached; decompose or finish existing
work first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Mgr == nil {
			return fmt.Errorf("manager not initialized")
		}

		description, _ := cmd.Flags().GetString("description")
		sub, err := Mgr.Add(args[0], description)
		if err != nil {
			return fmt.Errorf("adding subtask: %w", err)
		}

		fmt.Printf("Added subtask %s\n", sub.ID)
		fmt.Printf("  Title:  %s\n", sub.Title)
		fmt.Printf("  Status: %s\n", sub.Status)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every subtask in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Mgr == nil {
			return fmt.Errorf("manager not initialized")
		}

		subtasks, err := Mgr.List()
		if err != nil {
			return fmt.Errorf("listing subtasks: %w", err)
		}
		if len(subtasks) == 0 {
			fmt.Println("No subtasks.")
			return nil
		}

		cur, err := Mgr.CurrentSubtask()
		if err != nil {
			return fmt.Errorf("listing subtasks: %w", err)
		}

		for _, sub := range subtasks {
			marker := " "
			if cur != nil && cur.ID == sub.ID {
				marker = ">"
			}
			indent := strings.Repeat("  ", strings.Count(sub.ID, "."))
			fmt.Printf("%s %s%-8s [%s] %s\n", marker, indent, sub.ID, sub.Status, sub.Title)
		}
		return nil
	},
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the subtask the worker should act on next",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Mgr == nil {
			return fmt.Errorf("manager not initialized")
		}

		cur, err := Mgr.CurrentSubtask()
		if err != nil {
			return fmt.Errorf("getting current subtask: %w", err)
		}
		if cur == nil {
			fmt.Println(core.MsgNoActiveSubtasks)
			return nil
		}

		fmt.Println(formatPayload(Mgr.Codec().FormatSubtask(*cur, false)))
		return nil
	},
}

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Execute the current subtask through the configured worker",
	Long: `Run the worker against the current subtask, apply the reported status,
and advance or hold the pointer.

With --steps N the cycle repeats until N subtasks have been executed,
the plan runs out, or a subtask comes back incomplete and demands
decomposition. Malformed worker output never aborts the loop position;
it is recorded as incomplete with an error marker.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Mgr == nil {
			return fmt.Errorf("manager not initialized")
		}

		steps, _ := cmd.Flags().GetInt("steps")
		if steps < 1 {
			steps = 1
		}

		for i := 0; i < steps; i++ {
			outcome, err := Mgr.ExecuteCurrent(cmd.Context())
			if err != nil {
				if errors.Is(err, core.ErrNoActiveSubtasks) {
					fmt.Println(core.MsgNoActiveSubtasks)
					return nil
				}
				return fmt.Errorf("executing subtask: %w", err)
			}

			printRecord(outcome.Record)
			if outcome.Malformed {
				fmt.Printf("  Error:  %s\n", core.MsgResultMalformed)
			}
			if outcome.Action != "" {
				fmt.Println(outcome.Action)
				return nil
			}
		}
		return nil
	},
}

var decomposeCmd = &cobra.Command{
	Use:   "decompose <task_id>",
	Short: "Split the current subtask into children",
	Long: `Split the current subtask into ordered children inserted right after it.
The task_id must name the current subtask.

Children come from repeated --child "title=description" flags, or from a
YAML file (--file) with the shape:

  subtasks:
    - title: first step
      description: what to do
    - title: second step
      description: what to do next`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Mgr == nil {
			return fmt.Errorf("manager not initialized")
		}

		d, err := decompositionFromFlags(cmd)
		if err != nil {
			return err
		}

		inserted, err := Mgr.Decompose(args[0], d)
		if err != nil {
			return fmt.Errorf("decomposing subtask %s: %w", args[0], err)
		}

		fmt.Printf("Inserted %d subtasks:\n", len(inserted))
		for _, sub := range inserted {
			fmt.Printf("  %-8s %s\n", sub.ID, sub.Title)
		}
		return nil
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip <task_id>",
	Short: "Skip the current subtask with a reason",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Mgr == nil {
			return fmt.Errorf("manager not initialized")
		}
		if Cfg != nil && !Cfg.EnableSkip {
			return fmt.Errorf("skip is disabled; enable features.skip in .conductorrc")
		}

		reason, _ := cmd.Flags().GetString("reason")
		next, err := Mgr.Skip(args[0], reason)
		if err != nil {
			return fmt.Errorf("skipping subtask %s: %w", args[0], err)
		}

		fmt.Printf("Skipped subtask %s\n", args[0])
		if next == nil {
			fmt.Println(core.MsgNoActiveSubtasks)
			return nil
		}
		fmt.Printf("Current is now %s: %s\n", next.ID, next.Title)
		return nil
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Show the append-only execution records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Mgr == nil {
			return fmt.Errorf("manager not initialized")
		}

		pool, _ := cmd.Flags().GetBool("pool")
		var records []models.ExecutionRecord
		var err error
		if pool {
			records, err = Mgr.PoolRecords()
		} else {
			records, err = Mgr.Records()
		}
		if err != nil {
			return fmt.Errorf("loading records: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No records.")
			return nil
		}

		for _, rec := range records {
			printRecord(rec)
		}
		return nil
	},
}

// decompositionFromFlags builds a Decomposition from --file or repeated
// --child flags; --file wins when both are present.
func decompositionFromFlags(cmd *cobra.Command) (models.Decomposition, error) {
	var d models.Decomposition

	file, _ := cmd.Flags().GetString("file")
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return d, fmt.Errorf("reading decomposition file: %w", err)
		}
		if err := yaml.Unmarshal(data, &d); err != nil {
			return d, fmt.Errorf("parsing decomposition file: %w", err)
		}
		return d, nil
	}

	children, _ := cmd.Flags().GetStringArray("child")
	for _, child := range children {
		title, description, ok := strings.Cut(child, "=")
		if !ok {
			return d, fmt.Errorf("invalid --child %q: expected \"title=description\"", child)
		}
		d.Subtasks = append(d.Subtasks, models.SubtaskSpec{
			Title:       strings.TrimSpace(title),
			Description: strings.TrimSpace(description),
		})
	}
	return d, nil
}

func printRecord(rec models.ExecutionRecord) {
	fmt.Printf("%s [%s] %s\n", rec.TaskID, rec.Status, rec.Title)
	if rec.Output != "" {
		fmt.Printf("  Output:  %s\n", firstLine(rec.Output))
	}
	if rec.Summary != "" {
		fmt.Printf("  Summary: %s\n", rec.Summary)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func formatPayload(payload any) string {
	if text, ok := payload.(string); ok {
		return text
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}

func init() {
	addCmd.Flags().StringP("description", "d", "", "detailed subtask description")
	execCmd.Flags().Int("steps", 1, "maximum number of subtasks to execute")
	decomposeCmd.Flags().StringArray("child", nil, "child subtask as \"title=description\" (repeatable)")
	decomposeCmd.Flags().StringP("file", "f", "", "YAML file with the decomposition")
	skipCmd.Flags().StringP("reason", "r", "", "why the subtask is skipped")
	recordsCmd.Flags().Bool("pool", false, "read the cross-invocation pool instead of this manager's log")

	rootCmd.AddCommand(addCmd, listCmd, currentCmd, execCmd, decomposeCmd, skipCmd, recordsCmd)
}
