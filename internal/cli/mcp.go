package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/conductor/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Expose the orchestration operations as MCP tools on stdio, for use by
an MCP-capable planner agent.

By default the server reuses the configured invocation scope, so a
reconnecting planner sees its previous plan. With --fresh-invocation a
new invocation id is generated and the session starts from an empty
tree.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Mgr == nil {
			return fmt.Errorf("manager not initialized")
		}

		mgr := Mgr
		fresh, _ := cmd.Flags().GetBool("fresh-invocation")
		if fresh {
			if NewManagerForInvocation == nil {
				return fmt.Errorf("manager factory not initialized")
			}
			var err error
			mgr, err = NewManagerForInvocation(uuid.NewString())
			if err != nil {
				return fmt.Errorf("creating fresh invocation: %w", err)
			}
		}

		enableSkip := Cfg != nil && Cfg.EnableSkip
		server := mcp.NewServer(mgr, enableSkip, appVersion)
		return server.Run(cmd.Context())
	},
}

func init() {
	mcpCmd.Flags().Bool("fresh-invocation", false, "start with a new invocation scope and an empty plan")
	rootCmd.AddCommand(mcpCmd)
}
