package cli

import (
	"github.com/raphaelgruber/askrumi/internal/tui"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat",
	Long: `Open the interactive terminal client.

Tabs switch between chat, models, system, history, settings and behavior
pages. Logs go to RUMI_LOG_FILE while the interface is open.

Examples:
  rumi chat
  rumi`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	return tui.Run(cmd.Context(), ctrl)
}
