package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/raphaelgruber/askrumi/internal/models"
	"github.com/raphaelgruber/askrumi/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	historyDeleteForce bool
	historyShowRaw     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, show or delete stored conversations",
	Long: `Browse the conversations stored by the API server.

Subcommands:
  list    List conversations (default)
  show    Print a conversation as Markdown
  delete  Delete a conversation

Examples:
  rumi history
  rumi history show 3f2a9c
  rumi history show 3f2a9c --raw > talk.md
  rumi history delete 3f2a9c --force`,
	RunE: runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation",
	Long: `Delete a conversation from the server.

Requires confirmation unless --force is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryDelete,
}

func init() {
	historyShowCmd.Flags().BoolVar(&historyShowRaw, "raw", false, "print Markdown without terminal styling")
	historyDeleteCmd.Flags().BoolVarP(&historyDeleteForce, "force", "f", false, "skip confirmation")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	if err := ctrl.RefreshConversations(cmd.Context()); err != nil {
		return err
	}
	convs := ctrl.State().Conversations
	out := cmd.OutOrStdout()

	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations yet. Start chatting to see your history here!")
		return nil
	}

	fmt.Fprintf(out, "Conversations (%d):\n\n", len(convs))
	for _, c := range convs {
		fmt.Fprintf(out, "- %s  %s  %d messages, model %s\n", c.ID, models.FormatDate(c.UpdatedAt), c.Count(), c.Model)
		if verbose {
			if preview := firstUserMessage(c); preview != "" {
				fmt.Fprintf(out, "  %s\n", preview)
			}
		}
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id := args[0]
	if err := ctrl.RefreshConversations(cmd.Context()); err != nil {
		return err
	}

	var conv *models.Conversation
	for _, c := range ctrl.State().Conversations {
		if c.ID == id {
			conv = &c
			break
		}
	}
	if conv == nil {
		return fmt.Errorf("%w: %s", session.ErrConversationNotFound, id)
	}

	out := cmd.OutOrStdout()
	md := conversationMarkdown(*conv)
	if historyShowRaw || !isTerminal(out) {
		fmt.Fprint(out, md)
		return nil
	}
	fmt.Fprint(out, renderMarkdown(md))
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	out := cmd.OutOrStdout()

	confirm := func(string) bool { return true }
	if !historyDeleteForce {
		confirm = promptConfirm(cmd.InOrStdin(), out)
	}

	deleted, err := ctrl.DeleteConversation(cmd.Context(), id, confirm)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}
	fmt.Fprintf(out, "Deleted: %s\n", id)
	return nil
}

// promptConfirm asks a [y/N] question on in/out. Anything but y or yes declines.
func promptConfirm(in io.Reader, out io.Writer) session.Confirm {
	return func(prompt string) bool {
		fmt.Fprintf(out, "%s\n", prompt)
		fmt.Fprint(out, "\nContinue? [y/N]: ")

		reader := bufio.NewReader(in)
		response, err := reader.ReadString('\n')
		if err != nil && response == "" {
			return false
		}
		response = strings.TrimSpace(strings.ToLower(response))
		return response == "y" || response == "yes"
	}
}

// conversationMarkdown renders a stored conversation as a Markdown transcript.
func conversationMarkdown(c models.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation %s\n\n", c.ID)
	fmt.Fprintf(&b, "_Model: %s, updated %s_\n\n", c.Model, models.FormatDate(c.UpdatedAt))

	for _, m := range c.Messages {
		switch m.Role {
		case models.RoleUser:
			b.WriteString("**You:**\n\n")
		case models.RoleAssistant:
			b.WriteString("**Rumi:**\n\n")
		default:
			continue
		}
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n\n")
	}
	return b.String()
}

func firstUserMessage(c models.Conversation) string {
	for _, m := range c.Messages {
		if m.Role == models.RoleUser {
			return truncateText(m.Content, 70)
		}
	}
	return ""
}

func truncateText(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// renderMarkdown styles Markdown for the terminal, falling back to the source.
func renderMarkdown(md string) string {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 40 {
		width = w - 4
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return rendered
}
