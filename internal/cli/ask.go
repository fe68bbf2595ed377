package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/raphaelgruber/askrumi/internal/models"
	"github.com/raphaelgruber/askrumi/internal/render"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	askConversation string
	askModel        string
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print Rumi's reply",
	Long: `Send a single message to Rumi and print the reply.

On a terminal the reply is revealed at the configured typing speed;
when output is piped it is written at once. The conversation id is
printed to stderr so the exchange can be continued.

Examples:
  rumi ask "What is love?"
  rumi ask "Tell me more" --conversation 3f2a9c
  rumi ask "How do I let go?" --model phi3-mini`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "continue an existing conversation")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model to use (default from preferences)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	message := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	if askModel != "" {
		if err := ctrl.SelectModel(askModel); err != nil {
			return err
		}
	}
	if askConversation != "" {
		if err := ctrl.LoadConversation(ctx, askConversation); err != nil {
			return err
		}
	}

	printer := newStreamPrinter(out, ctrl.Display())
	ctrl.OnChange(printer.update)
	defer ctrl.OnChange(nil)

	reveal, sendErr := ctrl.SendMessage(ctx, message)
	if reveal != nil {
		if !isTerminal(out) {
			reveal.Stop()
		}
		reveal.Wait()
	}
	printer.flush()

	if sendErr != nil {
		return sendErr
	}
	if id := ctrl.State().ConversationID; id != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), defaultTheme.hintStyle().Render("conversation: "+id))
	}
	return nil
}

// streamPrinter writes assistant text as it appears in the display.
// Entries present when it was created are not printed.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	display *render.Display
	skip    int
	printed map[string]int
	order   []string
}

func newStreamPrinter(out io.Writer, display *render.Display) *streamPrinter {
	return &streamPrinter{
		out:     out,
		display: display,
		skip:    display.Len(),
		printed: make(map[string]int),
	}
}

// update prints newly revealed text.
func (p *streamPrinter) update() {
	p.write(func(e render.Entry) string { return e.Text })
}

// flush prints whatever was not revealed, then ends the line.
func (p *streamPrinter) flush() {
	p.write(func(e render.Entry) string { return e.Content })
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) > 0 {
		fmt.Fprintln(p.out)
	}
}

func (p *streamPrinter) write(text func(render.Entry) string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.display.Entries()
	if p.skip > len(entries) {
		return
	}
	for _, e := range entries[p.skip:] {
		if e.Role != models.RoleAssistant || e.Placeholder {
			continue
		}
		n, seen := p.printed[e.ID]
		if !seen {
			if len(p.order) > 0 {
				fmt.Fprintln(p.out)
			}
			p.order = append(p.order, e.ID)
		}
		s := text(e)
		if len(s) > n {
			fmt.Fprint(p.out, s[n:])
			p.printed[e.ID] = len(s)
		} else if !seen {
			p.printed[e.ID] = n
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
