package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/askrumi/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	exportModel        string
	exportConversation string
)

var historyExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export conversations to Markdown files",
	Long: `Export stored conversations to Markdown files for backup.

Each conversation becomes <path>/<model>/<id>.md with its metadata in
YAML frontmatter.

Examples:
  rumi history export ./backup
  rumi history export ./backup --model gemma3:270m
  rumi history export ./backup --conversation 3f2a9c`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryExport,
}

func init() {
	historyExportCmd.Flags().StringVar(&exportModel, "model", "", "export only conversations with this model")
	historyExportCmd.Flags().StringVar(&exportConversation, "conversation", "", "export a single conversation")
	historyCmd.AddCommand(historyExportCmd)
}

// exportFrontmatter is the metadata block written at the top of each file.
type exportFrontmatter struct {
	ID           string `yaml:"id"`
	Model        string `yaml:"model"`
	MessageCount int    `yaml:"message_count"`
	CreatedAt    string `yaml:"created_at,omitempty"`
	UpdatedAt    string `yaml:"updated_at"`
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	exportPath := args[0]
	out := cmd.OutOrStdout()

	if err := os.MkdirAll(exportPath, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	if err := ctrl.RefreshConversations(cmd.Context()); err != nil {
		return err
	}
	convs := filterConversations(ctrl.State().Conversations, exportModel, exportConversation)

	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations to export.")
		return nil
	}

	fmt.Fprintf(out, "Exporting %d conversations...\n", len(convs))

	exported := 0
	for _, conv := range convs {
		filename, err := writeConversation(exportPath, conv)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			continue
		}
		exported++

		if verbose {
			fmt.Fprintf(out, "  Exported: %s\n", filename)
		}
	}

	fmt.Fprintf(out, "\nExported %d conversations to %s\n", exported, exportPath)
	return nil
}

func filterConversations(convs []models.Conversation, model, id string) []models.Conversation {
	filtered := make([]models.Conversation, 0, len(convs))
	for _, c := range convs {
		if model != "" && c.Model != model {
			continue
		}
		if id != "" && c.ID != id {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// writeConversation writes one conversation and returns the file path.
func writeConversation(root string, conv models.Conversation) (string, error) {
	dir := filepath.Join(root, safeName(conv.Model))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	front, err := yaml.Marshal(exportFrontmatter{
		ID:           conv.ID,
		Model:        conv.Model,
		MessageCount: conv.Count(),
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}

	content := "---\n" + string(front) + "---\n\n" + conversationMarkdown(conv)
	filename := filepath.Join(dir, safeName(conv.ID)+".md")
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return filename, nil
}

// safeName makes an identifier usable as a path element.
func safeName(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}
