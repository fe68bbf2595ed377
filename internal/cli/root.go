// Package cli provides the command-line interface for Ask Rumi.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/askrumi/internal/client"
	"github.com/raphaelgruber/askrumi/internal/config"
	"github.com/raphaelgruber/askrumi/internal/metrics"
	"github.com/raphaelgruber/askrumi/internal/session"
	"github.com/raphaelgruber/askrumi/internal/settings"
	"github.com/raphaelgruber/askrumi/internal/voice"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	apiURL  string

	// Global config and session, built in PersistentPreRunE
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func() error
	collector *metrics.Collector
	apiClient *client.Client
	store     *settings.Store
	ctrl      *session.Controller
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rumi",
	Short: "Terminal client for the Ask Rumi spiritual guide",
	Long: `Rumi is a terminal client for the Ask Rumi API: chat with a Rumi-inspired
guide, manage the server's models, browse conversation history and tune
how replies are generated.

Without a subcommand it opens the interactive chat.

Configuration comes from the environment (or a .env file):
  RUMI_API_URL           API base URL (default http://127.0.0.1:8001)
  RUMI_CLIENT_TIMEOUT    request timeout (default 5m)
  RUMI_PREFERENCES_FILE  preferences YAML
  RUMI_LOG_FILE          JSON log file (default /tmp/askrumi.log)
  RUMI_LOG_LEVEL         DEBUG, INFO, WARN or ERROR
  RUMI_TTS_COMMAND       speech synthesizer reading text on stdin
  RUMI_STT_COMMAND       recognizer printing a transcript on stdout`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
}

// setup builds the session shared by all commands.
func setup(cmd *cobra.Command, args []string) error {
	// Skip setup for version and help commands
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	cfg = config.Load()
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}

	// The TUI owns the terminal; logging to stderr would corrupt it.
	if isInteractive(cmd) {
		logger, closeLog = config.SetupFileLogger(cfg.LogFile, level)
	} else {
		logger, closeLog = config.SetupLogger(cfg.LogFile, level)
	}

	collector = metrics.NewCollector()
	apiClient = client.New(cfg.APIURL,
		client.WithTimeout(cfg.ClientTimeout),
		client.WithMetrics(collector),
		client.WithLogger(logger),
	)

	store = settings.NewStore(cfg.PreferencesFile, apiClient, logger)

	opts := session.Options{
		Speaker:  voice.NewCommandSpeaker(cfg.TTSCommand, logger),
		Listener: voice.NewCommandListener(cfg.STTCommand, logger),
		Logger:   logger,
	}
	if !isInteractive(cmd) {
		opts.Notifier = newNotifier(cmd.ErrOrStderr())
	}
	ctrl = session.New(apiClient, store, opts)
	ctrl.LoadPreferences()

	logger.Debug("session ready", "command", cmd.CommandPath(), "api_url", cfg.APIURL)
	return nil
}

func teardown() {
	if ctrl != nil {
		ctrl.Close()
		ctrl = nil
	}
	if closeLog != nil {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
		closeLog = nil
	}
}

func isInteractive(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd == chatCmd
}

// notifier prints non-error notifications for one-shot commands.
// Errors reach the user through the command's returned error instead.
type notifier struct {
	w io.Writer
}

func newNotifier(w io.Writer) *notifier {
	return &notifier{w: w}
}

func (n *notifier) Notify(note session.Notification) {
	switch note.Level {
	case session.LevelError:
		return
	case session.LevelSuccess:
		fmt.Fprintln(n.w, defaultTheme.completedStyle().Render("✓ "+note.Message))
	default:
		fmt.Fprintln(n.w, defaultTheme.statusStyle().Render(note.Message))
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rumi %s\n", Version)
	},
}

func init() {
	// Assigned here: setup refers back to rootCmd.
	rootCmd.PersistentPreRunE = setup
	rootCmd.RunE = runChat

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides RUMI_API_URL)")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(systemCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(behaviorCmd)
	rootCmd.AddCommand(keywordsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}
