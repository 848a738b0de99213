package cli

import (
	"context"
	"fmt"

	"pdfchat/internal/ui"

	"github.com/spf13/cobra"
)

// Execute runs the pdfchat command tree.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. Without a subcommand it starts
// the TUI.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "pdfchat",
		Short:         "Chat with your PDF documents",
		Long:          "pdfchat keeps your PDF chats in sync with a chat backend and falls back to a local copy when the backend is unreachable.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to config.yaml (default: user config dir)")
	pf.StringVar(&flags.backendURL, "backend-url", "", "chat backend base URL")
	pf.BoolVar(&flags.offline, "offline", false, "never contact the backend")
	pf.StringVar(&flags.logLevel, "log-level", "", "trace|debug|info|warn|error")

	root.AddCommand(
		newChatsCommand(flags),
		newNewCommand(flags),
		newRenameCommand(flags),
		newDeleteCommand(flags),
		newAskCommand(flags),
		newUploadCommand(flags),
		newSyncCommand(flags),
		newMockBackendCommand(flags),
	)
	return root
}

func runTUI(ctx context.Context, flags *globalFlags) error {
	// The alt screen owns stdout, so logs go to the log file.
	a, err := openApp(ctx, flags, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	p := ui.NewProgram(a.store,
		ui.WithLogger(a.logger),
		ui.WithMaxChunks(a.cfg.Backend.MaxChunks),
		ui.WithBackendURL(a.backendURL()),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
