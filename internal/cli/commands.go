package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"pdfchat/internal/models"
	"pdfchat/internal/ui"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// withApp opens the app for a one-shot command, logging to stderr.
func withApp(flags *globalFlags, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.store.LoadError(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "backend refused the chat list (%v), showing saved chats\n", err)
		}
		return fn(cmd, a, args)
	}
}

func newChatsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "chats",
		Aliases: []string{"ls"},
		Short:   "List chats, newest first",
		Args:    cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			chats := a.store.ListChats()
			out := cmd.OutOrStdout()
			if a.store.Degraded() {
				fmt.Fprintln(cmd.ErrOrStderr(), "backend unreachable, showing local chats")
			}
			if len(chats) == 0 {
				fmt.Fprintln(out, "No chats yet.")
				return nil
			}
			return printChats(out, chats)
		}),
	}
}

func printChats(w io.Writer, chats []models.Chat) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDOCUMENT\tSYNC\tCREATED")
	for _, c := range chats {
		doc := c.PDFName()
		if doc == "" {
			doc = "-"
		}
		sync := string(c.Sync)
		if sync == "" {
			sync = string(models.SyncSynced)
		}
		created := "-"
		if !c.CreatedAt.IsZero() {
			created = humanize.Time(c.CreatedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, ui.TruncateRunes(c.Title, 40), doc, sync, created)
	}
	return tw.Flush()
}

func newNewCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Create a chat",
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			c, err := a.store.CreateChat(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("create chat: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created chat %s %q\n", c.ID, c.Title)
			if c.IsLocal() {
				fmt.Fprintln(cmd.OutOrStdout(), "Backend unreachable, chat saved locally. Run `pdfchat sync` later.")
			}
			return nil
		}),
	}
}

func newRenameCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			id := models.ID(args[0])
			c, err := a.store.RenameChat(cmd.Context(), id, strings.Join(args[1:], " "))
			if err != nil {
				return fmt.Errorf("rename chat %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed chat %s to %q\n", c.ID, c.Title)
			return nil
		}),
	}
}

func newDeleteCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a chat",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			id := models.ID(args[0])
			if err := a.store.DeleteChat(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete chat %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted chat %s\n", id)
			return nil
		}),
	}
}

func newAskCommand(flags *globalFlags) *cobra.Command {
	var maxChunks int
	cmd := &cobra.Command{
		Use:   "ask <id> <question>",
		Short: "Ask a question about the chat's documents",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			id := models.ID(args[0])
			if _, err := a.store.SetActiveChat(ctx, id); err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			reply, err := a.store.Ask(ctx, id, strings.Join(args[1:], " "), maxChunks)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reply.Content)
			if c, err := a.store.Chat(id); err == nil {
				if line := ui.SourcesLine(reply.Sources, c.Documents); line != "" {
					fmt.Fprintln(out, line)
				}
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&maxChunks, "max-chunks", "k", 0, "chunks to retrieve (default from config)")
	return cmd
}

func newUploadCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <id> <file.pdf>",
		Short: "Upload a PDF to a chat",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			id := models.ID(args[0])
			path := ui.ExpandHome(args[1])
			if _, err := a.store.SetActiveChat(ctx, id); err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			doc, err := a.store.UploadDocument(ctx, id, path)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}

			size := ""
			if info, err := os.Stat(path); err == nil {
				size = ", " + humanize.Bytes(uint64(info.Size()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attached %s to chat %s (%d chunks%s)\n", doc.Filename, id, doc.NumChunks, size)
			return nil
		}),
	}
}

func newSyncCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push chats changed while offline to the backend",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			report, err := a.store.Sync(cmd.Context())
			out := cmd.OutOrStdout()
			if !report.Empty() {
				fmt.Fprintf(out, "Synced: %d created, %d renamed, %d deleted, %d failed\n",
					report.Created, report.Renamed, report.Deleted, report.Failed)
			}
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			if report.Empty() {
				fmt.Fprintln(out, "Nothing to sync.")
			}
			if n := a.store.PendingChanges(); n > 0 {
				fmt.Fprintf(out, "%s still pending\n", humanize.Comma(int64(n)))
			}
			return nil
		}),
	}
}
