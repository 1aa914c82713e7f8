package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jarvis/internal/config"
	"jarvis/internal/history"
)

func buildRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "jarvis",
		Short: "JARVIS personal AI assistant",
		Long: strings.TrimSpace(`JARVIS v` + config.Version + ` - Just A Rather Very Intelligent System.

Chat in the terminal, serve the web dashboard or run the Telegram bot.
Without a subcommand JARVIS starts the interactive chat.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a dotenv config file (default .env)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug mode")

	root.AddCommand(newChatCommand(opts))
	root.AddCommand(newWebCommand(opts))
	root.AddCommand(newTelegramCommand(opts))
	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newConversationsCommand(opts))
	root.AddCommand(newMemoryCommand(opts))
	root.AddCommand(newVersionCommand())

	return root
}

func newChatCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "chat",
		Short:   "Start the interactive terminal chat",
		Example: "  jarvis chat\n  jarvis chat --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts)
		},
	}
}

func newWebCommand(opts *globalOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:     "web",
		Short:   "Serve the web dashboard and websocket chat",
		Example: "  jarvis web\n  jarvis web --port 8080",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServices(cmd.Context(), opts, serveOptions{web: true, port: port})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Web dashboard port (default WEB_PORT)")
	return cmd
}

func newTelegramCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "telegram",
		Short:   "Run the Telegram bot",
		Example: "  jarvis telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServices(cmd.Context(), opts, serveOptions{telegram: true})
		},
	}
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the web dashboard and the Telegram bot together",
		Example: "  jarvis serve --port 8080",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServices(cmd.Context(), opts, serveOptions{web: true, telegram: true, port: port})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Web dashboard port (default WEB_PORT)")
	return cmd
}

func newConversationsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Short:   "List saved conversations",
		Example: "  jarvis conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadBase(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			saved, err := history.List(a.cfg.ConversationsDir, a.logger)
			if err != nil {
				return err
			}
			printConversations(cmd.OutOrStdout(), saved)
			return nil
		},
	}
}

func printConversations(w io.Writer, saved []history.Saved) {
	if len(saved) == 0 {
		fmt.Fprintln(w, "No saved conversations.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMESSAGES\tUPDATED\tFILE")
	for _, s := range saved {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.ID, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"), s.Filename)
	}
	_ = tw.Flush()
}

func newMemoryCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and maintain long-term memory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "stats",
		Short:   "Show memory statistics",
		Example: "  jarvis memory stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadBase(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			stats, err := a.memory.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Collection: %s\nTotal memories: %d\n", stats.Collection, stats.Total)
			for _, t := range slices.Sorted(maps.Keys(stats.ByType)) {
				fmt.Fprintf(out, "  %s: %d\n", t, stats.ByType[t])
			}
			return nil
		},
	})

	var days int
	cleanup := &cobra.Command{
		Use:     "cleanup",
		Short:   "Delete memories older than the retention window",
		Example: "  jarvis memory cleanup --days 7",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadBase(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if days <= 0 {
				days = a.cfg.ConversationRetentionDays
			}
			n, err := a.memory.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d memories older than %d days\n", n, days)
			return nil
		},
	}
	cleanup.Flags().IntVar(&days, "days", 0, "Retention in days (default CONVERSATION_RETENTION_DAYS)")
	cmd.AddCommand(cleanup)

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "JARVIS v%s\n", config.Version)
		},
	}
}
