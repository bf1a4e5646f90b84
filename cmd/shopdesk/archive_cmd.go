package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blackfroglabs/shopdesk/internal/archive"
	"github.com/blackfroglabs/shopdesk/internal/config"
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Local transcript archive commands",
	}

	cmd.AddCommand(newArchiveSearchCmd())
	cmd.AddCommand(newArchiveHistoryCmd())
	return cmd
}

// storeFromConfig opens the archive store named by the config file.
func storeFromConfig(configPath string) (*archive.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if !cfg.Archive.Enabled {
		return nil, fmt.Errorf("archive is not enabled in %s", configPath)
	}
	db, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return nil, err
	}
	return archive.NewStore(db)
}

func newArchiveSearchCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search archived messages",
		Long:  "Searches archived chat transcripts for messages containing the query text.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveSearch(cmd, configPath, args[0], limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of results")
	return cmd
}

func runArchiveSearch(cmd *cobra.Command, configPath, query string, limit int) error {
	store, err := storeFromConfig(configPath)
	if err != nil {
		return err
	}

	msgs, err := store.Search(query, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONVERSATION\tSENDER\tSENT\tTEXT")
	for _, m := range msgs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ConversationID, m.Sender, m.CreatedAt.Format("2006-01-02 15:04"), truncate(m.Text, 60))
	}
	w.Flush()
	return nil
}

func newArchiveHistoryCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Show an archived transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveHistory(cmd, configPath, args[0], limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	cmd.Flags().IntVar(&limit, "limit", archive.DefaultHistoryLimit, "maximum number of messages")
	return cmd
}

func runArchiveHistory(cmd *cobra.Command, configPath, conversationID string, limit int) error {
	store, err := storeFromConfig(configPath)
	if err != nil {
		return err
	}

	msgs, err := store.History(conversationID, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintln(out, "No archived messages for this conversation.")
		return nil
	}

	for _, m := range msgs {
		fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Sender, m.Text)
	}
	return nil
}
