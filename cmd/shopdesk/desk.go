package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackfroglabs/shopdesk/internal/archive"
	"github.com/blackfroglabs/shopdesk/internal/chat"
	"github.com/blackfroglabs/shopdesk/internal/dashboard"
	"github.com/blackfroglabs/shopdesk/internal/transport/socket"
)

func newDeskCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "desk",
		Short: "Start the chat desk and console",
		Long:  "Connects to the shop backend, opens the push socket, and serves the operator console on a local port.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDesk(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "console port (overrides config)")
	return cmd
}

func runDesk(cmd *cobra.Command, configPath string, port int) error {
	cfg, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.API.Token == "" {
		return fmt.Errorf("no token configured; run 'shopdesk login' first")
	}
	if port == 0 {
		port = cfg.Console.Port
	}

	adapter, err := socket.New(socket.AdapterOpts{
		URL:   cfg.Socket.URL,
		Token: cfg.API.Token,
	})
	if err != nil {
		return err
	}
	defer adapter.Close()

	opts := chat.DeskOpts{
		Adapter:         adapter,
		Backend:         client,
		Out:             cmd.OutOrStdout(),
		PendingLifetime: cfg.Chat.PendingLifetime,
		DedupeWindow:    cfg.Chat.DedupeWindow,
		TypingExpiry:    cfg.Chat.TypingExpiry,
		TypingIdle:      cfg.Chat.TypingIdle,
		ResyncCron:      cfg.Chat.ResyncCron,
	}
	if cfg.Notify.SoundCommand != "" {
		opts.Sounder = &chat.CommandSounder{Command: cfg.Notify.SoundCommand}
	}
	if cfg.Notify.NotifyCommand != "" {
		opts.Notifier = &chat.CommandNotifier{Command: cfg.Notify.NotifyCommand}
	}

	var store *archive.Store
	if cfg.Archive.Enabled {
		db, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return err
		}
		store, err = archive.NewStore(db)
		if err != nil {
			return err
		}
		opts.Archiver = store
	}

	desk, err := chat.NewDesk(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- desk.Run(ctx)
	}()

	if err := dashboard.Start(ctx, dashboard.StartOpts{
		Desk:    desk,
		Archive: store,
		Port:    port,
		Out:     cmd.OutOrStdout(),
	}); err != nil {
		cancel()
		<-errCh
		return err
	}
	return <-errCh
}
