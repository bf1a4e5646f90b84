package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackfroglabs/shopdesk/internal/api"
	"github.com/blackfroglabs/shopdesk/internal/config"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopdesk",
		Short: "Shopdesk — repair shop operator console",
		Long:  "Shopdesk runs the operator console for a repair shop: live chat desk, bookings, repair board, and product catalog.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newDeskCmd())
	cmd.AddCommand(newBookingsCmd())
	cmd.AddCommand(newRepairsCmd())
	cmd.AddCommand(newProductsCmd())
	cmd.AddCommand(newArchiveCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shopdesk %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// clientFromConfig loads the config file and builds an authenticated API
// client from it.
func clientFromConfig(configPath string) (*config.Config, *api.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, api.NewWithToken(cfg.API.BaseURL, cfg.API.Token), nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
