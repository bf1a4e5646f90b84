package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blackfroglabs/shopdesk/internal/api"
)

func newRepairsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repairs",
		Short: "Repair board commands",
	}

	cmd.AddCommand(newRepairsListCmd())
	cmd.AddCommand(newRepairsUpdateCmd())
	return cmd
}

func newRepairsListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List repair jobs",
		Long:  "Lists repair jobs with an optional status filter. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepairsList(cmd, configPath, api.ListRepairsRequest{
				Status: status,
				Limit:  limit,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (received, diagnosing, repairing, ready, collected)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of repairs to return")
	return cmd
}

func runRepairsList(cmd *cobra.Command, configPath string, req api.ListRepairsRequest) error {
	_, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	resp, err := client.ListRepairs(cmd.Context(), &req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Repairs) == 0 {
		fmt.Fprintln(out, "No repairs found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCUSTOMER\tDEVICE\tSTATUS\tQUOTE")
	for _, r := range resp.Repairs {
		quote := "-"
		if r.QuoteCents > 0 {
			quote = formatCents(r.QuoteCents)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Customer, r.Device, r.Status, quote)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d repair(s)\n", resp.Count)
	return nil
}

func newRepairsUpdateCmd() *cobra.Command {
	var (
		configPath string
		status     string
		notes      string
		quoteCents int
	)

	cmd := &cobra.Command{
		Use:   "update <repair-id>",
		Short: "Update a repair job",
		Long:  "Advances a repair job's status or updates its notes and quote.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" && notes == "" && quoteCents == 0 {
				return fmt.Errorf("nothing to update; pass --status, --notes, or --quote-cents")
			}
			return runRepairsUpdate(cmd, configPath, args[0], api.UpdateRepairRequest{
				Status:     status,
				Notes:      notes,
				QuoteCents: quoteCents,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&notes, "notes", "", "internal workshop notes")
	cmd.Flags().IntVar(&quoteCents, "quote-cents", 0, "quoted price in cents")
	return cmd
}

func runRepairsUpdate(cmd *cobra.Command, configPath, repairID string, req api.UpdateRepairRequest) error {
	_, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	r, err := client.UpdateRepair(cmd.Context(), repairID, &req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated repair %s (status: %s)\n", r.ID, r.Status)
	return nil
}
