package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blackfroglabs/shopdesk/internal/api"
)

func newBookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Booking management commands",
	}

	cmd.AddCommand(newBookingsListCmd())
	cmd.AddCommand(newBookingsUpdateCmd())
	return cmd
}

func newBookingsListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookings",
		Long:  "Lists bookings with an optional status filter. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookingsList(cmd, configPath, api.ListBookingsRequest{
				Status: status,
				Limit:  limit,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, confirmed, completed, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of bookings to return")
	return cmd
}

func runBookingsList(cmd *cobra.Command, configPath string, req api.ListBookingsRequest) error {
	_, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	resp, err := client.ListBookings(cmd.Context(), &req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Bookings) == 0 {
		fmt.Fprintln(out, "No bookings found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCUSTOMER\tDEVICE\tSLOT\tSTATUS")
	for _, b := range resp.Bookings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Customer, b.Device, formatWhen(b.SlotAt), b.Status)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d booking(s)\n", resp.Count)
	return nil
}

func newBookingsUpdateCmd() *cobra.Command {
	var (
		configPath string
		status     string
		comment    string
	)

	cmd := &cobra.Command{
		Use:   "update <booking-id>",
		Short: "Update a booking",
		Long:  "Updates a booking's status or shop comment.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" && comment == "" {
				return fmt.Errorf("nothing to update; pass --status or --comment")
			}
			return runBookingsUpdate(cmd, configPath, args[0], api.UpdateBookingRequest{
				Status:      status,
				ShopComment: comment,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&comment, "comment", "", "shop comment shown to the customer")
	return cmd
}

func runBookingsUpdate(cmd *cobra.Command, configPath, bookingID string, req api.UpdateBookingRequest) error {
	_, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	b, err := client.UpdateBooking(cmd.Context(), bookingID, &req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated booking %s (status: %s)\n", b.ID, b.Status)
	return nil
}
