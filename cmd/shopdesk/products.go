package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blackfroglabs/shopdesk/internal/api"
)

func newProductsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Product catalog commands",
	}

	cmd.AddCommand(newProductsListCmd())
	cmd.AddCommand(newProductsCreateCmd())
	cmd.AddCommand(newProductsUpdateCmd())
	cmd.AddCommand(newProductsDeleteCmd())
	return cmd
}

func newProductsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductsList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	return cmd
}

func runProductsList(cmd *cobra.Command, configPath string) error {
	_, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	resp, err := client.ListProducts(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Products) == 0 {
		fmt.Fprintln(out, "No products found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK\tPUBLISHED")
	for _, p := range resp.Products {
		published := "no"
		if p.Published {
			published = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, formatCents(p.PriceCents), p.Stock, published)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d product(s)\n", resp.Count)
	return nil
}

func productFlags(cmd *cobra.Command, req *api.SaveProductRequest) {
	cmd.Flags().StringVar(&req.Name, "name", "", "product name")
	cmd.Flags().StringVar(&req.Description, "description", "", "product description")
	cmd.Flags().IntVar(&req.PriceCents, "price-cents", 0, "price in cents")
	cmd.Flags().IntVar(&req.Stock, "stock", 0, "units in stock")
	cmd.Flags().StringVar(&req.Category, "category", "", "catalog category")
	cmd.Flags().BoolVar(&req.Published, "published", false, "visible in the shop")
}

func newProductsCreateCmd() *cobra.Command {
	var (
		configPath string
		req        api.SaveProductRequest
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a catalog item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductsCreate(cmd, configPath, req)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	productFlags(cmd, &req)
	cmd.MarkFlagRequired("name")
	return cmd
}

func runProductsCreate(cmd *cobra.Command, configPath string, req api.SaveProductRequest) error {
	_, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	p, err := client.CreateProduct(cmd.Context(), &req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created product %s (%s)\n", p.ID, p.Name)
	return nil
}

func newProductsUpdateCmd() *cobra.Command {
	var (
		configPath string
		req        api.SaveProductRequest
	)

	cmd := &cobra.Command{
		Use:   "update <product-id>",
		Short: "Replace a catalog item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductsUpdate(cmd, configPath, args[0], req)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	productFlags(cmd, &req)
	cmd.MarkFlagRequired("name")
	return cmd
}

func runProductsUpdate(cmd *cobra.Command, configPath, productID string, req api.SaveProductRequest) error {
	_, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	p, err := client.UpdateProduct(cmd.Context(), productID, &req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated product %s (%s)\n", p.ID, p.Name)
	return nil
}

func newProductsDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <product-id>",
		Short: "Remove a catalog item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductsDelete(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	return cmd
}

func runProductsDelete(cmd *cobra.Command, configPath, productID string) error {
	_, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	resp, err := client.DeleteProduct(cmd.Context(), productID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp == nil {
		fmt.Fprintf(out, "Product %s not found.\n", productID)
		return nil
	}
	fmt.Fprintf(out, "Deleted product %s\n", resp.ID)
	return nil
}
