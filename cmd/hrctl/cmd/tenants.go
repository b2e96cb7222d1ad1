package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/jrsteele09/go-workforce-client/hrclient"
	"github.com/jrsteele09/go-workforce-client/tenants"
	"github.com/spf13/cobra"
)

var tenantParams tenants.ListParams

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "List tenants",
	Long: `List the tenants visible to the signed-in account. With --admin every
tenant on the platform is listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, release, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer release()
		if err := restore(c); err != nil {
			return err
		}
		return runTenants(cmd.Context(), cmd.OutOrStdout(), c, tenantParams)
	},
}

func init() {
	tenantsCmd.Flags().IntVar(&tenantParams.Page, "page", 1, "page number")
	tenantsCmd.Flags().IntVar(&tenantParams.Limit, "limit", 20, "page size")
	tenantsCmd.Flags().StringVar(&tenantParams.Search, "search", "", "name filter")
	rootCmd.AddCommand(tenantsCmd)
}

func runTenants(ctx context.Context, w io.Writer, c *hrclient.Client, params tenants.ListParams) error {
	list := c.Tenants.List
	if asAdmin {
		list = c.Admin.Tenants
	}
	page, err := list(ctx, params)
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(w).Encode(page)
	}
	return writeTenants(w, page)
}

func writeTenants(w io.Writer, page envelope.Page[tenants.Tenant]) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("ID", "NAME", "PLAN", "STATUS", "SEATS")
	for _, tn := range page.Data {
		t.Row(tn.ID, tn.Name, tn.Plan, string(tn.Status), strconv.Itoa(tn.Seats))
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	if page.Meta.TotalPages > 1 {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("page %d of %d, %d tenants", page.Meta.Page, page.Meta.TotalPages, page.Meta.Total)))
	}
	return nil
}
