package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shipquote/backend/internal/bootstrap"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/extract"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <snapshot.html>",
	Short: "Parses a saved results panel with the partner's extraction rules.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := bootstrap.Definition(partnerID)
		if err != nil {
			return err
		}
		html, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		options, err := extract.New(def.Results, logger).Parse(string(html))
		if err != nil {
			return err
		}
		if len(options) == 0 {
			return fmt.Errorf("%w: %s", domain.ErrExtractionEmpty, args[0])
		}
		renderOptions(options)
		return nil
	},
}

func renderOptions(options []domain.ShippingOption) {
	t := newTable()
	t.AppendHeader(table.Row{"Service", "Class", "Cost", "Days", "Delivery"})
	for _, o := range options {
		t.AppendRow(table.Row{o.Name, o.ServiceClass, "$" + o.Cost.StringFixed(2), o.EstimatedDays, o.DeliveryDate})
	}
	t.Render()
}
