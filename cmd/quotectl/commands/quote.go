package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shipquote/backend/config"
	"github.com/shipquote/backend/internal/bootstrap"
	"github.com/shipquote/backend/internal/domain"
	"github.com/spf13/cobra"
)

var (
	order       domain.OrderSpecification
	productType string
	printOpts   map[string]string
	customer    domain.CustomerInfo
)

func init() {
	f := quoteCmd.Flags()
	f.StringVarP(&productType, "type", "t", "banner", "Product type.")
	f.StringVar(&order.Material, "material", "", "Material code.")
	f.Float64Var(&order.Dimensions.WidthFt, "width", 0, "Width in feet.")
	f.Float64Var(&order.Dimensions.HeightFt, "height", 0, "Height in feet.")
	f.IntVarP(&order.Quantity, "qty", "q", 1, "Quantity.")
	f.StringVar(&order.ZipCode, "zip", "", "Destination zip code.")
	f.StringToStringVar(&printOpts, "option", nil, "Print option as key=value, repeatable.")
	f.StringSliceVar(&order.Accessories, "accessory", nil, "Accessory code, repeatable.")

	f.StringVar(&customer.Name, "ship-name", "", "Drop-ship recipient name.")
	f.StringVar(&customer.Company, "ship-company", "", "Drop-ship company.")
	f.StringVar(&customer.Phone, "ship-phone", "", "Drop-ship phone.")
	f.StringVar(&customer.Street, "ship-street", "", "Drop-ship street.")
	f.StringVar(&customer.City, "ship-city", "", "Drop-ship city.")
	f.StringVar(&customer.State, "ship-state", "", "Drop-ship state.")
	f.StringVar(&customer.PostalCode, "ship-postal", "", "Drop-ship postal code. Must match --zip when set.")

	rootCmd.AddCommand(quoteCmd)
}

var quoteCmd = &cobra.Command{
	Use:   "quote --type banner --width 3 --height 6 --zip 90210",
	Short: "Runs one live quote against the partner site and prints the shipping options.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tel, err := bootstrap.SetupTelemetry(cmd.Context(), cfg.Telemetry)
		if err != nil {
			return err
		}
		defer tel.Shutdown(cmd.Context())

		app, err := bootstrap.Build(cfg, bootstrap.ChromeLauncher(cfg.Browser, logger), logger)
		if err != nil {
			return err
		}
		defer app.Close()

		order.ProductType = domain.ProductType(productType)
		order.PrintOptions = printOpts
		if customer != (domain.CustomerInfo{}) {
			order.CustomerInfo = &customer
		}

		started := time.Now()
		result := app.Service.GetQuote(cmd.Context(), &order, partnerID)
		fmt.Printf("%s  %s  fingerprint %s  (%s)\n",
			result.Partner, result.QuotedAt.Format(time.RFC3339), result.Fingerprint, time.Since(started).Round(time.Millisecond))

		if !result.Success {
			renderErrors(result.Errors)
			return errors.New("quote failed")
		}
		renderOptions(result.ShippingOptions)
		return nil
	},
}

func renderErrors(errs []domain.QuoteError) {
	t := newTable()
	t.AppendHeader(table.Row{"Kind", "State", "Message"})
	for _, e := range errs {
		t.AppendRow(table.Row{e.Kind, e.State, e.Message})
	}
	t.Render()
}
