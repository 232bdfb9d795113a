package commands

import (
	"maps"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shipquote/backend/internal/bootstrap"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
	"github.com/shipquote/backend/internal/infrastructure/formfill"
	"github.com/spf13/cobra"
)

var fieldsType string

func init() {
	fieldsCmd.Flags().StringVarP(&fieldsType, "type", "t", "", "Product type to print. All types when empty.")
	rootCmd.AddCommand(fieldsCmd)
}

var fieldsCmd = &cobra.Command{
	Use:   "fields [--type banner]",
	Short: "Prints the field mapping tables of a partner.",
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := bootstrap.Definition(partnerID)
		if err != nil {
			return err
		}

		types := def.Catalog.ProductTypes()
		if fieldsType != "" {
			types = []domain.ProductType{domain.ProductType(fieldsType)}
		}
		for _, pt := range types {
			tbl, err := def.Catalog.Table(pt)
			if err != nil {
				return err
			}
			renderFields(tbl)
		}
		return nil
	},
}

func candidates(sels []browser.Selector) string {
	parts := make([]string, len(sels))
	for i, s := range sels {
		parts[i] = s.String()
	}
	return strings.Join(parts, "\n")
}

func fieldRow(section string, m formfill.FieldMapping) table.Row {
	var flags []string
	if m.Optional {
		flags = append(flags, "optional")
	}
	if m.Verify {
		flags = append(flags, "verify")
	}
	if len(m.Alternatives) > 0 {
		flags = append(flags, "alternatives")
	}
	return table.Row{section, m.Field, m.Widget, candidates(m.Candidates), strings.Join(flags, ",")}
}

func appendShipping(t table.Writer, section, destSection string, mode formfill.ShippingMode, dest *formfill.Destination) {
	row := fieldRow(section, mode.Field)
	if mode.RequiresDestination {
		row[4] = strings.Trim(row[4].(string)+",destination", ",")
	}
	t.AppendRow(row)
	if dest == nil {
		return
	}
	if len(dest.EditorTrigger.Candidates) > 0 {
		t.AppendRow(fieldRow(destSection, dest.EditorTrigger))
	}
	for _, m := range dest.Fields {
		t.AppendRow(fieldRow(destSection, m))
	}
	t.AppendRow(fieldRow(destSection, dest.Submit))
}

func renderFields(tbl *formfill.Table) {
	t := newTable()
	t.SetTitle("%s  %s", tbl.ProductType, tbl.OrderURL)
	t.AppendHeader(table.Row{"Section", "Field", "Widget", "Candidates", "Flags"})

	for _, m := range tbl.Dimensions {
		t.AppendRow(fieldRow("dimensions", m))
	}
	for _, m := range tbl.JobDetails {
		t.AppendRow(fieldRow("job", m))
	}
	if tbl.Material != nil {
		t.AppendRow(table.Row{"material", tbl.Material.Key, tbl.Material.Widget, candidates(tbl.Material.Candidates), ""})
	}
	for _, key := range slices.Sorted(maps.Keys(tbl.PrintOptions)) {
		opt := tbl.PrintOptions[key]
		t.AppendRow(table.Row{"print", key, opt.Widget, candidates(opt.Candidates), ""})
	}
	for _, code := range slices.Sorted(maps.Keys(tbl.Accessories)) {
		t.AppendRow(fieldRow("accessory", tbl.Accessories[code]))
	}
	appendShipping(t, "shipping", "destination", tbl.ShippingMode, tbl.Destination)
	if e := tbl.Estimate; e != nil {
		appendShipping(t, "estimate", "estimate", e.Mode, e.Destination)
	}
	t.AppendRow(table.Row{"results", "panel", "", candidates(tbl.ResultsPanel), ""})
	t.Render()
}
