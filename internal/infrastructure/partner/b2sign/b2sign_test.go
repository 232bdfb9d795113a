package b2sign

import (
	"testing"

	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/formfill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinition_CatalogIsComplete(t *testing.T) {
	def := Definition()
	require.NoError(t, def.Catalog.Validate())
	assert.Equal(t, ID, def.Catalog.Partner())
	assert.Equal(t,
		[]domain.ProductType{domain.ProductBanner, domain.ProductSign, domain.ProductTent, domain.ProductTin},
		def.Catalog.ProductTypes())
}

func TestDefinition_EveryProductShipsToCustomerOrZip(t *testing.T) {
	def := Definition()
	for _, pt := range def.Catalog.ProductTypes() {
		table, err := def.Catalog.Table(pt)
		require.NoError(t, err)
		assert.True(t, table.ShippingMode.RequiresDestination, pt)
		require.NotNil(t, table.Destination, pt)
		require.NotNil(t, table.Estimate, pt)

		mode, dest := table.Shipping(&domain.OrderSpecification{ProductType: pt, ZipCode: "90210"})
		assert.Equal(t, table.Estimate.Mode.Field.Candidates, mode.Field.Candidates, "orders without an address use the zip estimator")
		require.Len(t, dest.Fields, 1)
		assert.Equal(t, formfill.FieldPostalCode, dest.Fields[0].Field)

		candidates, transform, err := def.Catalog.Lookup(pt, formfill.FieldState)
		require.NoError(t, err, pt)
		assert.NotEmpty(t, candidates)
		state, err := transform("TX")
		require.NoError(t, err)
		assert.Equal(t, "Texas", state)
	}
}

func TestDefinition_BannerLabels(t *testing.T) {
	table, err := Definition().Catalog.Table(domain.ProductBanner)
	require.NoError(t, err)

	assert.Equal(t, "2 Sides", table.PrintOptions["sides"].Label("double"))
	assert.Equal(t, "Hem All Sides", table.PrintOptions["finish"].Label("hem"))
	// unknown values are passed through for fuzzy matching
	assert.Equal(t, "Satin", table.PrintOptions["finish"].Label("Satin"))
}

func TestDefinition_TentSizeAndAccessories(t *testing.T) {
	table, err := Definition().Catalog.Table(domain.ProductTent)
	require.NoError(t, err)

	require.Len(t, table.Dimensions, 1)
	size, err := table.Dimensions[0].Transform("10x20")
	require.NoError(t, err)
	assert.Equal(t, "10' x 20'", size)

	for _, code := range []string{"full-wall", "half-wall", "carry-bag", "weight-bag"} {
		assert.Contains(t, table.Accessories, code)
	}
}
