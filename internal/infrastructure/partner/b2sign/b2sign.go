// Package b2sign maps the B2Sign trade print storefront.
package b2sign

import (
	"github.com/shipquote/backend/internal/domain"
	"github.com/shipquote/backend/internal/infrastructure/browser"
	"github.com/shipquote/backend/internal/infrastructure/extract"
	"github.com/shipquote/backend/internal/infrastructure/formfill"
	"github.com/shipquote/backend/internal/infrastructure/partner"
)

const (
	ID      = "b2sign"
	BaseURL = "https://www.b2sign.com"
)

type sel = browser.Selector

func Definition() partner.Definition {
	return partner.Definition{
		ID: ID,
		Login: partner.LoginMapping{
			HomeURL: BaseURL + "/",
			SignIn:  []sel{browser.CSS("a[href*='customer/account/login']"), browser.Text("Sign In", "a")},
			Username: []sel{
				browser.CSS("#email"),
				browser.CSS("input[name='login[username]']"),
				browser.Placeholder("Email"),
			},
			Password: []sel{browser.CSS("#pass"), browser.CSS("input[name='login[password]']")},
			Submit:   []sel{browser.CSS("#send2"), browser.Text("Sign In", "button")},
			LoggedIn: []sel{browser.CSS(".customer-welcome"), browser.Text("Sign Out", "a")},
			LoginMarkers: []string{
				"/customer/account/login",
				"/customer/account/forgotpassword",
			},
		},
		Catalog: formfill.NewCatalog(ID, banner(), tent(), sign(), tin()),
		Results: extract.Rules{
			Row:   ".shipping-rates .rate-row, #shipping-rates tr",
			Label: ".method-title",
			Price: ".price",
			Date:  ".delivery-date",
			Skip:  []string{"shipping method", "select a carrier"},
		},
	}
}

func feetInchesDimensions() []formfill.FieldMapping {
	return []formfill.FieldMapping{
		{
			Field:      formfill.FieldWidthFeet,
			Candidates: []sel{browser.CSS("input[name='width_ft']"), browser.Label("Width (ft)")},
			Transform:  formfill.FeetPart,
		},
		{
			Field:      formfill.FieldWidthInches,
			Candidates: []sel{browser.CSS("input[name='width_in']"), browser.Label("Width (in)")},
			Transform:  formfill.InchesPart,
		},
		{
			Field:      formfill.FieldHeightFeet,
			Candidates: []sel{browser.CSS("input[name='height_ft']"), browser.Label("Height (ft)")},
			Transform:  formfill.FeetPart,
		},
		{
			Field:      formfill.FieldHeightInches,
			Candidates: []sel{browser.CSS("input[name='height_in']"), browser.Label("Height (in)")},
			Transform:  formfill.InchesPart,
		},
	}
}

// inchDimensions is used by rigid signs, which are sized in whole inches
func inchDimensions() []formfill.FieldMapping {
	return []formfill.FieldMapping{
		{Field: "width", Candidates: []sel{browser.CSS("input[name='width']"), browser.Label("Width")}, Transform: formfill.TotalInches},
		{Field: "height", Candidates: []sel{browser.CSS("input[name='height']"), browser.Label("Height")}, Transform: formfill.TotalInches},
	}
}

func jobDetails() []formfill.FieldMapping {
	return []formfill.FieldMapping{
		{
			Field:      formfill.FieldQuantity,
			Candidates: []sel{browser.CSS("#qty"), browser.CSS("input[name='qty']"), browser.Label("Quantity")},
			Transform:  formfill.Integer,
		},
		{
			Field:      formfill.FieldJobName,
			Candidates: []sel{browser.CSS("input[name='job_name']"), browser.Placeholder("Job Name")},
			Optional:   true,
		},
	}
}

func sides() formfill.OptionMapping {
	return formfill.OptionMapping{
		Widget:     formfill.WidgetChoice,
		Candidates: []sel{browser.Text("{label}", "label"), browser.XPath(`//div[contains(@class,'swatch-option') and normalize-space()='{label}']`)},
		Labels:     map[string]string{"single": "1 Side", "double": "2 Sides"},
	}
}

// blindShip picks "ship to a different address". Rates only render once
// the destination is saved.
func blindShip() formfill.ShippingMode {
	return formfill.ShippingMode{
		Field: formfill.FieldMapping{
			Field:  formfill.FieldShippingMode,
			Widget: formfill.WidgetButton,
			Candidates: []sel{
				browser.CSS("input[value='blind_ship'] + label"),
				browser.Text("Ship to a different address", "label"),
			},
		},
		RequiresDestination: true,
	}
}

func destination() *formfill.Destination {
	stateAutocomplete := formfill.FieldMapping{
		Widget:     formfill.WidgetAutocomplete,
		Candidates: []sel{browser.CSS(".address-modal input[name='region']")},
		OptionList: []sel{browser.CSS(".address-modal .region-suggestions li")},
		Transform:  formfill.StateName,
	}

	return &formfill.Destination{
		EditorTrigger: formfill.FieldMapping{
			Field:  "address-editor",
			Widget: formfill.WidgetButton,
			Candidates: []sel{
				browser.CSS(".shipping-address .action-edit"),
				browser.XPath(`//div[contains(@class,'shipping-address')]//i[contains(@class,'fa-pencil')]`),
			},
		},
		Fields: []formfill.FieldMapping{
			{Field: formfill.FieldName, Candidates: []sel{browser.CSS(".address-modal input[name='fullname']"), browser.Label("Full Name")}},
			{Field: formfill.FieldCompany, Candidates: []sel{browser.CSS(".address-modal input[name='company']")}, Optional: true},
			{
				Field:      formfill.FieldPhone,
				Candidates: []sel{browser.CSS(".address-modal input[name='telephone']"), browser.Label("Phone")},
				Transform:  formfill.Digits,
			},
			{Field: formfill.FieldStreet, Candidates: []sel{browser.CSS(".address-modal input[name='street[0]']"), browser.Label("Street Address")}},
			{Field: formfill.FieldCity, Candidates: []sel{browser.CSS(".address-modal input[name='city']"), browser.Label("City")}},
			{
				Field:        formfill.FieldState,
				Widget:       formfill.WidgetSelect,
				Candidates:   []sel{browser.CSS(".address-modal select[name='region_id']")},
				Transform:    formfill.StateName,
				Alternatives: []formfill.FieldMapping{stateAutocomplete},
			},
			{Field: formfill.FieldPostalCode, Candidates: []sel{browser.CSS(".address-modal input[name='postcode']"), browser.Label("Zip Code")}},
		},
		Submit: formfill.FieldMapping{
			Field:      formfill.FieldSubmit,
			Widget:     formfill.WidgetButton,
			Candidates: []sel{browser.CSS(".address-modal .action-save"), browser.Text("Save Address", "button")},
		},
	}
}

// zipEstimate is the product page's shipping estimator. It prices the order
// from the zip code alone and is used when no customer address is given.
func zipEstimate() *formfill.Estimate {
	return &formfill.Estimate{
		Mode: formfill.ShippingMode{
			Field: formfill.FieldMapping{
				Field:  formfill.FieldShippingMode,
				Widget: formfill.WidgetButton,
				Candidates: []sel{
					browser.CSS("input[value='estimate'] + label"),
					browser.Text("Estimate Shipping", "label"),
				},
			},
			RequiresDestination: true,
		},
		Destination: &formfill.Destination{
			Fields: []formfill.FieldMapping{{
				Field: formfill.FieldPostalCode,
				Candidates: []sel{
					browser.CSS("#estimate_postcode"),
					browser.CSS("input[name='estimate[postcode]']"),
					browser.Placeholder("Zip Code"),
				},
			}},
			Submit: formfill.FieldMapping{
				Field:      formfill.FieldSubmit,
				Widget:     formfill.WidgetButton,
				Candidates: []sel{browser.CSS("#estimate-shipping"), browser.Text("Get Rates", "button")},
			},
		},
	}
}

func results() (panel, rows []sel) {
	panel = []sel{browser.CSS("#shipping-rates"), browser.CSS(".shipping-rates")}
	rows = []sel{browser.CSS("#shipping-rates tr .price"), browser.CSS(".shipping-rates .rate-row")}
	return panel, rows
}

func banner() *formfill.Table {
	panel, rows := results()
	return &formfill.Table{
		ProductType: domain.ProductBanner,
		OrderURL:    BaseURL + "/13oz-vinyl-banner.html",
		Dimensions:  feetInchesDimensions(),
		JobDetails:  jobDetails(),
		Material: &formfill.OptionMapping{
			Key:        formfill.FieldMaterial,
			Widget:     formfill.WidgetSelect,
			Candidates: []sel{browser.CSS("select[name='material']"), browser.Label("Material")},
			Labels: map[string]string{
				"13oz-vinyl": "13oz Scrim Vinyl",
				"18oz-vinyl": "18oz Blockout Vinyl",
				"mesh":       "Mesh Vinyl",
			},
		},
		PrintOptions: map[string]formfill.OptionMapping{
			"sides": sides(),
			"finish": {
				Widget:     formfill.WidgetSelect,
				Candidates: []sel{browser.CSS("select[name='finishing']"), browser.Label("Finishing")},
				Labels:     map[string]string{"hem": "Hem All Sides", "none": "No Finishing", "pole-pocket": "Pole Pocket"},
			},
			"grommets": {
				Widget:     formfill.WidgetSelect,
				Candidates: []sel{browser.CSS("select[name='grommet']"), browser.Label("Grommets")},
				Labels:     map[string]string{"every-2ft": "Every 2 ft", "corners": "4 Corners Only", "none": "No Grommets"},
			},
		},
		ShippingMode: blindShip(),
		Destination:  destination(),
		Estimate:     zipEstimate(),
		ResultsPanel: panel,
		ResultRows:   rows,
	}
}

func tent() *formfill.Table {
	panel, rows := results()
	accessory := func(value, label string) formfill.FieldMapping {
		return formfill.FieldMapping{
			Field:  "accessory-" + value,
			Widget: formfill.WidgetButton,
			Candidates: []sel{
				browser.CSS("input[value='" + value + "'] + label"),
				browser.Text(label, "label"),
			},
		}
	}

	return &formfill.Table{
		ProductType: domain.ProductTent,
		OrderURL:    BaseURL + "/custom-canopy-tent.html",
		Dimensions: []formfill.FieldMapping{{
			Field:      formfill.FieldSize,
			Widget:     formfill.WidgetSelect,
			Candidates: []sel{browser.CSS("select[name='tent_size']"), browser.Label("Tent Size")},
			Transform:  formfill.FeetByFeet,
		}},
		JobDetails: jobDetails(),
		Material: &formfill.OptionMapping{
			Key:        "frame",
			Widget:     formfill.WidgetChoice,
			Candidates: []sel{browser.Text("{label}", "label")},
			Labels:     map[string]string{"standard": "Standard Frame", "heavy-duty": "Heavy Duty Hex Frame"},
		},
		PrintOptions: map[string]formfill.OptionMapping{
			"canopy-print": {
				Widget:     formfill.WidgetSelect,
				Candidates: []sel{browser.CSS("select[name='canopy_print']")},
				Labels:     map[string]string{"full": "Full Color Canopy", "valance": "Valance Only"},
			},
		},
		Accessories: map[string]formfill.FieldMapping{
			"full-wall":  accessory("full_wall", "Full Back Wall"),
			"half-wall":  accessory("half_wall", "Half Side Wall"),
			"carry-bag":  accessory("carry_bag", "Roller Carry Bag"),
			"weight-bag": accessory("weight_bag", "Sand Weight Bags"),
		},
		ShippingMode: blindShip(),
		Destination:  destination(),
		Estimate:     zipEstimate(),
		ResultsPanel: panel,
		ResultRows:   rows,
	}
}

func sign() *formfill.Table {
	panel, rows := results()
	return &formfill.Table{
		ProductType: domain.ProductSign,
		OrderURL:    BaseURL + "/coroplast-yard-signs.html",
		Dimensions:  inchDimensions(),
		JobDetails:  jobDetails(),
		Material: &formfill.OptionMapping{
			Key:        "thickness",
			Widget:     formfill.WidgetSelect,
			Candidates: []sel{browser.CSS("select[name='thickness']")},
			Labels:     map[string]string{"4mm": "4mm Coroplast", "10mm": "10mm Coroplast"},
		},
		PrintOptions: map[string]formfill.OptionMapping{
			"sides": sides(),
			"stakes": {
				Widget:     formfill.WidgetSelect,
				Candidates: []sel{browser.CSS("select[name='stake']"), browser.Label("H-Stakes")},
				Labels:     map[string]string{"none": "No Stakes", "h-stake": "H-Stake 10 x 30"},
			},
		},
		ShippingMode: blindShip(),
		Destination:  destination(),
		Estimate:     zipEstimate(),
		ResultsPanel: panel,
		ResultRows:   rows,
	}
}

func tin() *formfill.Table {
	panel, rows := results()
	return &formfill.Table{
		ProductType: domain.ProductTin,
		OrderURL:    BaseURL + "/aluminum-tin-signs.html",
		Dimensions:  inchDimensions(),
		JobDetails:  jobDetails(),
		Material: &formfill.OptionMapping{
			Key:        "gauge",
			Widget:     formfill.WidgetSelect,
			Candidates: []sel{browser.CSS("select[name='gauge']")},
			Labels:     map[string]string{"040": "0.040 Aluminum", "080": "0.080 Aluminum"},
		},
		PrintOptions: map[string]formfill.OptionMapping{
			"corners": {
				Widget:     formfill.WidgetChoice,
				Candidates: []sel{browser.Text("{label}", "label")},
				Labels:     map[string]string{"square": "Square Corners", "rounded": "Rounded Corners"},
			},
			"holes": {
				Widget:     formfill.WidgetSelect,
				Candidates: []sel{browser.CSS("select[name='holes']")},
				Labels:     map[string]string{"none": "No Holes", "corners": "4 Corner Holes", "top": "2 Top Holes"},
			},
		},
		ShippingMode: blindShip(),
		Destination:  destination(),
		Estimate:     zipEstimate(),
		ResultsPanel: panel,
		ResultRows:   rows,
	}
}
