package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/wbfreight/dispatch/internal/domain"
)

// Hardcoded fallback tables, used whenever no active catalog row matches.
// These mirror the seed data in migrations; changing one without the
// other changes pricing behavior for fresh databases only.

var defaultBoxPrices = map[domain.BoxSize]decimal.Decimal{
	domain.BoxSize60x40x40: decimal.NewFromInt(450),
	domain.BoxSize50x40x40: decimal.NewFromInt(450),
	domain.BoxSize45x45x45: decimal.NewFromInt(450),
}

var defaultVolumePrices = map[domain.VolumeBand]decimal.Decimal{
	domain.VolumeBandUpTo01: decimal.NewFromInt(450),
	domain.VolumeBandUpTo02: decimal.NewFromInt(600),
	domain.VolumeBandOver02: decimal.NewFromInt(700),
}

var defaultPalletPrices = map[domain.WeightCategory]decimal.Decimal{
	domain.WeightCategory0To200:   decimal.NewFromInt(2000),
	domain.WeightCategory200To300: decimal.NewFromInt(3000),
	domain.WeightCategory300To400: decimal.NewFromInt(4000),
	domain.WeightCategory400To500: decimal.NewFromInt(5000),
	domain.WeightCategoryOther:    decimal.NewFromInt(6000),
}

var (
	// Degraded-path minimums for malformed custom dimensions or weight.
	minBoxPrice    = decimal.NewFromInt(450)
	minPalletPrice = decimal.NewFromInt(2000)

	// Custom pallet weight formula: flat price up to the threshold, then
	// a surcharge per started increment above it.
	customPalletBase      = decimal.NewFromInt(5000)
	customWeightThreshold = decimal.NewFromInt(500)
	weightIncrementKg     = decimal.NewFromInt(100)
	pricePerIncrement     = decimal.NewFromInt(1000)
)
