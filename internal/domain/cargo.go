package domain

import "github.com/shopspring/decimal"

type BoxSize string

const (
	BoxSize60x40x40 BoxSize = "60x40x40"
	BoxSize50x40x40 BoxSize = "50x40x40"
	BoxSize45x45x45 BoxSize = "45x45x45"
	BoxSizeCustom   BoxSize = "custom"
)

// VolumeBand classifies a custom-sized box by its volume in cubic meters.
type VolumeBand string

const (
	VolumeBandUpTo01 VolumeBand = "<=0.1"
	VolumeBandUpTo02 VolumeBand = "0.1-0.2"
	VolumeBandOver02 VolumeBand = ">0.2"
)

type WeightCategory string

const (
	WeightCategory0To200   WeightCategory = "0-200"
	WeightCategory200To300 WeightCategory = "200-300"
	WeightCategory300To400 WeightCategory = "300-400"
	WeightCategory400To500 WeightCategory = "400-500"
	WeightCategoryOther    WeightCategory = "other"
	WeightCategoryCustom   WeightCategory = "custom"
)

// CargoSpec describes the shipment contents. Boxes and pallets are
// independent line items and may both be present on one order.
type CargoSpec struct {
	BoxCount int     `json:"box_count"`
	BoxSize  BoxSize `json:"box_size,omitempty"`

	// Dimensions in centimeters, only meaningful for custom-sized boxes.
	Length decimal.Decimal `json:"length,omitempty"`
	Width  decimal.Decimal `json:"width,omitempty"`
	Height decimal.Decimal `json:"height,omitempty"`

	PalletCount    int            `json:"pallet_count"`
	WeightCategory WeightCategory `json:"weight_category,omitempty"`

	// Weight in kilograms, only meaningful for custom-weight pallets.
	Weight decimal.Decimal `json:"weight,omitempty"`
}

// VolumeBandFor converts box dimensions in centimeters to a volume band.
// The caller is responsible for rejecting non-positive dimensions.
func VolumeBandFor(length, width, height decimal.Decimal) VolumeBand {
	cubicCm := length.Mul(width).Mul(height)
	volume := cubicCm.Div(decimal.NewFromInt(1_000_000))

	switch {
	case volume.LessThanOrEqual(decimal.RequireFromString("0.1")):
		return VolumeBandUpTo01
	case volume.LessThanOrEqual(decimal.RequireFromString("0.2")):
		return VolumeBandUpTo02
	default:
		return VolumeBandOver02
	}
}
