package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/wbfreight/dispatch/internal/domain"
)

// Catalog is a point-in-time view of the price tables. A nil row with a
// nil error means no active entry matches; the calculator then falls
// back to the hardcoded defaults.
type Catalog interface {
	BoxRate(ctx context.Context, size domain.BoxSize) (*domain.BoxRate, error)
	CustomBoxRate(ctx context.Context, band domain.VolumeBand) (*domain.BoxRate, error)
	PalletRate(ctx context.Context, category domain.WeightCategory) (*domain.PalletRate, error)
	DeliveryTariff(ctx context.Context, warehouseID int64) (*domain.DeliveryTariff, error)
	ActiveServices(ctx context.Context, ids []int64) ([]domain.Service, error)
}

// Breakdown is the priced result of a cargo specification.
type Breakdown struct {
	Delivery decimal.Decimal `json:"delivery"`
	Cargo    decimal.Decimal `json:"cargo"`
	Services decimal.Decimal `json:"services"`
	Total    decimal.Decimal `json:"total"`
}

type Calculator struct {
	catalog Catalog
	logger  *slog.Logger
}

func NewCalculator(catalog Catalog, logger *slog.Logger) *Calculator {
	return &Calculator{
		catalog: catalog,
		logger:  logger,
	}
}

// Quote prices a cargo spec against the current catalog state. The result
// is deterministic for a fixed catalog. Malformed custom dimensions or
// weights degrade to the documented minimum prices instead of failing:
// pricing must never block order intake.
func (c *Calculator) Quote(ctx context.Context, cargo domain.CargoSpec, warehouseID int64, serviceIDs []int64) (Breakdown, error) {
	var b Breakdown

	delivery, err := c.deliveryCost(ctx, warehouseID)
	if err != nil {
		return b, fmt.Errorf("delivery cost: %w", err)
	}
	b.Delivery = delivery

	cargoCost := decimal.Zero
	if cargo.BoxCount > 0 {
		unit, err := c.boxUnitPrice(ctx, cargo)
		if err != nil {
			return b, fmt.Errorf("box unit price: %w", err)
		}
		cargoCost = cargoCost.Add(unit.Mul(decimal.NewFromInt(int64(cargo.BoxCount))))
	}
	if cargo.PalletCount > 0 {
		unit, err := c.palletUnitPrice(ctx, cargo)
		if err != nil {
			return b, fmt.Errorf("pallet unit price: %w", err)
		}
		cargoCost = cargoCost.Add(unit.Mul(decimal.NewFromInt(int64(cargo.PalletCount))))
	}
	b.Cargo = cargoCost

	services, err := c.servicesCost(ctx, serviceIDs)
	if err != nil {
		return b, fmt.Errorf("services cost: %w", err)
	}
	b.Services = services

	b.Total = b.Delivery.Add(b.Cargo).Add(b.Services).Round(2)
	return b, nil
}

func (c *Calculator) deliveryCost(ctx context.Context, warehouseID int64) (decimal.Decimal, error) {
	tariff, err := c.catalog.DeliveryTariff(ctx, warehouseID)
	if err != nil {
		return decimal.Zero, err
	}
	if tariff == nil {
		// No tariff configured for this warehouse; delivery is free.
		return decimal.Zero, nil
	}
	return tariff.BasePrice, nil
}

func (c *Calculator) boxUnitPrice(ctx context.Context, cargo domain.CargoSpec) (decimal.Decimal, error) {
	if cargo.BoxSize == domain.BoxSizeCustom {
		return c.customBoxUnitPrice(ctx, cargo)
	}

	rate, err := c.catalog.BoxRate(ctx, cargo.BoxSize)
	if err != nil {
		return decimal.Zero, err
	}
	if rate != nil {
		return rate.Price, nil
	}

	if price, ok := defaultBoxPrices[cargo.BoxSize]; ok {
		return price, nil
	}
	c.logger.Warn("unknown box size category, using minimum price", "size", cargo.BoxSize)
	return minBoxPrice, nil
}

func (c *Calculator) customBoxUnitPrice(ctx context.Context, cargo domain.CargoSpec) (decimal.Decimal, error) {
	if !cargo.Length.IsPositive() || !cargo.Width.IsPositive() || !cargo.Height.IsPositive() {
		c.logger.Warn("degraded box pricing: non-positive dimension, using minimum price",
			"length", cargo.Length, "width", cargo.Width, "height", cargo.Height)
		return minBoxPrice, nil
	}

	band := domain.VolumeBandFor(cargo.Length, cargo.Width, cargo.Height)

	rate, err := c.catalog.CustomBoxRate(ctx, band)
	if err != nil {
		return decimal.Zero, err
	}
	if rate != nil {
		return rate.Price, nil
	}
	return defaultVolumePrices[band], nil
}

func (c *Calculator) palletUnitPrice(ctx context.Context, cargo domain.CargoSpec) (decimal.Decimal, error) {
	switch cargo.WeightCategory {
	case domain.WeightCategoryCustom:
		return c.customPalletUnitPrice(cargo), nil
	case "":
		c.logger.Warn("degraded pallet pricing: missing weight category, using minimum price")
		return minPalletPrice, nil
	}

	rate, err := c.catalog.PalletRate(ctx, cargo.WeightCategory)
	if err != nil {
		return decimal.Zero, err
	}
	if rate != nil {
		return rate.Price, nil
	}

	if price, ok := defaultPalletPrices[cargo.WeightCategory]; ok {
		return price, nil
	}
	c.logger.Warn("unknown pallet weight category, using minimum price", "category", cargo.WeightCategory)
	return minPalletPrice, nil
}

// customPalletUnitPrice prices a pallet by exact weight: flat up to
// 500 kg, then 1000 per started 100 kg above that. Non-positive weight
// degrades to the minimum.
func (c *Calculator) customPalletUnitPrice(cargo domain.CargoSpec) decimal.Decimal {
	if !cargo.Weight.IsPositive() {
		c.logger.Warn("degraded pallet pricing: non-positive weight, using minimum price",
			"weight", cargo.Weight)
		return minPalletPrice
	}

	if cargo.Weight.LessThanOrEqual(customWeightThreshold) {
		return customPalletBase
	}

	excess := cargo.Weight.Sub(customWeightThreshold)
	increments := excess.Div(weightIncrementKg).Ceil()
	return customPalletBase.Add(increments.Mul(pricePerIncrement))
}

func (c *Calculator) servicesCost(ctx context.Context, ids []int64) (decimal.Decimal, error) {
	if len(ids) == 0 {
		return decimal.Zero, nil
	}

	// Inactive or deleted services silently contribute nothing: a stale
	// selection must not fail the quote.
	services, err := c.catalog.ActiveServices(ctx, ids)
	if err != nil {
		return decimal.Zero, err
	}

	prices := make(map[int64]decimal.Decimal, len(services))
	for _, svc := range services {
		prices[svc.ID] = svc.Price
	}

	// Iterate over the selection rather than the catalog rows so that a
	// service picked twice is charged twice.
	total := decimal.Zero
	for _, id := range ids {
		if price, ok := prices[id]; ok {
			total = total.Add(price)
		}
	}
	return total, nil
}
