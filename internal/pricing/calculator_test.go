package pricing

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wbfreight/dispatch/internal/domain"
)

type fakeCatalog struct {
	boxRates       map[domain.BoxSize]decimal.Decimal
	customBoxRates map[domain.VolumeBand]decimal.Decimal
	palletRates    map[domain.WeightCategory]decimal.Decimal
	tariffs        map[int64]decimal.Decimal
	services       map[int64]domain.Service
}

func (f *fakeCatalog) BoxRate(_ context.Context, size domain.BoxSize) (*domain.BoxRate, error) {
	price, ok := f.boxRates[size]
	if !ok {
		return nil, nil
	}
	return &domain.BoxRate{SizeCategory: size, Price: price, IsActive: true}, nil
}

func (f *fakeCatalog) CustomBoxRate(_ context.Context, band domain.VolumeBand) (*domain.BoxRate, error) {
	price, ok := f.customBoxRates[band]
	if !ok {
		return nil, nil
	}
	return &domain.BoxRate{SizeCategory: domain.BoxSizeCustom, VolumeBand: band, Price: price, IsActive: true}, nil
}

func (f *fakeCatalog) PalletRate(_ context.Context, category domain.WeightCategory) (*domain.PalletRate, error) {
	price, ok := f.palletRates[category]
	if !ok {
		return nil, nil
	}
	return &domain.PalletRate{WeightCategory: category, Price: price, IsActive: true}, nil
}

func (f *fakeCatalog) DeliveryTariff(_ context.Context, warehouseID int64) (*domain.DeliveryTariff, error) {
	price, ok := f.tariffs[warehouseID]
	if !ok {
		return nil, nil
	}
	return &domain.DeliveryTariff{WarehouseID: warehouseID, BasePrice: price, IsActive: true}, nil
}

func (f *fakeCatalog) ActiveServices(_ context.Context, ids []int64) ([]domain.Service, error) {
	seen := make(map[int64]bool)
	var services []domain.Service
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if svc, ok := f.services[id]; ok {
			services = append(services, svc)
		}
	}
	return services, nil
}

func newCalculator(catalog *fakeCatalog) *Calculator {
	if catalog.boxRates == nil {
		catalog.boxRates = map[domain.BoxSize]decimal.Decimal{}
	}
	if catalog.customBoxRates == nil {
		catalog.customBoxRates = map[domain.VolumeBand]decimal.Decimal{}
	}
	if catalog.palletRates == nil {
		catalog.palletRates = map[domain.WeightCategory]decimal.Decimal{}
	}
	if catalog.tariffs == nil {
		catalog.tariffs = map[int64]decimal.Decimal{}
	}
	if catalog.services == nil {
		catalog.services = map[int64]domain.Service{}
	}
	return NewCalculator(catalog, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s: expected %s, got %s", name, want, got)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQuoteBoxes(t *testing.T) {
	ctx := context.Background()

	t.Run("fixed size with catalog rate multiplies exactly", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{
			boxRates: map[domain.BoxSize]decimal.Decimal{
				domain.BoxSize60x40x40: dec("512.50"),
			},
		})

		b, err := calc.Quote(ctx, domain.CargoSpec{BoxCount: 7, BoxSize: domain.BoxSize60x40x40}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "3587.50")
		assertDecimal(t, "total", b.Total, "3587.50")
	})

	t.Run("fixed size without catalog rate falls back to default", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{})

		b, err := calc.Quote(ctx, domain.CargoSpec{BoxCount: 3, BoxSize: domain.BoxSize45x45x45}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "1350")
	})

	t.Run("custom size 60x50x40 lands in the middle volume band", func(t *testing.T) {
		// 60*50*40 = 120000 cm3 = 0.12 m3 -> 600 per box
		calc := newCalculator(&fakeCatalog{})

		b, err := calc.Quote(ctx, domain.CargoSpec{
			BoxCount: 2,
			BoxSize:  domain.BoxSizeCustom,
			Length:   dec("60"), Width: dec("50"), Height: dec("40"),
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "1200")
	})

	t.Run("volume band boundaries are inclusive on the low side", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{})

		// 100*100*10 = 0.1 m3 exactly -> lowest band
		b, err := calc.Quote(ctx, domain.CargoSpec{
			BoxCount: 1,
			BoxSize:  domain.BoxSizeCustom,
			Length:   dec("100"), Width: dec("100"), Height: dec("10"),
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo at 0.1", b.Cargo, "450")

		// 100*100*20 = 0.2 m3 exactly -> middle band
		b, err = calc.Quote(ctx, domain.CargoSpec{
			BoxCount: 1,
			BoxSize:  domain.BoxSizeCustom,
			Length:   dec("100"), Width: dec("100"), Height: dec("20"),
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo at 0.2", b.Cargo, "600")

		// just over 0.2 m3 -> top band
		b, err = calc.Quote(ctx, domain.CargoSpec{
			BoxCount: 1,
			BoxSize:  domain.BoxSizeCustom,
			Length:   dec("100"), Width: dec("100"), Height: dec("20.1"),
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo above 0.2", b.Cargo, "700")
	})

	t.Run("custom band catalog override wins over default", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{
			customBoxRates: map[domain.VolumeBand]decimal.Decimal{
				domain.VolumeBandUpTo02: dec("650"),
			},
		})

		b, err := calc.Quote(ctx, domain.CargoSpec{
			BoxCount: 1,
			BoxSize:  domain.BoxSizeCustom,
			Length:   dec("60"), Width: dec("50"), Height: dec("40"),
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "650")
	})

	t.Run("non-positive dimension degrades to minimum price", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{})

		b, err := calc.Quote(ctx, domain.CargoSpec{
			BoxCount: 4,
			BoxSize:  domain.BoxSizeCustom,
			Length:   dec("60"), Width: dec("0"), Height: dec("40"),
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "1800")
	})
}

func TestQuotePallets(t *testing.T) {
	ctx := context.Background()

	t.Run("fixed band falls back to defaults", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{})

		b, err := calc.Quote(ctx, domain.CargoSpec{
			PalletCount:    2,
			WeightCategory: domain.WeightCategory300To400,
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "8000")
	})

	t.Run("fixed band uses catalog rate when present", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{
			palletRates: map[domain.WeightCategory]decimal.Decimal{
				domain.WeightCategory0To200: dec("2200"),
			},
		})

		b, err := calc.Quote(ctx, domain.CargoSpec{
			PalletCount:    3,
			WeightCategory: domain.WeightCategory0To200,
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "6600")
	})

	t.Run("custom weight 650kg adds two full increments", func(t *testing.T) {
		// excess 150 -> ceil(150/100)=2 -> 5000 + 2*1000 = 7000
		calc := newCalculator(&fakeCatalog{})

		b, err := calc.Quote(ctx, domain.CargoSpec{
			PalletCount:    1,
			WeightCategory: domain.WeightCategoryCustom,
			Weight:         dec("650"),
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "7000")
	})

	t.Run("custom weight 500kg exactly stays flat", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{})

		b, err := calc.Quote(ctx, domain.CargoSpec{
			PalletCount:    1,
			WeightCategory: domain.WeightCategoryCustom,
			Weight:         dec("500"),
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "5000")
	})

	t.Run("custom weight just over the threshold starts a new increment", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{})

		b, err := calc.Quote(ctx, domain.CargoSpec{
			PalletCount:    1,
			WeightCategory: domain.WeightCategoryCustom,
			Weight:         dec("500.5"),
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "6000")
	})

	t.Run("non-positive custom weight degrades to minimum", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{})

		b, err := calc.Quote(ctx, domain.CargoSpec{
			PalletCount:    2,
			WeightCategory: domain.WeightCategoryCustom,
			Weight:         dec("0"),
		}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "4000")
	})

	t.Run("missing weight category degrades to minimum", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{})

		b, err := calc.Quote(ctx, domain.CargoSpec{PalletCount: 1}, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "cargo", b.Cargo, "2000")
	})
}

func TestQuoteDeliveryAndServices(t *testing.T) {
	ctx := context.Background()

	t.Run("missing delivery tariff costs nothing", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{})

		b, err := calc.Quote(ctx, domain.CargoSpec{}, 42, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "delivery", b.Delivery, "0")
		assertDecimal(t, "total", b.Total, "0")
	})

	t.Run("delivery tariff for the warehouse is added", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{
			tariffs: map[int64]decimal.Decimal{7: dec("1500")},
		})

		b, err := calc.Quote(ctx, domain.CargoSpec{BoxCount: 1, BoxSize: domain.BoxSize50x40x40}, 7, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "delivery", b.Delivery, "1500")
		assertDecimal(t, "total", b.Total, "1950")
	})

	t.Run("inactive service contributes nothing", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{
			services: map[int64]domain.Service{
				1: {ID: 1, Name: "pickup", Price: dec("800"), IsActive: true},
				// service 2 is inactive: absent from the active set
			},
		})

		b, err := calc.Quote(ctx, domain.CargoSpec{}, 1, []int64{1, 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "services", b.Services, "800")
	})

	t.Run("service selected twice is charged twice", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{
			services: map[int64]domain.Service{
				3: {ID: 3, Name: "loader", Price: dec("350"), IsActive: true},
			},
		})

		b, err := calc.Quote(ctx, domain.CargoSpec{}, 1, []int64{3, 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "services", b.Services, "700")
	})

	t.Run("total sums all components and rounds to cents", func(t *testing.T) {
		calc := newCalculator(&fakeCatalog{
			tariffs: map[int64]decimal.Decimal{1: dec("1200.005")},
			services: map[int64]domain.Service{
				1: {ID: 1, Price: dec("99.99"), IsActive: true},
			},
		})

		b, err := calc.Quote(ctx, domain.CargoSpec{
			BoxCount: 2, BoxSize: domain.BoxSize60x40x40,
			PalletCount: 1, WeightCategory: domain.WeightCategoryCustom, Weight: dec("650"),
		}, 1, []int64{1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 1200.005 + 900 + 7000 + 99.99 = 9199.995 -> 9200.00
		assertDecimal(t, "total", b.Total, "9200.00")
	})
}
