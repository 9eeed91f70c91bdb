package pricing

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/wbfreight/dispatch/internal/domain"
)

// CatalogRepository reads the price tables from Postgres. It satisfies
// Catalog; all lookups return (nil, nil) when no active row matches.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) BoxRate(ctx context.Context, size domain.BoxSize) (*domain.BoxRate, error) {
	rate := &domain.BoxRate{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, size_category, COALESCE(volume_band, ''), price, is_active
		FROM box_pricing
		WHERE size_category = $1 AND volume_band IS NULL AND is_active
		ORDER BY id
		LIMIT 1
	`, size).Scan(&rate.ID, &rate.SizeCategory, &rate.VolumeBand, &rate.Price, &rate.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return rate, nil
}

func (r *CatalogRepository) CustomBoxRate(ctx context.Context, band domain.VolumeBand) (*domain.BoxRate, error) {
	rate := &domain.BoxRate{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, size_category, volume_band, price, is_active
		FROM box_pricing
		WHERE size_category = $1 AND volume_band = $2 AND is_active
		ORDER BY id
		LIMIT 1
	`, domain.BoxSizeCustom, band).Scan(&rate.ID, &rate.SizeCategory, &rate.VolumeBand, &rate.Price, &rate.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return rate, nil
}

func (r *CatalogRepository) PalletRate(ctx context.Context, category domain.WeightCategory) (*domain.PalletRate, error) {
	rate := &domain.PalletRate{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, weight_category, price, is_active
		FROM pallet_pricing
		WHERE weight_category = $1 AND is_active
		ORDER BY id
		LIMIT 1
	`, category).Scan(&rate.ID, &rate.WeightCategory, &rate.Price, &rate.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return rate, nil
}

func (r *CatalogRepository) DeliveryTariff(ctx context.Context, warehouseID int64) (*domain.DeliveryTariff, error) {
	tariff := &domain.DeliveryTariff{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, warehouse_id, base_price, is_active
		FROM delivery_tariffs
		WHERE warehouse_id = $1 AND is_active
		ORDER BY id
		LIMIT 1
	`, warehouseID).Scan(&tariff.ID, &tariff.WarehouseID, &tariff.BasePrice, &tariff.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return tariff, nil
}

func (r *CatalogRepository) ActiveServices(ctx context.Context, ids []int64) ([]domain.Service, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, COALESCE(service_type, ''), COALESCE(description, ''), is_active, created_at
		FROM services
		WHERE id = ANY($1) AND is_active
		ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var services []domain.Service
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Price, &svc.Type, &svc.Description, &svc.IsActive, &svc.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return services, nil
}
