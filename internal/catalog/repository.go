package catalog

import (
	"context"
	"database/sql"

	"github.com/wbfreight/dispatch/internal/domain"
)

// Repository reads the reference data: warehouses and additional services.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetWarehouse(ctx context.Context, id int64) (*domain.Warehouse, error) {
	warehouse := &domain.Warehouse{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, city, marketplace
		FROM warehouses
		WHERE id = $1
	`, id).Scan(&warehouse.ID, &warehouse.Name, &warehouse.City, &warehouse.Marketplace)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return warehouse, nil
}

func (r *Repository) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, city, marketplace
		FROM warehouses
		ORDER BY marketplace, name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var warehouses []domain.Warehouse
	for rows.Next() {
		var w domain.Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.City, &w.Marketplace); err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return warehouses, nil
}

// ListServices returns the active additional services, ordered the way
// clients display them.
func (r *Repository) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, COALESCE(service_type, ''), COALESCE(description, ''), is_active, created_at
		FROM services
		WHERE is_active
		ORDER BY service_type, name
	`)
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
