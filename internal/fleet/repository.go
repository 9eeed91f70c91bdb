package fleet

import (
	"context"
	"database/sql"

	"github.com/wbfreight/dispatch/internal/domain"
)

// Repository reads drivers and trucks. Listings only return active rows;
// point lookups return whatever is stored and leave the activity check
// to the caller.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetDriver(ctx context.Context, id int64) (*domain.Driver, error) {
	driver := &domain.Driver{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, full_name, phone, is_active, created_at, updated_at
		FROM drivers
		WHERE id = $1
	`, id).Scan(&driver.ID, &driver.FullName, &driver.Phone, &driver.IsActive, &driver.CreatedAt, &driver.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return driver, nil
}

func (r *Repository) GetTruck(ctx context.Context, id int64) (*domain.Truck, error) {
	truck := &domain.Truck{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, brand, model, plate_number, is_active, created_at, updated_at
		FROM trucks
		WHERE id = $1
	`, id).Scan(&truck.ID, &truck.Brand, &truck.Model, &truck.PlateNumber, &truck.IsActive, &truck.CreatedAt, &truck.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return truck, nil
}

func (r *Repository) ListDrivers(ctx context.Context) ([]domain.Driver, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, full_name, phone, is_active, created_at, updated_at
		FROM drivers
		WHERE is_active
		ORDER BY full_name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var drivers []domain.Driver
	for rows.Next() {
		var d domain.Driver
		if err := rows.Scan(&d.ID, &d.FullName, &d.Phone, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return drivers, nil
}

func (r *Repository) ListTrucks(ctx context.Context) ([]domain.Truck, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, brand, model, plate_number, is_active, created_at, updated_at
		FROM trucks
		WHERE is_active
		ORDER BY brand, model
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var trucks []domain.Truck
	for rows.Next() {
		var t domain.Truck
		if err := rows.Scan(&t.ID, &t.Brand, &t.Model, &t.PlateNumber, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		trucks = append(trucks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trucks, nil
}
