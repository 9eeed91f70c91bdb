package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/wbfreight/dispatch/internal/domain"
)

// ErrInvalidState is returned when a transition is attempted on an order
// whose status is terminal.
var ErrInvalidState = errors.New("order is in a terminal state")

const uniqueViolation = "23505"

// maxSequenceRetries bounds retries when concurrent creations race for
// the same sequence number. Each loser of a round retries, so the bound
// must exceed the number of creators expected to collide at once.
const maxSequenceRetries = 20

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists the order and assigns the next gapless sequence number.
// The number is computed inside the insert and guarded by a unique
// constraint; a concurrent creation that takes the same number makes the
// insert fail with a unique violation, and the whole transaction is
// retried.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	order.ID = uuid.New().String()

	var err error
	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		err = r.tryCreate(ctx, order)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
	}
	return err
}

func (r *OrderRepository) tryCreate(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			id, sequence_number, status, warehouse_id,
			box_count, box_size, length, width, height,
			pallet_count, weight_category, weight,
			client_name, phone, company, email, pickup_address, chat_id,
			total_price, created_at, updated_at
		)
		VALUES (
			$1, (SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM orders), $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15, $16, $17,
			$18, NOW(), NOW()
		)
		RETURNING sequence_number, created_at, updated_at
	`,
		order.ID, order.Status, order.WarehouseID,
		order.Cargo.BoxCount, order.Cargo.BoxSize, order.Cargo.Length, order.Cargo.Width, order.Cargo.Height,
		order.Cargo.PalletCount, order.Cargo.WeightCategory, order.Cargo.Weight,
		order.ClientName, order.Phone, order.Company, order.Email, order.PickupAddress, order.ChatID,
		order.TotalPrice,
	).Scan(&order.SequenceNumber, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return err
	}

	for _, svc := range order.Services {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_services (order_id, service_id)
			VALUES ($1, $2)
		`, order.ID, svc.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	var driverID, truckID sql.NullInt64
	var assignedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, sequence_number, status, warehouse_id,
		       box_count, box_size, length, width, height,
		       pallet_count, weight_category, weight,
		       client_name, phone, company, email, pickup_address, chat_id,
		       total_price, driver_id, truck_id, assigned_at, reject_reason,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.SequenceNumber, &order.Status, &order.WarehouseID,
		&order.Cargo.BoxCount, &order.Cargo.BoxSize, &order.Cargo.Length, &order.Cargo.Width, &order.Cargo.Height,
		&order.Cargo.PalletCount, &order.Cargo.WeightCategory, &order.Cargo.Weight,
		&order.ClientName, &order.Phone, &order.Company, &order.Email, &order.PickupAddress, &order.ChatID,
		&order.TotalPrice, &driverID, &truckID, &assignedAt, &order.RejectReason,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if driverID.Valid {
		order.DriverID = &driverID.Int64
	}
	if truckID.Valid {
		order.TruckID = &truckID.Int64
	}
	if assignedAt.Valid {
		order.AssignedAt = &assignedAt.Time
	}

	services, err := r.orderServices(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Services = services

	return order, nil
}

func (r *OrderRepository) orderServices(ctx context.Context, orderID string) ([]domain.Service, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.price, COALESCE(s.service_type, ''), COALESCE(s.description, ''), s.is_active, s.created_at
		FROM order_services os
		JOIN services s ON s.id = os.service_id
		WHERE os.order_id = $1
		ORDER BY s.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	services := []domain.Service{}
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

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sequence_number, status, warehouse_id,
		       box_count, box_size, length, width, height,
		       pallet_count, weight_category, weight,
		       client_name, phone, company, email, pickup_address, chat_id,
		       total_price, driver_id, truck_id, assigned_at, reject_reason,
		       created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		var driverID, truckID sql.NullInt64
		var assignedAt sql.NullTime

		err := rows.Scan(
			&order.ID, &order.SequenceNumber, &order.Status, &order.WarehouseID,
			&order.Cargo.BoxCount, &order.Cargo.BoxSize, &order.Cargo.Length, &order.Cargo.Width, &order.Cargo.Height,
			&order.Cargo.PalletCount, &order.Cargo.WeightCategory, &order.Cargo.Weight,
			&order.ClientName, &order.Phone, &order.Company, &order.Email, &order.PickupAddress, &order.ChatID,
			&order.TotalPrice, &driverID, &truckID, &assignedAt, &order.RejectReason,
			&order.CreatedAt, &order.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if driverID.Valid {
			order.DriverID = &driverID.Int64
		}
		if truckID.Valid {
			order.TruckID = &truckID.Int64
		}
		if assignedAt.Valid {
			order.AssignedAt = &assignedAt.Time
		}

		order.Services = []domain.Service{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	svcRows, err := r.db.QueryContext(ctx, `
		SELECT os.order_id, s.id, s.name, s.price, COALESCE(s.service_type, ''), COALESCE(s.description, ''), s.is_active, s.created_at
		FROM order_services os
		JOIN services s ON s.id = os.service_id
		WHERE os.order_id = ANY($1)
		ORDER BY s.id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = svcRows.Close() }()

	for svcRows.Next() {
		var orderID string
		var svc domain.Service
		if err := svcRows.Scan(&orderID, &svc.ID, &svc.Name, &svc.Price, &svc.Type, &svc.Description, &svc.IsActive, &svc.CreatedAt); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Services = append(order.Services, svc)
	}

	if err := svcRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// Assign attaches a driver and truck, moves the order to accepted and
// stores the freshly recomputed total. The status guard in the WHERE
// clause makes losing a race with another transition safe: zero rows
// means the order went terminal in the meantime.
func (r *OrderRepository) Assign(ctx context.Context, id string, driverID, truckID int64, assignedAt time.Time, total decimal.Decimal) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET driver_id = $2, truck_id = $3, assigned_at = $4,
		    status = $5, total_price = $6, updated_at = NOW()
		WHERE id = $1 AND status = $7
	`, id, driverID, truckID, assignedAt, domain.OrderStatusAccepted, total, domain.OrderStatusNew)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrInvalidState
	}

	return r.GetByID(ctx, id)
}

// Reject moves the order to rejected with an optional free-text reason.
func (r *OrderRepository) Reject(ctx context.Context, id, reason string, total decimal.Decimal) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, reject_reason = $3, total_price = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5
	`, id, domain.OrderStatusRejected, reason, total, domain.OrderStatusNew)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrInvalidState
	}

	return r.GetByID(ctx, id)
}

// MaxSequenceNumber returns the highest assigned sequence number, zero
// for an empty table.
func (r *OrderRepository) MaxSequenceNumber(ctx context.Context) (int64, error) {
	var max int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0) FROM orders
	`).Scan(&max)
	return max, err
}
