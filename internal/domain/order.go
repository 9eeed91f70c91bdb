package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "new"
	OrderStatusAccepted OrderStatus = "accepted"
	OrderStatusRejected OrderStatus = "rejected"
)

// Terminal reports whether no further status transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusAccepted || s == OrderStatusRejected
}

type Order struct {
	ID             string      `json:"id"`
	SequenceNumber int64       `json:"sequence_number"`
	Status         OrderStatus `json:"status"`
	WarehouseID    int64       `json:"warehouse_id"`
	Cargo          CargoSpec   `json:"cargo"`

	ClientName    string `json:"client_name"`
	Phone         string `json:"phone"`
	Company       string `json:"company,omitempty"`
	Email         string `json:"email,omitempty"`
	PickupAddress string `json:"pickup_address,omitempty"`

	// ChatID is the Telegram chat of the client who placed the order,
	// zero when the order came in through the web form.
	ChatID int64 `json:"chat_id,omitempty"`

	Services   []Service       `json:"services"`
	TotalPrice decimal.Decimal `json:"total_price"`

	DriverID     *int64     `json:"driver_id,omitempty"`
	TruckID      *int64     `json:"truck_id,omitempty"`
	AssignedAt   *time.Time `json:"assigned_at,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
