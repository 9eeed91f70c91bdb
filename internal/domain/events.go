package domain

import "time"

type EventType string

const (
	EventOrderCreated   EventType = "order_created"
	EventDriverAssigned EventType = "driver_assigned"
	EventOrderRejected  EventType = "order_rejected"
)

// ServiceLine is the rendered form of a selected service inside a
// notification payload.
type ServiceLine struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

// OrderEvent is the notification gateway contract. One shape covers all
// three event types; fields irrelevant to a type are left empty.
type OrderEvent struct {
	Type           EventType `json:"type"`
	OrderID        string    `json:"order_id"`
	SequenceNumber int64     `json:"sequence_number"`

	WarehouseName string    `json:"warehouse_name,omitempty"`
	Cargo         CargoSpec `json:"cargo"`

	ClientName    string        `json:"client_name,omitempty"`
	ClientPhone   string        `json:"client_phone,omitempty"`
	CompanyName   string        `json:"company_name,omitempty"`
	TotalPrice    string        `json:"total_price,omitempty"`
	PickupAddress string        `json:"pickup_address,omitempty"`
	Services      []ServiceLine `json:"services,omitempty"`
	ChatID        int64         `json:"chat_id,omitempty"`

	DriverName   string `json:"driver_name,omitempty"`
	DriverPhone  string `json:"driver_phone,omitempty"`
	TruckInfo    string `json:"truck_info,omitempty"`
	RejectReason string `json:"reject_reason,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
