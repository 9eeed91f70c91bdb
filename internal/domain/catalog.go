package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Warehouse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	City        string `json:"city"`
	Marketplace string `json:"marketplace"`
}

// BoxRate is one row of the box price table. Rows for the custom size
// category carry a volume band instead of a fixed size.
type BoxRate struct {
	ID           int64           `json:"id"`
	SizeCategory BoxSize         `json:"size_category"`
	VolumeBand   VolumeBand      `json:"volume_band,omitempty"`
	Price        decimal.Decimal `json:"price"`
	IsActive     bool            `json:"is_active"`
}

type PalletRate struct {
	ID             int64           `json:"id"`
	WeightCategory WeightCategory  `json:"weight_category"`
	Price          decimal.Decimal `json:"price"`
	IsActive       bool            `json:"is_active"`
}

type DeliveryTariff struct {
	ID          int64           `json:"id"`
	WarehouseID int64           `json:"warehouse_id"`
	BasePrice   decimal.Decimal `json:"base_price"`
	IsActive    bool            `json:"is_active"`
}

type ServiceType string

const (
	ServicePickup      ServiceType = "pickup"
	ServicePalletizing ServiceType = "palletizing"
	ServiceLoader      ServiceType = "loader"
	ServiceOther       ServiceType = "other"
)

type Service struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Type        ServiceType     `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}
