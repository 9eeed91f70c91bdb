package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/wbfreight/dispatch/internal/domain"
	"github.com/wbfreight/dispatch/internal/pricing"

	"github.com/shopspring/decimal"
)

// Repository is the order persistence surface the handler needs.
type Repository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	Assign(ctx context.Context, id string, driverID, truckID int64, assignedAt time.Time, total decimal.Decimal) (*domain.Order, error)
	Reject(ctx context.Context, id, reason string, total decimal.Decimal) (*domain.Order, error)
}

type WarehouseStore interface {
	GetWarehouse(ctx context.Context, id int64) (*domain.Warehouse, error)
}

type FleetStore interface {
	GetDriver(ctx context.Context, id int64) (*domain.Driver, error)
	GetTruck(ctx context.Context, id int64) (*domain.Truck, error)
}

type ServiceStore interface {
	ActiveServices(ctx context.Context, ids []int64) ([]domain.Service, error)
}

type Quoter interface {
	Quote(ctx context.Context, cargo domain.CargoSpec, warehouseID int64, serviceIDs []int64) (pricing.Breakdown, error)
}

// Notifier delivers order events to the notification gateway. Delivery is
// fire-and-forget: errors are logged by the handler and never fail the
// mutation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, event domain.OrderEvent) error
}

type Handler struct {
	repo       Repository
	warehouses WarehouseStore
	fleet      FleetStore
	services   ServiceStore
	quoter     Quoter
	notifier   Notifier
	logger     *slog.Logger
}

func NewHandler(repo Repository, warehouses WarehouseStore, fleet FleetStore, services ServiceStore, quoter Quoter, notifier Notifier, logger *slog.Logger) *Handler {
	return &Handler{
		repo:       repo,
		warehouses: warehouses,
		fleet:      fleet,
		services:   services,
		quoter:     quoter,
		notifier:   notifier,
		logger:     logger,
	}
}

type clientInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Email   string `json:"email"`
}

type createOrderRequest struct {
	WarehouseID   int64            `json:"warehouse_id"`
	Cargo         domain.CargoSpec `json:"cargo"`
	Client        clientInfo       `json:"client"`
	ServiceIDs    []int64          `json:"service_ids"`
	PickupAddress string           `json:"pickup_address"`
	ChatID        int64            `json:"chat_id"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Cargo.BoxCount < 0 || req.Cargo.PalletCount < 0 {
		h.writeError(w, http.StatusBadRequest, "counts must not be negative")
		return
	}
	if req.Cargo.BoxCount == 0 && req.Cargo.PalletCount == 0 {
		h.writeError(w, http.StatusBadRequest, "order must contain boxes or pallets")
		return
	}
	if req.Client.Name == "" || req.Client.Phone == "" {
		h.writeError(w, http.StatusBadRequest, "client name and phone are required")
		return
	}

	warehouse, err := h.warehouses.GetWarehouse(r.Context(), req.WarehouseID)
	if err != nil {
		h.logger.Error("failed to get warehouse", "error", err, "warehouse_id", req.WarehouseID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if warehouse == nil {
		h.writeError(w, http.StatusNotFound, "warehouse not found")
		return
	}

	services, err := h.resolveServices(r.Context(), req.ServiceIDs)
	if err != nil {
		h.logger.Error("failed to resolve services", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	breakdown, err := h.quoter.Quote(r.Context(), req.Cargo, req.WarehouseID, req.ServiceIDs)
	if err != nil {
		h.logger.Error("failed to compute order total", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	order := &domain.Order{
		Status:        domain.OrderStatusNew,
		WarehouseID:   req.WarehouseID,
		Cargo:         req.Cargo,
		ClientName:    req.Client.Name,
		Phone:         req.Client.Phone,
		Company:       req.Client.Company,
		Email:         req.Client.Email,
		PickupAddress: req.PickupAddress,
		ChatID:        req.ChatID,
		Services:      services,
		TotalPrice:    breakdown.Total,
	}

	if err := h.repo.Create(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.notify(r.Context(), newOrderEvent(order, warehouse.Name))

	h.logger.Info("order created",
		"order_id", order.ID,
		"sequence_number", order.SequenceNumber,
		"total", order.TotalPrice,
	)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type assignRequest struct {
	DriverID int64 `json:"driver_id"`
	TruckID  int64 `json:"truck_id"`
}

func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DriverID == 0 || req.TruckID == 0 {
		h.writeError(w, http.StatusBadRequest, "driver_id and truck_id are required")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if order.Status.Terminal() {
		h.writeError(w, http.StatusConflict, "order is in a terminal state")
		return
	}

	driver, err := h.fleet.GetDriver(r.Context(), req.DriverID)
	if err != nil {
		h.logger.Error("failed to get driver", "error", err, "driver_id", req.DriverID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if driver == nil || !driver.IsActive {
		h.writeError(w, http.StatusNotFound, "driver not found")
		return
	}

	truck, err := h.fleet.GetTruck(r.Context(), req.TruckID)
	if err != nil {
		h.logger.Error("failed to get truck", "error", err, "truck_id", req.TruckID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if truck == nil || !truck.IsActive {
		h.writeError(w, http.StatusNotFound, "truck not found")
		return
	}

	total, err := h.recomputeTotal(r.Context(), order)
	if err != nil {
		h.logger.Error("failed to recompute order total", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	updated, err := h.repo.Assign(r.Context(), id, driver.ID, truck.ID, time.Now().UTC(), total)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			h.writeError(w, http.StatusConflict, "order is in a terminal state")
			return
		}
		h.logger.Error("failed to assign driver", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.notify(r.Context(), domain.OrderEvent{
		Type:           domain.EventDriverAssigned,
		OrderID:        updated.ID,
		SequenceNumber: updated.SequenceNumber,
		DriverName:     driver.FullName,
		DriverPhone:    driver.Phone,
		TruckInfo:      truck.Label(),
		ChatID:         updated.ChatID,
		Timestamp:      time.Now().UTC(),
	})

	h.logger.Info("driver assigned",
		"order_id", updated.ID,
		"driver_id", driver.ID,
		"truck_id", truck.ID,
	)
	h.writeJSON(w, http.StatusOK, updated)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req rejectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if order.Status.Terminal() {
		h.writeError(w, http.StatusConflict, "order is in a terminal state")
		return
	}

	total, err := h.recomputeTotal(r.Context(), order)
	if err != nil {
		h.logger.Error("failed to recompute order total", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	updated, err := h.repo.Reject(r.Context(), id, req.Reason, total)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			h.writeError(w, http.StatusConflict, "order is in a terminal state")
			return
		}
		h.logger.Error("failed to reject order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.notify(r.Context(), domain.OrderEvent{
		Type:           domain.EventOrderRejected,
		OrderID:        updated.ID,
		SequenceNumber: updated.SequenceNumber,
		RejectReason:   req.Reason,
		ChatID:         updated.ChatID,
		Timestamp:      time.Now().UTC(),
	})

	h.logger.Info("order rejected", "order_id", updated.ID, "reason", req.Reason)
	h.writeJSON(w, http.StatusOK, updated)
}

// resolveServices maps the selection to catalog rows, one entry per
// occurrence. The store returns each matching service once, so the rows
// are expanded back over the selection: a service picked twice is stored
// twice and stays charged twice on every recompute.
func (h *Handler) resolveServices(ctx context.Context, ids []int64) ([]domain.Service, error) {
	rows, err := h.services.ActiveServices(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Service, len(rows))
	for _, svc := range rows {
		byID[svc.ID] = svc
	}

	selected := make([]domain.Service, 0, len(ids))
	for _, id := range ids {
		if svc, ok := byID[id]; ok {
			selected = append(selected, svc)
		}
	}
	return selected, nil
}

// recomputeTotal re-prices the order against the current catalog. The
// stored total is never trusted across saves.
func (h *Handler) recomputeTotal(ctx context.Context, order *domain.Order) (decimal.Decimal, error) {
	ids := make([]int64, 0, len(order.Services))
	for _, svc := range order.Services {
		ids = append(ids, svc.ID)
	}

	breakdown, err := h.quoter.Quote(ctx, order.Cargo, order.WarehouseID, ids)
	if err != nil {
		return decimal.Zero, err
	}
	return breakdown.Total, nil
}

func newOrderEvent(order *domain.Order, warehouseName string) domain.OrderEvent {
	lines := make([]domain.ServiceLine, 0, len(order.Services))
	for _, svc := range order.Services {
		lines = append(lines, domain.ServiceLine{
			Name:  svc.Name,
			Price: svc.Price.StringFixed(2),
		})
	}

	return domain.OrderEvent{
		Type:           domain.EventOrderCreated,
		OrderID:        order.ID,
		SequenceNumber: order.SequenceNumber,
		WarehouseName:  warehouseName,
		Cargo:          order.Cargo,
		ClientName:     order.ClientName,
		ClientPhone:    order.Phone,
		CompanyName:    order.Company,
		TotalPrice:     order.TotalPrice.StringFixed(2),
		PickupAddress:  order.PickupAddress,
		Services:       lines,
		ChatID:         order.ChatID,
		Timestamp:      order.CreatedAt,
	}
}

func (h *Handler) notify(ctx context.Context, event domain.OrderEvent) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Notify(ctx, event); err != nil {
		h.logger.Error("failed to notify gateway", "error", err, "event", event.Type, "order_id", event.OrderID)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
