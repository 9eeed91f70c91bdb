package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wbfreight/dispatch/internal/domain"
	"github.com/wbfreight/dispatch/internal/pricing"
)

type fakeRepo struct {
	orders map[string]*domain.Order

	createErr error
	assignErr error
	rejectErr error

	nextSeq int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[string]*domain.Order)}
}

func (f *fakeRepo) Create(_ context.Context, order *domain.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextSeq++
	order.ID = "ord-test"
	order.SequenceNumber = f.nextSeq
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt
	f.orders[order.ID] = order
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (f *fakeRepo) List(_ context.Context) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(f.orders))
	for _, order := range f.orders {
		out = append(out, *order)
	}
	return out, nil
}

func (f *fakeRepo) Assign(_ context.Context, id string, driverID, truckID int64, assignedAt time.Time, total decimal.Decimal) (*domain.Order, error) {
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	order := f.orders[id]
	order.Status = domain.OrderStatusAccepted
	order.DriverID = &driverID
	order.TruckID = &truckID
	order.AssignedAt = &assignedAt
	order.TotalPrice = total
	copied := *order
	return &copied, nil
}

func (f *fakeRepo) Reject(_ context.Context, id, reason string, total decimal.Decimal) (*domain.Order, error) {
	if f.rejectErr != nil {
		return nil, f.rejectErr
	}
	order := f.orders[id]
	order.Status = domain.OrderStatusRejected
	order.RejectReason = reason
	order.TotalPrice = total
	copied := *order
	return &copied, nil
}

type fakeStores struct {
	warehouses map[int64]*domain.Warehouse
	drivers    map[int64]*domain.Driver
	trucks     map[int64]*domain.Truck
	services   map[int64]domain.Service
}

func (f *fakeStores) GetWarehouse(_ context.Context, id int64) (*domain.Warehouse, error) {
	return f.warehouses[id], nil
}

func (f *fakeStores) GetDriver(_ context.Context, id int64) (*domain.Driver, error) {
	return f.drivers[id], nil
}

func (f *fakeStores) GetTruck(_ context.Context, id int64) (*domain.Truck, error) {
	return f.trucks[id], nil
}

// ActiveServices returns each matching service once regardless of how
// often it appears in ids, like the ANY($1) query it stands in for.
func (f *fakeStores) ActiveServices(_ context.Context, ids []int64) ([]domain.Service, error) {
	seen := make(map[int64]bool, len(ids))
	out := make([]domain.Service, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if svc, ok := f.services[id]; ok && svc.IsActive {
			out = append(out, svc)
		}
	}
	return out, nil
}

type fakeQuoter struct {
	total   decimal.Decimal
	err     error
	calls   int
	lastIDs []int64
}

func (f *fakeQuoter) Quote(_ context.Context, _ domain.CargoSpec, _ int64, serviceIDs []int64) (pricing.Breakdown, error) {
	f.calls++
	f.lastIDs = serviceIDs
	if f.err != nil {
		return pricing.Breakdown{}, f.err
	}
	return pricing.Breakdown{Total: f.total}, nil
}

type fakeNotifier struct {
	events []domain.OrderEvent
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, event domain.OrderEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func defaultStores() *fakeStores {
	return &fakeStores{
		warehouses: map[int64]*domain.Warehouse{
			1: {ID: 1, Name: "Koledino", City: "Podolsk", Marketplace: "wildberries"},
		},
		drivers: map[int64]*domain.Driver{
			1: {ID: 1, FullName: "Petr Sidorov", Phone: "+79991112233", IsActive: true},
			2: {ID: 2, FullName: "Retired Driver", IsActive: false},
		},
		trucks: map[int64]*domain.Truck{
			10: {ID: 10, Brand: "Gazel", Model: "Next", PlateNumber: "A123BC77", IsActive: true},
			11: {ID: 11, Brand: "Old", Model: "Truck", PlateNumber: "B000XX00", IsActive: false},
		},
		services: map[int64]domain.Service{
			7: {ID: 7, Name: "Palletizing", Price: decimal.NewFromInt(1500), Type: domain.ServicePalletizing, IsActive: true},
		},
	}
}

func newTestHandler(repo Repository, stores *fakeStores, quoter Quoter, notifier Notifier) *Handler {
	return NewHandler(repo, stores, stores, stores, quoter, notifier,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedOrder(repo *fakeRepo, status domain.OrderStatus) *domain.Order {
	order := &domain.Order{
		ID:             "ord-test",
		SequenceNumber: 1,
		Status:         status,
		WarehouseID:    1,
		Cargo:          domain.CargoSpec{BoxCount: 2, BoxSize: domain.BoxSize60x40x40},
		ClientName:     "Ivan",
		Phone:          "+70000000000",
		ChatID:         777,
		TotalPrice:     decimal.NewFromInt(900),
	}
	repo.orders[order.ID] = order
	return order
}

func TestHandleCreate(t *testing.T) {
	validBody := `{
		"warehouse_id": 1,
		"cargo": {"box_count": 2, "box_size": "60x40x40"},
		"client": {"name": "Ivan", "phone": "+70000000000", "company": "Acme LLC"},
		"service_ids": [7],
		"pickup_address": "Moscow, Tverskaya 1",
		"chat_id": 777
	}`

	t.Run("creates order and notifies", func(t *testing.T) {
		repo := newFakeRepo()
		quoter := &fakeQuoter{total: decimal.RequireFromString("2400.00")}
		notifier := &fakeNotifier{}
		handler := newTestHandler(repo, defaultStores(), quoter, notifier)

		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(validBody))
		rec := httptest.NewRecorder()

		handler.HandleCreate(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var created domain.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if created.ID == "" || created.SequenceNumber != 1 {
			t.Errorf("unexpected order identity: %+v", created)
		}
		if created.Status != domain.OrderStatusNew {
			t.Errorf("expected status new, got %s", created.Status)
		}
		if !created.TotalPrice.Equal(decimal.RequireFromString("2400.00")) {
			t.Errorf("expected total 2400.00, got %s", created.TotalPrice)
		}
		if len(created.Services) != 1 || created.Services[0].Name != "Palletizing" {
			t.Errorf("services not resolved: %+v", created.Services)
		}

		if len(notifier.events) != 1 {
			t.Fatalf("expected one event, got %d", len(notifier.events))
		}
		event := notifier.events[0]
		if event.Type != domain.EventOrderCreated || event.WarehouseName != "Koledino" {
			t.Errorf("unexpected event: %+v", event)
		}
		if event.TotalPrice != "2400.00" || event.ChatID != 777 {
			t.Errorf("unexpected event payload: %+v", event)
		}
	})

	t.Run("rejects invalid payloads", func(t *testing.T) {
		cases := []struct {
			name string
			body string
		}{
			{"malformed json", `{`},
			{"negative counts", `{"warehouse_id":1,"cargo":{"box_count":-1},"client":{"name":"I","phone":"+7"}}`},
			{"empty cargo", `{"warehouse_id":1,"cargo":{},"client":{"name":"I","phone":"+7"}}`},
			{"missing client", `{"warehouse_id":1,"cargo":{"box_count":1}}`},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				handler := newTestHandler(newFakeRepo(), defaultStores(), &fakeQuoter{}, nil)

				req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tc.body))
				rec := httptest.NewRecorder()

				handler.HandleCreate(rec, req)

				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected status 400, got %d", rec.Code)
				}
			})
		}
	})

	t.Run("unknown warehouse is 404", func(t *testing.T) {
		handler := newTestHandler(newFakeRepo(), defaultStores(), &fakeQuoter{}, nil)

		body := `{"warehouse_id":99,"cargo":{"box_count":1},"client":{"name":"I","phone":"+7"}}`
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleCreate(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("notifier failure does not fail the request", func(t *testing.T) {
		repo := newFakeRepo()
		notifier := &fakeNotifier{err: errors.New("gateway down")}
		handler := newTestHandler(repo, defaultStores(), &fakeQuoter{total: decimal.NewFromInt(900)}, notifier)

		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(validBody))
		rec := httptest.NewRecorder()

		handler.HandleCreate(rec, req)

		if rec.Code != http.StatusCreated {
			t.Errorf("expected status 201, got %d", rec.Code)
		}
	})

	t.Run("nil notifier is allowed", func(t *testing.T) {
		handler := newTestHandler(newFakeRepo(), defaultStores(), &fakeQuoter{total: decimal.NewFromInt(900)}, nil)

		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(validBody))
		rec := httptest.NewRecorder()

		handler.HandleCreate(rec, req)

		if rec.Code != http.StatusCreated {
			t.Errorf("expected status 201, got %d", rec.Code)
		}
	})
}

func TestDuplicateServicesKeepMultiplicity(t *testing.T) {
	repo := newFakeRepo()
	quoter := &fakeQuoter{total: decimal.RequireFromString("3450.00")}
	handler := newTestHandler(repo, defaultStores(), quoter, nil)

	body := `{
		"warehouse_id": 1,
		"cargo": {"box_count": 1, "box_size": "60x40x40"},
		"client": {"name": "Ivan", "phone": "+70000000000"},
		"service_ids": [7, 7]
	}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(created.Services) != 2 {
		t.Fatalf("expected the duplicated service stored twice, got %d entries", len(created.Services))
	}
	for _, svc := range created.Services {
		if svc.ID != 7 {
			t.Errorf("unexpected service in selection: %+v", svc)
		}
	}

	// The recompute on assignment must price the same multiset the
	// creation priced, or the stored total drifts on an unchanged
	// catalog.
	req = httptest.NewRequest(http.MethodPost, "/orders/ord-test/assign", strings.NewReader(`{"driver_id":1,"truck_id":10}`))
	req.SetPathValue("id", "ord-test")
	rec = httptest.NewRecorder()

	handler.HandleAssign(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(quoter.lastIDs) != 2 || quoter.lastIDs[0] != 7 || quoter.lastIDs[1] != 7 {
		t.Fatalf("recompute lost service multiplicity: quoted ids %v", quoter.lastIDs)
	}

	var updated domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !updated.TotalPrice.Equal(created.TotalPrice) {
		t.Fatalf("total drifted from %s to %s with an unchanged catalog", created.TotalPrice, updated.TotalPrice)
	}
}

func TestHandleGet(t *testing.T) {
	t.Run("returns order", func(t *testing.T) {
		repo := newFakeRepo()
		seedOrder(repo, domain.OrderStatusNew)
		handler := newTestHandler(repo, defaultStores(), &fakeQuoter{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/orders/ord-test", nil)
		req.SetPathValue("id", "ord-test")
		rec := httptest.NewRecorder()

		handler.HandleGet(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("unknown order is 404", func(t *testing.T) {
		handler := newTestHandler(newFakeRepo(), defaultStores(), &fakeQuoter{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
		req.SetPathValue("id", "missing")
		rec := httptest.NewRecorder()

		handler.HandleGet(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandleAssign(t *testing.T) {
	assignBody := `{"driver_id":1,"truck_id":10}`

	newAssignRequest := func(body string) (*http.Request, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodPost, "/orders/ord-test/assign", strings.NewReader(body))
		req.SetPathValue("id", "ord-test")
		return req, httptest.NewRecorder()
	}

	t.Run("assigns driver and truck", func(t *testing.T) {
		repo := newFakeRepo()
		seedOrder(repo, domain.OrderStatusNew)
		quoter := &fakeQuoter{total: decimal.NewFromInt(900)}
		notifier := &fakeNotifier{}
		handler := newTestHandler(repo, defaultStores(), quoter, notifier)

		req, rec := newAssignRequest(assignBody)
		handler.HandleAssign(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var updated domain.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if updated.Status != domain.OrderStatusAccepted {
			t.Errorf("expected status accepted, got %s", updated.Status)
		}
		if updated.DriverID == nil || *updated.DriverID != 1 {
			t.Errorf("driver not set: %+v", updated.DriverID)
		}
		if updated.AssignedAt == nil {
			t.Error("assigned_at not set")
		}
		if quoter.calls != 1 {
			t.Errorf("expected total to be recomputed once, got %d calls", quoter.calls)
		}

		if len(notifier.events) != 1 {
			t.Fatalf("expected one event, got %d", len(notifier.events))
		}
		event := notifier.events[0]
		if event.Type != domain.EventDriverAssigned || event.ChatID != 777 {
			t.Errorf("unexpected event: %+v", event)
		}
		if event.DriverName != "Petr Sidorov" || event.TruckInfo != "Gazel Next - A123BC77" {
			t.Errorf("unexpected event payload: %+v", event)
		}
	})

	t.Run("requires both ids", func(t *testing.T) {
		repo := newFakeRepo()
		seedOrder(repo, domain.OrderStatusNew)
		handler := newTestHandler(repo, defaultStores(), &fakeQuoter{}, nil)

		req, rec := newAssignRequest(`{"driver_id":1}`)
		handler.HandleAssign(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("terminal order is 409", func(t *testing.T) {
		for _, status := range []domain.OrderStatus{domain.OrderStatusAccepted, domain.OrderStatusRejected} {
			repo := newFakeRepo()
			seedOrder(repo, status)
			handler := newTestHandler(repo, defaultStores(), &fakeQuoter{}, nil)

			req, rec := newAssignRequest(assignBody)
			handler.HandleAssign(rec, req)

			if rec.Code != http.StatusConflict {
				t.Errorf("status %s: expected 409, got %d", status, rec.Code)
			}
		}
	})

	t.Run("concurrent transition surfaces as 409", func(t *testing.T) {
		repo := newFakeRepo()
		seedOrder(repo, domain.OrderStatusNew)
		repo.assignErr = ErrInvalidState
		handler := newTestHandler(repo, defaultStores(), &fakeQuoter{total: decimal.NewFromInt(900)}, nil)

		req, rec := newAssignRequest(assignBody)
		handler.HandleAssign(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("inactive or missing driver and truck are 404", func(t *testing.T) {
		cases := []struct {
			name string
			body string
		}{
			{"inactive driver", `{"driver_id":2,"truck_id":10}`},
			{"missing driver", `{"driver_id":99,"truck_id":10}`},
			{"inactive truck", `{"driver_id":1,"truck_id":11}`},
			{"missing truck", `{"driver_id":1,"truck_id":99}`},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				repo := newFakeRepo()
				seedOrder(repo, domain.OrderStatusNew)
				handler := newTestHandler(repo, defaultStores(), &fakeQuoter{}, nil)

				req, rec := newAssignRequest(tc.body)
				handler.HandleAssign(rec, req)

				if rec.Code != http.StatusNotFound {
					t.Errorf("expected status 404, got %d", rec.Code)
				}
			})
		}
	})
}

func TestHandleReject(t *testing.T) {
	newRejectRequest := func(body string) (*http.Request, *httptest.ResponseRecorder) {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(http.MethodPost, "/orders/ord-test/reject", reader)
		req.SetPathValue("id", "ord-test")
		return req, httptest.NewRecorder()
	}

	t.Run("rejects with reason", func(t *testing.T) {
		repo := newFakeRepo()
		seedOrder(repo, domain.OrderStatusNew)
		notifier := &fakeNotifier{}
		handler := newTestHandler(repo, defaultStores(), &fakeQuoter{total: decimal.NewFromInt(900)}, notifier)

		req, rec := newRejectRequest(`{"reason":"no capacity"}`)
		handler.HandleReject(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var updated domain.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if updated.Status != domain.OrderStatusRejected || updated.RejectReason != "no capacity" {
			t.Errorf("unexpected order: %+v", updated)
		}

		if len(notifier.events) != 1 || notifier.events[0].Type != domain.EventOrderRejected {
			t.Fatalf("unexpected events: %+v", notifier.events)
		}
		if notifier.events[0].RejectReason != "no capacity" {
			t.Errorf("reason not propagated: %+v", notifier.events[0])
		}
	})

	t.Run("body is optional", func(t *testing.T) {
		repo := newFakeRepo()
		seedOrder(repo, domain.OrderStatusNew)
		handler := newTestHandler(repo, defaultStores(), &fakeQuoter{total: decimal.NewFromInt(900)}, nil)

		req, rec := newRejectRequest("")
		handler.HandleReject(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("terminal order is 409", func(t *testing.T) {
		repo := newFakeRepo()
		seedOrder(repo, domain.OrderStatusRejected)
		handler := newTestHandler(repo, defaultStores(), &fakeQuoter{}, nil)

		req, rec := newRejectRequest(`{"reason":"again"}`)
		handler.HandleReject(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})
}
