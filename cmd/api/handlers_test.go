package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frescora/pedidos-api/internal/delivery"
	"github.com/frescora/pedidos-api/internal/order"
	"github.com/frescora/pedidos-api/internal/payment"
	"github.com/frescora/pedidos-api/internal/stock"
	"github.com/frescora/pedidos-api/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
	gin.DefaultWriter = io.Discard
	log.SetOutput(io.Discard)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

//
// ---------- STUBS & FAKES ----------
//

type fakeTx struct{}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeTxManager struct{}

func (fakeTxManager) Begin(context.Context) (storage.Tx, error) { return fakeTx{}, nil }

// stubLedger keeps on-hand stock and reservations in memory with the
// same all-or-nothing commit as the SQL ledger.
type stubLedger struct {
	onHand       map[string]decimal.Decimal
	reservations map[string]map[string]decimal.Decimal
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		onHand:       map[string]decimal.Decimal{},
		reservations: map[string]map[string]decimal.Decimal{},
	}
}

func (l *stubLedger) Reserve(_ context.Context, _ storage.Tx, orderID, productID string, qty decimal.Decimal) error {
	if l.reservations[orderID] == nil {
		l.reservations[orderID] = map[string]decimal.Decimal{}
	}
	l.reservations[orderID][productID] = l.reservations[orderID][productID].Add(qty)
	return nil
}

func (l *stubLedger) Commit(_ context.Context, _ storage.Tx, orderID string) error {
	for productID, qty := range l.reservations[orderID] {
		if l.onHand[productID].LessThan(qty) {
			return fmt.Errorf("%w for %s", stock.ErrInsufficientStock, productID)
		}
	}
	for productID, qty := range l.reservations[orderID] {
		l.onHand[productID] = l.onHand[productID].Sub(qty)
	}
	delete(l.reservations, orderID)
	return nil
}

func (l *stubLedger) ReleaseForOrder(_ context.Context, _ storage.Tx, orderID string) error {
	delete(l.reservations, orderID)
	return nil
}

func (l *stubLedger) Add(_ context.Context, productID string, _ *string, qty decimal.Decimal) (*stock.Current, error) {
	l.onHand[productID] = l.onHand[productID].Add(qty)
	return &stock.Current{ProductID: productID, Qty: l.onHand[productID]}, nil
}

func (l *stubLedger) ListAvailable(context.Context, *string) ([]stock.Availability, error) {
	var out []stock.Availability
	for id, qty := range l.onHand {
		out = append(out, stock.Availability{ProductID: id, OnHand: qty, Available: qty})
	}
	return out, nil
}

func (l *stubLedger) ForProduct(_ context.Context, productID string, _ *string) (*stock.Current, error) {
	return &stock.Current{ProductID: productID, Qty: l.onHand[productID]}, nil
}

type stubSlotRepo struct {
	slots     map[string]*delivery.Slot
	templates map[int][]delivery.DayTemplate
}

func newStubSlotRepo() *stubSlotRepo {
	return &stubSlotRepo{slots: map[string]*delivery.Slot{}, templates: map[int][]delivery.DayTemplate{}}
}

func (f *stubSlotRepo) SlotCount(_ context.Context, date string) (int, error) {
	n := 0
	for _, s := range f.slots {
		if s.Date == date {
			n++
		}
	}
	return n, nil
}

func (f *stubSlotRepo) ListSlots(_ context.Context, date string) ([]delivery.Slot, error) {
	var out []delivery.Slot
	for _, s := range f.slots {
		if s.Date == date {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *stubSlotRepo) GetSlot(_ context.Context, id string) (*delivery.Slot, error) {
	if s, ok := f.slots[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, delivery.ErrSlotNotFound
}

func (f *stubSlotRepo) InsertSlots(_ context.Context, slots []delivery.Slot) error {
	for i := range slots {
		s := slots[i]
		f.slots[s.ID] = &s
	}
	return nil
}

func (f *stubSlotRepo) CreateSlot(_ context.Context, s *delivery.Slot) error {
	cp := *s
	f.slots[s.ID] = &cp
	return nil
}

func (f *stubSlotRepo) Take(_ context.Context, _ storage.Tx, slotID string) (bool, error) {
	s, ok := f.slots[slotID]
	if !ok || s.Taken >= s.Capacity {
		return false, nil
	}
	s.Taken++
	return true, nil
}

func (f *stubSlotRepo) TemplatesFor(_ context.Context, weekday int) ([]delivery.DayTemplate, error) {
	return f.templates[weekday], nil
}

func (f *stubSlotRepo) ReplaceTemplates(_ context.Context, weekday int, ts []delivery.DayTemplate) error {
	f.templates[weekday] = ts
	return nil
}

// stubOrderRepo implements order.Repository in memory.
type stubOrderRepo struct {
	orders  map[string]*order.Order
	history map[string][]order.StatusHistory
	seq     map[string]int
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		orders:  map[string]*order.Order{},
		history: map[string][]order.StatusHistory{},
		seq:     map[string]int{},
	}
}

func (f *stubOrderRepo) NextSeq(_ context.Context, _ storage.Tx, day string) (int, error) {
	f.seq[day]++
	return f.seq[day], nil
}

func (f *stubOrderRepo) Insert(_ context.Context, _ storage.Tx, o *order.Order) error {
	cp := *o
	cp.Items = nil
	f.orders[o.ID] = &cp
	return nil
}

func (f *stubOrderRepo) InsertItem(_ context.Context, _ storage.Tx, it *order.Item) error {
	o := f.orders[it.OrderID]
	o.Items = append(o.Items, *it)
	return nil
}

func (f *stubOrderRepo) InsertHistory(_ context.Context, _ storage.Tx, h *order.StatusHistory) error {
	f.history[h.OrderID] = append(f.history[h.OrderID], *h)
	return nil
}

func (f *stubOrderRepo) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	for _, o := range f.orders {
		if o.OrderNumber == number {
			cp := *o
			cp.History = append([]order.StatusHistory(nil), f.history[o.ID]...)
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (f *stubOrderRepo) List(_ context.Context, filter order.ListFilter) ([]order.Order, int, error) {
	var out []order.Order
	for _, o := range f.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (f *stubOrderRepo) UpdateStatus(_ context.Context, _ storage.Tx, orderID string, st order.Status) error {
	f.orders[orderID].Status = st
	return nil
}

func (f *stubOrderRepo) UpdatePaymentStatus(_ context.Context, _ storage.Tx, orderID string, ps order.PaymentStatus) error {
	f.orders[orderID].PaymentStatus = ps
	return nil
}

func (f *stubOrderRepo) InsertAssignment(context.Context, storage.Tx, *order.DriverAssignment) error {
	return nil
}

func (f *stubOrderRepo) MarkAssignmentDelivered(context.Context, storage.Tx, string, time.Time, *string) error {
	return nil
}

type stubPayRepo struct {
	events   []*payment.WebhookEvent
	payments []*payment.Payment
}

func (f *stubPayRepo) InsertEvent(_ context.Context, e *payment.WebhookEvent) error {
	cp := *e
	f.events = append(f.events, &cp)
	return nil
}

func (f *stubPayRepo) MarkEventProcessed(_ context.Context, eventID string, processError *string) error {
	for _, e := range f.events {
		if e.ID == eventID {
			e.Processed = true
			e.ProcessError = processError
		}
	}
	return nil
}

func (f *stubPayRepo) ListDeadLetters(context.Context) ([]payment.WebhookEvent, error) {
	var out []payment.WebhookEvent
	for _, e := range f.events {
		if e.ProcessError != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *stubPayRepo) UpsertPayment(_ context.Context, p *payment.Payment) (*payment.Payment, error) {
	cp := *p
	f.payments = append(f.payments, &cp)
	return &cp, nil
}

func (f *stubPayRepo) ListPayments(context.Context, int, int) ([]payment.Payment, error) {
	return nil, nil
}

func (f *stubPayRepo) PaymentsForOrder(context.Context, string) ([]payment.Payment, error) {
	return nil, nil
}

type stubProvider struct{ failGet bool }

func (s *stubProvider) CreatePreference(context.Context, payment.PreferenceRequest) (*payment.Preference, error) {
	return &payment.Preference{ID: "pref-1", InitPoint: "https://mp.example.com/init"}, nil
}

func (s *stubProvider) GetPayment(_ context.Context, id string) (*payment.ProviderPayment, error) {
	if s.failGet {
		return nil, fmt.Errorf("provider unreachable")
	}
	return &payment.ProviderPayment{ID: 1, Status: "approved"}, nil
}

//
// ---------- FIXTURE ----------
//

type testApp struct {
	router   *gin.Engine
	ledger   *stubLedger
	slotRepo *stubSlotRepo
	payRepo  *stubPayRepo
	provider *stubProvider
	orders   *order.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ledger := newStubLedger()
	slotRepo := newStubSlotRepo()
	slots := delivery.NewService(slotRepo)
	orders := order.NewService(newStubOrderRepo(), ledger, slots, fakeTxManager{}, "ARS")
	orders.Now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }

	payRepo := &stubPayRepo{}
	provider := &stubProvider{}
	payments := payment.NewService(payRepo, provider, orders, payment.CheckoutConfig{})

	router := newRouter(&app{
		orders:   orders,
		payments: payments,
		slots:    slots,
		ledger:   ledger,
	})
	return &testApp{
		router:   router,
		ledger:   ledger,
		slotRepo: slotRepo,
		payRepo:  payRepo,
		provider: provider,
		orders:   orders,
	}
}

func (a *testApp) do(method, path string, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	a.router.ServeHTTP(w, req)
	return w
}

const orderBody = `{
	"customerName": "Ana Lopez",
	"customerPhone": "+54 9 11 5555-0001",
	"addressLine": "Av. Rivadavia 1234",
	"addressCity": "CABA",
	"deliveryDate": "2026-03-03",
	"items": [
		{"productId": "prod-tomate", "name": "Tomate perita", "unitType": "kg", "qty": "2", "unitPrice": "1200"}
	]
}`

//
// ---------- TESTS ----------
//

func TestHealthz(t *testing.T) {
	a := newTestApp(t)
	w := a.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateOrder_HappyPath(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodPost, "/orders", orderBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got order.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "PO-20260302-0001", got.OrderNumber)
	assert.Equal(t, order.StatusCreated, got.Status)
	assert.Len(t, a.ledger.reservations[got.ID], 1)
}

func TestCreateOrder_NoItems(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodPost, "/orders", `{"customerName":"Ana","items":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestGetOrder_NotFound(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodGet, "/orders/PO-20260302-9999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateOrderStatus_IllegalEdge(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodPost, "/orders", orderBody)
	require.Equal(t, http.StatusCreated, w.Code)
	var got order.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))

	w = a.do(http.MethodPatch, "/admin/orders/"+got.OrderNumber+"/status", `{"status":"delivered"}`)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestUpdateOrderStatus_InsufficientStock(t *testing.T) {
	a := newTestApp(t)

	// Reserved 2, nothing on hand.
	w := a.do(http.MethodPost, "/orders", orderBody)
	require.Equal(t, http.StatusCreated, w.Code)
	var got order.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))

	w = a.do(http.MethodPatch, "/admin/orders/"+got.OrderNumber+"/status", `{"status":"to_pick"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPatch, "/admin/orders/"+got.OrderNumber+"/status", `{"status":"packed"}`)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// Status unchanged after the failed pack.
	fresh, err := a.orders.GetByNumber(context.Background(), got.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.StatusToPick, fresh.Status)
}

func TestListSlots_RequiresDate(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodGet, "/delivery/slots", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpsertWeekdaySlots_UnknownDay(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodPost, "/delivery/weekday-slots",
		`{"weekday":"MONDAY","slots":[{"start_time":"10:00:00","end_time":"13:00:00"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestUpsertWeekdaySlots_ThenList(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodPost, "/delivery/weekday-slots",
		`{"weekday":"LUNES","slots":[{"start_time":"10:00:00","end_time":"13:00:00","capacity":30}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 2026-03-02 is a Monday: the template materializes on first list.
	w = a.do(http.MethodGet, "/delivery/slots?date=2026-03-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Items []delivery.Slot `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 30, resp.Items[0].Capacity)
}

func TestAddStock(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodPost, "/admin/stock/prod-tomate/add", `{"qty":"5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, a.ledger.onHand["prod-tomate"].Equal(dec("5")))

	w = a.do(http.MethodPost, "/admin/stock/prod-tomate/add", `{"qty":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_AlwaysAcknowledges(t *testing.T) {
	a := newTestApp(t)
	a.provider.failGet = true

	w := a.do(http.MethodPost, "/payments/mercadopago/webhook?type=payment&data.id=777", `{}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The failure is reviewable as a dead letter.
	w = a.do(http.MethodGet, "/admin/payments/webhooks/dead-letter", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Items []payment.WebhookEvent `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.NotNil(t, resp.Items[0].ProcessError)
}
