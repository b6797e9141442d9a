package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/frescora/pedidos-api/internal/order"
	"github.com/frescora/pedidos-api/internal/storage"
)

// CheckoutConfig carries the deployment-specific URLs handed to the
// provider when a checkout session is created.
type CheckoutConfig struct {
	NotificationURL string
	BackURLSuccess  string
	BackURLFailure  string
	BackURLPending  string
}

type Service struct {
	repo     Repository
	provider Provider
	orders   *order.Service
	cfg      CheckoutConfig
}

func NewService(repo Repository, provider Provider, orders *order.Service, cfg CheckoutConfig) *Service {
	return &Service{repo: repo, provider: provider, orders: orders, cfg: cfg}
}

// CreateCheckout builds a redirect checkout session from the order's
// item snapshots. Orders already approved are rejected.
func (s *Service) CreateCheckout(ctx context.Context, orderNumber string) (*Preference, error) {
	o, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == order.PaymentApproved {
		return nil, ErrAlreadyApproved
	}

	req := PreferenceRequest{
		ExternalReference: o.OrderNumber,
		NotificationURL:   s.cfg.NotificationURL,
	}
	for _, it := range o.Items {
		req.Items = append(req.Items, PreferenceItem{
			Title:      it.Name,
			Quantity:   it.Qty.InexactFloat64(),
			UnitPrice:  it.UnitPrice.InexactFloat64(),
			CurrencyID: o.Currency,
		})
	}
	if s.cfg.BackURLSuccess != "" {
		req.BackURLs = &BackURLs{
			Success: s.cfg.BackURLSuccess,
			Failure: s.cfg.BackURLFailure,
			Pending: s.cfg.BackURLPending,
		}
		req.AutoReturn = "approved"
	}

	pref, err := s.provider.CreatePreference(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Printf("[payment] checkout created for %s (preference %s)", o.OrderNumber, pref.ID)
	return pref, nil
}

type WebhookInput struct {
	// XEventID comes from the x-id header when present.
	XEventID string
	// Type is the notification topic from the query string.
	Type string
	// DataID is the payment id from the query string, if any.
	DataID string
	Body   []byte
}

// HandleWebhook applies a provider notification at most once. The
// unique (provider, event_id) insert is the idempotency gate; a
// duplicate is a successful no-op. Downstream failures after the gate
// are recorded on the event row instead of being returned, so the
// provider always gets an acknowledgement and never redelivers forever.
func (s *Service) HandleWebhook(ctx context.Context, in WebhookInput) error {
	var body struct {
		ID   any    `json:"id"`
		Type string `json:"type"`
		Data struct {
			ID any `json:"id"`
		} `json:"data"`
	}
	if len(in.Body) > 0 {
		_ = json.Unmarshal(in.Body, &body)
	}

	topic := in.Type
	if topic == "" {
		topic = body.Type
	}
	if topic != "" && topic != "payment" {
		log.Printf("[payment] webhook topic %q ignored", topic)
		return nil
	}

	paymentID := in.DataID
	if paymentID == "" {
		paymentID = asString(body.Data.ID)
	}
	if paymentID == "" {
		paymentID = asString(body.ID)
	}

	eventID := in.XEventID
	if eventID == "" {
		eventID = asString(body.Data.ID)
	}
	if eventID == "" {
		eventID = asString(body.ID)
	}
	if eventID == "" {
		eventID = paymentID
	}
	if eventID == "" {
		log.Printf("[payment] webhook without event id ignored")
		return nil
	}

	e := &WebhookEvent{
		ID:       uuid.NewString(),
		Provider: ProviderMercadoPago,
		EventID:  eventID,
		Payload:  in.Body,
	}
	if err := s.repo.InsertEvent(ctx, e); err != nil {
		if storage.IsUniqueViolation(err) {
			log.Printf("[payment] webhook %s already seen", eventID)
			return nil
		}
		return err
	}

	if err := s.process(ctx, paymentID); err != nil {
		msg := err.Error()
		log.Printf("[payment] webhook %s dead-lettered: %s", eventID, msg)
		return s.repo.MarkEventProcessed(ctx, e.ID, &msg)
	}
	return s.repo.MarkEventProcessed(ctx, e.ID, nil)
}

func (s *Service) process(ctx context.Context, paymentID string) error {
	if paymentID == "" {
		return fmt.Errorf("notification carries no payment id")
	}

	pp, err := s.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if pp.ExternalReference == "" {
		return fmt.Errorf("payment %d has no external reference", pp.ID)
	}
	o, err := s.orders.GetByNumber(ctx, pp.ExternalReference)
	if err != nil {
		return fmt.Errorf("order %s: %w", pp.ExternalReference, err)
	}

	providerID := fmt.Sprintf("%d", pp.ID)
	currency := pp.CurrencyID
	if currency == "" {
		currency = o.Currency
	}
	var detail, method *string
	if pp.StatusDetail != "" {
		detail = &pp.StatusDetail
	}
	if pp.PaymentMethodID != "" {
		method = &pp.PaymentMethodID
	}
	if _, err := s.repo.UpsertPayment(ctx, &Payment{
		ID:                uuid.NewString(),
		OrderID:           o.ID,
		Provider:          ProviderMercadoPago,
		ProviderPaymentID: &providerID,
		Status:            pp.Status,
		StatusDetail:      detail,
		Method:            method,
		Amount:            decimal.NewFromFloat(pp.TransactionAmount),
		Currency:          currency,
	}); err != nil {
		return err
	}

	note := fmt.Sprintf("mercadopago payment %s: %s", providerID, pp.Status)
	switch pp.Status {
	case "approved":
		_, err = s.orders.ApplyPaymentStatus(ctx, o.OrderNumber, order.PaymentApproved, &note)
	case "rejected", "cancelled":
		_, err = s.orders.ApplyPaymentStatus(ctx, o.OrderNumber, order.PaymentRejected, &note)
	}
	return err
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return decimal.NewFromFloat(t).String()
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

type ManualUpdateInput struct {
	PaymentStatus string           `json:"paymentStatus"`
	OrderStatus   string           `json:"orderStatus"`
	Method        string           `json:"method"` // cash, transfer
	Amount        *decimal.Decimal `json:"amount"`
	Note          *string          `json:"note"`
}

// ManualUpdate lets an operator settle a payment out of band (cash on
// delivery, bank transfer) and optionally force the order status.
func (s *Service) ManualUpdate(ctx context.Context, orderNumber string, in ManualUpdateInput) (*order.Order, error) {
	o, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	if in.Method != "" {
		amount := o.Total
		if in.Amount != nil {
			amount = *in.Amount
		}
		method := in.Method
		status := in.PaymentStatus
		if status == "" {
			status = "approved"
		}
		if _, err := s.repo.UpsertPayment(ctx, &Payment{
			ID:       uuid.NewString(),
			OrderID:  o.ID,
			Provider: "manual",
			Status:   status,
			Method:   &method,
			Amount:   amount,
			Currency: o.Currency,
			Note:     in.Note,
		}); err != nil {
			return nil, err
		}
	}

	if in.PaymentStatus != "" {
		if o, err = s.orders.ApplyPaymentStatus(ctx, orderNumber, order.PaymentStatus(in.PaymentStatus), in.Note); err != nil {
			return nil, err
		}
	}
	if in.OrderStatus != "" && o.Status != order.Status(in.OrderStatus) {
		if o, err = s.orders.Transition(ctx, orderNumber, order.Status(in.OrderStatus), in.Note); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Payment, error) {
	return s.repo.ListPayments(ctx, limit, offset)
}

func (s *Service) ForOrder(ctx context.Context, orderNumber string) ([]Payment, error) {
	o, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return s.repo.PaymentsForOrder(ctx, o.ID)
}

func (s *Service) DeadLetters(ctx context.Context) ([]WebhookEvent, error) {
	return s.repo.ListDeadLetters(ctx)
}
