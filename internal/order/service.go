package order

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/frescora/pedidos-api/internal/delivery"
	"github.com/frescora/pedidos-api/internal/stock"
	"github.com/frescora/pedidos-api/internal/storage"
)

// Service owns order creation and every status transition. All side
// effects of a transition (stock commit, reservation release, history
// row, driver auto-advance) share the transition's transaction.
type Service struct {
	repo   Repository
	ledger stock.Ledger
	slots  *delivery.Service
	txm    storage.TxManager

	currency string

	// Now is swappable in tests.
	Now func() time.Time
}

func NewService(repo Repository, ledger stock.Ledger, slots *delivery.Service, txm storage.TxManager, currency string) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledger,
		slots:    slots,
		txm:      txm,
		currency: currency,
		Now:      time.Now,
	}
}

type CreateItemInput struct {
	ProductID      string           `json:"productId"`
	ComboID        string           `json:"comboId"`
	Name           string           `json:"name"`
	SKU            string           `json:"sku"`
	UnitType       string           `json:"unitType"`
	Qty            decimal.Decimal  `json:"qty"`
	UnitPrice      decimal.Decimal  `json:"unitPrice"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice"`
}

type CreateInput struct {
	CustomerName  string  `json:"customerName"`
	CustomerPhone string  `json:"customerPhone"`
	CustomerEmail *string `json:"customerEmail"`

	AddressLine  string  `json:"addressLine"`
	AddressCity  string  `json:"addressCity"`
	AddressNotes *string `json:"addressNotes"`

	DeliveryDate string  `json:"deliveryDate"`
	SlotID       *string `json:"slotId"`

	Items []CreateItemInput `json:"items"`

	// MarkAsPaid skips the payment leg, for manual/test orders.
	MarkAsPaid bool `json:"markAsPaid"`
}

// Create persists the order with its item snapshots, one stock
// reservation per product line, the claimed delivery slot and the
// opening history row, all in one transaction. Without an explicit
// slot the first free slot of the delivery date is claimed instead.
// Reservations are not checked against availability here; overselling
// surfaces at pack time.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	for i, it := range in.Items {
		if (it.ProductID == "") == (it.ComboID == "") {
			return nil, fmt.Errorf("item %d: %w", i, ErrItemRef)
		}
	}

	now := s.Now().UTC()
	o := &Order{
		ID:            uuid.NewString(),
		Status:        StatusCreated,
		PaymentStatus: PaymentPending,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		CustomerEmail: in.CustomerEmail,
		AddressLine:   in.AddressLine,
		AddressCity:   in.AddressCity,
		AddressNotes:  in.AddressNotes,
		DeliveryDate:  in.DeliveryDate,
		SlotID:        in.SlotID,
		Currency:      s.currency,
		ShippingTotal: decimal.Zero,
	}

	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, line := range in.Items {
		it := Item{
			ID:             uuid.NewString(),
			OrderID:        o.ID,
			Name:           line.Name,
			UnitType:       line.UnitType,
			Qty:            line.Qty,
			UnitPrice:      line.UnitPrice.Round(2),
			CompareAtPrice: line.CompareAtPrice,
		}
		if line.ProductID != "" {
			id := line.ProductID
			it.ProductID = &id
		} else {
			id := line.ComboID
			it.ComboID = &id
		}
		if line.SKU != "" {
			sku := line.SKU
			it.SKU = &sku
		}
		it.Total = it.UnitPrice.Mul(it.Qty).Round(2)
		subtotal = subtotal.Add(it.Total)
		if it.CompareAtPrice != nil {
			diff := it.CompareAtPrice.Sub(it.UnitPrice)
			if diff.IsPositive() {
				discount = discount.Add(diff.Mul(it.Qty))
			}
		}
		o.Items = append(o.Items, it)
	}
	o.Subtotal = subtotal.Round(2)
	o.DiscountTotal = discount.Round(2)
	o.Total = o.Subtotal.Add(o.ShippingTotal).Round(2)

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	day := now.Format("20060102")
	seq, err := s.repo.NextSeq(ctx, tx, day)
	if err != nil {
		return nil, err
	}
	o.OrderNumber = fmt.Sprintf("PO-%s-%04d", day, seq)

	if in.SlotID != nil && *in.SlotID != "" {
		if err := s.slots.Take(ctx, tx, *in.SlotID); err != nil {
			return nil, err
		}
	} else if in.DeliveryDate != "" {
		slot, err := s.slots.AllocateForDate(ctx, tx, in.DeliveryDate)
		if err != nil {
			return nil, err
		}
		if slot != nil {
			o.SlotID = &slot.ID
		}
	}

	if err := s.repo.Insert(ctx, tx, o); err != nil {
		return nil, err
	}
	for i := range o.Items {
		if err := s.repo.InsertItem(ctx, tx, &o.Items[i]); err != nil {
			return nil, err
		}
		if o.Items[i].ProductID != nil {
			if err := s.ledger.Reserve(ctx, tx, o.ID, *o.Items[i].ProductID, o.Items[i].Qty); err != nil {
				return nil, err
			}
		}
	}

	note := "order created"
	if err := s.repo.InsertHistory(ctx, tx, &StatusHistory{
		ID: uuid.NewString(), OrderID: o.ID,
		FromStatus: StatusCreated, ToStatus: StatusCreated, Note: &note,
	}); err != nil {
		return nil, err
	}

	if in.MarkAsPaid {
		if err := s.repo.UpdatePaymentStatus(ctx, tx, o.ID, PaymentApproved); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateStatus(ctx, tx, o.ID, StatusToPick); err != nil {
			return nil, err
		}
		paidNote := "marked as paid on creation"
		if err := s.repo.InsertHistory(ctx, tx, &StatusHistory{
			ID: uuid.NewString(), OrderID: o.ID,
			FromStatus: StatusCreated, ToStatus: StatusToPick, Note: &paidNote,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Printf("[order] created %s (%d items)", o.OrderNumber, len(o.Items))
	return s.repo.GetByNumber(ctx, o.OrderNumber)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	return s.repo.List(ctx, f)
}

// Transition moves the order along one edge of the status table.
// Entering packed first commits the order's stock reservations; if
// stock is insufficient the whole transaction aborts and the status
// stays unchanged. Cancelling releases the reservations. Claimed slot
// capacity is never given back.
func (s *Service) Transition(ctx context.Context, number string, to Status, note *string) (*Order, error) {
	o, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(o.Status, to); err != nil {
		return nil, err
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.transitionInTx(ctx, tx, o, to, note); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Printf("[order] %s %s -> %s", o.OrderNumber, o.Status, to)
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) transitionInTx(ctx context.Context, tx storage.Tx, o *Order, to Status, note *string) error {
	switch to {
	case StatusPacked:
		if err := s.ledger.Commit(ctx, tx, o.ID); err != nil {
			return err
		}
	case StatusCancelled:
		if err := s.ledger.ReleaseForOrder(ctx, tx, o.ID); err != nil {
			return err
		}
	}
	if err := s.repo.UpdateStatus(ctx, tx, o.ID, to); err != nil {
		return err
	}
	return s.repo.InsertHistory(ctx, tx, &StatusHistory{
		ID: uuid.NewString(), OrderID: o.ID,
		FromStatus: o.Status, ToStatus: to, Note: note,
	})
}

type AssignDriverInput struct {
	DriverName  string  `json:"driverName"`
	DriverPhone *string `json:"driverPhone"`
}

// AssignDriver records the assignment and, when the order is packed,
// auto-advances it to out_for_delivery in the same transaction.
func (s *Service) AssignDriver(ctx context.Context, number string, in AssignDriverInput) (*Order, error) {
	o, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.repo.InsertAssignment(ctx, tx, &DriverAssignment{
		ID: uuid.NewString(), OrderID: o.ID,
		DriverName: in.DriverName, DriverPhone: in.DriverPhone,
		AssignedAt: s.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	if o.Status == StatusPacked {
		note := fmt.Sprintf("driver %s assigned", in.DriverName)
		if err := s.transitionInTx(ctx, tx, o, StatusOutForDelivery, &note); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByNumber(ctx, number)
}

// MarkDelivered requires the order to be out for delivery.
func (s *Service) MarkDelivered(ctx context.Context, number string, proofURL *string) (*Order, error) {
	o, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusOutForDelivery {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTransition, o.Status, StatusDelivered)
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.transitionInTx(ctx, tx, o, StatusDelivered, nil); err != nil {
		return nil, err
	}
	if o.Assignment != nil {
		if err := s.repo.MarkAssignmentDelivered(ctx, tx, o.ID, s.Now().UTC(), proofURL); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByNumber(ctx, number)
}

// ApplyPaymentStatus is the reconciler's entry point: it stamps the
// payment status and, when the new status implies a lifecycle move
// that is still legal, performs it. Illegal moves are skipped, not
// errors, because webhooks can arrive out of order.
func (s *Service) ApplyPaymentStatus(ctx context.Context, number string, ps PaymentStatus, note *string) (*Order, error) {
	o, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if o.PaymentStatus != ps {
		if err := s.repo.UpdatePaymentStatus(ctx, tx, o.ID, ps); err != nil {
			return nil, err
		}
	}

	var target Status
	switch ps {
	case PaymentApproved:
		target = StatusToPick
	case PaymentRejected:
		target = StatusFailed
	}
	if target != "" && o.Status != target && CanTransition(o.Status, target) {
		if err := s.transitionInTx(ctx, tx, o, target, note); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByNumber(ctx, number)
}
