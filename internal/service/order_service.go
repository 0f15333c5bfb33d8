package service

import (
	"context"
	"errors"
	"time"

	"comandapos/internal/model"
	"comandapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// FinalizeOutcome tells the caller how AttemptFinalize ended.
type FinalizeOutcome string

const (
	OutcomeFinalized FinalizeOutcome = "finalized"

	// OutcomeClosedEmpty: the order had no items and was deleted. Not an error.
	OutcomeClosedEmpty FinalizeOutcome = "closed_empty"
)

type FinalizeResult struct {
	Outcome FinalizeOutcome `json:"outcome"`
	Order   *model.Order    `json:"order,omitempty"`
}

// CheckoutLine is one product of a quick sale.
type CheckoutLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// ProductLookup is the part of the catalog the order flow needs.
type ProductLookup interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
}

// OrderService manages comandas. Only open orders can change, and the
// persisted total always equals the sum of the persisted line subtotals.
type OrderService interface {
	CreateOrder(ctx context.Context, collaboratorID uuid.UUID, customerName, tabNumber *string) (*model.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	ListOpenOrders(ctx context.Context) ([]model.Order, error)
	AddItem(ctx context.Context, orderID, productID uuid.UUID) (*model.Order, error)
	IncrementItem(ctx context.Context, orderID, productID uuid.UUID) (*model.Order, error)
	DecrementItem(ctx context.Context, orderID, productID uuid.UUID) (*model.Order, error)
	RemoveItem(ctx context.Context, orderID, productID uuid.UUID) (*model.Order, error)
	AttemptFinalize(ctx context.Context, orderID uuid.UUID, paymentMethod *string) (*FinalizeResult, error)
	QuickCheckout(ctx context.Context, collaboratorID uuid.UUID, paymentMethod string, lines []CheckoutLine) (*model.Order, error)
}

type orderService struct {
	ledger   *repository.LedgerStore
	products ProductLookup
	resolver SessionResolver
	locks    *KeyedMutex // keyed by order id, and by collaborator id for quick checkout
	now      func() time.Time
}

// NewOrderService wires the order controller. Pass the same locks as
// NewCajaService so quick sales serialize with session close.
func NewOrderService(ledger *repository.LedgerStore, products ProductLookup, resolver SessionResolver, locks *KeyedMutex) OrderService {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &orderService{
		ledger:   ledger,
		products: products,
		resolver: resolver,
		locks:    locks,
		now:      utcNow,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, collaboratorID uuid.UUID, customerName, tabNumber *string) (*model.Order, error) {
	o := &model.Order{
		CollaboratorID: collaboratorID,
		CustomerName:   customerName,
		TabNumber:      tabNumber,
		Status:         model.OrderOpen,
		Total:          decimal.Zero,
	}
	if err := s.ledger.Orders.Insert(ctx, o); err != nil {
		return nil, opErr("create order", collaboratorID, ErrStore, err)
	}
	o.Items = []model.OrderItem{}
	return o, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	o, err := s.ledger.Orders.QueryOne(ctx, repository.Where("id", orderID))
	if err != nil {
		return nil, storeErr("get order", orderID, err)
	}
	if o.Items, err = s.items(ctx, orderID); err != nil {
		return nil, storeErr("get order", orderID, err)
	}
	return o, nil
}

// ListOpenOrders returns every open tab, oldest first.
func (s *orderService) ListOpenOrders(ctx context.Context) ([]model.Order, error) {
	orders, err := s.ledger.Orders.Query(ctx, repository.Where("status", model.OrderOpen).Order("created_at", false))
	if err != nil {
		return nil, opErr("list orders", uuid.Nil, ErrStore, err)
	}
	return orders, nil
}

// ── Item mutations ────────────────────────────────────────────────────────────

// undoFunc reverts one item write. It is called at most once.
type undoFunc func(ctx context.Context) error

func (s *orderService) AddItem(ctx context.Context, orderID, productID uuid.UUID) (*model.Order, error) {
	const op = "add item"
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, orderID, func(items []model.OrderItem) (undoFunc, error) {
		if line := findLine(items, productID); line != nil {
			return s.setQuantity(ctx, op, line, line.Quantity+1)
		}
		line := &model.OrderItem{
			OrderID:     orderID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    1,
			UnitPrice:   product.SalePrice,
			Subtotal:    model.LineSubtotal(1, product.SalePrice),
		}
		if err := s.ledger.OrderItems.Insert(ctx, line); err != nil {
			return nil, opErr(op, orderID, ErrStore, err)
		}
		return func(ctx context.Context) error {
			return s.ledger.OrderItems.Delete(ctx, line.ID)
		}, nil
	})
}

func (s *orderService) IncrementItem(ctx context.Context, orderID, productID uuid.UUID) (*model.Order, error) {
	const op = "increment item"
	return s.mutate(ctx, op, orderID, func(items []model.OrderItem) (undoFunc, error) {
		line := findLine(items, productID)
		if line == nil {
			return nil, opErr(op, productID, ErrNotFound, nil)
		}
		return s.setQuantity(ctx, op, line, line.Quantity+1)
	})
}

// DecrementItem lowers the quantity by one; a line at 1 is removed instead.
func (s *orderService) DecrementItem(ctx context.Context, orderID, productID uuid.UUID) (*model.Order, error) {
	const op = "decrement item"
	return s.mutate(ctx, op, orderID, func(items []model.OrderItem) (undoFunc, error) {
		line := findLine(items, productID)
		if line == nil {
			return nil, opErr(op, productID, ErrNotFound, nil)
		}
		if line.Quantity <= 1 {
			return s.deleteLine(ctx, op, line)
		}
		return s.setQuantity(ctx, op, line, line.Quantity-1)
	})
}

func (s *orderService) RemoveItem(ctx context.Context, orderID, productID uuid.UUID) (*model.Order, error) {
	const op = "remove item"
	return s.mutate(ctx, op, orderID, func(items []model.OrderItem) (undoFunc, error) {
		line := findLine(items, productID)
		if line == nil {
			return nil, opErr(op, productID, ErrNotFound, nil)
		}
		return s.deleteLine(ctx, op, line)
	})
}

// mutate runs one item write against an open order and then recomputes the
// total from the persisted lines. If the recompute fails the write is undone
// so the stored total never disagrees with the stored lines.
func (s *orderService) mutate(ctx context.Context, op string, orderID uuid.UUID, change func(items []model.OrderItem) (undoFunc, error)) (*model.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	if _, err := s.openOrder(ctx, op, orderID); err != nil {
		return nil, err
	}
	items, err := s.items(ctx, orderID)
	if err != nil {
		return nil, opErr(op, orderID, ErrStore, err)
	}

	undo, err := change(items)
	if err != nil {
		return nil, err
	}

	order, err := s.recomputeTotal(ctx, orderID)
	if err != nil {
		oe := &OpError{Op: op, EntityID: orderID, Kind: ErrOrderUpdateFailed, Err: err}
		if uerr := undo(context.WithoutCancel(ctx)); uerr != nil {
			oe.Compensation = uerr
			log.Error().Err(err).AnErr("rollback_err", uerr).Str("order_id", orderID.String()).Str("op", op).
				Msg("order: item write could not be reverted, total and lines disagree")
		}
		return nil, oe
	}
	return order, nil
}

func (s *orderService) setQuantity(ctx context.Context, op string, line *model.OrderItem, qty int) (undoFunc, error) {
	prevQty, prevSubtotal := line.Quantity, line.Subtotal
	_, err := s.ledger.OrderItems.Update(ctx, line.ID, map[string]any{
		"quantity": qty,
		"subtotal": model.LineSubtotal(qty, line.UnitPrice),
	})
	if err != nil {
		return nil, opErr(op, line.OrderID, ErrStore, err)
	}
	return func(ctx context.Context) error {
		_, err := s.ledger.OrderItems.Update(ctx, line.ID, map[string]any{
			"quantity": prevQty,
			"subtotal": prevSubtotal,
		})
		return err
	}, nil
}

func (s *orderService) deleteLine(ctx context.Context, op string, line *model.OrderItem) (undoFunc, error) {
	if err := s.ledger.OrderItems.Delete(ctx, line.ID); err != nil {
		return nil, opErr(op, line.OrderID, ErrStore, err)
	}
	removed := *line
	return func(ctx context.Context) error {
		return s.ledger.OrderItems.Insert(ctx, &removed)
	}, nil
}

// recomputeTotal sums the persisted lines and stores the result on the order.
func (s *orderService) recomputeTotal(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	items, err := s.items(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order, err := s.ledger.Orders.Update(ctx, orderID, map[string]any{"total": sumSubtotals(items)})
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// ── Finalize ──────────────────────────────────────────────────────────────────

// AttemptFinalize closes an order. An empty order is deleted and reported as
// OutcomeClosedEmpty without requiring a payment method. Otherwise the
// method is required and updated_at is stamped now: reconciliation windows
// key off that timestamp.
func (s *orderService) AttemptFinalize(ctx context.Context, orderID uuid.UUID, paymentMethod *string) (*FinalizeResult, error) {
	const op = "finalize order"
	unlock := s.locks.Lock(orderID)
	defer unlock()

	if _, err := s.openOrder(ctx, op, orderID); err != nil {
		return nil, err
	}
	items, err := s.items(ctx, orderID)
	if err != nil {
		return nil, opErr(op, orderID, ErrStore, err)
	}

	if len(items) == 0 {
		if err := s.ledger.Orders.Delete(ctx, orderID); err != nil {
			return nil, opErr(op, orderID, ErrStore, err)
		}
		log.Info().Str("order_id", orderID.String()).Msg("order: empty tab discarded on finalize")
		return &FinalizeResult{Outcome: OutcomeClosedEmpty}, nil
	}

	if paymentMethod == nil || *paymentMethod == "" {
		return nil, opErr(op, orderID, ErrPaymentMethodRequired, nil)
	}
	if !model.ValidPaymentMethod(*paymentMethod) {
		return nil, validationErr(op, "unknown payment method %q", *paymentMethod)
	}

	order, err := s.ledger.Orders.Update(ctx, orderID, map[string]any{
		"status":         model.OrderFinalized,
		"payment_method": *paymentMethod,
		"total":          sumSubtotals(items),
		"updated_at":     s.now(),
	})
	if err != nil {
		return nil, opErr(op, orderID, ErrStore, err)
	}
	order.Items = items
	return &FinalizeResult{Outcome: OutcomeFinalized, Order: order}, nil
}

// ── Quick checkout ────────────────────────────────────────────────────────────

// QuickCheckout records an over-the-counter sale as an already finalized
// order. It needs an open cash session. If an item write fails, the lines
// written so far and the order are deleted.
func (s *orderService) QuickCheckout(ctx context.Context, collaboratorID uuid.UUID, paymentMethod string, lines []CheckoutLine) (*model.Order, error) {
	const op = "quick checkout"
	if !model.ValidPaymentMethod(paymentMethod) {
		return nil, validationErr(op, "unknown payment method %q", paymentMethod)
	}
	if len(lines) == 0 {
		return nil, validationErr(op, "at least one item is required")
	}
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, validationErr(op, "quantity must be >= 1 for product %s", l.ProductID)
		}
	}

	unlock := s.locks.Lock(collaboratorID)
	defer unlock()

	active, err := s.resolver.ResolveActiveSession(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, opErr(op, collaboratorID, ErrSessionNotOpen, nil)
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, l := range mergeLines(lines) {
		p, err := s.products.GetProduct(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		items = append(items, model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			UnitPrice:   p.SalePrice,
			Subtotal:    model.LineSubtotal(l.Quantity, p.SalePrice),
		})
	}

	now := s.now()
	method := paymentMethod
	order := &model.Order{
		CollaboratorID: collaboratorID,
		Status:         model.OrderFinalized,
		PaymentMethod:  &method,
		Total:          sumSubtotals(items),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.ledger.Orders.Insert(ctx, order); err != nil {
		return nil, opErr(op, collaboratorID, ErrStore, err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		if err := s.ledger.OrderItems.Insert(ctx, &items[i]); err != nil {
			oe := &OpError{Op: op, EntityID: order.ID, Kind: ErrStore, Err: err}
			if cerr := s.discard(context.WithoutCancel(ctx), order.ID, items[:i]); cerr != nil {
				oe.Compensation = cerr
				log.Error().Err(err).AnErr("rollback_err", cerr).Str("order_id", order.ID.String()).
					Msg("order: quick checkout rollback failed, partial sale left in ledger")
			}
			return nil, oe
		}
	}
	order.Items = items
	return order, nil
}

// discard deletes the given lines and then the order, collecting failures.
func (s *orderService) discard(ctx context.Context, orderID uuid.UUID, items []model.OrderItem) error {
	var errs []error
	for _, it := range items {
		if err := s.ledger.OrderItems.Delete(ctx, it.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.ledger.Orders.Delete(ctx, orderID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (s *orderService) openOrder(ctx context.Context, op string, orderID uuid.UUID) (*model.Order, error) {
	o, err := s.ledger.Orders.QueryOne(ctx, repository.Where("id", orderID))
	if err != nil {
		return nil, storeErr(op, orderID, err)
	}
	if o.Status != model.OrderOpen {
		return nil, opErr(op, orderID, ErrOrderNotOpen, nil)
	}
	return o, nil
}

func (s *orderService) items(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	return s.ledger.OrderItems.Query(ctx, repository.Where("order_id", orderID).Order("created_at", false))
}

func findLine(items []model.OrderItem, productID uuid.UUID) *model.OrderItem {
	for i := range items {
		if items[i].ProductID == productID {
			return &items[i]
		}
	}
	return nil
}

func sumSubtotals(items []model.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}

// mergeLines folds repeated products into one line, keeping first-seen order.
func mergeLines(lines []CheckoutLine) []CheckoutLine {
	idx := make(map[uuid.UUID]int, len(lines))
	out := make([]CheckoutLine, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}
