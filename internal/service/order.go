package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cafepoint/internal/metrics"
	"cafepoint/internal/model"
	"cafepoint/internal/storage"
)

// OrderEventsSubject is the bus subject order-created events are published
// on. The collector worker consumes it.
const OrderEventsSubject = "orders.created"

// Catalog resolves menu ids to unit prices. The orchestrator only sees this
// narrow view of the menu catalog.
type Catalog interface {
	ResolvePrices(ctx context.Context, ids []string) (map[string]int64, error)
}

// OrderService turns a cart into a priced order, debiting the ledger exactly
// once per attempt. Debit, order row and item rows commit atomically.
type OrderService struct {
	db      storage.Storage
	catalog Catalog
	bus     EventBus
}

func NewOrderService(db storage.Storage, catalog Catalog, bus EventBus) *OrderService {
	return &OrderService{db: db, catalog: catalog, bus: bus}
}

// CreateOrder merges duplicate lines, prices them against the catalog and
// persists the order together with its point debit in one transaction. Any
// failure rolls the whole attempt back: no partial order, no stray debit.
//
// Zero-total orders skip the debit entirely; no zero-amount audit row is
// written.
func (s *OrderService) CreateOrder(ctx context.Context, accountID string, lines []model.OrderLine, key string) (*model.Order, error) {
	if uuid.Validate(accountID) != nil {
		return nil, model.ErrAccountNotFound
	}
	if key == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", model.ErrInvalidInput)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one line", model.ErrInvalidInput)
	}

	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(merged))
	for i, ln := range merged {
		// Malformed menu ids are treated like unknown menus.
		if uuid.Validate(ln.MenuID) != nil {
			return nil, model.ErrMenuNotFound
		}
		ids[i] = ln.MenuID
	}

	prices, err := s.catalog.ResolvePrices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve prices: %w", err)
	}

	order := &model.Order{
		ID:        uuid.New().String(),
		AccountID: accountID,
		CreatedAt: time.Now().UTC(),
	}
	for _, ln := range merged {
		unit, ok := prices[ln.MenuID]
		if !ok {
			return nil, model.ErrMenuNotFound
		}
		item := model.OrderItem{
			ID:         uuid.New().String(),
			OrderID:    order.ID,
			MenuID:     ln.MenuID,
			Quantity:   ln.Quantity,
			UnitPrice:  unit,
			TotalPrice: unit * ln.Quantity,
		}
		order.Items = append(order.Items, item)
		order.TotalPrice += item.TotalPrice
	}

	err = s.db.WithTx(ctx, func(st storage.Store) error {
		if order.TotalPrice > 0 {
			if _, _, err := applyMutation(ctx, st, accountID, order.TotalPrice, model.KindDeduct, key); err != nil {
				return err
			}
		} else {
			// No debit, but the account must still exist.
			if _, err := st.GetAccount(ctx, accountID); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return model.ErrAccountNotFound
				}
				return err
			}
		}
		if err := st.InsertOrder(ctx, order); err != nil {
			return err
		}
		for i := range order.Items {
			if err := st.InsertOrderItem(ctx, &order.Items[i]); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, errReplayRace):
		// The debit key committed under a concurrent writer; the order
		// attempt rolls back. The caller may retry with the same key.
		return nil, model.ErrConflict
	case errors.Is(err, storage.ErrLockTimeout):
		return nil, model.ErrLockTimeout
	case err != nil:
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	s.publishCreated(order)
	return order, nil
}

// publishCreated emits the order event after commit. The order has already
// committed, so a publish failure is logged, never propagated.
func (s *OrderService) publishCreated(order *model.Order) {
	if s.bus == nil {
		return
	}
	event := model.OrderCreatedEvent{
		OrderID:    order.ID,
		AccountID:  order.AccountID,
		TotalPrice: order.TotalPrice,
		Items:      order.Items,
		CreatedAt:  order.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("order event marshal failed", "order_id", order.ID, "error", err)
		return
	}
	if err := s.bus.Publish(OrderEventsSubject, data); err != nil {
		slog.Error("order event publish failed", "order_id", order.ID, "error", err)
	}
}

// maxLineQuantity bounds the merged quantity of a single line so that
// quantity times unit price cannot overflow int64.
const maxLineQuantity = 1_000_000

// mergeLines folds lines with the same menu id into one, summing quantities.
// Output keeps the insertion order of each menu's first occurrence.
func mergeLines(lines []model.OrderLine) ([]model.OrderLine, error) {
	index := make(map[string]int, len(lines))
	var merged []model.OrderLine
	for _, ln := range lines {
		if ln.Quantity < 0 {
			return nil, fmt.Errorf("%w: quantity must not be negative", model.ErrInvalidInput)
		}
		if i, ok := index[ln.MenuID]; ok {
			merged[i].Quantity += ln.Quantity
			if merged[i].Quantity > maxLineQuantity {
				return nil, fmt.Errorf("%w: quantity exceeds %d", model.ErrInvalidInput, maxLineQuantity)
			}
			continue
		}
		if ln.Quantity > maxLineQuantity {
			return nil, fmt.Errorf("%w: quantity exceeds %d", model.ErrInvalidInput, maxLineQuantity)
		}
		index[ln.MenuID] = len(merged)
		merged = append(merged, ln)
	}
	return merged, nil
}
