package postgres

import (
	"context"
	"fmt"

	"cafepoint/internal/model"
)

func (s *Store) InsertOrder(ctx context.Context, o *model.Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (id, account_id, total_price, created_at)
		VALUES ($1, $2, $3, $4)`,
		o.ID, o.AccountID, o.TotalPrice, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", mapError(err))
	}
	return nil
}

func (s *Store) InsertOrderItem(ctx context.Context, item *model.OrderItem) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_items (id, order_id, menu_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.OrderID, item.MenuID, item.Quantity, item.UnitPrice, item.TotalPrice)
	if err != nil {
		return fmt.Errorf("insert order item: %w", mapError(err))
	}
	return nil
}
