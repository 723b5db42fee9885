package postgres

import (
	"context"
	"time"

	"cafepoint/internal/model"
)

func (s *Store) ListMenus(ctx context.Context) ([]model.Menu, error) {
	rows, err := s.db.Query(ctx, "SELECT id, name, price FROM menus ORDER BY name")
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var menus []model.Menu
	for rows.Next() {
		var m model.Menu
		if err := rows.Scan(&m.ID, &m.Name, &m.Price); err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

func (s *Store) GetMenu(ctx context.Context, id string) (*model.Menu, error) {
	var m model.Menu
	err := s.db.QueryRow(ctx,
		"SELECT id, name, price FROM menus WHERE id = $1", id).
		Scan(&m.ID, &m.Name, &m.Price)
	if err != nil {
		return nil, mapError(err)
	}
	return &m, nil
}

func (s *Store) ResolvePrices(ctx context.Context, ids []string) (map[string]int64, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, price FROM menus WHERE id = ANY($1::uuid[])", ids)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	prices := make(map[string]int64, len(ids))
	for rows.Next() {
		var id string
		var price int64
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		prices[id] = price
	}
	return prices, rows.Err()
}

func (s *Store) PopularMenus(ctx context.Context, since time.Time, limit int) ([]model.PopularMenu, error) {
	rows, err := s.db.Query(ctx, `
		SELECT m.id, m.name, m.price, COUNT(oi.id) AS order_count
		FROM order_items oi
		JOIN menus m ON m.id = oi.menu_id
		JOIN orders o ON o.id = oi.order_id
		WHERE o.created_at >= $1
		GROUP BY m.id, m.name, m.price
		ORDER BY order_count DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ranked []model.PopularMenu
	for rows.Next() {
		var p model.PopularMenu
		if err := rows.Scan(&p.Menu.ID, &p.Menu.Name, &p.Menu.Price, &p.OrderCount); err != nil {
			return nil, err
		}
		ranked = append(ranked, p)
	}
	return ranked, rows.Err()
}
