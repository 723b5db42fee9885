package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"cafepoint/internal/model"
	"cafepoint/internal/storage"
)

const (
	popularMenuWindow = 7 * 24 * time.Hour
	popularMenuLimit  = 3
)

// MenuService is the read-only catalog surface.
type MenuService struct {
	store storage.MenuStore
}

func NewMenuService(store storage.MenuStore) *MenuService {
	return &MenuService{store: store}
}

func (s *MenuService) ListMenus(ctx context.Context) ([]model.Menu, error) {
	return s.store.ListMenus(ctx)
}

func (s *MenuService) GetMenu(ctx context.Context, id string) (*model.Menu, error) {
	if uuid.Validate(id) != nil {
		return nil, model.ErrMenuNotFound
	}
	m, err := s.store.GetMenu(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, model.ErrMenuNotFound
		}
		return nil, err
	}
	return m, nil
}

// PopularMenus ranks the most-ordered menus over the last seven days.
func (s *MenuService) PopularMenus(ctx context.Context) ([]model.PopularMenu, error) {
	since := time.Now().Add(-popularMenuWindow)
	return s.store.PopularMenus(ctx, since, popularMenuLimit)
}
