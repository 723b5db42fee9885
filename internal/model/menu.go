package model

// Menu is a catalog entry. Read-only from the ledger's perspective.
type Menu struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// PopularMenu is a menu with its order count over the ranking window.
type PopularMenu struct {
	Menu       Menu  `json:"menu"`
	OrderCount int64 `json:"order_count"`
}
