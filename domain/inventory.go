package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnlimitedQuantity is the quantity recorded for items that are never counted,
// such as consultations. Such rows carry no stock value.
const UnlimitedQuantity int64 = 999

type InventoryItem struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Category    string          `db:"category" json:"category"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Quantity    int64           `db:"quantity" json:"quantity"`
	MinStock    int64           `db:"min_stock" json:"min_stock"`
	Description string          `db:"description" json:"description"`
	TracksStock bool            `db:"tracks_stock" json:"tracks_stock"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Validate checks the fields an operator must supply before the item is stored.
func (i InventoryItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return NewValidationError("name is required")
	}
	if strings.TrimSpace(i.Category) == "" {
		return NewValidationError("category is required")
	}
	if i.Price.IsNegative() {
		return NewValidationError("price must not be negative")
	}
	if i.TracksStock && i.Quantity < 0 {
		return NewValidationError("quantity must not be negative")
	}
	if i.MinStock < 0 {
		return NewValidationError("min_stock must not be negative")
	}
	return nil
}

// IsLowStock reports whether a counted item sits at or below its threshold.
func (i InventoryItem) IsLowStock() bool {
	return i.TracksStock && i.Quantity <= i.MinStock
}

// StockValue is price times quantity on hand for counted items.
func (i InventoryItem) StockValue() decimal.Decimal {
	if !i.TracksStock || i.Quantity == UnlimitedQuantity {
		return decimal.Zero
	}
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}
