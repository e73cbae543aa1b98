package sales

import (
	"github.com/shopspring/decimal"

	"clinicpos/m/domain"
)

// Line is one cart entry. Price is the unit price captured when the item was
// added to the cart; later price-list edits do not change it.
type Line struct {
	ItemID   int64           `json:"item_id"`
	Name     string          `json:"name,omitempty"`
	Category string          `json:"category,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(l.Quantity))
}

// Cart keeps one line per inventory item in insertion order.
type Cart struct {
	lines []Line
}

func NewCart(lines ...Line) (*Cart, error) {
	c := &Cart{}
	for _, l := range lines {
		if err := c.Put(l); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add puts one unit of item in the cart at its current price.
func (c *Cart) Add(item domain.InventoryItem) error {
	if item.TracksStock && item.Quantity <= 0 {
		return domain.ErrInsufficientStock
	}
	return c.Put(Line{ItemID: item.ID, Name: item.Name, Category: item.Category, Price: item.Price, Quantity: 1})
}

// Put merges l into the cart. A line for an item already present adds to its
// quantity and keeps the price captured first. Quantities below one are
// rejected; use SetQuantity to drop a line.
func (c *Cart) Put(l Line) error {
	if l.ItemID <= 0 {
		return domain.NewValidationError("item_id is required")
	}
	if l.Quantity <= 0 {
		return domain.NewValidationError("quantity must be a positive integer")
	}
	if l.Price.IsNegative() {
		return domain.NewValidationError("price must not be negative")
	}
	for i := range c.lines {
		if c.lines[i].ItemID == l.ItemID {
			return c.SetQuantity(l.ItemID, c.lines[i].Quantity+l.Quantity)
		}
	}
	c.lines = append(c.lines, l)
	return nil
}

// SetQuantity changes a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(itemID, quantity int64) error {
	if quantity <= 0 {
		c.Remove(itemID)
		return nil
	}
	for i := range c.lines {
		if c.lines[i].ItemID == itemID {
			c.lines[i].Quantity = quantity
			return nil
		}
	}
	return domain.ErrNotFound
}

func (c *Cart) Remove(itemID int64) {
	kept := c.lines[:0]
	for _, l := range c.lines {
		if l.ItemID != itemID {
			kept = append(kept, l)
		}
	}
	c.lines = kept
}

func (c *Cart) Lines() []Line {
	return append([]Line(nil), c.lines...)
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
