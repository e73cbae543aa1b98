package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentCash        = "cash"
	PaymentCard        = "card"
	PaymentMobileMoney = "mobile_money"
	PaymentInsurance   = "insurance"
)

// NormalizePaymentMethod defaults an empty method to cash and rejects unknown ones.
func NormalizePaymentMethod(method string) (string, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	switch method {
	case "":
		return PaymentCash, nil
	case PaymentCash, PaymentCard, PaymentMobileMoney, PaymentInsurance:
		return method, nil
	}
	return "", NewValidationError("unknown payment method " + method)
}

// Sale is written once together with its items and never updated.
type Sale struct {
	ID            int64           `db:"id" json:"id"`
	Reference     string          `db:"reference" json:"reference"`
	PatientID     *int64          `db:"patient_id" json:"patient_id,omitempty"`
	Patient       *PatientRef     `db:"-" json:"patient,omitempty"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Total         decimal.Decimal `db:"total" json:"total"`
	Items         []SaleItem      `db:"-" json:"items"`
	CreatedAt     time.Time       `db:"created_at" json:"date"`
}

// SaleItem snapshots the inventory row at sale time. InventoryID is nil once
// the referenced item has been deleted.
type SaleItem struct {
	ID          int64           `db:"id" json:"id"`
	SaleID      int64           `db:"sale_id" json:"sale_id"`
	InventoryID *int64          `db:"inventory_id" json:"inventory_id,omitempty"`
	Name        string          `db:"item_name" json:"name"`
	Price       decimal.Decimal `db:"item_price" json:"price"`
	Quantity    int64           `db:"quantity" json:"quantity"`
	Category    string          `db:"item_category" json:"category"`
}

func (i SaleItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// SumItems totals price times quantity over the items.
func SumItems(items []SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
