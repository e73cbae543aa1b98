package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"clinicpos/m/domain"
)

type saleRow struct {
	ID            int64           `db:"id"`
	Reference     string          `db:"reference"`
	PatientID     *int64          `db:"patient_id"`
	PaymentMethod string          `db:"payment_method"`
	Total         decimal.Decimal `db:"total"`
	CreatedAt     time.Time       `db:"created_at"`
	FirstName     sql.NullString  `db:"first_name"`
	LastName      sql.NullString  `db:"last_name"`
	Phone         sql.NullString  `db:"phone"`
}

func (r saleRow) sale() domain.Sale {
	sale := domain.Sale{
		ID:            r.ID,
		Reference:     r.Reference,
		PatientID:     r.PatientID,
		PaymentMethod: r.PaymentMethod,
		Total:         r.Total,
		CreatedAt:     r.CreatedAt,
		Items:         []domain.SaleItem{},
	}
	if r.PatientID != nil && r.FirstName.Valid {
		sale.Patient = &domain.PatientRef{
			ID:        *r.PatientID,
			FirstName: r.FirstName.String,
			LastName:  r.LastName.String,
			Phone:     r.Phone.String,
		}
	}
	return sale
}

const saleSelect = `SELECT s.id, s.reference, s.patient_id, s.payment_method, s.total, s.created_at,
       p.first_name, p.last_name, p.phone
  FROM sales s
  LEFT JOIN patients p ON p.id = s.patient_id`

// ListSales returns every sale, newest first, with patient and line items attached.
func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	var rows []saleRow
	if err := s.db.SelectContext(ctx, &rows, saleSelect+` ORDER BY s.created_at DESC, s.id DESC`); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return s.attachItems(ctx, rows)
}

func (s *Store) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	var row saleRow
	if err := s.db.GetContext(ctx, &row, s.q(saleSelect+` WHERE s.id = ?`), id); err != nil {
		return domain.Sale{}, notFound(err)
	}
	sales, err := s.attachItems(ctx, []saleRow{row})
	if err != nil {
		return domain.Sale{}, err
	}
	return sales[0], nil
}

func (s *Store) attachItems(ctx context.Context, rows []saleRow) ([]domain.Sale, error) {
	sales := make([]domain.Sale, len(rows))
	if len(rows) == 0 {
		return sales, nil
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		sales[i] = row.sale()
	}

	itemsQuery, itemsArgs, err := sqlx.In(`SELECT id, sale_id, inventory_id, item_name, item_price, quantity, item_category
		FROM sale_items WHERE sale_id IN (?) ORDER BY sale_id, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("prepare sale items query: %w", err)
	}
	var items []domain.SaleItem
	if err := s.db.SelectContext(ctx, &items, s.q(itemsQuery), itemsArgs...); err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}

	itemsBySale := make(map[int64][]domain.SaleItem, len(rows))
	for _, item := range items {
		itemsBySale[item.SaleID] = append(itemsBySale[item.SaleID], item)
	}
	for i := range sales {
		if found := itemsBySale[sales[i].ID]; found != nil {
			sales[i].Items = found
		}
	}
	return sales, nil
}

type stockInfo struct {
	Name        string `db:"name"`
	Category    string `db:"category"`
	TracksStock bool   `db:"tracks_stock"`
}

// RecordSale writes the header, the line snapshots and the stock decrements in
// one transaction. Each item in draft.Items must reference an inventory row.
// A draft whose reference was already recorded with the same cart returns the
// stored sale and created=false; a different cart under that reference is
// ErrDuplicate.
func (s *Store) RecordSale(ctx context.Context, draft domain.Sale) (sale domain.Sale, created bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Sale{}, false, fmt.Errorf("begin sale: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.GetContext(ctx, &existingID, tx.Rebind(`SELECT id FROM sales WHERE reference = ?`), draft.Reference)
	switch {
	case err == nil:
		// release the connection before reading through the pool
		_ = tx.Rollback()
		stored, err := s.GetSale(ctx, existingID)
		if err != nil {
			return domain.Sale{}, false, err
		}
		if !sameCart(stored, draft) {
			return domain.Sale{}, false, fmt.Errorf("sale %s was recorded with a different cart: %w", draft.Reference, domain.ErrDuplicate)
		}
		return stored, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.Sale{}, false, fmt.Errorf("check sale reference: %w", err)
	}

	if draft.PatientID != nil {
		var ref domain.PatientRef
		err := tx.QueryRowxContext(ctx, tx.Rebind(`SELECT id, first_name, last_name, phone FROM patients WHERE id = ?`), *draft.PatientID).
			Scan(&ref.ID, &ref.FirstName, &ref.LastName, &ref.Phone)
		if err != nil {
			return domain.Sale{}, false, fmt.Errorf("patient %d: %w", *draft.PatientID, notFound(err))
		}
		draft.Patient = &ref
	}

	draft.Items = append([]domain.SaleItem(nil), draft.Items...)
	tracked := make([]bool, len(draft.Items))
	for i, item := range draft.Items {
		if item.InventoryID == nil {
			return domain.Sale{}, false, domain.NewValidationError("every line must reference an inventory item")
		}
		var info stockInfo
		if err := tx.GetContext(ctx, &info, tx.Rebind(`SELECT name, category, tracks_stock FROM inventory WHERE id = ?`), *item.InventoryID); err != nil {
			return domain.Sale{}, false, fmt.Errorf("inventory item %d: %w", *item.InventoryID, notFound(err))
		}
		if item.Name == "" {
			draft.Items[i].Name = info.Name
		}
		if item.Category == "" {
			draft.Items[i].Category = info.Category
		}
		tracked[i] = info.TracksStock
	}

	draft.CreatedAt = s.timestamp()
	err = tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO sales (reference, patient_id, payment_method, total, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		draft.Reference, draft.PatientID, draft.PaymentMethod, draft.Total, draft.CreatedAt).Scan(&draft.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Sale{}, false, fmt.Errorf("sale %s: %w", draft.Reference, domain.ErrDuplicate)
		}
		return domain.Sale{}, false, fmt.Errorf("insert sale: %w", err)
	}

	for i := range draft.Items {
		item := &draft.Items[i]
		item.SaleID = draft.ID
		err := tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO sale_items (sale_id, inventory_id, item_name, item_price, quantity, item_category) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
			item.SaleID, item.InventoryID, item.Name, item.Price, item.Quantity, item.Category).Scan(&item.ID)
		if err != nil {
			return domain.Sale{}, false, fmt.Errorf("insert sale item %q: %w", item.Name, err)
		}
	}

	for i, item := range draft.Items {
		if !tracked[i] {
			continue
		}
		query := `UPDATE inventory SET quantity = quantity - ?, updated_at = ? WHERE id = ?`
		args := []any{item.Quantity, draft.CreatedAt, *item.InventoryID}
		if !s.allowNegativeStock {
			query += ` AND quantity >= ?`
			args = append(args, item.Quantity)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return domain.Sale{}, false, fmt.Errorf("decrement stock of %q: %w", item.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return domain.Sale{}, false, err
		}
		if n == 0 {
			return domain.Sale{}, false, fmt.Errorf("%s: %w", item.Name, domain.ErrInsufficientStock)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Sale{}, false, fmt.Errorf("commit sale: %w", err)
	}
	return draft, true, nil
}

// sameCart reports whether a stored sale carries the lines, total, patient and
// payment method of draft.
func sameCart(stored, draft domain.Sale) bool {
	if stored.PaymentMethod != draft.PaymentMethod || !stored.Total.Equal(draft.Total) || len(stored.Items) != len(draft.Items) {
		return false
	}
	if (stored.PatientID == nil) != (draft.PatientID == nil) ||
		(stored.PatientID != nil && *stored.PatientID != *draft.PatientID) {
		return false
	}
	for i, got := range stored.Items {
		want := draft.Items[i]
		if got.InventoryID == nil || want.InventoryID == nil || *got.InventoryID != *want.InventoryID ||
			got.Quantity != want.Quantity || !got.Price.Equal(want.Price) {
			return false
		}
	}
	return true
}
