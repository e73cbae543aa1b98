// Package seed fills an empty database with the default clinic catalog and
// the bootstrap administrator.
package seed

import (
	"context"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"clinicpos/m/domain"
)

//go:embed catalog.csv
var defaultCatalog string

type InventoryStore interface {
	ListInventory(ctx context.Context) ([]domain.InventoryItem, error)
	CreateInventory(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error)
}

// LoadCatalog inserts the default catalog when the inventory is empty and
// returns the number of rows added.
func LoadCatalog(ctx context.Context, st InventoryStore, policy domain.CategoryPolicy) (int, error) {
	existing, err := st.ListInventory(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	items, err := ParseCatalog(strings.NewReader(defaultCatalog), policy)
	if err != nil {
		return 0, err
	}
	rows := 0
	for _, item := range items {
		if _, err := st.CreateInventory(ctx, item); err != nil {
			return rows, fmt.Errorf("seed %s: %w", item.Name, err)
		}
		rows++
	}
	log.Printf("seeded inventory catalog with %d rows", rows)
	return rows, nil
}

// ParseCatalog reads name,category,price,quantity,min_stock,description rows.
// Malformed rows are logged and skipped.
func ParseCatalog(r io.Reader, policy domain.CategoryPolicy) ([]domain.InventoryItem, error) {
	reader := csv.NewReader(r)
	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	var items []domain.InventoryItem
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read catalog row: %v", err)
			continue
		}
		if len(record) < 6 {
			continue
		}
		item, err := catalogItem(record, policy)
		if err != nil {
			log.Printf("skipping catalog row %q: %v", record[0], err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func catalogItem(record []string, policy domain.CategoryPolicy) (domain.InventoryItem, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil {
		return domain.InventoryItem{}, err
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	minStock, err := strconv.ParseInt(strings.TrimSpace(record[4]), 10, 64)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	category := strings.TrimSpace(record[1])
	item := domain.InventoryItem{
		Name:        strings.TrimSpace(record[0]),
		Category:    category,
		Price:       price,
		Quantity:    qty,
		MinStock:    minStock,
		Description: strings.TrimSpace(record[5]),
		TracksStock: policy.TracksStock(category),
	}
	return item, item.Validate()
}
