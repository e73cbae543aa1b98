package store

import (
	"context"
	"fmt"

	"clinicpos/m/domain"
)

const inventoryColumns = `id, name, category, price, quantity, min_stock, description, tracks_stock, created_at, updated_at`

func (s *Store) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	items := []domain.InventoryItem{}
	if err := s.db.SelectContext(ctx, &items, `SELECT `+inventoryColumns+` FROM inventory ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

func (s *Store) GetInventory(ctx context.Context, id int64) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	if err := s.db.GetContext(ctx, &item, s.q(`SELECT `+inventoryColumns+` FROM inventory WHERE id = ?`), id); err != nil {
		return domain.InventoryItem{}, notFound(err)
	}
	return item, nil
}

func (s *Store) CreateInventory(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	now := s.timestamp()
	item.CreatedAt, item.UpdatedAt = now, now
	err := s.db.QueryRowxContext(ctx, s.q(`INSERT INTO inventory (name, category, price, quantity, min_stock, description, tracks_stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		item.Name, item.Category, item.Price, item.Quantity, item.MinStock, item.Description, item.TracksStock, now, now).Scan(&item.ID)
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("insert inventory: %w", err)
	}
	return item, nil
}

func (s *Store) UpdateInventory(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE inventory SET name = ?, category = ?, price = ?, quantity = ?, min_stock = ?, description = ?, tracks_stock = ?, updated_at = ? WHERE id = ?`),
		item.Name, item.Category, item.Price, item.Quantity, item.MinStock, item.Description, item.TracksStock, s.timestamp(), item.ID)
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("update inventory %d: %w", item.ID, err)
	}
	if err := requireAffected(res); err != nil {
		return domain.InventoryItem{}, err
	}
	return s.GetInventory(ctx, item.ID)
}

func (s *Store) DeleteInventory(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// keep historical lines readable; their snapshot outlives the item
	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE sale_items SET inventory_id = NULL WHERE inventory_id = ?`), id); err != nil {
		return fmt.Errorf("detach sale items from %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM inventory WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete inventory %d: %w", id, err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}
