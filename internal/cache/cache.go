// Package cache keeps the in-memory mirror of inventory, patients and sales
// that list endpoints and reports read from.
package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"clinicpos/m/domain"
)

// Source is the read side of the persistence gateway.
type Source interface {
	ListInventory(ctx context.Context) ([]domain.InventoryItem, error)
	ListPatients(ctx context.Context) ([]domain.Patient, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
}

type Cache struct {
	src Source

	// syncMu orders gateway reloads against each other and against patches,
	// so a snapshot read earlier never replaces one stored later.
	syncMu sync.Mutex

	mu        sync.RWMutex
	inventory []domain.InventoryItem
	patients  []domain.Patient
	sales     []domain.Sale
	loaded    bool
}

func New(src Source) *Cache {
	return &Cache{src: src}
}

// Load reads the three collections concurrently and swaps them in together.
func (c *Cache) Load(ctx context.Context) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	var (
		inventory []domain.InventoryItem
		patients  []domain.Patient
		sales     []domain.Sale
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		inventory, err = c.src.ListInventory(gctx)
		return err
	})
	g.Go(func() (err error) {
		patients, err = c.src.ListPatients(gctx)
		return err
	})
	g.Go(func() (err error) {
		sales, err = c.src.ListSales(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load cache: %w", err)
	}

	c.mu.Lock()
	c.inventory, c.patients, c.sales = inventory, patients, sales
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// RefreshAfterSale re-reads the collections a sale changes.
func (c *Cache) RefreshAfterSale(ctx context.Context) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	var (
		inventory []domain.InventoryItem
		sales     []domain.Sale
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		inventory, err = c.src.ListInventory(gctx)
		return err
	})
	g.Go(func() (err error) {
		sales, err = c.src.ListSales(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh cache: %w", err)
	}

	c.mu.Lock()
	c.inventory, c.sales = inventory, sales
	c.mu.Unlock()
	return nil
}

func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Cache) Inventory() []domain.InventoryItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.InventoryItem(nil), c.inventory...)
}

func (c *Cache) Patients() []domain.Patient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Patient(nil), c.patients...)
}

func (c *Cache) Sales() []domain.Sale {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Sale(nil), c.sales...)
}

func (c *Cache) InventoryItem(id int64) (domain.InventoryItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.inventory {
		if item.ID == id {
			return item, true
		}
	}
	return domain.InventoryItem{}, false
}

func (c *Cache) Patient(id int64) (domain.Patient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.patients {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Patient{}, false
}

// PutInventory replaces the item with the same id or appends it.
func (c *Cache) PutInventory(item domain.InventoryItem) {
	c.lock()
	defer c.unlock()
	for i := range c.inventory {
		if c.inventory[i].ID == item.ID {
			c.inventory[i] = item
			return
		}
	}
	c.inventory = append(c.inventory, item)
}

func (c *Cache) RemoveInventory(id int64) {
	c.lock()
	defer c.unlock()
	kept := c.inventory[:0:0]
	for _, item := range c.inventory {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	c.inventory = kept
}

// PutPatient replaces the patient with the same id or appends it. Cached
// sales pointing at the patient pick up the new name and phone.
func (c *Cache) PutPatient(p domain.Patient) {
	c.lock()
	defer c.unlock()
	c.relinkSales(p.ID, func(s *domain.Sale) {
		ref := p.Ref()
		s.Patient = &ref
	})
	for i := range c.patients {
		if c.patients[i].ID == p.ID {
			c.patients[i] = p
			return
		}
	}
	c.patients = append(c.patients, p)
}

// RemovePatient drops the patient and detaches it from cached sales, matching
// what the gateway does to the stored rows.
func (c *Cache) RemovePatient(id int64) {
	c.lock()
	defer c.unlock()
	kept := c.patients[:0:0]
	for _, p := range c.patients {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.patients = kept

	c.relinkSales(id, func(s *domain.Sale) {
		s.PatientID = nil
		s.Patient = nil
	})
}

// lock takes both mutexes for an in-place patch.
func (c *Cache) lock() {
	c.syncMu.Lock()
	c.mu.Lock()
}

func (c *Cache) unlock() {
	c.mu.Unlock()
	c.syncMu.Unlock()
}

// relinkSales applies fn to every cached sale of patient id. Callers hold mu.
func (c *Cache) relinkSales(id int64, fn func(*domain.Sale)) {
	for i := range c.sales {
		if c.sales[i].PatientID != nil && *c.sales[i].PatientID == id {
			fn(&c.sales[i])
		}
	}
}
