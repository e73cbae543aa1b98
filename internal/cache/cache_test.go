package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicpos/m/domain"
)

type fakeSource struct {
	inventory []domain.InventoryItem
	patients  []domain.Patient
	sales     []domain.Sale
	err       error

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeSource) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: map[string]int{}}
}

func (f *fakeSource) ListInventory(context.Context) ([]domain.InventoryItem, error) {
	f.count("inventory")
	return f.inventory, f.err
}

func (f *fakeSource) ListPatients(context.Context) ([]domain.Patient, error) {
	f.count("patients")
	return f.patients, f.err
}

func (f *fakeSource) ListSales(context.Context) ([]domain.Sale, error) {
	f.count("sales")
	return f.sales, f.err
}

func TestLoadAndRefresh(t *testing.T) {
	src := newFakeSource()
	src.inventory = []domain.InventoryItem{{ID: 1, Name: "Pansements", Price: decimal.RequireFromString("2.30"), Quantity: 200, TracksStock: true}}
	src.patients = []domain.Patient{{ID: 7, FirstName: "Sophie", LastName: "Bernard", Phone: "06"}}

	c := New(src)
	require.NoError(t, c.Load(context.Background()))
	assert.True(t, c.Loaded())
	assert.Len(t, c.Inventory(), 1)
	assert.Len(t, c.Patients(), 1)
	assert.Empty(t, c.Sales())

	src.inventory[0].Quantity = 190
	src.sales = []domain.Sale{{ID: 1, Total: decimal.NewFromInt(23)}}
	require.NoError(t, c.RefreshAfterSale(context.Background()))

	item, ok := c.InventoryItem(1)
	require.True(t, ok)
	assert.Equal(t, int64(190), item.Quantity)
	assert.Len(t, c.Sales(), 1)
	assert.Equal(t, 1, src.calls["patients"], "a sale refresh leaves patients alone")
}

func TestLoadFailureKeepsPreviousState(t *testing.T) {
	src := newFakeSource()
	src.patients = []domain.Patient{{ID: 1}}
	c := New(src)
	require.NoError(t, c.Load(context.Background()))

	src.err = errors.New("connection refused")
	src.patients = nil
	err := c.Load(context.Background())
	assert.Error(t, err)
	assert.Len(t, c.Patients(), 1)
}

func TestOptimisticPatches(t *testing.T) {
	c := New(newFakeSource())

	c.PutInventory(domain.InventoryItem{ID: 1, Name: "Thermomètre"})
	c.PutInventory(domain.InventoryItem{ID: 2, Name: "Seringues"})
	c.PutInventory(domain.InventoryItem{ID: 1, Name: "Thermomètre digital"})
	items := c.Inventory()
	require.Len(t, items, 2)
	assert.Equal(t, "Thermomètre digital", items[0].Name)

	c.RemoveInventory(1)
	assert.Len(t, c.Inventory(), 1)

	pid := int64(3)
	c.PutPatient(domain.Patient{ID: pid, FirstName: "Marie"})
	c.mu.Lock()
	c.sales = []domain.Sale{{ID: 10, PatientID: &pid, Patient: &domain.PatientRef{ID: pid}}}
	c.mu.Unlock()

	c.RemovePatient(pid)
	assert.Empty(t, c.Patients())
	sales := c.Sales()
	require.Len(t, sales, 1)
	assert.Nil(t, sales[0].PatientID)
	assert.Nil(t, sales[0].Patient)
}

func TestReadersGetCopies(t *testing.T) {
	c := New(newFakeSource())
	c.PutInventory(domain.InventoryItem{ID: 1, Name: "Original"})

	items := c.Inventory()
	items[0].Name = "Mutated"

	item, _ := c.InventoryItem(1)
	assert.Equal(t, "Original", item.Name)
}

func TestPutPatientRenamesCachedSales(t *testing.T) {
	c := New(newFakeSource())
	pid := int64(4)
	c.mu.Lock()
	c.sales = []domain.Sale{{ID: 1, PatientID: &pid, Patient: &domain.PatientRef{ID: pid, FirstName: "Mari"}}, {ID: 2}}
	c.mu.Unlock()

	c.PutPatient(domain.Patient{ID: pid, FirstName: "Marie", LastName: "Dubois"})

	sales := c.Sales()
	require.NotNil(t, sales[0].Patient)
	assert.Equal(t, "Marie Dubois", sales[0].Patient.FullName())
	assert.Nil(t, sales[1].Patient)
}

// gatedSource holds the first ListSales call until release is closed and then
// returns the sales it saw on entry.
type gatedSource struct {
	*fakeSource
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) ListSales(ctx context.Context) ([]domain.Sale, error) {
	g.mu.Lock()
	snapshot := append([]domain.Sale(nil), g.sales...)
	g.mu.Unlock()

	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return snapshot, nil
}

func TestSlowRefreshDoesNotOverwriteNewerSnapshot(t *testing.T) {
	src := &gatedSource{fakeSource: newFakeSource(), entered: make(chan struct{}), release: make(chan struct{})}
	src.sales = []domain.Sale{{ID: 1}}
	c := New(src)

	first := make(chan error, 1)
	go func() { first <- c.RefreshAfterSale(context.Background()) }()
	<-src.entered

	src.mu.Lock()
	src.sales = []domain.Sale{{ID: 2}, {ID: 1}}
	src.mu.Unlock()

	second := make(chan error, 1)
	go func() { second <- c.RefreshAfterSale(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(src.release)

	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.Len(t, c.Sales(), 2)
}

func TestPatchDuringRefreshSurvives(t *testing.T) {
	src := &gatedSource{fakeSource: newFakeSource(), entered: make(chan struct{}), release: make(chan struct{})}
	src.inventory = []domain.InventoryItem{{ID: 1, Name: "Gants", Quantity: 50, TracksStock: true}}
	c := New(src)

	done := make(chan error, 1)
	go func() { done <- c.RefreshAfterSale(context.Background()) }()
	<-src.entered

	patched := make(chan struct{})
	go func() {
		c.PutInventory(domain.InventoryItem{ID: 3, Name: "Seringues", Quantity: 10, TracksStock: true})
		close(patched)
	}()
	time.Sleep(20 * time.Millisecond)
	close(src.release)

	require.NoError(t, <-done)
	<-patched
	_, ok := c.InventoryItem(3)
	assert.True(t, ok)
}
