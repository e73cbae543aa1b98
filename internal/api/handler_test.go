package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicpos/m/domain"
	"clinicpos/m/internal/cache"
	"clinicpos/m/internal/database"
	"clinicpos/m/internal/migrations"
	"clinicpos/m/internal/receipt"
	"clinicpos/m/internal/report"
	"clinicpos/m/internal/sales"
	"clinicpos/m/internal/store"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type fakePrinter struct {
	printer string
	content string
}

func (f *fakePrinter) Print(ctx context.Context, printer, content string) (string, error) {
	f.printer, f.content = printer, content
	return printer + "-7", nil
}

func (f *fakePrinter) Printers(ctx context.Context) ([]string, error) {
	return []string{"EPSON"}, nil
}

type testServer struct {
	t       *testing.T
	router  http.Handler
	printer *fakePrinter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(context.Background(), db))

	clock := func() time.Time { return testNow }
	st := store.New(db, store.WithClock(clock))
	c := cache.New(st)
	require.NoError(t, c.Load(context.Background()))

	fp := &fakePrinter{}
	h := New(st, c, sales.NewService(st, c), Options{
		Secret:         "test-secret",
		Policy:         domain.NewCategoryPolicy(domain.DefaultServiceCategories...),
		Receipts:       receipt.New(receipt.Header{ClinicName: "Centre de Santé"}),
		Printer:        fp,
		DefaultPrinter: "EPSON",
		Now:            clock,
	})
	return &testServer{t: t, router: h.Router(), printer: fp}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

// bootstrap registers the first account (always admin) and a staff account.
func (s *testServer) bootstrap() (admin, staff string) {
	rec := s.do(http.MethodPost, "/auth/register", "", map[string]string{"name": "Aminata", "email": "admin@clinic.test", "password": "pw-admin"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var auth authResponse
	decode(s.t, rec, &auth)
	require.Equal(s.t, domain.RoleAdmin, auth.User.Role)
	assert.Empty(s.t, auth.User.Password)

	rec = s.do(http.MethodPost, "/auth/register", auth.Token, map[string]string{"name": "Ousmane", "email": "staff@clinic.test", "password": "pw-staff", "role": "staff"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "STAFF@clinic.test", "password": "pw-staff"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var staffAuth authResponse
	decode(s.t, rec, &staffAuth)
	return auth.Token, staffAuth.Token
}

func (s *testServer) createItem(token string, body map[string]interface{}) domain.InventoryItem {
	rec := s.do(http.MethodPost, "/inventory", token, body)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var item domain.InventoryItem
	decode(s.t, rec, &item)
	return item
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	admin, staff := s.bootstrap()

	rec := s.do(http.MethodPost, "/auth/register", "", map[string]string{"name": "X", "email": "x@clinic.test", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/auth/register", staff, map[string]string{"name": "X", "email": "x@clinic.test", "password": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/auth/register", admin, map[string]string{"name": "Dup", "email": "staff@clinic.test", "password": "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "staff@clinic.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/auth/reset-password", staff, map[string]string{"new_password": "changed"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "staff@clinic.test", "password": "changed"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/inventory", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodGet, "/inventory", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInventoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin, staff := s.bootstrap()

	consult := s.createItem(admin, map[string]interface{}{"name": "Consultation Générale", "category": "Consultations", "price": 45})
	assert.False(t, consult.TracksStock)
	assert.Equal(t, domain.UnlimitedQuantity, consult.Quantity)

	thermo := s.createItem(admin, map[string]interface{}{"name": "Thermomètre", "category": "Matériel", "price": "12.00", "quantity": 4, "min_stock": 5})
	assert.True(t, thermo.TracksStock)

	rec := s.do(http.MethodPost, "/inventory", staff, map[string]interface{}{"name": "X", "category": "Matériel", "price": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/inventory", admin, map[string]interface{}{"name": "", "category": "Matériel", "price": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/inventory", admin, map[string]interface{}{"name": "X", "category": "Matériel", "price": 1, "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var items []domain.InventoryItem
	rec = s.do(http.MethodGet, "/inventory?q=thermo", staff, nil)
	decode(t, rec, &items)
	require.Len(t, items, 1)

	rec = s.do(http.MethodGet, "/inventory/low-stock", staff, nil)
	decode(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, thermo.ID, items[0].ID)

	rec = s.do(http.MethodPut, "/inventory/"+strconv.FormatInt(thermo.ID, 10), admin, map[string]interface{}{"name": "Thermomètre digital", "category": "Matériel", "price": 15, "quantity": 30, "min_stock": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got domain.InventoryItem
	rec = s.do(http.MethodGet, "/inventory/"+strconv.FormatInt(thermo.ID, 10), staff, nil)
	decode(t, rec, &got)
	assert.Equal(t, "Thermomètre digital", got.Name)
	assert.Equal(t, int64(30), got.Quantity)

	rec = s.do(http.MethodDelete, "/inventory/"+strconv.FormatInt(thermo.ID, 10), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/inventory/"+strconv.FormatInt(thermo.ID, 10), staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodGet, "/inventory/abc", staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatientEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin, staff := s.bootstrap()

	rec := s.do(http.MethodPost, "/patients", staff, map[string]string{"first_name": "Marie", "last_name": "Dubois", "phone": "770000000", "birth_date": "1990-06-02"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p domain.Patient
	decode(t, rec, &p)
	require.NotNil(t, p.BirthDate)
	assert.Nil(t, p.Email)

	rec = s.do(http.MethodPost, "/patients", staff, map[string]string{"first_name": "Jean", "last_name": "Martin", "phone": "1", "birth_date": "02/06/1990"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/patients/" + strconv.FormatInt(p.ID, 10)
	rec = s.do(http.MethodPut, path, staff, map[string]string{"first_name": "Marie", "last_name": "Dubois-Ndiaye", "phone": "770000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list []domain.Patient
	rec = s.do(http.MethodGet, "/patients?q=ndiaye", staff, nil)
	decode(t, rec, &list)
	require.Len(t, list, 1)

	rec = s.do(http.MethodDelete, path, staff, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, path, staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaleLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin, staff := s.bootstrap()

	para := s.createItem(admin, map[string]interface{}{"name": "Paracetamol", "category": "Médicaments", "price": "3.50", "quantity": 150, "min_stock": 20})
	consult := s.createItem(admin, map[string]interface{}{"name": "Consultation Générale", "category": "Consultations", "price": 45})

	rec := s.do(http.MethodPost, "/patients", staff, map[string]string{"first_name": "Marie", "last_name": "Dubois", "phone": "770000000", "birth_date": "1990-06-02"})
	var patient domain.Patient
	decode(t, rec, &patient)

	rec = s.do(http.MethodPost, "/sales", staff, map[string]interface{}{
		"patient_id": patient.ID,
		"items": []map[string]interface{}{
			{"item_id": para.ID, "quantity": 2, "price": "3.50"},
			{"item_id": consult.ID, "quantity": 1, "price": 45},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sale domain.Sale
	decode(t, rec, &sale)
	assert.Equal(t, "52.00", sale.Total.StringFixed(2))
	assert.Equal(t, domain.PaymentCash, sale.PaymentMethod)
	assert.NotEmpty(t, sale.Reference)
	require.Len(t, sale.Items, 2)

	var item domain.InventoryItem
	rec = s.do(http.MethodGet, "/inventory/"+strconv.FormatInt(para.ID, 10), staff, nil)
	decode(t, rec, &item)
	assert.Equal(t, int64(148), item.Quantity)
	rec = s.do(http.MethodGet, "/inventory/"+strconv.FormatInt(consult.ID, 10), staff, nil)
	decode(t, rec, &item)
	assert.Equal(t, domain.UnlimitedQuantity, item.Quantity)

	var list []domain.Sale
	rec = s.do(http.MethodGet, "/sales?patient_id="+strconv.FormatInt(patient.ID, 10), staff, nil)
	decode(t, rec, &list)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Patient)
	assert.Equal(t, "Marie Dubois", list[0].Patient.FullName())

	salePath := "/sales/" + strconv.FormatInt(sale.ID, 10)
	rec = s.do(http.MethodGet, salePath+"/receipt", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "Âge: 33 ans")
	assert.Contains(t, rec.Body.String(), "52.00 XOF")

	rec = s.do(http.MethodPost, salePath+"/print", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "EPSON", s.printer.printer)
	assert.Contains(t, s.printer.content, "Reçu #"+strconv.FormatInt(sale.ID, 10))

	rec = s.do(http.MethodGet, "/sales/999", staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaleRejections(t *testing.T) {
	s := newTestServer(t)
	admin, staff := s.bootstrap()
	thermo := s.createItem(admin, map[string]interface{}{"name": "Thermomètre", "category": "Matériel", "price": 12, "quantity": 1})

	rec := s.do(http.MethodPost, "/sales", staff, map[string]interface{}{"items": []map[string]interface{}{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/sales", staff, map[string]interface{}{"items": []map[string]interface{}{{"item_id": thermo.ID, "quantity": -1, "price": 12}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/sales", staff, map[string]interface{}{"items": []map[string]interface{}{{"item_id": 4242, "quantity": 1, "price": 12}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/sales", staff, map[string]interface{}{"payment_method": "barter", "items": []map[string]interface{}{{"item_id": thermo.ID, "quantity": 1, "price": 12}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/sales", staff, map[string]interface{}{"items": []map[string]interface{}{{"item_id": thermo.ID, "quantity": 3, "price": 12}}})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/sales", staff, map[string]interface{}{"patient_id": 77, "items": []map[string]interface{}{{"item_id": thermo.ID, "quantity": 1, "price": 12}}})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	var item domain.InventoryItem
	rec = s.do(http.MethodGet, "/inventory/"+strconv.FormatInt(thermo.ID, 10), staff, nil)
	decode(t, rec, &item)
	assert.Equal(t, int64(1), item.Quantity)

	var list []domain.Sale
	rec = s.do(http.MethodGet, "/sales", staff, nil)
	decode(t, rec, &list)
	assert.Empty(t, list)
}

func TestSaleRetryWithSameReference(t *testing.T) {
	s := newTestServer(t)
	admin, staff := s.bootstrap()
	para := s.createItem(admin, map[string]interface{}{"name": "Paracetamol", "category": "Médicaments", "price": "3.50", "quantity": 10})

	body := map[string]interface{}{"reference": "till-1-0001", "items": []map[string]interface{}{{"item_id": para.ID, "quantity": 2, "price": "3.50"}}}
	first := s.do(http.MethodPost, "/sales", staff, body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := s.do(http.MethodPost, "/sales", staff, body)
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())

	var a, b domain.Sale
	decode(t, first, &a)
	decode(t, second, &b)
	assert.Equal(t, a.ID, b.ID)

	body["items"] = []map[string]interface{}{{"item_id": para.ID, "quantity": 5, "price": "3.50"}}
	reused := s.do(http.MethodPost, "/sales", staff, body)
	assert.Equal(t, http.StatusConflict, reused.Code, reused.Body.String())

	var item domain.InventoryItem
	rec := s.do(http.MethodGet, "/inventory/"+strconv.FormatInt(para.ID, 10), staff, nil)
	decode(t, rec, &item)
	assert.Equal(t, int64(8), item.Quantity)
}

func TestSaleRejectsIncompleteLines(t *testing.T) {
	s := newTestServer(t)
	admin, staff := s.bootstrap()
	para := s.createItem(admin, map[string]interface{}{"name": "Paracetamol", "category": "Médicaments", "price": "3.50", "quantity": 150})
	gants := s.createItem(admin, map[string]interface{}{"name": "Gants", "category": "Matériel", "price": "2.00", "quantity": 50})

	cases := map[string]map[string]interface{}{
		"missing quantity": {"item_id": gants.ID, "price": "2.00"},
		"zero quantity":    {"item_id": gants.ID, "quantity": 0, "price": "2.00"},
		"missing price":    {"item_id": gants.ID, "quantity": 1},
	}
	for name, incomplete := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/sales", staff, map[string]interface{}{
				"items": []map[string]interface{}{
					{"item_id": para.ID, "quantity": 2, "price": "3.50"},
					incomplete,
				},
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	for _, it := range []domain.InventoryItem{para, gants} {
		var item domain.InventoryItem
		rec := s.do(http.MethodGet, "/inventory/"+strconv.FormatInt(it.ID, 10), staff, nil)
		decode(t, rec, &item)
		assert.Equal(t, it.Quantity, item.Quantity)
	}

	var list []domain.Sale
	rec := s.do(http.MethodGet, "/sales", staff, nil)
	decode(t, rec, &list)
	assert.Empty(t, list)
}

func TestReports(t *testing.T) {
	s := newTestServer(t)
	admin, staff := s.bootstrap()
	consult := s.createItem(admin, map[string]interface{}{"name": "Consultation Générale", "category": "Consultations", "price": 45})
	special := s.createItem(admin, map[string]interface{}{"name": "Consultation Spécialisée", "category": "Consultations", "price": 65})

	rec := s.do(http.MethodPost, "/patients", staff, map[string]string{"first_name": "Marie", "last_name": "Dubois", "phone": "770000000"})
	var patient domain.Patient
	decode(t, rec, &patient)

	for _, it := range []domain.InventoryItem{consult, special} {
		rec = s.do(http.MethodPost, "/sales", staff, map[string]interface{}{"patient_id": patient.ID, "items": []map[string]interface{}{{"item_id": it.ID, "quantity": 1, "price": it.Price}}})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/reports?range=all", staff, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/reports?range=fortnight", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/reports?range=7days", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rep report.Report
	decode(t, rec, &rep)
	assert.Equal(t, "110.00", rep.Sales.TotalRevenue.StringFixed(2))
	assert.Equal(t, 2, rep.Sales.TotalTransactions)
	assert.Equal(t, "55.00", rep.Sales.AverageTransaction.StringFixed(2))
	require.Len(t, rep.Patients.TopPatients, 1)
	assert.Equal(t, 2, rep.Patients.TopPatients[0].Visits)
	assert.Equal(t, "Marie Dubois", rep.Patients.TopPatients[0].Name)
	assert.Equal(t, 2, rep.Inventory.TotalItems)
	assert.True(t, rep.Inventory.TotalValue.IsZero())

	rec = s.do(http.MethodGet, "/reports/dashboard", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash report.Dashboard
	decode(t, rec, &dash)
	assert.Equal(t, "110.00", dash.DailySales.StringFixed(2))
	assert.Equal(t, 1, dash.TotalPatients)
	assert.Len(t, dash.RecentSales, 2)
}

func TestPrinters(t *testing.T) {
	s := newTestServer(t)
	_, staff := s.bootstrap()

	rec := s.do(http.MethodGet, "/printers", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["EPSON"]`, rec.Body.String())
}

func TestConcurrentFirstRegistrationsYieldOneAdmin(t *testing.T) {
	s := newTestServer(t)

	const callers = 4
	codes := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		body, err := json.Marshal(map[string]string{"name": "Admin", "email": "admin" + strconv.Itoa(i) + "@clinic.test", "password": "pw"})
		require.NoError(t, err)
		wg.Add(1)
		go func(i int, body []byte) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i, body)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
			continue
		}
		assert.Equal(t, http.StatusUnauthorized, code)
	}
	assert.Equal(t, 1, created)
}
