package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"clinicpos/m/domain"
	"clinicpos/m/internal/report"
	"clinicpos/m/internal/sales"
)

type saleItemRequest struct {
	ItemID   int64            `json:"item_id"`
	Quantity *int64           `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
}

type saleRequest struct {
	Reference     string            `json:"reference"`
	PatientID     *int64            `json:"patient_id"`
	PaymentMethod string            `json:"payment_method"`
	Items         []saleItemRequest `json:"items"`
}

// checkout turns the request into cart lines. Every line carries the quantity
// and the unit price the client captured when the item went into the cart;
// the catalog only supplies the name and category snapshot.
func (h *Handler) checkout(req saleRequest) (sales.Checkout, error) {
	co := sales.Checkout{
		Reference:     req.Reference,
		PatientID:     req.PatientID,
		PaymentMethod: req.PaymentMethod,
	}
	for _, it := range req.Items {
		id := strconv.FormatInt(it.ItemID, 10)
		switch {
		case it.Quantity == nil:
			return sales.Checkout{}, domain.NewValidationError("item " + id + ": quantity is required")
		case *it.Quantity <= 0:
			return sales.Checkout{}, domain.NewValidationError("item " + id + ": quantity must be a positive integer")
		case it.Price == nil:
			return sales.Checkout{}, domain.NewValidationError("item " + id + ": price is required")
		}
		item, ok := h.cache.InventoryItem(it.ItemID)
		if !ok {
			return sales.Checkout{}, domain.NewValidationError("unknown item " + id)
		}
		co.Lines = append(co.Lines, sales.Line{
			ItemID:   it.ItemID,
			Name:     item.Name,
			Category: item.Category,
			Price:    *it.Price,
			Quantity: *it.Quantity,
		})
	}
	return co, nil
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	co, err := h.checkout(req)
	if err != nil {
		respondFailure(w, err)
		return
	}
	sale, err := h.sales.AddSale(r.Context(), co)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sale)
}

// listSales serves the cached history, optionally narrowed by ?range= and
// ?patient_id=.
func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	rng, err := report.ParseDateRange(r.URL.Query().Get("range"))
	if err != nil {
		respondFailure(w, err)
		return
	}
	var patientID int64
	if raw := r.URL.Query().Get("patient_id"); raw != "" {
		if patientID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			respondError(w, http.StatusBadRequest, "invalid patient id")
			return
		}
	}

	out := []domain.Sale{}
	for _, s := range report.FilterSales(h.cache.Sales(), rng.LowerBound(h.now())) {
		if patientID != 0 && (s.PatientID == nil || *s.PatientID != patientID) {
			continue
		}
		out = append(out, s)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	sale, err := h.store.GetSale(r.Context(), id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

// renderReceipt loads the sale and its patient and renders the ticket text.
func (h *Handler) renderReceipt(r *http.Request) (string, error) {
	id, ok := pathID(r)
	if !ok {
		return "", domain.NewValidationError("invalid sale id")
	}
	sale, err := h.store.GetSale(r.Context(), id)
	if err != nil {
		return "", err
	}
	var patient *domain.Patient
	if sale.PatientID != nil {
		if p, ok := h.cache.Patient(*sale.PatientID); ok {
			patient = &p
		} else if p, err := h.store.GetPatient(r.Context(), *sale.PatientID); err == nil {
			patient = &p
		}
	}
	return h.receipts.String(sale, patient)
}

func (h *Handler) saleReceipt(w http.ResponseWriter, r *http.Request) {
	text, err := h.renderReceipt(r)
	if err != nil {
		respondFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

type printRequest struct {
	Printer string `json:"printer"`
}

func (h *Handler) printSale(w http.ResponseWriter, r *http.Request) {
	if h.printer == nil {
		respondError(w, http.StatusServiceUnavailable, "printing is not configured")
		return
	}
	var req printRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	target := strings.TrimSpace(req.Printer)
	if target == "" {
		target = h.defaultPrinter
	}
	if target == "" {
		respondError(w, http.StatusBadRequest, "printer is required")
		return
	}

	text, err := h.renderReceipt(r)
	if err != nil {
		respondFailure(w, err)
		return
	}
	jobID, err := h.printer.Print(r.Context(), target, text)
	if err != nil {
		log.Printf("print receipt on %s: %v", target, err)
		respondError(w, http.StatusBadGateway, "unable to print receipt")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "printed", "job_id": jobID, "printer": target})
}

func (h *Handler) listPrinters(w http.ResponseWriter, r *http.Request) {
	if h.printer == nil {
		respondError(w, http.StatusServiceUnavailable, "printing is not configured")
		return
	}
	names, err := h.printer.Printers(r.Context())
	if err != nil {
		log.Printf("list printers: %v", err)
		respondError(w, http.StatusBadGateway, "unable to reach print service")
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, names)
}
