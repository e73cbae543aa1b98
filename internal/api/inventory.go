package api

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"clinicpos/m/domain"
	"clinicpos/m/internal/report"
)

type inventoryRequest struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    *int64          `json:"quantity"`
	MinStock    int64           `json:"min_stock"`
	Description string          `json:"description"`
	TracksStock *bool           `json:"tracks_stock"`
}

// item applies the category policy when tracks_stock is omitted. Untracked
// items without a quantity get the unlimited sentinel.
func (h *Handler) item(req inventoryRequest) domain.InventoryItem {
	item := domain.InventoryItem{
		Name:        strings.TrimSpace(req.Name),
		Category:    strings.TrimSpace(req.Category),
		Price:       req.Price,
		MinStock:    req.MinStock,
		Description: strings.TrimSpace(req.Description),
	}
	if req.TracksStock != nil {
		item.TracksStock = *req.TracksStock
	} else {
		item.TracksStock = h.policy.TracksStock(item.Category)
	}
	switch {
	case req.Quantity != nil:
		item.Quantity = *req.Quantity
	case !item.TracksStock:
		item.Quantity = domain.UnlimitedQuantity
	}
	return item
}

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	items := []domain.InventoryItem{}
	for _, item := range h.cache.Inventory() {
		if category != "" && !strings.EqualFold(item.Category, category) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(item.Name), q) {
			continue
		}
		items = append(items, item)
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, report.LowStock(h.cache.Inventory()))
}

func (h *Handler) getInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}
	if item, ok := h.cache.InventoryItem(id); ok {
		respondJSON(w, http.StatusOK, item)
		return
	}
	item, err := h.store.GetInventory(r.Context(), id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *Handler) createInventory(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req inventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item := h.item(req)
	if err := item.Validate(); err != nil {
		respondFailure(w, err)
		return
	}
	created, err := h.store.CreateInventory(r.Context(), item)
	if err != nil {
		respondFailure(w, err)
		return
	}
	h.cache.PutInventory(created)
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateInventory(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}
	var req inventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item := h.item(req)
	item.ID = id
	if err := item.Validate(); err != nil {
		respondFailure(w, err)
		return
	}
	updated, err := h.store.UpdateInventory(r.Context(), item)
	if err != nil {
		respondFailure(w, err)
		return
	}
	h.cache.PutInventory(updated)
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteInventory(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}
	if err := h.store.DeleteInventory(r.Context(), id); err != nil {
		respondFailure(w, err)
		return
	}
	h.cache.RemoveInventory(id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
