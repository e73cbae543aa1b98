package api

import (
	"net/http"

	"clinicpos/m/domain"
	"clinicpos/m/internal/report"
)

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	rng, err := report.ParseDateRange(r.URL.Query().Get("range"))
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report.Build(h.cache.Sales(), h.cache.Patients(), h.cache.Inventory(), rng, h.now()))
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, report.BuildDashboard(h.cache.Sales(), h.cache.Patients(), h.cache.Inventory(), h.now()))
}
