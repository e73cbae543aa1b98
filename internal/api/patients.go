package api

import (
	"net/http"
	"strings"

	"clinicpos/m/domain"
)

type patientRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	BirthDate string `json:"birth_date"`
	Notes     string `json:"notes"`
}

func (req patientRequest) patient() domain.Patient {
	return domain.Patient{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
		Email:     nullIfEmpty(req.Email),
		Address:   nullIfEmpty(req.Address),
		BirthDate: nullIfEmpty(req.BirthDate),
		Notes:     nullIfEmpty(req.Notes),
	}
}

// listPatients filters by a case-insensitive match on name or phone.
func (h *Handler) listPatients(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	patients := []domain.Patient{}
	for _, p := range h.cache.Patients() {
		if q != "" && !strings.Contains(strings.ToLower(p.FullName()), q) && !strings.Contains(p.Phone, q) {
			continue
		}
		patients = append(patients, p)
	}
	respondJSON(w, http.StatusOK, patients)
}

func (h *Handler) getPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid patient id")
		return
	}
	if p, ok := h.cache.Patient(id); ok {
		respondJSON(w, http.StatusOK, p)
		return
	}
	p, err := h.store.GetPatient(r.Context(), id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) createPatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := req.patient()
	if err := p.Validate(); err != nil {
		respondFailure(w, err)
		return
	}
	created, err := h.store.CreatePatient(r.Context(), p)
	if err != nil {
		respondFailure(w, err)
		return
	}
	h.cache.PutPatient(created)
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) updatePatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid patient id")
		return
	}
	var req patientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := req.patient()
	p.ID = id
	if err := p.Validate(); err != nil {
		respondFailure(w, err)
		return
	}
	updated, err := h.store.UpdatePatient(r.Context(), p)
	if err != nil {
		respondFailure(w, err)
		return
	}
	h.cache.PutPatient(updated)
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) deletePatient(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid patient id")
		return
	}
	if err := h.store.DeletePatient(r.Context(), id); err != nil {
		respondFailure(w, err)
		return
	}
	h.cache.RemovePatient(id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
