package printer

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxJobBytes = 1 << 20

type printRequest struct {
	Content     string `json:"content"`
	PrinterName string `json:"printerName"`
}

type printResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobID,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewServer exposes sp as the local print service.
func NewServer(sp Spooler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/print", func(w http.ResponseWriter, r *http.Request) {
		var req printRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJobBytes)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, printResponse{Error: err.Error()})
			return
		}
		if req.Content == "" || strings.TrimSpace(req.PrinterName) == "" {
			writeJSON(w, http.StatusBadRequest, printResponse{Error: "content and printerName are required"})
			return
		}
		jobID, err := sp.Print(r.Context(), req.PrinterName, []byte(req.Content))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, printResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, printResponse{Success: true, JobID: jobID})
	})

	r.Get("/printers", func(w http.ResponseWriter, r *http.Request) {
		names, err := sp.Printers(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, printResponse{Error: err.Error()})
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, struct {
			Success  bool     `json:"success"`
			Printers []string `json:"printers"`
		}{true, names})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
