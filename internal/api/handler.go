package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"clinicpos/m/domain"
	"clinicpos/m/internal/cache"
	"clinicpos/m/internal/receipt"
	"clinicpos/m/internal/sales"
	"clinicpos/m/internal/store"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Printer submits rendered receipts to the local print service.
type Printer interface {
	Print(ctx context.Context, printer, content string) (string, error)
	Printers(ctx context.Context) ([]string, error)
}

type Options struct {
	Secret         string
	Policy         domain.CategoryPolicy
	Receipts       *receipt.Renderer
	Printer        Printer
	DefaultPrinter string
	AllowedOrigins []string
	Now            func() time.Time
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	cache  *cache.Cache
	sales  *sales.Service
	secret string
	policy domain.CategoryPolicy

	receipts       *receipt.Renderer
	printer        Printer
	defaultPrinter string
	origins        []string
	now            func() time.Time
}

// New constructs a Handler.
func New(st *store.Store, c *cache.Cache, svc *sales.Service, opts Options) *Handler {
	h := &Handler{
		store:          st,
		cache:          c,
		sales:          svc,
		secret:         opts.Secret,
		policy:         opts.Policy,
		receipts:       opts.Receipts,
		printer:        opts.Printer,
		defaultPrinter: opts.DefaultPrinter,
		origins:        opts.AllowedOrigins,
		now:            opts.Now,
	}
	if h.receipts == nil {
		h.receipts = receipt.New(receipt.Header{ClinicName: "Centre de Santé"})
	}
	if len(h.origins) == 0 {
		h.origins = []string{"*"}
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.listInventory)
			r.Post("/", h.createInventory)
			r.Get("/low-stock", h.lowStock)
			r.Get("/{id}", h.getInventory)
			r.Put("/{id}", h.updateInventory)
			r.Delete("/{id}", h.deleteInventory)
		})

		pr.Route("/patients", func(r chi.Router) {
			r.Get("/", h.listPatients)
			r.Post("/", h.createPatient)
			r.Get("/{id}", h.getPatient)
			r.Put("/{id}", h.updatePatient)
			r.Delete("/{id}", h.deletePatient)
		})

		pr.Route("/sales", func(r chi.Router) {
			r.Post("/", h.createSale)
			r.Get("/", h.listSales)
			r.Get("/{id}", h.getSale)
			r.Get("/{id}/receipt", h.saleReceipt)
			r.Post("/{id}/print", h.printSale)
		})

		pr.Get("/printers", h.listPrinters)

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/", h.report)
			r.Get("/dashboard", h.dashboard)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.cache.Loaded() {
		status = "loading"
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

// Helpers

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps domain errors onto HTTP statuses; anything unrecognised
// is logged and reported as a 500 without leaking details.
func respondFailure(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrDuplicate):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("request failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
