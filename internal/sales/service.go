// Package sales turns a cart into a recorded sale.
package sales

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"clinicpos/m/domain"
)

// Recorder persists a sale with its items and stock decrements as one unit.
// created is false when the reference had already been recorded with the
// same cart.
type Recorder interface {
	RecordSale(ctx context.Context, draft domain.Sale) (sale domain.Sale, created bool, err error)
}

// Refresher re-syncs cached sales and inventory after a sale is recorded.
type Refresher interface {
	RefreshAfterSale(ctx context.Context) error
}

// Checkout is the caller's request to close a cart.
type Checkout struct {
	Reference     string
	PatientID     *int64
	PaymentMethod string
	Lines         []Line
}

type Service struct {
	recorder     Recorder
	refresher    Refresher
	newReference func() string

	tracer       trace.Tracer
	salesCounter metric.Int64Counter
	revenue      metric.Float64Counter
}

func NewService(recorder Recorder, refresher Refresher) *Service {
	meter := otel.Meter("clinicpos/sales")
	salesCounter, err := meter.Int64Counter("pos.sales.recorded", metric.WithDescription("Sales recorded"))
	if err != nil {
		log.Printf("sales counter unavailable: %v", err)
	}
	revenue, err := meter.Float64Counter("pos.sales.revenue", metric.WithDescription("Revenue of recorded sales"))
	if err != nil {
		log.Printf("revenue counter unavailable: %v", err)
	}
	return &Service{
		recorder:     recorder,
		refresher:    refresher,
		newReference: func() string { return uuid.New().String() },
		tracer:       otel.Tracer("clinicpos/sales"),
		salesCounter: salesCounter,
		revenue:      revenue,
	}
}

// Prepare validates a checkout and builds the sale draft without touching storage.
func Prepare(co Checkout) (domain.Sale, error) {
	cart, err := NewCart(co.Lines...)
	if err != nil {
		return domain.Sale{}, err
	}
	if cart.Len() == 0 {
		return domain.Sale{}, domain.ErrEmptyCart
	}
	method, err := domain.NormalizePaymentMethod(co.PaymentMethod)
	if err != nil {
		return domain.Sale{}, err
	}
	if co.PatientID != nil && *co.PatientID <= 0 {
		return domain.Sale{}, domain.NewValidationError("patient_id must be positive")
	}

	lines := cart.Lines()
	items := make([]domain.SaleItem, len(lines))
	for i, l := range lines {
		id := l.ItemID
		items[i] = domain.SaleItem{
			InventoryID: &id,
			Name:        strings.TrimSpace(l.Name),
			Category:    strings.TrimSpace(l.Category),
			Price:       l.Price,
			Quantity:    l.Quantity,
		}
	}
	return domain.Sale{
		Reference:     strings.TrimSpace(co.Reference),
		PatientID:     co.PatientID,
		PaymentMethod: method,
		Total:         cart.Total(),
		Items:         items,
	}, nil
}

// AddSale validates the checkout, records it and refreshes the cache. Nothing
// reaches the recorder when validation fails.
func (s *Service) AddSale(ctx context.Context, co Checkout) (domain.Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sales.add_sale")
	defer span.End()

	draft, err := Prepare(co)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid checkout")
		return domain.Sale{}, err
	}
	if draft.Reference == "" {
		draft.Reference = s.newReference()
	}
	span.SetAttributes(
		attribute.String("sale.reference", draft.Reference),
		attribute.Int("sale.lines", len(draft.Items)),
		attribute.String("sale.payment_method", draft.PaymentMethod),
	)

	sale, created, err := s.recorder.RecordSale(ctx, draft)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record sale failed")
		return domain.Sale{}, fmt.Errorf("record sale: %w", err)
	}
	span.SetAttributes(attribute.Int64("sale.id", sale.ID), attribute.Bool("sale.replayed", !created))

	if created {
		s.count(ctx, sale)
	}

	if s.refresher != nil {
		if err := s.refresher.RefreshAfterSale(ctx); err != nil {
			// the sale is committed; stale cache heals on the next refresh
			log.Printf("sale %d recorded but cache refresh failed: %v", sale.ID, err)
		}
	}
	return sale, nil
}

func (s *Service) count(ctx context.Context, sale domain.Sale) {
	if s.salesCounter != nil {
		s.salesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", sale.PaymentMethod)))
	}
	if s.revenue != nil {
		s.revenue.Add(ctx, sale.Total.InexactFloat64())
	}
}
