// Package report aggregates cached sales, patients and inventory into the
// statistics shown on the reports and dashboard screens. Every function here
// is a pure transform of its inputs.
package report

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"clinicpos/m/domain"
)

type DateRange string

const (
	RangeDay     DateRange = "1day"
	RangeWeek    DateRange = "7days"
	RangeMonth   DateRange = "30days"
	RangeQuarter DateRange = "90days"
	RangeAll     DateRange = "all"
)

const topN = 5

var lookbacks = map[DateRange]time.Duration{
	RangeDay:     24 * time.Hour,
	RangeWeek:    7 * 24 * time.Hour,
	RangeMonth:   30 * 24 * time.Hour,
	RangeQuarter: 90 * 24 * time.Hour,
}

// ParseDateRange accepts the range names used by the reports screen plus
// "today" as an alias for the last 24 hours. An empty string means all time.
func ParseDateRange(s string) (DateRange, error) {
	switch r := DateRange(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeAll, nil
	case "today":
		return RangeDay, nil
	case RangeDay, RangeWeek, RangeMonth, RangeQuarter, RangeAll:
		return r, nil
	}
	return "", domain.NewValidationError("unknown date range " + s)
}

// LowerBound returns the earliest timestamp that falls inside r. Unknown
// ranges and RangeAll map to the Unix epoch.
func (r DateRange) LowerBound(now time.Time) time.Time {
	if d, ok := lookbacks[r]; ok {
		return now.Add(-d)
	}
	return time.Unix(0, 0).UTC()
}

type Report struct {
	Range     DateRange      `json:"range"`
	From      time.Time      `json:"from"`
	Sales     SalesStats     `json:"sales_stats"`
	Patients  PatientStats   `json:"patient_stats"`
	Inventory InventoryStats `json:"inventory_stats"`
}

type SalesStats struct {
	TotalRevenue        decimal.Decimal   `json:"total_revenue"`
	TotalTransactions   int               `json:"total_transactions"`
	AverageTransaction  decimal.Decimal   `json:"average_transaction"`
	Categories          []CategoryRevenue `json:"category_stats"`
	TopProducts         []ProductRevenue  `json:"top_products"`
	NewPatientsInPeriod int               `json:"new_patients_in_period"`
}

type CategoryRevenue struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
	Quantity int64           `json:"quantity"`
}

type ProductRevenue struct {
	InventoryID *int64          `json:"inventory_id,omitempty"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Revenue     decimal.Decimal `json:"revenue"`
	Quantity    int64           `json:"quantity"`
}

type PatientStats struct {
	TotalPatients       int              `json:"total_patients"`
	NewPatientsInPeriod int              `json:"new_patients_in_period"`
	TopPatients         []PatientRevenue `json:"top_patients"`
}

type PatientRevenue struct {
	PatientID int64           `json:"patient_id"`
	Name      string          `json:"name"`
	Visits    int             `json:"visits"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type InventoryStats struct {
	TotalItems    int             `json:"total_items"`
	LowStockItems int             `json:"low_stock_items"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Categories    []CategoryStock `json:"category_distribution"`
}

type CategoryStock struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Value    decimal.Decimal `json:"value"`
}

// Build filters sales and patients by the range lower bound and computes the
// three statistic groups. Inventory has no time dimension and is never filtered.
func Build(sales []domain.Sale, patients []domain.Patient, inventory []domain.InventoryItem, r DateRange, now time.Time) Report {
	from := r.LowerBound(now)
	inRange := FilterSales(sales, from)
	newPatients := FilterPatients(patients, from)

	salesStats := ComputeSales(inRange)
	salesStats.NewPatientsInPeriod = len(newPatients)

	patientStats := ComputePatients(patients, inRange)
	patientStats.NewPatientsInPeriod = len(newPatients)

	return Report{
		Range:     r,
		From:      from,
		Sales:     salesStats,
		Patients:  patientStats,
		Inventory: ComputeInventory(inventory),
	}
}

func FilterSales(sales []domain.Sale, from time.Time) []domain.Sale {
	out := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if !s.CreatedAt.Before(from) {
			out = append(out, s)
		}
	}
	return out
}

func FilterPatients(patients []domain.Patient, from time.Time) []domain.Patient {
	out := make([]domain.Patient, 0, len(patients))
	for _, p := range patients {
		if !p.CreatedAt.Before(from) {
			out = append(out, p)
		}
	}
	return out
}

// ComputeSales totals revenue from sale headers and breaks line items down by
// category snapshot and by product.
func ComputeSales(sales []domain.Sale) SalesStats {
	stats := SalesStats{
		TotalRevenue:       decimal.Zero,
		AverageTransaction: decimal.Zero,
		TotalTransactions:  len(sales),
		Categories:         []CategoryRevenue{},
		TopProducts:        []ProductRevenue{},
	}

	categoryIdx := map[string]int{}
	productIdx := map[string]int{}
	for _, sale := range sales {
		stats.TotalRevenue = stats.TotalRevenue.Add(sale.Total)
		for _, item := range sale.Items {
			sub := item.Subtotal()

			i, ok := categoryIdx[item.Category]
			if !ok {
				i = len(stats.Categories)
				categoryIdx[item.Category] = i
				stats.Categories = append(stats.Categories, CategoryRevenue{Category: item.Category, Revenue: decimal.Zero})
			}
			stats.Categories[i].Revenue = stats.Categories[i].Revenue.Add(sub)
			stats.Categories[i].Quantity += item.Quantity

			key := productKey(item)
			j, ok := productIdx[key]
			if !ok {
				j = len(stats.TopProducts)
				productIdx[key] = j
				stats.TopProducts = append(stats.TopProducts, ProductRevenue{
					InventoryID: item.InventoryID,
					Name:        item.Name,
					Price:       item.Price,
					Revenue:     decimal.Zero,
				})
			}
			stats.TopProducts[j].Revenue = stats.TopProducts[j].Revenue.Add(sub)
			stats.TopProducts[j].Quantity += item.Quantity
		}
	}

	if stats.TotalTransactions > 0 {
		stats.AverageTransaction = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.TotalTransactions)))
	}

	sort.SliceStable(stats.TopProducts, func(a, b int) bool {
		return stats.TopProducts[a].Revenue.GreaterThan(stats.TopProducts[b].Revenue)
	})
	if len(stats.TopProducts) > topN {
		stats.TopProducts = stats.TopProducts[:topN]
	}
	return stats
}

// productKey groups by inventory id; lines whose item was deleted fall back
// to the name snapshot.
func productKey(item domain.SaleItem) string {
	if item.InventoryID != nil {
		return "id:" + strconv.FormatInt(*item.InventoryID, 10)
	}
	return "name:" + item.Name
}

// ComputePatients ranks patients by revenue over the given sales. Anonymous
// sales are skipped. Grouping is by patient id; names are looked up for display.
func ComputePatients(patients []domain.Patient, sales []domain.Sale) PatientStats {
	names := make(map[int64]string, len(patients))
	for _, p := range patients {
		names[p.ID] = p.FullName()
	}

	stats := PatientStats{TotalPatients: len(patients), TopPatients: []PatientRevenue{}}
	idx := map[int64]int{}
	for _, sale := range sales {
		if sale.PatientID == nil {
			continue
		}
		id := *sale.PatientID
		i, ok := idx[id]
		if !ok {
			i = len(stats.TopPatients)
			idx[id] = i
			stats.TopPatients = append(stats.TopPatients, PatientRevenue{
				PatientID: id,
				Name:      patientName(id, sale.Patient, names),
				Revenue:   decimal.Zero,
			})
		}
		stats.TopPatients[i].Visits++
		stats.TopPatients[i].Revenue = stats.TopPatients[i].Revenue.Add(sale.Total)
	}

	sort.SliceStable(stats.TopPatients, func(a, b int) bool {
		return stats.TopPatients[a].Revenue.GreaterThan(stats.TopPatients[b].Revenue)
	})
	if len(stats.TopPatients) > topN {
		stats.TopPatients = stats.TopPatients[:topN]
	}
	return stats
}

func patientName(id int64, ref *domain.PatientRef, names map[int64]string) string {
	if ref != nil {
		if n := ref.FullName(); n != "" {
			return n
		}
	}
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return "Patient #" + strconv.FormatInt(id, 10)
}

// ComputeInventory counts items, low-stock items and stock value. Items that
// do not track stock, or carry the unlimited quantity, add no value.
func ComputeInventory(inventory []domain.InventoryItem) InventoryStats {
	stats := InventoryStats{
		TotalItems: len(inventory),
		TotalValue: decimal.Zero,
		Categories: []CategoryStock{},
	}
	idx := map[string]int{}
	for _, item := range inventory {
		if item.IsLowStock() {
			stats.LowStockItems++
		}
		value := item.StockValue()
		stats.TotalValue = stats.TotalValue.Add(value)

		i, ok := idx[item.Category]
		if !ok {
			i = len(stats.Categories)
			idx[item.Category] = i
			stats.Categories = append(stats.Categories, CategoryStock{Category: item.Category, Value: decimal.Zero})
		}
		stats.Categories[i].Count++
		stats.Categories[i].Value = stats.Categories[i].Value.Add(value)
	}
	return stats
}

// LowStock returns the counted items at or below their minimum, lowest
// quantity first.
func LowStock(inventory []domain.InventoryItem) []domain.InventoryItem {
	out := []domain.InventoryItem{}
	for _, item := range inventory {
		if item.IsLowStock() {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Quantity < out[b].Quantity })
	return out
}
