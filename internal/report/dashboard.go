package report

import (
	"time"

	"github.com/shopspring/decimal"

	"clinicpos/m/domain"
)

type Dashboard struct {
	DailySales    decimal.Decimal `json:"daily_sales"`
	DailyCount    int             `json:"daily_transactions"`
	TotalPatients int             `json:"total_patients"`
	LowStock      int             `json:"low_stock"`
	RecentSales   []domain.Sale   `json:"recent_sales"`
}

const recentSales = 5

// BuildDashboard sums sales made on now's calendar day in now's location.
// sales is expected newest first, as the store lists them.
func BuildDashboard(sales []domain.Sale, patients []domain.Patient, inventory []domain.InventoryItem, now time.Time) Dashboard {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	dash := Dashboard{
		DailySales:    decimal.Zero,
		TotalPatients: len(patients),
		RecentSales:   []domain.Sale{},
	}
	for _, s := range sales {
		at := s.CreatedAt.In(now.Location())
		if !at.Before(start) && at.Before(end) {
			dash.DailySales = dash.DailySales.Add(s.Total)
			dash.DailyCount++
		}
	}
	for _, item := range inventory {
		if item.IsLowStock() {
			dash.LowStock++
		}
	}
	if len(sales) > recentSales {
		dash.RecentSales = append(dash.RecentSales, sales[:recentSales]...)
	} else {
		dash.RecentSales = append(dash.RecentSales, sales...)
	}
	return dash
}
