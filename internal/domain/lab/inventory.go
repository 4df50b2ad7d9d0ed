package lab

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockStatus is the derived stock level of an inventory item.
type StockStatus string

const (
	StockOptimal  StockStatus = "optimal"
	StockLow      StockStatus = "low"
	StockCritical StockStatus = "critical"
)

var stockLabels = map[StockStatus]string{
	StockOptimal:  "Óptimo",
	StockLow:      "Bajo",
	StockCritical: "Crítico",
}

func (s StockStatus) Label() string { return label(stockLabels, s) }

// ExpiryRisk is the derived expiry state of an inventory item.
type ExpiryRisk string

const (
	ExpiryNone     ExpiryRisk = "none"
	ExpiryUpcoming ExpiryRisk = "upcoming"
	ExpiryExpired  ExpiryRisk = "expired"
)

var expiryLabels = map[ExpiryRisk]string{
	ExpiryNone:     "Vigente",
	ExpiryUpcoming: "Próximo a vencer",
	ExpiryExpired:  "Vencido",
}

func (r ExpiryRisk) Label() string { return label(expiryLabels, r) }

// Thresholds parameterize the classification engine.
type Thresholds struct {
	// CriticalRatio is the fraction of the minimum threshold below which
	// stock is critical rather than low.
	CriticalRatio decimal.Decimal
	// ExpiryWindow is how far ahead of the expiry date an item is flagged.
	ExpiryWindow time.Duration
}

// DefaultThresholds flag stock under 75% of its minimum as critical and warn
// 90 days ahead of expiry.
var DefaultThresholds = Thresholds{
	CriticalRatio: decimal.RequireFromString("0.75"),
	ExpiryWindow:  90 * 24 * time.Hour,
}

// windowDays rounds the expiry window down to whole days.
func (t Thresholds) windowDays() int {
	return int(t.ExpiryWindow / (24 * time.Hour))
}

// Classify derives the stock status from the current stock and the minimum
// threshold only.
func (t Thresholds) Classify(item InventoryItem) StockStatus {
	if item.CurrentStock.GreaterThanOrEqual(item.MinThreshold) {
		return StockOptimal
	}
	if item.CurrentStock.LessThan(item.MinThreshold.Mul(t.CriticalRatio)) {
		return StockCritical
	}
	return StockLow
}

// ExpiryRisk compares the item's expiry day with the civil day of asOf in
// asOf's location. Items without an expiry date carry no risk.
func (t Thresholds) ExpiryRisk(item InventoryItem, asOf time.Time) ExpiryRisk {
	if item.ExpiryDate == nil || item.ExpiryDate.IsZero() {
		return ExpiryNone
	}
	today := DateOf(asOf)
	expiry := *item.ExpiryDate
	switch {
	case expiry.Before(today):
		return ExpiryExpired
	case expiry.Before(today.AddDays(t.windowDays())):
		return ExpiryUpcoming
	}
	return ExpiryNone
}

// Classify uses DefaultThresholds.
func Classify(item InventoryItem) StockStatus {
	return DefaultThresholds.Classify(item)
}

// ExpiryRiskAt uses DefaultThresholds.
func ExpiryRiskAt(item InventoryItem, asOf time.Time) ExpiryRisk {
	return DefaultThresholds.ExpiryRisk(item, asOf)
}

var one = decimal.NewFromInt(1)

// FillRatio is current stock over max capacity, clamped to [0,1]. A zero
// capacity yields 0.
func FillRatio(item InventoryItem) decimal.Decimal {
	if !item.MaxCapacity.IsPositive() {
		return decimal.Zero
	}
	r := item.CurrentStock.Div(item.MaxCapacity)
	if r.IsNegative() {
		return decimal.Zero
	}
	if r.GreaterThan(one) {
		return one
	}
	return r
}
