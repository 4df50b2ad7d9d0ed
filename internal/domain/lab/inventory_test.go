package lab

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func item(stock, min, max int64) InventoryItem {
	return InventoryItem{
		CurrentStock: decimal.NewFromInt(stock),
		MinThreshold: decimal.NewFromInt(min),
		MaxCapacity:  decimal.NewFromInt(max),
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		item InventoryItem
		want StockStatus
	}{
		{"tubos above min", item(150, 100, 500), StockOptimal},
		{"agujas 45/50", item(45, 50, 200), StockLow},
		{"reactivo 25/30", item(25, 30, 100), StockLow},
		{"kit glucosa 18/20", item(18, 20, 80), StockLow},
		{"exactly min", item(50, 50, 200), StockOptimal},
		{"exactly critical line", item(15, 20, 80), StockLow},
		{"below critical line", item(14, 20, 80), StockCritical},
		{"empty", item(0, 20, 80), StockCritical},
		{"zero min", item(0, 0, 10), StockOptimal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.item); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify_CustomRatio(t *testing.T) {
	th := Thresholds{CriticalRatio: decimal.RequireFromString("0.95"), ExpiryWindow: DefaultThresholds.ExpiryWindow}
	if got := th.Classify(item(18, 20, 80)); got != StockCritical {
		t.Errorf("18/20 under a 0.95 ratio should be critical, got %s", got)
	}
	if got := th.Classify(item(45, 50, 200)); got != StockCritical {
		t.Errorf("45/50 under a 0.95 ratio should be critical, got %s", got)
	}
}

func TestClassify_IgnoresCapacity(t *testing.T) {
	a, b := item(10, 20, 30), item(10, 20, 3000)
	if Classify(a) != Classify(b) {
		t.Error("max capacity must not affect stock status")
	}
}

func withExpiry(d string) InventoryItem {
	it := item(10, 1, 20)
	if d != "" {
		e := MustDate(d)
		it.ExpiryDate = &e
	}
	return it
}

func TestExpiryRisk(t *testing.T) {
	asOf := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		expiry string
		want   ExpiryRisk
	}{
		{"", ExpiryNone},
		{"2025-03-15", ExpiryExpired},
		{"2025-11-19", ExpiryExpired},
		{"2025-11-20", ExpiryUpcoming},
		{"2026-02-17", ExpiryUpcoming},
		{"2026-02-18", ExpiryNone},
		{"2026-12-31", ExpiryNone},
	}
	for _, tt := range tests {
		t.Run(tt.expiry, func(t *testing.T) {
			if got := ExpiryRiskAt(withExpiry(tt.expiry), asOf); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExpiryRisk_CivilDayOfAsOf(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	late := time.Date(2025, 11, 19, 22, 0, 0, 0, loc) // already Nov 20 in UTC
	if got := ExpiryRiskAt(withExpiry("2025-11-19"), late); got != ExpiryUpcoming {
		t.Errorf("an item expiring today is not yet expired, got %s", got)
	}
}

func TestFillRatio(t *testing.T) {
	tests := []struct {
		item InventoryItem
		want string
	}{
		{item(150, 100, 500), "0.3"},
		{item(0, 10, 100), "0"},
		{item(300, 10, 100), "1"},
		{item(5, 0, 0), "0"},
	}
	for _, tt := range tests {
		if got := FillRatio(tt.item); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("FillRatio(%s/%s) = %s, want %s", tt.item.CurrentStock, tt.item.MaxCapacity, got, tt.want)
		}
	}
}

func TestStockLabels(t *testing.T) {
	want := map[StockStatus]string{StockOptimal: "Óptimo", StockLow: "Bajo", StockCritical: "Crítico"}
	for st, label := range want {
		if st.Label() != label {
			t.Errorf("%s: got %q, want %q", st, st.Label(), label)
		}
	}
}
