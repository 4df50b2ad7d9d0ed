package lab

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func stockroomItems() []InventoryItem {
	rows := []struct {
		id, name        string
		stock, min, max int64
		expiry          string
	}{
		{"INV001", "Tubos de Ensayo (5ml)", 150, 100, 500, "2026-12-31"},
		{"INV002", "Agujas 21G", 45, 50, 200, "2026-06-30"},
		{"INV003", "Reactivo Hemoglobina", 25, 30, 100, "2025-03-15"},
		{"INV004", "Guantes Látex (M)", 1200, 500, 2000, "2027-01-31"},
		{"INV005", "Solución Salina", 80, 50, 150, "2026-09-30"},
		{"INV006", "Portaobjetos", 320, 200, 800, ""},
		{"INV007", "Kit Glucosa", 10, 20, 80, "2025-05-20"},
	}
	out := make([]InventoryItem, len(rows))
	for i, r := range rows {
		it := item(r.stock, r.min, r.max)
		it.ID, it.Name, it.Unit = r.id, r.name, "u"
		if r.expiry != "" {
			d := MustDate(r.expiry)
			it.ExpiryDate = &d
		}
		out[i] = it
	}
	return out
}

func TestComputeAlerts_Inventory(t *testing.T) {
	asOf := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)
	set := ComputeAlerts(Snapshot{Items: stockroomItems()}, asOf)

	var stock []string
	for _, a := range set.Stock {
		stock = append(stock, a.ItemID+":"+string(a.Status))
	}
	wantStock := []string{"INV007:critical", "INV002:low", "INV003:low"}
	if !reflect.DeepEqual(stock, wantStock) {
		t.Errorf("stock alerts = %v, want %v", stock, wantStock)
	}

	var expiry []string
	for _, a := range set.Expiry {
		expiry = append(expiry, a.ItemID+":"+string(a.Risk))
	}
	wantExpiry := []string{"INV003:expired", "INV007:expired"}
	if !reflect.DeepEqual(expiry, wantExpiry) {
		t.Errorf("expiry alerts = %v, want %v", expiry, wantExpiry)
	}
	if set.Stock[0].CurrentStock != "10" || set.Stock[0].MinThreshold != "20" {
		t.Errorf("unexpected quantities %+v", set.Stock[0])
	}
}

func TestComputeAlerts_UpcomingAfterExpired(t *testing.T) {
	items := stockroomItems()
	asOf := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	set := ComputeAlerts(Snapshot{Items: items}, asOf)
	var got []string
	for _, a := range set.Expiry {
		got = append(got, a.ItemID+":"+string(a.Risk))
	}
	want := []string{"INV003:expired", "INV007:expired", "INV002:upcoming"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expiry alerts = %v, want %v", got, want)
	}
}

func TestComputeAlerts_AbnormalResults(t *testing.T) {
	glucose := []ResultEntry{{Parameter: "Glucosa", Value: "128", NormalRange: "70-100"}}
	normal := []ResultEntry{{Parameter: "TSH", Value: "2.1", NormalRange: "0.4-4.0"}}
	snap := Snapshot{
		Samples: []Sample{{ID: "M002", Barcode: "7890000000024"}},
		Results: []Result{
			{ID: "R003", SampleID: "M003", Status: ResultPending, ResultDate: MustDate("2025-11-20"), Entries: glucose},
			{ID: "R002", SampleID: "M002", Status: ResultInReview, ResultDate: MustDate("2025-11-20"), Entries: glucose},
			{ID: "R001", SampleID: "M001", Status: ResultCompleted, ResultDate: MustDate("2025-11-19"), Entries: glucose},
			{ID: "R004", SampleID: "M005", Status: ResultInReview, ResultDate: MustDate("2025-11-18"), Entries: normal},
			{ID: "R005", SampleID: "M006", Status: ResultPending, ResultDate: MustDate("2025-11-18"), Entries: glucose, Abnormal: false},
		},
	}
	set := ComputeAlerts(snap, time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC))

	var ids []string
	for _, a := range set.AbnormalResults {
		ids = append(ids, a.ResultID)
	}
	want := []string{"R005", "R002", "R003"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("abnormal results = %v, want %v", ids, want)
	}
	if set.AbnormalResults[1].Barcode != "7890000000024" {
		t.Errorf("expected barcode to be joined from samples, got %q", set.AbnormalResults[1].Barcode)
	}
}

func TestComputeAlerts_UnconfirmedAppointments(t *testing.T) {
	snap := Snapshot{Appointments: []Appointment{
		{ID: "C005", Date: MustDate("2025-11-21"), Time: "14:00", Status: AppointmentPending},
		{ID: "C003", Date: MustDate("2025-11-20"), Time: "11:30", Status: AppointmentPending},
		{ID: "C006", Date: MustDate("2025-11-19"), Time: "16:00", Status: AppointmentPending},
		{ID: "C001", Date: MustDate("2025-11-20"), Time: "09:00", Status: AppointmentConfirmed},
		{ID: "C007", Date: MustDate("2025-11-20"), Time: "08:00", Status: AppointmentCancelled},
	}}
	set := ComputeAlerts(snap, time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC))
	var ids []string
	for _, a := range set.UnconfirmedAppointments {
		ids = append(ids, a.AppointmentID)
	}
	want := []string{"C006", "C003"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("unconfirmed = %v, want %v", ids, want)
	}
}

func TestComputeAlerts_EmptyListsNotNil(t *testing.T) {
	set := ComputeAlerts(Snapshot{}, time.Now())
	if set.Stock == nil || set.Expiry == nil || set.AbnormalResults == nil || set.UnconfirmedAppointments == nil {
		t.Error("alert lists must be non-nil")
	}
	if set.Total() != 0 {
		t.Errorf("expected no alerts, got %d", set.Total())
	}
}

func TestComputeAlerts_Deterministic(t *testing.T) {
	asOf := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	items := stockroomItems()
	a := ComputeAlerts(Snapshot{Items: items}, asOf)
	b := ComputeAlerts(Snapshot{Items: items}, asOf)
	if !reflect.DeepEqual(a, b) {
		t.Error("equal inputs must give equal output")
	}
}

func TestComputeAlerts_ThresholdsRespected(t *testing.T) {
	th := Thresholds{CriticalRatio: decimal.RequireFromString("0.95"), ExpiryWindow: 0}
	set := th.ComputeAlerts(Snapshot{Items: stockroomItems()}, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if len(set.Expiry) != 0 {
		t.Errorf("a zero window flags nothing before expiry, got %v", set.Expiry)
	}
	for _, a := range set.Stock {
		if a.Status != StockCritical {
			t.Errorf("%s: expected critical under 0.95, got %s", a.ItemID, a.Status)
		}
	}
}
