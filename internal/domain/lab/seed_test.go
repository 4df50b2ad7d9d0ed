package lab

import (
	"context"
	"testing"
)

func TestSeed_Identifiers(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := Seed(ctx, svc); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		result, sample string
		status         ResultStatus
		abnormal       bool
	}{
		{"R001", "M001", ResultCompleted, false},
		{"R002", "M002", ResultInReview, true},
		{"R003", "M004", ResultPending, false},
		{"R004", "M005", ResultCompleted, false},
	}
	for _, tt := range tests {
		r, err := svc.GetResult(ctx, tt.result)
		if err != nil {
			t.Fatalf("%s: %v", tt.result, err)
		}
		if r.SampleID != tt.sample || r.Status != tt.status || r.Abnormal != tt.abnormal {
			t.Errorf("%s: got sample=%s status=%s abnormal=%v", tt.result, r.SampleID, r.Status, r.Abnormal)
		}
	}

	m5, err := svc.GetSample(ctx, "M005")
	if err != nil {
		t.Fatalf("M005: %v", err)
	}
	if m5.Status != SampleCompleted || m5.Barcode != defaultBarcode(t, 5) {
		t.Errorf("unexpected M005 %+v", m5)
	}

	noExpiry, err := svc.GetInventoryItem(ctx, "INV006")
	if err != nil {
		t.Fatalf("INV006: %v", err)
	}
	if noExpiry.ExpiryDate != nil {
		t.Errorf("INV006 should have no expiry date, got %s", noExpiry.ExpiryDate)
	}
}
