package lab

import (
	"sort"
	"time"
)

// Snapshot is a consistent read of every collection the alert aggregator
// looks at.
type Snapshot struct {
	Items        []InventoryItem
	Samples      []Sample
	Results      []Result
	Appointments []Appointment
}

// StockAlert flags an item whose stock is low or critical.
type StockAlert struct {
	ItemID       string      `json:"item_id"`
	Name         string      `json:"name"`
	Status       StockStatus `json:"status"`
	CurrentStock string      `json:"current_stock"`
	MinThreshold string      `json:"min_threshold"`
	Unit         string      `json:"unit"`
}

// ExpiryAlert flags an item that has expired or is about to.
type ExpiryAlert struct {
	ItemID     string     `json:"item_id"`
	Name       string     `json:"name"`
	Risk       ExpiryRisk `json:"risk"`
	ExpiryDate Date       `json:"expiry_date"`
}

// ResultAlert flags an abnormal result that has not been completed.
type ResultAlert struct {
	ResultID   string       `json:"result_id"`
	SampleID   string       `json:"sample_id"`
	Barcode    string       `json:"barcode,omitempty"`
	PatientID  string       `json:"patient_id"`
	TestType   string       `json:"test_type"`
	Status     ResultStatus `json:"status"`
	ResultDate Date         `json:"result_date"`
}

// AppointmentAlert flags a pending appointment on or before the reference day.
type AppointmentAlert struct {
	AppointmentID string   `json:"appointment_id"`
	PatientID     string   `json:"patient_id"`
	Date          Date     `json:"date"`
	Time          string   `json:"time"`
	TestType      string   `json:"test_type"`
	Priority      Priority `json:"priority"`
}

// AlertSet groups alerts by category. Every list is non-nil.
type AlertSet struct {
	Stock                   []StockAlert       `json:"stock"`
	Expiry                  []ExpiryAlert      `json:"expiry"`
	AbnormalResults         []ResultAlert      `json:"abnormal_results"`
	UnconfirmedAppointments []AppointmentAlert `json:"unconfirmed_appointments"`
}

// Total is the number of alerts across all categories.
func (a AlertSet) Total() int {
	return len(a.Stock) + len(a.Expiry) + len(a.AbnormalResults) + len(a.UnconfirmedAppointments)
}

// ComputeAlerts uses DefaultThresholds.
func ComputeAlerts(snap Snapshot, asOf time.Time) AlertSet {
	return DefaultThresholds.ComputeAlerts(snap, asOf)
}

// ComputeAlerts derives the alert set for snap as of asOf. It reads nothing
// but its arguments, so equal inputs give equal output.
func (t Thresholds) ComputeAlerts(snap Snapshot, asOf time.Time) AlertSet {
	set := AlertSet{
		Stock:                   []StockAlert{},
		Expiry:                  []ExpiryAlert{},
		AbnormalResults:         []ResultAlert{},
		UnconfirmedAppointments: []AppointmentAlert{},
	}

	for _, it := range snap.Items {
		if st := t.Classify(it); st != StockOptimal {
			set.Stock = append(set.Stock, StockAlert{
				ItemID:       it.ID,
				Name:         it.Name,
				Status:       st,
				CurrentStock: it.CurrentStock.String(),
				MinThreshold: it.MinThreshold.String(),
				Unit:         it.Unit,
			})
		}
		if risk := t.ExpiryRisk(it, asOf); risk != ExpiryNone {
			set.Expiry = append(set.Expiry, ExpiryAlert{
				ItemID:     it.ID,
				Name:       it.Name,
				Risk:       risk,
				ExpiryDate: *it.ExpiryDate,
			})
		}
	}
	sort.SliceStable(set.Stock, func(i, j int) bool {
		a, b := set.Stock[i], set.Stock[j]
		if a.Status != b.Status {
			return a.Status == StockCritical
		}
		return a.ItemID < b.ItemID
	})
	sort.SliceStable(set.Expiry, func(i, j int) bool {
		a, b := set.Expiry[i], set.Expiry[j]
		if a.Risk != b.Risk {
			return a.Risk == ExpiryExpired
		}
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		return a.ItemID < b.ItemID
	})

	barcodes := make(map[string]string, len(snap.Samples))
	for _, s := range snap.Samples {
		barcodes[s.ID] = s.Barcode
	}
	for _, r := range snap.Results {
		if r.Status == ResultCompleted || !EntriesAbnormal(r.Entries) {
			continue
		}
		set.AbnormalResults = append(set.AbnormalResults, ResultAlert{
			ResultID:   r.ID,
			SampleID:   r.SampleID,
			Barcode:    barcodes[r.SampleID],
			PatientID:  r.PatientID,
			TestType:   r.TestType,
			Status:     r.Status,
			ResultDate: r.ResultDate,
		})
	}
	sort.SliceStable(set.AbnormalResults, func(i, j int) bool {
		a, b := set.AbnormalResults[i], set.AbnormalResults[j]
		if !a.ResultDate.Equal(b.ResultDate) {
			return a.ResultDate.Before(b.ResultDate)
		}
		return a.ResultID < b.ResultID
	})

	today := DateOf(asOf)
	for _, a := range snap.Appointments {
		if a.Status != AppointmentPending || a.Date.After(today) {
			continue
		}
		set.UnconfirmedAppointments = append(set.UnconfirmedAppointments, AppointmentAlert{
			AppointmentID: a.ID,
			PatientID:     a.PatientID,
			Date:          a.Date,
			Time:          a.Time,
			TestType:      a.TestType,
			Priority:      a.Priority,
		})
	}
	sort.SliceStable(set.UnconfirmedAppointments, func(i, j int) bool {
		a, b := set.UnconfirmedAppointments[i], set.UnconfirmedAppointments[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.AppointmentID < b.AppointmentID
	})
	return set
}
