package lab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotEmpty is returned by Seed when the store already holds patients.
var ErrNotEmpty = errors.New("store is not empty")

// SeedReport counts what Seed created.
type SeedReport struct {
	Patients     int `json:"patients"`
	Appointments int `json:"appointments"`
	Samples      int `json:"samples"`
	Results      int `json:"results"`
	Items        int `json:"items"`
}

type seedSample struct {
	patient    int
	appt       int
	test       string
	kind       SampleType
	technician string
	drawn      string
	status     SampleStatus
}

type seedResult struct {
	sample   int
	date     string
	entries  []ResultEntry
	status   ResultStatus
	reviewer string
}

// Seed loads the front-desk demo data set through the service, so every
// record passes the same validation and workflow rules as live input.
func Seed(ctx context.Context, svc *Service) (SeedReport, error) {
	var rep SeedReport
	existing, err := svc.store.Patients().List(ctx)
	if err != nil {
		return rep, err
	}
	if len(existing) > 0 {
		return rep, ErrNotEmpty
	}

	patients := []Patient{
		{FirstName: "María", LastName: "García Rodríguez", NationalID: "12345678A", BirthDate: MustDate("1980-03-14"), Gender: "female", BloodType: "A+", Phone: "600123456", Email: "maria.garcia@email.com"},
		{FirstName: "Juan", LastName: "Pérez López", NationalID: "87654321B", BirthDate: MustDate("1993-07-02"), Gender: "male", BloodType: "O+", Phone: "600234567", Email: "juan.perez@email.com"},
		{FirstName: "Ana", LastName: "López Martín", NationalID: "11223344C", BirthDate: MustDate("1997-01-25"), Gender: "female", BloodType: "B+", Phone: "600345678", Email: "ana.lopez@email.com"},
		{FirstName: "Carlos", LastName: "Ruiz Sánchez", NationalID: "55667788D", BirthDate: MustDate("1969-10-09"), Gender: "male", BloodType: "AB-", Phone: "600456789", Email: "carlos.ruiz@email.com"},
		{FirstName: "Laura", LastName: "Martínez", NationalID: "99887766E", BirthDate: MustDate("1988-05-30"), Gender: "female", BloodType: "O-", Phone: "600567890", Email: "laura.martinez@email.com"},
	}
	pids := make([]string, len(patients))
	for i, p := range patients {
		out, err := svc.RegisterPatient(ctx, p)
		if err != nil {
			return rep, fmt.Errorf("seed patient %s: %w", p.NationalID, err)
		}
		pids[i] = out.ID
		rep.Patients++
	}

	appts := []struct {
		patient int
		date    string
		time    string
		test    string
		confirm bool
	}{
		{0, "2025-11-20", "09:00", "Hemograma Completo", true},
		{1, "2025-11-20", "10:00", "Glucosa en Sangre", true},
		{2, "2025-11-20", "11:30", "Perfil Lipídico", false},
		{3, "2025-11-21", "08:30", "Examen de Orina", true},
		{4, "2025-11-21", "14:00", "TSH", false},
	}
	aids := make([]string, len(appts))
	for i, a := range appts {
		out, err := svc.ScheduleAppointment(ctx, Appointment{PatientID: pids[a.patient], Date: MustDate(a.date), Time: a.time, TestType: a.test})
		if err != nil {
			return rep, fmt.Errorf("seed appointment %d: %w", i+1, err)
		}
		if a.confirm {
			if _, err := svc.TransitionAppointment(ctx, out.ID, AppointmentConfirmed, "seed"); err != nil {
				return rep, fmt.Errorf("seed appointment %s: %w", out.ID, err)
			}
		}
		aids[i] = out.ID
		rep.Appointments++
	}

	samples := []seedSample{
		{0, 0, "Hemograma Completo", SampleBlood, "Dr. López", "2025-11-20T09:15:00Z", SampleCollected},
		{1, 1, "Glucosa en Sangre", SampleBlood, "Dra. Martínez", "2025-11-20T10:30:00Z", SampleProcessing},
		{2, 2, "Perfil Lipídico", SampleBlood, "", "", SamplePending},
		{3, 3, "Examen de Orina", SampleUrine, "Dr. López", "2025-11-20T08:30:00Z", SampleCollected},
		{4, 4, "TSH", SampleBlood, "Dra. Martínez", "2025-11-19T14:10:00Z", SampleProcessing},
	}
	sids := make([]string, len(samples))
	for i, s := range samples {
		in := Sample{
			PatientID:     pids[s.patient],
			AppointmentID: aids[s.appt],
			TestType:      s.test,
			SampleType:    s.kind,
			Technician:    s.technician,
			Status:        SamplePending,
		}
		if s.drawn != "" {
			drawn, err := time.Parse(time.RFC3339, s.drawn)
			if err != nil {
				return rep, err
			}
			in.Status = SampleCollected
			in.CollectedAt = &drawn
		}
		out, err := svc.RegisterSample(ctx, in)
		if err != nil {
			return rep, fmt.Errorf("seed sample %d: %w", i+1, err)
		}
		if s.status == SampleProcessing {
			if _, err := svc.TransitionSample(ctx, out.ID, SampleProcessing, "seed"); err != nil {
				return rep, fmt.Errorf("seed sample %s: %w", out.ID, err)
			}
		}
		sids[i] = out.ID
		rep.Samples++
	}

	results := []seedResult{
		{0, "2025-11-20", []ResultEntry{
			{Parameter: "Glóbulos Rojos", Value: "4.8", Unit: "mill/mm³", NormalRange: "4.5-5.5"},
			{Parameter: "Glóbulos Blancos", Value: "7.2", Unit: "mil/mm³", NormalRange: "4.0-11.0"},
			{Parameter: "Hemoglobina", Value: "13.9", Unit: "g/dL", NormalRange: "12.0-16.0"},
			{Parameter: "Hematocrito", Value: "41", Unit: "%", NormalRange: "36-46"},
			{Parameter: "Plaquetas", Value: "250", Unit: "mil/mm³", NormalRange: "150-400"},
		}, ResultCompleted, "Dr. López"},
		{1, "2025-11-20", []ResultEntry{
			{Parameter: "Glucosa", Value: "128", Unit: "mg/dL", NormalRange: "70-100"},
		}, ResultInReview, ""},
		{3, "2025-11-20", nil, ResultPending, ""},
	}
	for i, r := range results {
		out, err := svc.RegisterResult(ctx, Result{SampleID: sids[r.sample], ResultDate: MustDate(r.date), Entries: r.entries})
		if err != nil {
			return rep, fmt.Errorf("seed result %d: %w", i+1, err)
		}
		if err := advanceResult(ctx, svc, out.ID, r.status, r.reviewer); err != nil {
			return rep, err
		}
		rep.Results++
	}

	// Completing the last sample opens its result automatically.
	if _, err := svc.TransitionSample(ctx, sids[4], SampleCompleted, "seed"); err != nil {
		return rep, fmt.Errorf("seed sample %s: %w", sids[4], err)
	}
	tsh, err := svc.store.Results().GetBySample(ctx, sids[4])
	if err != nil {
		return rep, fmt.Errorf("seed result for %s: %w", sids[4], err)
	}
	if _, err := svc.RecordEntries(ctx, tsh.ID, []ResultEntry{
		{Parameter: "TSH", Value: "2.1", Unit: "mUI/L", NormalRange: "0.4-4.0"},
	}, ResultDetails{Equipment: "Cobas e411"}); err != nil {
		return rep, fmt.Errorf("seed result %s: %w", tsh.ID, err)
	}
	if err := advanceResult(ctx, svc, tsh.ID, ResultCompleted, "Dra. Martínez"); err != nil {
		return rep, err
	}
	rep.Results++

	items := []struct {
		name     string
		category Category
		stock    int64
		min      int64
		max      int64
		unit     string
		expiry   string
	}{
		{"Tubos de Ensayo (5ml)", CategoryMaterial, 150, 100, 500, "unidades", "2026-12-31"},
		{"Agujas 21G", CategoryMaterial, 45, 50, 200, "unidades", "2026-06-30"},
		{"Reactivo Hemoglobina", CategoryReagent, 25, 30, 100, "frascos", "2025-03-15"},
		{"Guantes Látex (M)", CategoryMaterial, 1200, 500, 2000, "pares", "2027-01-31"},
		{"Solución Salina", CategoryReagent, 80, 50, 150, "litros", "2026-09-30"},
		{"Portaobjetos", CategoryMaterial, 320, 200, 800, "unidades", ""},
		{"Kit Glucosa", CategoryReagent, 18, 20, 80, "kits", "2025-05-20"},
	}
	for _, it := range items {
		in := InventoryItem{
			Name:         it.name,
			Category:     it.category,
			CurrentStock: decimal.NewFromInt(it.stock),
			MinThreshold: decimal.NewFromInt(it.min),
			MaxCapacity:  decimal.NewFromInt(it.max),
			Unit:         it.unit,
		}
		if it.expiry != "" {
			d := MustDate(it.expiry)
			in.ExpiryDate = &d
		}
		if _, err := svc.AddInventoryItem(ctx, in); err != nil {
			return rep, fmt.Errorf("seed item %q: %w", it.name, err)
		}
		rep.Items++
	}
	return rep, nil
}

// advanceResult walks a result forward to status through every intermediate
// state.
func advanceResult(ctx context.Context, svc *Service, id string, status ResultStatus, reviewer string) error {
	path := map[ResultStatus][]ResultStatus{
		ResultPending:   nil,
		ResultInReview:  {ResultInReview},
		ResultCompleted: {ResultInReview, ResultCompleted},
	}[status]
	for _, to := range path {
		if _, err := svc.TransitionResult(ctx, id, to, reviewer, "seed"); err != nil {
			return fmt.Errorf("seed result %s: %w", id, err)
		}
	}
	return nil
}
