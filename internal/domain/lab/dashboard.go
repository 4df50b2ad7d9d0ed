package lab

import (
	"context"
	"sort"
	"time"
)

// DashboardCounters are the front-desk summary figures.
type DashboardCounters struct {
	AsOf                Date `json:"as_of"`
	PatientsToday       int  `json:"patients_today"`
	AppointmentsToday   int  `json:"appointments_today"`
	SamplesPending      int  `json:"samples_pending"`
	ResultsReady        int  `json:"results_ready"`
	ResultsAbnormalOpen int  `json:"results_abnormal_open"`
	AlertsTotal         int  `json:"alerts_total"`
}

// Dashboard counts patients registered on the civil day of asOf, the day's
// open appointments, pending samples and completed results.
func (s *Service) Dashboard(ctx context.Context, asOf time.Time) (DashboardCounters, error) {
	today := DateOf(asOf)
	out := DashboardCounters{AsOf: today}

	patients, err := s.store.Patients().List(ctx)
	if err != nil {
		return out, err
	}
	for _, p := range patients {
		if DateOf(p.CreatedAt.In(asOf.Location())).Equal(today) {
			out.PatientsToday++
		}
	}

	alerts, err := s.Alerts(ctx, asOf)
	if err != nil {
		return out, err
	}
	out.AlertsTotal = alerts.Total()
	out.ResultsAbnormalOpen = len(alerts.AbnormalResults)

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return out, err
	}
	for _, a := range snap.Appointments {
		if a.Date.Equal(today) && (a.Status == AppointmentPending || a.Status == AppointmentConfirmed) {
			out.AppointmentsToday++
		}
	}
	for _, smp := range snap.Samples {
		if smp.Status == SamplePending && !smp.Voided {
			out.SamplesPending++
		}
	}
	for _, r := range snap.Results {
		if r.Status == ResultCompleted {
			out.ResultsReady++
		}
	}
	return out, nil
}

// AbnormalParameter is one out-of-range measurement in a patient's history.
type AbnormalParameter struct {
	ResultID    string `json:"result_id"`
	Date        Date   `json:"date"`
	TestType    string `json:"test_type"`
	Parameter   string `json:"parameter"`
	Value       string `json:"value"`
	NormalRange string `json:"normal_range"`
	Unit        string `json:"unit,omitempty"`
}

// PatientHistory is everything recorded for one patient.
type PatientHistory struct {
	Patient      Patient             `json:"patient"`
	Appointments []Appointment       `json:"appointments"`
	Samples      []Sample            `json:"samples"`
	Results      []Result            `json:"results"`
	Abnormal     []AbnormalParameter `json:"abnormal_parameters"`
}

// PatientHistory collects a patient's records, newest first, with the
// out-of-range parameters of every result flattened out.
func (s *Service) PatientHistory(ctx context.Context, patientID string) (*PatientHistory, error) {
	var h PatientHistory
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.store.Patients().GetByID(ctx, patientID)
		if err != nil {
			return err
		}
		appts, err := s.store.Appointments().ListByPatient(ctx, patientID)
		if err != nil {
			return err
		}
		samples, err := s.store.Samples().ListByPatient(ctx, patientID)
		if err != nil {
			return err
		}
		results, err := s.store.Results().ListByPatient(ctx, patientID)
		if err != nil {
			return err
		}
		h = PatientHistory{
			Patient:      *p,
			Appointments: values(appts),
			Samples:      values(samples),
			Results:      values(results),
			Abnormal:     []AbnormalParameter{},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(h.Appointments, func(i, j int) bool {
		a, b := h.Appointments[i], h.Appointments[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.Time > b.Time
	})
	sort.SliceStable(h.Samples, func(i, j int) bool {
		return h.Samples[i].CreatedAt.After(h.Samples[j].CreatedAt)
	})
	sort.SliceStable(h.Results, func(i, j int) bool {
		return h.Results[i].ResultDate.After(h.Results[j].ResultDate)
	})

	for _, r := range h.Results {
		for _, e := range r.Entries {
			if !e.OutOfRange() {
				continue
			}
			h.Abnormal = append(h.Abnormal, AbnormalParameter{
				ResultID:    r.ID,
				Date:        r.ResultDate,
				TestType:    r.TestType,
				Parameter:   e.Parameter,
				Value:       e.Value,
				NormalRange: e.NormalRange,
				Unit:        e.Unit,
			})
		}
	}
	return &h, nil
}
