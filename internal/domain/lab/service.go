package lab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinlab/labdesk/internal/platform/metrics"
	"github.com/clinlab/labdesk/internal/platform/search"
)

type Service struct {
	store       Store
	thresholds  Thresholds
	phoneRegion string
	now         func() time.Time
	log         zerolog.Logger
	metrics     *metrics.Registry
}

// Option configures a Service.
type Option func(*Service)

// WithThresholds replaces DefaultThresholds.
func WithThresholds(t Thresholds) Option { return func(s *Service) { s.thresholds = t } }

// WithClock sets the time source used for timestamps and "today".
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Registry) Option { return func(s *Service) { s.metrics = m } }

// WithPhoneRegion sets the region used to parse local phone numbers.
func WithPhoneRegion(region string) Option { return func(s *Service) { s.phoneRegion = region } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		thresholds:  DefaultThresholds,
		phoneRegion: DefaultPhoneRegion,
		now:         time.Now,
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Thresholds returns the classification parameters in effect.
func (s *Service) Thresholds() Thresholds { return s.thresholds }

// Store returns the backing store.
func (s *Service) Store() Store { return s.store }

func (s *Service) today() Date { return DateOf(s.now()) }

func values[T any](ptrs []*T) []T {
	out := make([]T, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// rejectReason buckets a write error for the rejected_changes metric.
func rejectReason(err error) string {
	var (
		ve  *ValidationError
		ite *InvalidTransitionError
		mae *MissingAssignmentError
		mre *MissingReviewerError
	)
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ite):
		return "invalid_transition"
	case errors.As(err, &mae):
		return "missing_technician"
	case errors.As(err, &mre):
		return "missing_reviewer"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "internal"
}

func (s *Service) rejected(kind EntityKind, id string, err error) error {
	reason := rejectReason(err)
	if s.metrics != nil {
		s.metrics.RejectedChanges.WithLabelValues(string(kind), reason).Inc()
	}
	s.log.Warn().Err(err).Str("entity", string(kind)).Str("id", id).Str("reason", reason).Msg("change rejected")
	return err
}

func (s *Service) transitioned(kind EntityKind, id, from, to, actor string) {
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(kind), to).Inc()
	}
	s.log.Info().Str("entity", string(kind)).Str("id", id).Str("from", from).Str("to", to).Str("actor", actor).Msg("status changed")
}

func (s *Service) recordChange(ctx context.Context, kind EntityKind, id, from, to, actor string) error {
	return s.store.History().Create(ctx, &StatusChange{
		Entity:    kind,
		EntityID:  id,
		From:      from,
		To:        to,
		ChangedBy: actor,
		ChangedAt: s.now(),
	})
}

// StatusHistory lists recorded transitions of one entity, oldest first.
func (s *Service) StatusHistory(ctx context.Context, kind EntityKind, id string) ([]*StatusChange, error) {
	switch kind {
	case KindAppointment, KindSample, KindResult:
	default:
		return nil, invalid("entity", "must be one of appointment, sample, result")
	}
	return s.store.History().GetByEntity(ctx, kind, id)
}

// -- Patients --

// RegisterPatient validates and stores a new patient. The national ID must
// not already be registered.
func (s *Service) RegisterPatient(ctx context.Context, in Patient) (*Patient, error) {
	p, err := newPatient(in, s.phoneRegion)
	if err != nil {
		return nil, err
	}
	if p.BirthDate.After(s.today()) {
		return nil, invalid("birth_date", "cannot be in the future")
	}
	p.Archived = false
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	if err := s.store.Patients().Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Str("patient_id", p.ID).Msg("patient registered")
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.store.Patients().GetByID(ctx, id)
}

// UpdatePatient replaces the editable fields of a patient. The caller's
// VersionID must match the stored one.
func (s *Service) UpdatePatient(ctx context.Context, in Patient) (*Patient, error) {
	if in.ID == "" {
		return nil, required("id")
	}
	if in.VersionID == 0 {
		return nil, required("version_id")
	}
	p, err := newPatient(in, s.phoneRegion)
	if err != nil {
		return nil, err
	}
	if p.BirthDate.After(s.today()) {
		return nil, invalid("birth_date", "cannot be in the future")
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Patients().GetByID(ctx, p.ID)
		if err != nil {
			return err
		}
		p.Archived = cur.Archived
		p.UpdatedAt = s.now()
		return s.store.Patients().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ArchivePatient soft-archives a patient. Patients are never deleted.
func (s *Service) ArchivePatient(ctx context.Context, id string) (*Patient, error) {
	var p *Patient
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.store.Patients().GetByID(ctx, id); err != nil {
			return err
		}
		if p.Archived {
			return nil
		}
		p.Archived = true
		p.UpdatedAt = s.now()
		return s.store.Patients().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("patient_id", id).Msg("patient archived")
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context, f search.Filter) ([]Patient, error) {
	all, err := s.store.Patients().List(ctx)
	if err != nil {
		return nil, err
	}
	return search.Apply(values(all), f), nil
}

// activePatient resolves a reference used by a new record.
func (s *Service) activePatient(ctx context.Context, id string) (*Patient, error) {
	p, err := s.store.Patients().GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, invalid("patient_id", "references an unknown patient "+id)
	}
	if err != nil {
		return nil, err
	}
	if p.Archived {
		return nil, invalid("patient_id", "patient "+id+" is archived")
	}
	return p, nil
}

// -- Appointments --

func (s *Service) ScheduleAppointment(ctx context.Context, in Appointment) (*Appointment, error) {
	a, err := NewAppointment(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.activePatient(ctx, a.PatientID); err != nil {
		return nil, err
	}
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	if err := s.store.Appointments().Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info().Str("appointment_id", a.ID).Str("patient_id", a.PatientID).Str("date", a.Date.String()).Msg("appointment scheduled")
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	return s.store.Appointments().GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f search.Filter) ([]Appointment, error) {
	all, err := s.store.Appointments().List(ctx)
	if err != nil {
		return nil, err
	}
	return search.Apply(values(all), f), nil
}

// TransitionAppointment moves an appointment along its workflow and records
// the change.
func (s *Service) TransitionAppointment(ctx context.Context, id string, to AppointmentStatus, actor string) (*Appointment, error) {
	var out Appointment
	var from AppointmentStatus
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Appointments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		from = cur.Status
		next, err := TransitionAppointment(*cur, to)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		if err := s.store.Appointments().Update(ctx, &next); err != nil {
			return err
		}
		out = next
		return s.recordChange(ctx, KindAppointment, id, string(from), string(to), actor)
	})
	if err != nil {
		return nil, s.rejected(KindAppointment, id, err)
	}
	s.transitioned(KindAppointment, id, string(from), string(to), actor)
	return &out, nil
}

// -- Samples --

// RegisterSample stores a new sample and issues its barcode. A linked
// appointment must belong to the same patient.
func (s *Service) RegisterSample(ctx context.Context, in Sample) (*Sample, error) {
	smp, err := NewSample(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.activePatient(ctx, smp.PatientID); err != nil {
		return nil, err
	}
	if smp.AppointmentID != "" {
		a, err := s.store.Appointments().GetByID(ctx, smp.AppointmentID)
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("appointment_id", "references an unknown appointment "+smp.AppointmentID)
		}
		if err != nil {
			return nil, err
		}
		if a.PatientID != smp.PatientID {
			return nil, invalid("appointment_id", "belongs to another patient")
		}
	}
	now := s.now()
	if smp.Status == SampleCollected && smp.CollectedAt == nil {
		smp.CollectedAt = &now
	}
	smp.CreatedAt = now
	smp.UpdatedAt = now
	if err := s.store.Samples().Create(ctx, smp); err != nil {
		return nil, err
	}
	s.log.Info().Str("sample_id", smp.ID).Str("barcode", smp.Barcode).Str("status", string(smp.Status)).Msg("sample registered")
	return smp, nil
}

func (s *Service) GetSample(ctx context.Context, id string) (*Sample, error) {
	return s.store.Samples().GetByID(ctx, id)
}

func (s *Service) GetSampleByBarcode(ctx context.Context, barcode string) (*Sample, error) {
	return s.store.Samples().GetByBarcode(ctx, barcode)
}

func (s *Service) ListSamples(ctx context.Context, f search.Filter) ([]Sample, error) {
	all, err := s.store.Samples().List(ctx)
	if err != nil {
		return nil, err
	}
	return search.Apply(values(all), f), nil
}

// updateSample loads a sample, applies mutate and writes it back inside one
// transaction.
func (s *Service) updateSample(ctx context.Context, id string, mutate func(ctx context.Context, smp *Sample) error) (*Sample, error) {
	var out *Sample
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		smp, err := s.store.Samples().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(ctx, smp); err != nil {
			return err
		}
		smp.UpdatedAt = s.now()
		if err := s.store.Samples().Update(ctx, smp); err != nil {
			return err
		}
		out = smp
		return nil
	})
	if err != nil {
		return nil, s.rejected(KindSample, id, err)
	}
	return out, nil
}

// AssignTechnician sets the technician responsible for a sample that has not
// completed yet.
func (s *Service) AssignTechnician(ctx context.Context, id, technician string) (*Sample, error) {
	technician = strings.TrimSpace(technician)
	if technician == "" {
		return nil, required("technician")
	}
	smp, err := s.updateSample(ctx, id, func(_ context.Context, smp *Sample) error {
		if smp.Voided {
			return invalid("voided", "sample "+id+" is voided")
		}
		if smp.Status == SampleCompleted {
			return invalid("status", "completed samples cannot be reassigned to another technician")
		}
		smp.Technician = technician
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("sample_id", id).Str("technician", technician).Msg("technician assigned")
	return smp, nil
}

// TransitionSample moves a sample forward. Collecting stamps CollectedAt
// when unset, and completing opens the pending result if none exists.
func (s *Service) TransitionSample(ctx context.Context, id string, to SampleStatus, actor string) (*Sample, error) {
	var from SampleStatus
	var opened *Result
	smp, err := s.updateSample(ctx, id, func(ctx context.Context, smp *Sample) error {
		from = smp.Status
		next, err := TransitionSample(*smp, to)
		if err != nil {
			return err
		}
		if to == SampleCollected && next.CollectedAt == nil {
			now := s.now()
			next.CollectedAt = &now
		}
		if to == SampleCompleted {
			if opened, err = s.openResult(ctx, next); err != nil {
				return err
			}
		}
		*smp = next
		return s.recordChange(ctx, KindSample, id, string(from), string(to), actor)
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(KindSample, id, string(from), string(to), actor)
	if opened != nil {
		s.log.Info().Str("result_id", opened.ID).Str("sample_id", id).Msg("result opened")
	}
	return smp, nil
}

// openResult creates the pending result of a completed sample unless one
// was already registered.
func (s *Service) openResult(ctx context.Context, smp Sample) (*Result, error) {
	_, err := s.store.Results().GetBySample(ctx, smp.ID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	r := &Result{
		SampleID:   smp.ID,
		PatientID:  smp.PatientID,
		TestType:   smp.TestType,
		ResultDate: s.today(),
		Status:     ResultPending,
		Entries:    []ResultEntry{},
		CreatedAt:  s.now(),
	}
	r.UpdatedAt = r.CreatedAt
	if err := s.store.Results().Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// VoidSample flags a mis-registered sample. It keeps its barcode and
// history but accepts no further transitions.
func (s *Service) VoidSample(ctx context.Context, id, reason string) (*Sample, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, required("reason")
	}
	smp, err := s.updateSample(ctx, id, func(_ context.Context, smp *Sample) error {
		if smp.Voided {
			return invalid("voided", "sample "+id+" is already voided")
		}
		if smp.Status == SampleCompleted {
			return invalid("status", "completed samples cannot be voided")
		}
		smp.Voided = true
		smp.VoidReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Warn().Str("sample_id", id).Str("reason", reason).Msg("sample voided")
	return smp, nil
}

// ReassignSample moves a sample registered to the wrong patient, together
// with its result if one exists. Only samples that have not completed can
// be moved.
func (s *Service) ReassignSample(ctx context.Context, id, patientID string) (*Sample, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, required("patient_id")
	}
	var from string
	smp, err := s.updateSample(ctx, id, func(ctx context.Context, smp *Sample) error {
		if smp.Voided {
			return invalid("voided", "sample "+id+" is voided")
		}
		if smp.Status == SampleCompleted {
			return invalid("status", "completed samples cannot be reassigned")
		}
		if smp.PatientID == patientID {
			return invalid("patient_id", "sample already belongs to "+patientID)
		}
		if _, err := s.activePatient(ctx, patientID); err != nil {
			return err
		}
		from = smp.PatientID
		smp.PatientID = patientID
		smp.AppointmentID = ""

		res, err := s.store.Results().GetBySample(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res.PatientID = patientID
		res.UpdatedAt = s.now()
		return s.store.Results().Update(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	s.log.Warn().Str("sample_id", id).Str("from_patient", from).Str("to_patient", patientID).Msg("sample reassigned")
	return smp, nil
}

// -- Results --

// RegisterResult opens a result for a sample that has at least been
// collected. Patient and test type are taken from the sample.
func (s *Service) RegisterResult(ctx context.Context, in Result) (*Result, error) {
	var out *Result
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		smp, err := s.store.Samples().GetByID(ctx, in.SampleID)
		if errors.Is(err, ErrNotFound) {
			return invalid("sample_id", "references an unknown sample "+in.SampleID)
		}
		if err != nil {
			return err
		}
		if smp.Voided {
			return invalid("sample_id", "sample "+smp.ID+" is voided")
		}
		if smp.Status.Rank() < SampleCollected.Rank() {
			return invalid("sample_id", "sample "+smp.ID+" has not been collected")
		}
		in.PatientID = smp.PatientID
		in.TestType = smp.TestType
		if in.ResultDate.IsZero() {
			in.ResultDate = s.today()
		}
		r, err := NewResult(in)
		if err != nil {
			return err
		}
		r.CreatedAt = s.now()
		r.UpdatedAt = r.CreatedAt
		if err := s.store.Results().Create(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, s.rejected(KindResult, in.SampleID, err)
	}
	s.log.Info().Str("result_id", out.ID).Str("sample_id", out.SampleID).Bool("abnormal", out.Abnormal).Msg("result registered")
	return out, nil
}

func (s *Service) GetResult(ctx context.Context, id string) (*Result, error) {
	return s.store.Results().GetByID(ctx, id)
}

func (s *Service) ListResults(ctx context.Context, f search.Filter) ([]Result, error) {
	all, err := s.store.Results().List(ctx)
	if err != nil {
		return nil, err
	}
	return search.Apply(values(all), f), nil
}

// ResultDetails are the free-text fields recorded alongside the entries.
type ResultDetails struct {
	Observations   string `json:"observations"`
	Interpretation string `json:"interpretation"`
	Equipment      string `json:"equipment"`
}

// RecordEntries replaces the measured entries and details of a result that
// has not been completed. The abnormal flag is recomputed.
func (s *Service) RecordEntries(ctx context.Context, id string, entries []ResultEntry, details ResultDetails) (*Result, error) {
	if err := validateEntries(entries); err != nil {
		return nil, err
	}
	var out *Result
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.store.Results().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.Status == ResultCompleted {
			return invalid("status", "completed results cannot be edited")
		}
		r.SetEntries(entries)
		r.Observations = details.Observations
		r.Interpretation = details.Interpretation
		r.Equipment = details.Equipment
		r.UpdatedAt = s.now()
		if err := s.store.Results().Update(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, s.rejected(KindResult, id, err)
	}
	s.log.Info().Str("result_id", id).Int("entries", len(entries)).Bool("abnormal", out.Abnormal).Msg("result entries recorded")
	return out, nil
}

// TransitionResult moves a result along review. reviewer, when non-empty,
// is recorded as the reviewing technician before the transition is checked.
func (s *Service) TransitionResult(ctx context.Context, id string, to ResultStatus, reviewer, actor string) (*Result, error) {
	var out Result
	var from ResultStatus
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Results().GetByID(ctx, id)
		if err != nil {
			return err
		}
		from = cur.Status
		if r := strings.TrimSpace(reviewer); r != "" {
			cur.ReviewedBy = r
		}
		next, err := TransitionResult(*cur, to)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		if err := s.store.Results().Update(ctx, &next); err != nil {
			return err
		}
		out = next
		return s.recordChange(ctx, KindResult, id, string(from), string(to), actor)
	})
	if err != nil {
		return nil, s.rejected(KindResult, id, err)
	}
	s.transitioned(KindResult, id, string(from), string(to), actor)
	return &out, nil
}

// -- Inventory --

// InventoryView is an item with its derived classification.
type InventoryView struct {
	InventoryItem
	StockStatus StockStatus     `json:"stock_status"`
	StockLabel  string          `json:"stock_label"`
	ExpiryRisk  ExpiryRisk      `json:"expiry_risk"`
	FillRatio   decimal.Decimal `json:"fill_ratio"`
}

// Describe classifies it with the service thresholds as of asOf.
func (s *Service) Describe(it InventoryItem, asOf time.Time) InventoryView {
	st := s.thresholds.Classify(it)
	return InventoryView{
		InventoryItem: it,
		StockStatus:   st,
		StockLabel:    st.Label(),
		ExpiryRisk:    s.thresholds.ExpiryRisk(it, asOf),
		FillRatio:     FillRatio(it).Round(4),
	}
}

func (s *Service) AddInventoryItem(ctx context.Context, in InventoryItem) (*InventoryItem, error) {
	it, err := NewInventoryItem(in)
	if err != nil {
		return nil, err
	}
	it.CreatedAt = s.now()
	it.UpdatedAt = it.CreatedAt
	if err := s.store.Inventory().Create(ctx, it); err != nil {
		return nil, err
	}
	s.log.Info().Str("item_id", it.ID).Str("name", it.Name).Msg("inventory item added")
	return it, nil
}

func (s *Service) GetInventoryItem(ctx context.Context, id string) (*InventoryItem, error) {
	return s.store.Inventory().GetByID(ctx, id)
}

// UpdateInventoryItem replaces an item's descriptive fields and thresholds.
// The caller's VersionID must match the stored one. Stock levels only move
// through AdjustStock, so the stored CurrentStock is kept.
func (s *Service) UpdateInventoryItem(ctx context.Context, in InventoryItem) (*InventoryItem, error) {
	if in.ID == "" {
		return nil, required("id")
	}
	if in.VersionID == 0 {
		return nil, required("version_id")
	}
	it, err := NewInventoryItem(in)
	if err != nil {
		return nil, err
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Inventory().GetByID(ctx, it.ID)
		if err != nil {
			return err
		}
		it.CurrentStock = cur.CurrentStock
		it.UpdatedAt = s.now()
		return s.store.Inventory().Update(ctx, it)
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// AdjustStock applies a receipt (positive delta) or consumption (negative
// delta) to an item's stock.
func (s *Service) AdjustStock(ctx context.Context, id string, delta decimal.Decimal, reason, actor string) (*InventoryItem, error) {
	if delta.IsZero() {
		return nil, invalid("delta", "must not be zero")
	}
	var out InventoryItem
	var before StockStatus
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Inventory().GetByID(ctx, id)
		if err != nil {
			return err
		}
		before = s.thresholds.Classify(*cur)
		next, err := AdjustStock(*cur, delta)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		if err := s.store.Inventory().Update(ctx, &next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RejectedChanges.WithLabelValues("inventory", rejectReason(err)).Inc()
		}
		s.log.Warn().Err(err).Str("item_id", id).Str("delta", delta.String()).Msg("stock adjustment rejected")
		return nil, err
	}

	direction := "receipt"
	if delta.IsNegative() {
		direction = "consumption"
	}
	if s.metrics != nil {
		s.metrics.StockAdjustments.WithLabelValues(direction).Inc()
	}
	after := s.thresholds.Classify(out)
	evt := s.log.Info()
	if after != StockOptimal && after != before {
		evt = s.log.Warn()
	}
	evt.Str("item_id", id).
		Str("direction", direction).
		Str("delta", delta.String()).
		Str("stock", out.CurrentStock.String()).
		Str("stock_status", string(after)).
		Str("reason", reason).
		Str("actor", actor).
		Msg("stock adjusted")
	return &out, nil
}

// ListInventory filters items. Besides the item facets it understands
// "stock_status" and "expiry", derived with the service thresholds as of
// asOf.
func (s *Service) ListInventory(ctx context.Context, f search.Filter, asOf time.Time) ([]InventoryItem, error) {
	all, err := s.store.Inventory().List(ctx)
	if err != nil {
		return nil, err
	}
	classified := make([]classifiedItem, len(all))
	for i, it := range all {
		classified[i] = classifiedItem{
			InventoryItem: *it,
			stock:         s.thresholds.Classify(*it),
			expiry:        s.thresholds.ExpiryRisk(*it, asOf),
		}
	}
	matched := search.Apply(classified, f)
	out := make([]InventoryItem, len(matched))
	for i, c := range matched {
		out[i] = c.InventoryItem
	}
	return out, nil
}

// -- Alerts --

// Snapshot reads every collection the alert aggregator needs.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		items, err := s.store.Inventory().List(ctx)
		if err != nil {
			return fmt.Errorf("list inventory: %w", err)
		}
		samples, err := s.store.Samples().List(ctx)
		if err != nil {
			return fmt.Errorf("list samples: %w", err)
		}
		results, err := s.store.Results().List(ctx)
		if err != nil {
			return fmt.Errorf("list results: %w", err)
		}
		appts, err := s.store.Appointments().List(ctx)
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		snap = Snapshot{Items: values(items), Samples: values(samples), Results: values(results), Appointments: values(appts)}
		return nil
	})
	return snap, err
}

// Alerts computes the alert set as of asOf and publishes the counts.
func (s *Service) Alerts(ctx context.Context, asOf time.Time) (AlertSet, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return AlertSet{}, err
	}
	set := s.thresholds.ComputeAlerts(snap, asOf)
	if s.metrics != nil {
		s.metrics.ActiveAlerts.WithLabelValues("stock").Set(float64(len(set.Stock)))
		s.metrics.ActiveAlerts.WithLabelValues("expiry").Set(float64(len(set.Expiry)))
		s.metrics.ActiveAlerts.WithLabelValues("abnormal_results").Set(float64(len(set.AbnormalResults)))
		s.metrics.ActiveAlerts.WithLabelValues("unconfirmed_appointments").Set(float64(len(set.UnconfirmedAppointments)))
	}
	s.log.Debug().Int("total", set.Total()).Time("as_of", asOf).Msg("alerts computed")
	return set, nil
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }
