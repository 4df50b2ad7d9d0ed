package lab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clinlab/labdesk/internal/platform/db"
)

// PGStore keeps every collection in Postgres tables created by
// migrations/001_lab.sql.
type PGStore struct {
	pool         *pgxpool.Pool
	patients     *patientRepoPG
	appointments *appointmentRepoPG
	samples      *sampleRepoPG
	results      *resultRepoPG
	inventory    *inventoryRepoPG
	history      *historyRepoPG
}

var _ Store = (*PGStore)(nil)

// NewPGStore wires the Postgres repositories. A nil generator uses
// DefaultBarcodes.
func NewPGStore(pool *pgxpool.Pool, barcodes BarcodeGenerator) *PGStore {
	if barcodes == nil {
		barcodes = DefaultBarcodes
	}
	base := pgRepo{pool: pool}
	return &PGStore{
		pool:         pool,
		patients:     &patientRepoPG{base},
		appointments: &appointmentRepoPG{base},
		samples:      &sampleRepoPG{pgRepo: base, barcodes: barcodes},
		results:      &resultRepoPG{base},
		inventory:    &inventoryRepoPG{base},
		history:      &historyRepoPG{base},
	}
}

func (s *PGStore) Patients() PatientRepository         { return s.patients }
func (s *PGStore) Appointments() AppointmentRepository { return s.appointments }
func (s *PGStore) Samples() SampleRepository           { return s.samples }
func (s *PGStore) Results() ResultRepository           { return s.results }
func (s *PGStore) Inventory() InventoryRepository      { return s.inventory }
func (s *PGStore) History() StatusHistoryRepository    { return s.history }

func (s *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, s.pool, fn)
}

func (s *PGStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

type pgRepo struct{ pool *pgxpool.Pool }

func (r pgRepo) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r pgRepo) nextID(ctx context.Context, seq, prefix string) (string, int64, error) {
	var n int64
	if err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('`+seq+`')`).Scan(&n); err != nil {
		return "", 0, fmt.Errorf("next %s: %w", seq, err)
	}
	return fmt.Sprintf("%s%03d", prefix, n), n, nil
}

// pgErr maps driver errors onto the package sentinels.
func pgErr(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(kind, id)
	}
	var pgE *pgconn.PgError
	if errors.As(err, &pgE) && pgE.Code == "23505" {
		return fmt.Errorf("%s %s: %s: %w", kind, id, pgE.ConstraintName, ErrConflict)
	}
	return fmt.Errorf("%s %s: %w", kind, id, err)
}

// casResult interprets the outcome of a versioned UPDATE.
func (r pgRepo) casResult(ctx context.Context, table, kind, id string, version int, tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 1 {
		return nil
	}
	var current int
	err := r.conn(ctx).QueryRow(ctx, `SELECT version_id FROM `+table+` WHERE id = $1`, id).Scan(&current)
	if err != nil {
		return pgErr(kind, id, err)
	}
	return staleVersion(kind, id, version, current)
}

func dateArg(d Date) interface{} {
	if d.IsZero() {
		return nil
	}
	return d.Time
}

func optDateArg(d *Date) interface{} {
	if d == nil {
		return nil
	}
	return dateArg(*d)
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pgRepo }

const patientCols = `id, first_name, last_name, national_id, birth_date, gender, blood_type,
	phone, email, address, allergies, medical_history, archived, version_id, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birth time.Time
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.NationalID, &birth, &p.Gender, &p.BloodType,
		&p.Phone, &p.Email, &p.Address, &p.Allergies, &p.MedicalHistory, &p.Archived, &p.VersionID, &p.CreatedAt, &p.UpdatedAt)
	p.BirthDate = DateOf(birth)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	id, _, err := r.nextID(ctx, "patient_seq", "P")
	if err != nil {
		return err
	}
	p.ID = id
	p.VersionID = 1
	p.CreatedAt = nowIfZero(p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, first_name, last_name, national_id, birth_date, gender, blood_type,
			phone, email, address, allergies, medical_history, archived, version_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.ID, p.FirstName, p.LastName, p.NationalID, dateArg(p.BirthDate), p.Gender, p.BloodType,
		p.Phone, p.Email, p.Address, p.Allergies, p.MedicalHistory, p.Archived, p.VersionID, p.CreatedAt, p.UpdatedAt)
	return pgErr("patient", p.NationalID, err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, pgErr("patient", id, err)
	}
	return p, nil
}

func (r *patientRepoPG) GetByNationalID(ctx context.Context, nationalID string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE national_id = $1`, nationalID))
	if err != nil {
		return nil, pgErr("patient", nationalID, err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = nowIfZero(p.UpdatedAt)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET first_name=$3, last_name=$4, national_id=$5, birth_date=$6, gender=$7,
			blood_type=$8, phone=$9, email=$10, address=$11, allergies=$12, medical_history=$13,
			archived=$14, updated_at=$15, version_id = version_id + 1
		WHERE id = $1 AND version_id = $2`,
		p.ID, p.VersionID, p.FirstName, p.LastName, p.NationalID, dateArg(p.BirthDate), p.Gender,
		p.BloodType, p.Phone, p.Email, p.Address, p.Allergies, p.MedicalHistory,
		p.Archived, p.UpdatedAt)
	if err != nil {
		return pgErr("patient", p.ID, err)
	}
	if err := r.casResult(ctx, "patient", "patient", p.ID, p.VersionID, tag); err != nil {
		return err
	}
	p.VersionID++
	return nil
}

func (r *patientRepoPG) List(ctx context.Context) ([]*Patient, error) {
	return queryAll(ctx, r.conn(ctx), scanPatient, `SELECT `+patientCols+` FROM patient ORDER BY created_at, id`)
}

// queryAll runs a query and scans every row.
func queryAll[T any](ctx context.Context, q db.Querier, scan func(pgx.Row) (*T, error), sql string, args ...interface{}) ([]*T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*T
	for rows.Next() {
		it, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pgRepo }

const appointmentCols = `id, patient_id, date, time, test_type, priority, status, notes, version_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	err := row.Scan(&a.ID, &a.PatientID, &date, &a.Time, &a.TestType, &a.Priority, &a.Status, &a.Notes,
		&a.VersionID, &a.CreatedAt, &a.UpdatedAt)
	a.Date = DateOf(date)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	id, _, err := r.nextID(ctx, "appointment_seq", "C")
	if err != nil {
		return err
	}
	a.ID = id
	a.VersionID = 1
	a.CreatedAt = nowIfZero(a.CreatedAt)
	a.UpdatedAt = a.CreatedAt
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, patient_id, date, time, test_type, priority, status, notes, version_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.PatientID, dateArg(a.Date), a.Time, a.TestType, a.Priority, a.Status, a.Notes,
		a.VersionID, a.CreatedAt, a.UpdatedAt)
	return pgErr("appointment", a.ID, err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id string) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
	if err != nil {
		return nil, pgErr("appointment", id, err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	a.UpdatedAt = nowIfZero(a.UpdatedAt)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET date=$3, time=$4, test_type=$5, priority=$6, status=$7, notes=$8,
			updated_at=$9, version_id = version_id + 1
		WHERE id = $1 AND version_id = $2`,
		a.ID, a.VersionID, dateArg(a.Date), a.Time, a.TestType, a.Priority, a.Status, a.Notes, a.UpdatedAt)
	if err != nil {
		return pgErr("appointment", a.ID, err)
	}
	if err := r.casResult(ctx, "appointment", "appointment", a.ID, a.VersionID, tag); err != nil {
		return err
	}
	a.VersionID++
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context) ([]*Appointment, error) {
	return queryAll(ctx, r.conn(ctx), scanAppointment, `SELECT `+appointmentCols+` FROM appointment ORDER BY created_at, id`)
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	return queryAll(ctx, r.conn(ctx), scanAppointment,
		`SELECT `+appointmentCols+` FROM appointment WHERE patient_id = $1 ORDER BY created_at, id`, patientID)
}

// =========== Sample Repository ===========

type sampleRepoPG struct {
	pgRepo
	barcodes BarcodeGenerator
}

const sampleCols = `id, barcode, patient_id, appointment_id, test_type, sample_type, collected_at,
	storage_condition, technician, status, observations, special_instructions, voided, void_reason,
	version_id, created_at, updated_at`

func scanSample(row pgx.Row) (*Sample, error) {
	var s Sample
	err := row.Scan(&s.ID, &s.Barcode, &s.PatientID, &s.AppointmentID, &s.TestType, &s.SampleType, &s.CollectedAt,
		&s.StorageCondition, &s.Technician, &s.Status, &s.Observations, &s.SpecialInstructions, &s.Voided, &s.VoidReason,
		&s.VersionID, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *sampleRepoPG) Create(ctx context.Context, s *Sample) error {
	id, seq, err := r.nextID(ctx, "sample_seq", "M")
	if err != nil {
		return err
	}
	barcode, err := r.barcodes.Barcode(seq)
	if err != nil {
		return err
	}
	s.ID = id
	s.Barcode = barcode
	s.VersionID = 1
	s.CreatedAt = nowIfZero(s.CreatedAt)
	s.UpdatedAt = s.CreatedAt
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO sample (id, barcode, patient_id, appointment_id, test_type, sample_type, collected_at,
			storage_condition, technician, status, observations, special_instructions, voided, void_reason,
			version_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		s.ID, s.Barcode, s.PatientID, s.AppointmentID, s.TestType, s.SampleType, s.CollectedAt,
		s.StorageCondition, s.Technician, s.Status, s.Observations, s.SpecialInstructions, s.Voided, s.VoidReason,
		s.VersionID, s.CreatedAt, s.UpdatedAt)
	return pgErr("sample", s.ID, err)
}

func (r *sampleRepoPG) GetByID(ctx context.Context, id string) (*Sample, error) {
	s, err := scanSample(r.conn(ctx).QueryRow(ctx, `SELECT `+sampleCols+` FROM sample WHERE id = $1`, id))
	if err != nil {
		return nil, pgErr("sample", id, err)
	}
	return s, nil
}

func (r *sampleRepoPG) GetByBarcode(ctx context.Context, barcode string) (*Sample, error) {
	s, err := scanSample(r.conn(ctx).QueryRow(ctx, `SELECT `+sampleCols+` FROM sample WHERE barcode = $1`, barcode))
	if err != nil {
		return nil, pgErr("sample", barcode, err)
	}
	return s, nil
}

// Update never rewrites the barcode.
func (r *sampleRepoPG) Update(ctx context.Context, s *Sample) error {
	s.UpdatedAt = nowIfZero(s.UpdatedAt)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE sample SET patient_id=$3, appointment_id=$4, test_type=$5, sample_type=$6, collected_at=$7,
			storage_condition=$8, technician=$9, status=$10, observations=$11, special_instructions=$12,
			voided=$13, void_reason=$14, updated_at=$15, version_id = version_id + 1
		WHERE id = $1 AND version_id = $2`,
		s.ID, s.VersionID, s.PatientID, s.AppointmentID, s.TestType, s.SampleType, s.CollectedAt,
		s.StorageCondition, s.Technician, s.Status, s.Observations, s.SpecialInstructions,
		s.Voided, s.VoidReason, s.UpdatedAt)
	if err != nil {
		return pgErr("sample", s.ID, err)
	}
	if err := r.casResult(ctx, "sample", "sample", s.ID, s.VersionID, tag); err != nil {
		return err
	}
	s.VersionID++
	return nil
}

func (r *sampleRepoPG) List(ctx context.Context) ([]*Sample, error) {
	return queryAll(ctx, r.conn(ctx), scanSample, `SELECT `+sampleCols+` FROM sample ORDER BY created_at, id`)
}

func (r *sampleRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*Sample, error) {
	return queryAll(ctx, r.conn(ctx), scanSample,
		`SELECT `+sampleCols+` FROM sample WHERE patient_id = $1 ORDER BY created_at, id`, patientID)
}

// =========== Result Repository ===========

type resultRepoPG struct{ pgRepo }

const resultCols = `id, sample_id, patient_id, test_type, result_date, entries, reviewed, status,
	observations, interpretation, equipment, reviewed_by, version_id, created_at, updated_at`

func scanResult(row pgx.Row) (*Result, error) {
	var res Result
	var date time.Time
	var entries []byte
	err := row.Scan(&res.ID, &res.SampleID, &res.PatientID, &res.TestType, &date, &entries, &res.Reviewed, &res.Status,
		&res.Observations, &res.Interpretation, &res.Equipment, &res.ReviewedBy, &res.VersionID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	res.ResultDate = DateOf(date)
	if err := json.Unmarshal(entries, &res.Entries); err != nil {
		return nil, fmt.Errorf("decode entries of result %s: %w", res.ID, err)
	}
	res.Refresh()
	return &res, nil
}

func encodeEntries(entries []ResultEntry) ([]byte, error) {
	if entries == nil {
		entries = []ResultEntry{}
	}
	return json.Marshal(entries)
}

func (r *resultRepoPG) Create(ctx context.Context, res *Result) error {
	entries, err := encodeEntries(res.Entries)
	if err != nil {
		return err
	}
	id, _, err := r.nextID(ctx, "result_seq", "R")
	if err != nil {
		return err
	}
	res.ID = id
	res.VersionID = 1
	res.CreatedAt = nowIfZero(res.CreatedAt)
	res.UpdatedAt = res.CreatedAt
	res.Refresh()
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO result (id, sample_id, patient_id, test_type, result_date, entries, reviewed, status,
			observations, interpretation, equipment, reviewed_by, version_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		res.ID, res.SampleID, res.PatientID, res.TestType, dateArg(res.ResultDate), entries, res.Reviewed, res.Status,
		res.Observations, res.Interpretation, res.Equipment, res.ReviewedBy, res.VersionID, res.CreatedAt, res.UpdatedAt)
	return pgErr("result for sample", res.SampleID, err)
}

func (r *resultRepoPG) GetByID(ctx context.Context, id string) (*Result, error) {
	res, err := scanResult(r.conn(ctx).QueryRow(ctx, `SELECT `+resultCols+` FROM result WHERE id = $1`, id))
	if err != nil {
		return nil, pgErr("result", id, err)
	}
	return res, nil
}

func (r *resultRepoPG) GetBySample(ctx context.Context, sampleID string) (*Result, error) {
	res, err := scanResult(r.conn(ctx).QueryRow(ctx, `SELECT `+resultCols+` FROM result WHERE sample_id = $1`, sampleID))
	if err != nil {
		return nil, pgErr("result for sample", sampleID, err)
	}
	return res, nil
}

func (r *resultRepoPG) Update(ctx context.Context, res *Result) error {
	entries, err := encodeEntries(res.Entries)
	if err != nil {
		return err
	}
	res.UpdatedAt = nowIfZero(res.UpdatedAt)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE result SET result_date=$3, entries=$4, reviewed=$5, status=$6, observations=$7,
			interpretation=$8, equipment=$9, reviewed_by=$10, updated_at=$11, version_id = version_id + 1
		WHERE id = $1 AND version_id = $2`,
		res.ID, res.VersionID, dateArg(res.ResultDate), entries, res.Reviewed, res.Status, res.Observations,
		res.Interpretation, res.Equipment, res.ReviewedBy, res.UpdatedAt)
	if err != nil {
		return pgErr("result", res.ID, err)
	}
	if err := r.casResult(ctx, "result", "result", res.ID, res.VersionID, tag); err != nil {
		return err
	}
	res.VersionID++
	res.Refresh()
	return nil
}

func (r *resultRepoPG) List(ctx context.Context) ([]*Result, error) {
	return queryAll(ctx, r.conn(ctx), scanResult, `SELECT `+resultCols+` FROM result ORDER BY created_at, id`)
}

func (r *resultRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*Result, error) {
	return queryAll(ctx, r.conn(ctx), scanResult,
		`SELECT `+resultCols+` FROM result WHERE patient_id = $1 ORDER BY created_at, id`, patientID)
}

// =========== Inventory Repository ===========

type inventoryRepoPG struct{ pgRepo }

// Quantities travel as text so no precision is lost on either side.
const inventoryCols = `id, name, category, current_stock::text, min_threshold::text, max_capacity::text,
	unit, expiry_date, supplier, location, lot_number, notes, version_id, created_at, updated_at`

func scanInventoryItem(row pgx.Row) (*InventoryItem, error) {
	var it InventoryItem
	var current, minimum, maximum string
	var expiry *time.Time
	err := row.Scan(&it.ID, &it.Name, &it.Category, &current, &minimum, &maximum,
		&it.Unit, &expiry, &it.Supplier, &it.Location, &it.LotNumber, &it.Notes, &it.VersionID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, q := range []struct {
		dst *decimal.Decimal
		src string
	}{{&it.CurrentStock, current}, {&it.MinThreshold, minimum}, {&it.MaxCapacity, maximum}} {
		if *q.dst, err = decimal.NewFromString(q.src); err != nil {
			return nil, fmt.Errorf("decode quantity of item %s: %w", it.ID, err)
		}
	}
	if expiry != nil {
		d := DateOf(*expiry)
		it.ExpiryDate = &d
	}
	return &it, nil
}

func (r *inventoryRepoPG) Create(ctx context.Context, it *InventoryItem) error {
	id, _, err := r.nextID(ctx, "inventory_item_seq", "INV")
	if err != nil {
		return err
	}
	it.ID = id
	it.VersionID = 1
	it.CreatedAt = nowIfZero(it.CreatedAt)
	it.UpdatedAt = it.CreatedAt
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO inventory_item (id, name, category, current_stock, min_threshold, max_capacity,
			unit, expiry_date, supplier, location, lot_number, notes, version_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4::text::numeric,$5::text::numeric,$6::text::numeric,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		it.ID, it.Name, it.Category, it.CurrentStock.String(), it.MinThreshold.String(), it.MaxCapacity.String(),
		it.Unit, optDateArg(it.ExpiryDate), it.Supplier, it.Location, it.LotNumber, it.Notes, it.VersionID, it.CreatedAt, it.UpdatedAt)
	return pgErr("inventory item", it.ID, err)
}

func (r *inventoryRepoPG) GetByID(ctx context.Context, id string) (*InventoryItem, error) {
	it, err := scanInventoryItem(r.conn(ctx).QueryRow(ctx, `SELECT `+inventoryCols+` FROM inventory_item WHERE id = $1`, id))
	if err != nil {
		return nil, pgErr("inventory item", id, err)
	}
	return it, nil
}

func (r *inventoryRepoPG) Update(ctx context.Context, it *InventoryItem) error {
	it.UpdatedAt = nowIfZero(it.UpdatedAt)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE inventory_item SET name=$3, category=$4, current_stock=$5::text::numeric,
			min_threshold=$6::text::numeric, max_capacity=$7::text::numeric, unit=$8, expiry_date=$9,
			supplier=$10, location=$11, lot_number=$12, notes=$13, updated_at=$14, version_id = version_id + 1
		WHERE id = $1 AND version_id = $2`,
		it.ID, it.VersionID, it.Name, it.Category, it.CurrentStock.String(),
		it.MinThreshold.String(), it.MaxCapacity.String(), it.Unit, optDateArg(it.ExpiryDate),
		it.Supplier, it.Location, it.LotNumber, it.Notes, it.UpdatedAt)
	if err != nil {
		return pgErr("inventory item", it.ID, err)
	}
	if err := r.casResult(ctx, "inventory_item", "inventory item", it.ID, it.VersionID, tag); err != nil {
		return err
	}
	it.VersionID++
	return nil
}

func (r *inventoryRepoPG) List(ctx context.Context) ([]*InventoryItem, error) {
	return queryAll(ctx, r.conn(ctx), scanInventoryItem, `SELECT `+inventoryCols+` FROM inventory_item ORDER BY created_at, id`)
}

// =========== Status History Repository ===========

type historyRepoPG struct{ pgRepo }

const historyCols = `id, entity, entity_id, from_status, to_status, changed_by, changed_at`

func scanStatusChange(row pgx.Row) (*StatusChange, error) {
	var h StatusChange
	var id uuid.UUID
	err := row.Scan(&id, &h.Entity, &h.EntityID, &h.From, &h.To, &h.ChangedBy, &h.ChangedAt)
	h.ID = id.String()
	return &h, err
}

func (r *historyRepoPG) Create(ctx context.Context, h *StatusChange) error {
	id := uuid.New()
	if h.ID != "" {
		parsed, err := uuid.Parse(h.ID)
		if err != nil {
			return invalid("id", "must be a UUID")
		}
		id = parsed
	}
	h.ID = id.String()
	h.ChangedAt = nowIfZero(h.ChangedAt)
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO status_change (id, entity, entity_id, from_status, to_status, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, h.Entity, h.EntityID, h.From, h.To, h.ChangedBy, h.ChangedAt)
	return pgErr("status change", h.EntityID, err)
}

func (r *historyRepoPG) GetByEntity(ctx context.Context, entity EntityKind, entityID string) ([]*StatusChange, error) {
	return queryAll(ctx, r.conn(ctx), scanStatusChange,
		`SELECT `+historyCols+` FROM status_change WHERE entity = $1 AND entity_id = $2 ORDER BY changed_at, id`,
		entity, entityID)
}
