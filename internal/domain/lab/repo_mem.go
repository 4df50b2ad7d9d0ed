package lab

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memTable keeps rows in insertion order with an id index.
type memTable[T any] struct {
	seq   int64
	rows  []T
	index map[string]int
	idOf  func(T) string
}

func newMemTable[T any](idOf func(T) string) *memTable[T] {
	return &memTable[T]{index: make(map[string]int), idOf: idOf}
}

func (t *memTable[T]) get(id string) (T, bool) {
	i, ok := t.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return t.rows[i], true
}

func (t *memTable[T]) insert(v T) {
	t.index[t.idOf(v)] = len(t.rows)
	t.rows = append(t.rows, v)
}

func (t *memTable[T]) replace(v T) {
	t.rows[t.index[t.idOf(v)]] = v
}

func (t *memTable[T]) find(match func(T) bool) (T, bool) {
	for _, v := range t.rows {
		if match(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (t *memTable[T]) clone() *memTable[T] {
	c := &memTable[T]{
		seq:   t.seq,
		rows:  append([]T(nil), t.rows...),
		index: make(map[string]int, len(t.index)),
		idOf:  t.idOf,
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	return c
}

// nextID advances the sequence and formats it like P001.
func (t *memTable[T]) nextID(prefix string) (string, int64) {
	for {
		t.seq++
		id := fmt.Sprintf("%s%03d", prefix, t.seq)
		if _, taken := t.index[id]; !taken {
			return id, t.seq
		}
	}
}

type memTableJSON[T any] struct {
	Seq  int64 `json:"seq"`
	Rows []T   `json:"rows"`
}

func (t *memTable[T]) MarshalJSON() ([]byte, error) {
	rows := t.rows
	if rows == nil {
		rows = []T{}
	}
	return json.Marshal(memTableJSON[T]{Seq: t.seq, Rows: rows})
}

func (t *memTable[T]) UnmarshalJSON(b []byte) error {
	var raw memTableJSON[T]
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t.seq = raw.Seq
	t.rows = nil
	t.index = make(map[string]int, len(raw.Rows))
	for _, v := range raw.Rows {
		t.insert(v)
	}
	return nil
}

// memState is one consistent version of every collection.
type memState struct {
	patients     *memTable[Patient]
	appointments *memTable[Appointment]
	samples      *memTable[Sample]
	results      *memTable[Result]
	items        *memTable[InventoryItem]
	history      *memTable[StatusChange]
}

func newMemState() *memState {
	return &memState{
		patients:     newMemTable(func(p Patient) string { return p.ID }),
		appointments: newMemTable(func(a Appointment) string { return a.ID }),
		samples:      newMemTable(func(s Sample) string { return s.ID }),
		results:      newMemTable(func(r Result) string { return r.ID }),
		items:        newMemTable(func(it InventoryItem) string { return it.ID }),
		history:      newMemTable(func(h StatusChange) string { return h.ID }),
	}
}

func (st *memState) clone() *memState {
	return &memState{
		patients:     st.patients.clone(),
		appointments: st.appointments.clone(),
		samples:      st.samples.clone(),
		results:      st.results.clone(),
		items:        st.items.clone(),
		history:      st.history.clone(),
	}
}

// buckets names each collection for snapshot persistence.
func (st *memState) buckets() map[string]json.Marshaler {
	return map[string]json.Marshaler{
		"patients":      st.patients,
		"appointments":  st.appointments,
		"samples":       st.samples,
		"results":       st.results,
		"inventory":     st.items,
		"status_change": st.history,
	}
}

func (st *memState) load(bucket string, payload []byte) error {
	var target json.Unmarshaler
	switch bucket {
	case "patients":
		target = st.patients
	case "appointments":
		target = st.appointments
	case "samples":
		target = st.samples
	case "results":
		target = st.results
	case "inventory":
		target = st.items
	case "status_change":
		target = st.history
	default:
		return fmt.Errorf("unknown bucket %q", bucket)
	}
	return target.UnmarshalJSON(payload)
}

type memTxKey struct{}

type memTx struct {
	store *MemStore
	state *memState
	dirty bool
}

// MemStore keeps every collection in memory. Transactions work on a private
// copy that replaces the shared state on success, so readers only ever see
// committed data. Values are copied in and out.
type MemStore struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	state    *memState
	barcodes BarcodeGenerator
	// commit, when set, runs with the new state before it is published. An
	// error aborts the transaction.
	commit func(ctx context.Context, st *memState) error

	patients     *memPatientRepo
	appointments *memAppointmentRepo
	samples      *memSampleRepo
	results      *memResultRepo
	inventory    *memInventoryRepo
	historyRepo  *memHistoryRepo
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty store. A nil generator uses DefaultBarcodes.
func NewMemStore(barcodes BarcodeGenerator) *MemStore {
	if barcodes == nil {
		barcodes = DefaultBarcodes
	}
	s := &MemStore{state: newMemState(), barcodes: barcodes}
	s.patients = &memPatientRepo{s}
	s.appointments = &memAppointmentRepo{s}
	s.samples = &memSampleRepo{s}
	s.results = &memResultRepo{s}
	s.inventory = &memInventoryRepo{s}
	s.historyRepo = &memHistoryRepo{s}
	return s
}

func (s *MemStore) Patients() PatientRepository         { return s.patients }
func (s *MemStore) Appointments() AppointmentRepository { return s.appointments }
func (s *MemStore) Samples() SampleRepository           { return s.samples }
func (s *MemStore) Results() ResultRepository           { return s.results }
func (s *MemStore) Inventory() InventoryRepository      { return s.inventory }
func (s *MemStore) History() StatusHistoryRepository    { return s.historyRepo }

func (s *MemStore) Ping(context.Context) error { return nil }

func (s *MemStore) txFrom(ctx context.Context) *memTx {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok && tx.store == s {
		return tx
	}
	return nil
}

func (s *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	tx := &memTx{store: s, state: work}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	if s.commit != nil {
		if err := s.commit(ctx, work); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

func (s *MemStore) read(ctx context.Context, fn func(st *memState) error) error {
	if tx := s.txFrom(ctx); tx != nil {
		return fn(tx.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *MemStore) write(ctx context.Context, fn func(st *memState) error) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		tx := s.txFrom(ctx)
		tx.dirty = true
		return fn(tx.state)
	})
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func staleVersion(kind, id string, have, want int) error {
	return fmt.Errorf("%s %s: version %d is stale, current is %d: %w", kind, id, have, want, ErrConflict)
}

func ptr[T any](v T) *T { return &v }

func listOf[T any](rows []T, keep func(T) bool, copyOf func(T) T) []*T {
	out := make([]*T, 0, len(rows))
	for _, v := range rows {
		if keep == nil || keep(v) {
			out = append(out, ptr(copyOf(v)))
		}
	}
	return out
}

func same[T any](v T) T { return v }

// -- Patients --

type memPatientRepo struct{ s *MemStore }

func (r *memPatientRepo) Create(ctx context.Context, p *Patient) error {
	return r.s.write(ctx, func(st *memState) error {
		if _, dup := st.patients.find(func(o Patient) bool { return o.NationalID == p.NationalID }); dup {
			return fmt.Errorf("national_id %s already registered: %w", p.NationalID, ErrConflict)
		}
		p.ID, _ = st.patients.nextID("P")
		p.VersionID = 1
		stamp(&p.CreatedAt, &p.UpdatedAt)
		st.patients.insert(*p)
		return nil
	})
}

func (r *memPatientRepo) GetByID(ctx context.Context, id string) (*Patient, error) {
	var out *Patient
	err := r.s.read(ctx, func(st *memState) error {
		p, ok := st.patients.get(id)
		if !ok {
			return notFound("patient", id)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *memPatientRepo) GetByNationalID(ctx context.Context, nationalID string) (*Patient, error) {
	var out *Patient
	err := r.s.read(ctx, func(st *memState) error {
		p, ok := st.patients.find(func(o Patient) bool { return o.NationalID == nationalID })
		if !ok {
			return notFound("patient", nationalID)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *memPatientRepo) Update(ctx context.Context, p *Patient) error {
	return r.s.write(ctx, func(st *memState) error {
		cur, ok := st.patients.get(p.ID)
		if !ok {
			return notFound("patient", p.ID)
		}
		if cur.VersionID != p.VersionID {
			return staleVersion("patient", p.ID, p.VersionID, cur.VersionID)
		}
		if other, dup := st.patients.find(func(o Patient) bool { return o.NationalID == p.NationalID && o.ID != p.ID }); dup {
			return fmt.Errorf("national_id %s already registered to %s: %w", p.NationalID, other.ID, ErrConflict)
		}
		p.CreatedAt = cur.CreatedAt
		p.VersionID++
		if !p.UpdatedAt.After(cur.UpdatedAt) {
			p.UpdatedAt = time.Now().UTC()
		}
		st.patients.replace(*p)
		return nil
	})
}

func (r *memPatientRepo) List(ctx context.Context) ([]*Patient, error) {
	var out []*Patient
	err := r.s.read(ctx, func(st *memState) error {
		out = listOf(st.patients.rows, nil, same[Patient])
		return nil
	})
	return out, err
}

// -- Appointments --

type memAppointmentRepo struct{ s *MemStore }

func (r *memAppointmentRepo) Create(ctx context.Context, a *Appointment) error {
	return r.s.write(ctx, func(st *memState) error {
		a.ID, _ = st.appointments.nextID("C")
		a.VersionID = 1
		stamp(&a.CreatedAt, &a.UpdatedAt)
		st.appointments.insert(*a)
		return nil
	})
}

func (r *memAppointmentRepo) GetByID(ctx context.Context, id string) (*Appointment, error) {
	var out *Appointment
	err := r.s.read(ctx, func(st *memState) error {
		a, ok := st.appointments.get(id)
		if !ok {
			return notFound("appointment", id)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *memAppointmentRepo) Update(ctx context.Context, a *Appointment) error {
	return r.s.write(ctx, func(st *memState) error {
		cur, ok := st.appointments.get(a.ID)
		if !ok {
			return notFound("appointment", a.ID)
		}
		if cur.VersionID != a.VersionID {
			return staleVersion("appointment", a.ID, a.VersionID, cur.VersionID)
		}
		a.CreatedAt = cur.CreatedAt
		a.VersionID++
		if !a.UpdatedAt.After(cur.UpdatedAt) {
			a.UpdatedAt = time.Now().UTC()
		}
		st.appointments.replace(*a)
		return nil
	})
}

func (r *memAppointmentRepo) List(ctx context.Context) ([]*Appointment, error) {
	var out []*Appointment
	err := r.s.read(ctx, func(st *memState) error {
		out = listOf(st.appointments.rows, nil, same[Appointment])
		return nil
	})
	return out, err
}

func (r *memAppointmentRepo) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	var out []*Appointment
	err := r.s.read(ctx, func(st *memState) error {
		out = listOf(st.appointments.rows, func(a Appointment) bool { return a.PatientID == patientID }, same[Appointment])
		return nil
	})
	return out, err
}

// -- Samples --

type memSampleRepo struct{ s *MemStore }

func copySample(s Sample) Sample {
	if s.CollectedAt != nil {
		s.CollectedAt = ptr(*s.CollectedAt)
	}
	return s
}

func (r *memSampleRepo) Create(ctx context.Context, s *Sample) error {
	return r.s.write(ctx, func(st *memState) error {
		id, seq := st.samples.nextID("M")
		barcode, err := r.s.barcodes.Barcode(seq)
		if err != nil {
			return err
		}
		if _, dup := st.samples.find(func(o Sample) bool { return o.Barcode == barcode }); dup {
			return fmt.Errorf("barcode %s already issued: %w", barcode, ErrConflict)
		}
		s.ID = id
		s.Barcode = barcode
		s.VersionID = 1
		stamp(&s.CreatedAt, &s.UpdatedAt)
		st.samples.insert(copySample(*s))
		return nil
	})
}

func (r *memSampleRepo) GetByID(ctx context.Context, id string) (*Sample, error) {
	var out *Sample
	err := r.s.read(ctx, func(st *memState) error {
		s, ok := st.samples.get(id)
		if !ok {
			return notFound("sample", id)
		}
		out = ptr(copySample(s))
		return nil
	})
	return out, err
}

func (r *memSampleRepo) GetByBarcode(ctx context.Context, barcode string) (*Sample, error) {
	var out *Sample
	err := r.s.read(ctx, func(st *memState) error {
		s, ok := st.samples.find(func(o Sample) bool { return o.Barcode == barcode })
		if !ok {
			return notFound("sample", barcode)
		}
		out = ptr(copySample(s))
		return nil
	})
	return out, err
}

func (r *memSampleRepo) Update(ctx context.Context, s *Sample) error {
	return r.s.write(ctx, func(st *memState) error {
		cur, ok := st.samples.get(s.ID)
		if !ok {
			return notFound("sample", s.ID)
		}
		if cur.VersionID != s.VersionID {
			return staleVersion("sample", s.ID, s.VersionID, cur.VersionID)
		}
		s.Barcode = cur.Barcode
		s.CreatedAt = cur.CreatedAt
		s.VersionID++
		if !s.UpdatedAt.After(cur.UpdatedAt) {
			s.UpdatedAt = time.Now().UTC()
		}
		st.samples.replace(copySample(*s))
		return nil
	})
}

func (r *memSampleRepo) List(ctx context.Context) ([]*Sample, error) {
	var out []*Sample
	err := r.s.read(ctx, func(st *memState) error {
		out = listOf(st.samples.rows, nil, copySample)
		return nil
	})
	return out, err
}

func (r *memSampleRepo) ListByPatient(ctx context.Context, patientID string) ([]*Sample, error) {
	var out []*Sample
	err := r.s.read(ctx, func(st *memState) error {
		out = listOf(st.samples.rows, func(s Sample) bool { return s.PatientID == patientID }, copySample)
		return nil
	})
	return out, err
}

// -- Results --

type memResultRepo struct{ s *MemStore }

// copyResult detaches the entries and recomputes the abnormal flag.
func copyResult(r Result) Result {
	r.Entries = append([]ResultEntry{}, r.Entries...)
	r.Refresh()
	return r
}

func (r *memResultRepo) Create(ctx context.Context, res *Result) error {
	return r.s.write(ctx, func(st *memState) error {
		if other, dup := st.results.find(func(o Result) bool { return o.SampleID == res.SampleID }); dup {
			return fmt.Errorf("sample %s already has result %s: %w", res.SampleID, other.ID, ErrConflict)
		}
		res.ID, _ = st.results.nextID("R")
		res.VersionID = 1
		stamp(&res.CreatedAt, &res.UpdatedAt)
		res.Refresh()
		st.results.insert(copyResult(*res))
		return nil
	})
}

func (r *memResultRepo) GetByID(ctx context.Context, id string) (*Result, error) {
	var out *Result
	err := r.s.read(ctx, func(st *memState) error {
		res, ok := st.results.get(id)
		if !ok {
			return notFound("result", id)
		}
		out = ptr(copyResult(res))
		return nil
	})
	return out, err
}

func (r *memResultRepo) GetBySample(ctx context.Context, sampleID string) (*Result, error) {
	var out *Result
	err := r.s.read(ctx, func(st *memState) error {
		res, ok := st.results.find(func(o Result) bool { return o.SampleID == sampleID })
		if !ok {
			return notFound("result for sample", sampleID)
		}
		out = ptr(copyResult(res))
		return nil
	})
	return out, err
}

func (r *memResultRepo) Update(ctx context.Context, res *Result) error {
	return r.s.write(ctx, func(st *memState) error {
		cur, ok := st.results.get(res.ID)
		if !ok {
			return notFound("result", res.ID)
		}
		if cur.VersionID != res.VersionID {
			return staleVersion("result", res.ID, res.VersionID, cur.VersionID)
		}
		res.SampleID = cur.SampleID
		res.CreatedAt = cur.CreatedAt
		res.VersionID++
		if !res.UpdatedAt.After(cur.UpdatedAt) {
			res.UpdatedAt = time.Now().UTC()
		}
		res.Refresh()
		st.results.replace(copyResult(*res))
		return nil
	})
}

func (r *memResultRepo) List(ctx context.Context) ([]*Result, error) {
	var out []*Result
	err := r.s.read(ctx, func(st *memState) error {
		out = listOf(st.results.rows, nil, copyResult)
		return nil
	})
	return out, err
}

func (r *memResultRepo) ListByPatient(ctx context.Context, patientID string) ([]*Result, error) {
	var out []*Result
	err := r.s.read(ctx, func(st *memState) error {
		out = listOf(st.results.rows, func(res Result) bool { return res.PatientID == patientID }, copyResult)
		return nil
	})
	return out, err
}

// -- Inventory --

type memInventoryRepo struct{ s *MemStore }

func copyItem(it InventoryItem) InventoryItem {
	if it.ExpiryDate != nil {
		it.ExpiryDate = ptr(*it.ExpiryDate)
	}
	return it
}

func (r *memInventoryRepo) Create(ctx context.Context, it *InventoryItem) error {
	return r.s.write(ctx, func(st *memState) error {
		it.ID, _ = st.items.nextID("INV")
		it.VersionID = 1
		stamp(&it.CreatedAt, &it.UpdatedAt)
		st.items.insert(copyItem(*it))
		return nil
	})
}

func (r *memInventoryRepo) GetByID(ctx context.Context, id string) (*InventoryItem, error) {
	var out *InventoryItem
	err := r.s.read(ctx, func(st *memState) error {
		it, ok := st.items.get(id)
		if !ok {
			return notFound("inventory item", id)
		}
		out = ptr(copyItem(it))
		return nil
	})
	return out, err
}

func (r *memInventoryRepo) Update(ctx context.Context, it *InventoryItem) error {
	return r.s.write(ctx, func(st *memState) error {
		cur, ok := st.items.get(it.ID)
		if !ok {
			return notFound("inventory item", it.ID)
		}
		if cur.VersionID != it.VersionID {
			return staleVersion("inventory item", it.ID, it.VersionID, cur.VersionID)
		}
		it.CreatedAt = cur.CreatedAt
		it.VersionID++
		if !it.UpdatedAt.After(cur.UpdatedAt) {
			it.UpdatedAt = time.Now().UTC()
		}
		st.items.replace(copyItem(*it))
		return nil
	})
}

func (r *memInventoryRepo) List(ctx context.Context) ([]*InventoryItem, error) {
	var out []*InventoryItem
	err := r.s.read(ctx, func(st *memState) error {
		out = listOf(st.items.rows, nil, copyItem)
		return nil
	})
	return out, err
}

// -- Status history --

type memHistoryRepo struct{ s *MemStore }

func (r *memHistoryRepo) Create(ctx context.Context, h *StatusChange) error {
	return r.s.write(ctx, func(st *memState) error {
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		if h.ChangedAt.IsZero() {
			h.ChangedAt = time.Now().UTC()
		}
		st.history.insert(*h)
		return nil
	})
}

func (r *memHistoryRepo) GetByEntity(ctx context.Context, entity EntityKind, entityID string) ([]*StatusChange, error) {
	var out []*StatusChange
	err := r.s.read(ctx, func(st *memState) error {
		out = listOf(st.history.rows, func(h StatusChange) bool {
			return h.Entity == entity && h.EntityID == entityID
		}, same[StatusChange])
		return nil
	})
	return out, err
}
