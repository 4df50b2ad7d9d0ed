package lab

import (
	"context"
)

// Repositories return ErrNotFound for unknown ids and ErrConflict for a
// taken unique key. Update is a compare-and-set on VersionID: it succeeds
// only when the caller's VersionID matches the stored one, then bumps it.

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	GetByNationalID(ctx context.Context, nationalID string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context) ([]*Patient, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error)
}

type SampleRepository interface {
	// Create assigns the id and barcode.
	Create(ctx context.Context, s *Sample) error
	GetByID(ctx context.Context, id string) (*Sample, error)
	GetByBarcode(ctx context.Context, barcode string) (*Sample, error)
	Update(ctx context.Context, s *Sample) error
	List(ctx context.Context) ([]*Sample, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Sample, error)
}

type ResultRepository interface {
	// Create fails with ErrConflict when the sample already has a result.
	Create(ctx context.Context, r *Result) error
	GetByID(ctx context.Context, id string) (*Result, error)
	GetBySample(ctx context.Context, sampleID string) (*Result, error)
	Update(ctx context.Context, r *Result) error
	List(ctx context.Context) ([]*Result, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Result, error)
}

type InventoryRepository interface {
	Create(ctx context.Context, it *InventoryItem) error
	GetByID(ctx context.Context, id string) (*InventoryItem, error)
	Update(ctx context.Context, it *InventoryItem) error
	List(ctx context.Context) ([]*InventoryItem, error)
}

type StatusHistoryRepository interface {
	Create(ctx context.Context, h *StatusChange) error
	GetByEntity(ctx context.Context, entity EntityKind, entityID string) ([]*StatusChange, error)
}

// Store bundles the repositories of one backend.
type Store interface {
	Patients() PatientRepository
	Appointments() AppointmentRepository
	Samples() SampleRepository
	Results() ResultRepository
	Inventory() InventoryRepository
	History() StatusHistoryRepository
	// WithinTx runs fn so that either every write it makes through the
	// store is kept or none is.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
}
