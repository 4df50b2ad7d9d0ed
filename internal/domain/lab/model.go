package lab

import (
	"net/mail"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"
)

// DefaultPhoneRegion is used to parse patient phone numbers written without
// an international prefix.
const DefaultPhoneRegion = "ES"

// Patient maps to the patient table.
type Patient struct {
	ID             string    `db:"id" json:"id"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	NationalID     string    `db:"national_id" json:"national_id"`
	BirthDate      Date      `db:"birth_date" json:"birth_date"`
	Gender         string    `db:"gender" json:"gender,omitempty"`
	BloodType      string    `db:"blood_type" json:"blood_type,omitempty"`
	Phone          string    `db:"phone" json:"phone,omitempty"`
	Email          string    `db:"email" json:"email,omitempty"`
	Address        string    `db:"address" json:"address,omitempty"`
	Allergies      string    `db:"allergies" json:"allergies,omitempty"`
	MedicalHistory string    `db:"medical_history" json:"medical_history,omitempty"`
	Archived       bool      `db:"archived" json:"archived"`
	VersionID      int       `db:"version_id" json:"version_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name the way the front desk displays it.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

var validGenders = map[string]bool{"male": true, "female": true, "other": true}

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// NewPatient validates p and returns a normalized copy.
func NewPatient(p Patient) (*Patient, error) {
	return newPatient(p, DefaultPhoneRegion)
}

func newPatient(p Patient, region string) (*Patient, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.NationalID = strings.ToUpper(strings.TrimSpace(p.NationalID))
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	p.BloodType = strings.ToUpper(strings.TrimSpace(p.BloodType))

	if p.FirstName == "" {
		return nil, required("first_name")
	}
	if p.LastName == "" {
		return nil, required("last_name")
	}
	if p.NationalID == "" {
		return nil, required("national_id")
	}
	if p.BirthDate.IsZero() {
		return nil, required("birth_date")
	}
	if p.Gender != "" && !validGenders[p.Gender] {
		return nil, invalid("gender", "must be one of male, female, other")
	}
	if p.BloodType != "" && !validBloodTypes[p.BloodType] {
		return nil, invalid("blood_type", "is not a recognised ABO/Rh group")
	}
	if p.Phone != "" {
		phone, err := normalizePhone(p.Phone, region)
		if err != nil {
			return nil, err
		}
		p.Phone = phone
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return nil, invalid("email", "is not a valid address")
		}
	}
	return &p, nil
}

// normalizePhone parses raw for region and returns it in E.164 form.
func normalizePhone(raw, region string) (string, error) {
	if region == "" {
		region = DefaultPhoneRegion
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", invalid("phone", "is not a valid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Priority of an appointment.
type Priority string

const (
	PriorityNormal     Priority = "normal"
	PriorityUrgent     Priority = "urgent"
	PriorityVeryUrgent Priority = "very_urgent"
)

var validPriorities = map[Priority]bool{PriorityNormal: true, PriorityUrgent: true, PriorityVeryUrgent: true}

// Appointment maps to the appointment table.
type Appointment struct {
	ID        string            `db:"id" json:"id"`
	PatientID string            `db:"patient_id" json:"patient_id"`
	Date      Date              `db:"date" json:"date"`
	Time      string            `db:"time" json:"time"`
	TestType  string            `db:"test_type" json:"test_type"`
	Priority  Priority          `db:"priority" json:"priority"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Notes     string            `db:"notes" json:"notes,omitempty"`
	VersionID int               `db:"version_id" json:"version_id"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// NewAppointment validates a and returns a copy in the pending state.
func NewAppointment(a Appointment) (*Appointment, error) {
	a.PatientID = strings.TrimSpace(a.PatientID)
	a.Time = strings.TrimSpace(a.Time)
	a.TestType = strings.TrimSpace(a.TestType)

	if a.PatientID == "" {
		return nil, required("patient_id")
	}
	if a.Date.IsZero() {
		return nil, required("date")
	}
	if a.Time == "" {
		return nil, required("time")
	}
	if _, err := time.Parse("15:04", a.Time); err != nil {
		return nil, invalid("time", "must be HH:MM")
	}
	if a.TestType == "" {
		return nil, required("test_type")
	}
	if a.Priority == "" {
		a.Priority = PriorityNormal
	}
	if !validPriorities[a.Priority] {
		return nil, invalid("priority", "must be one of normal, urgent, very_urgent")
	}
	if a.Status == "" {
		a.Status = AppointmentPending
	}
	if a.Status != AppointmentPending {
		return nil, invalid("status", "new appointments start as pending")
	}
	return &a, nil
}

// SampleType is the kind of biological material collected.
type SampleType string

const (
	SampleBlood  SampleType = "blood"
	SampleUrine  SampleType = "urine"
	SampleStool  SampleType = "stool"
	SampleSaliva SampleType = "saliva"
	SampleTissue SampleType = "tissue"
	SampleOther  SampleType = "other"
)

var validSampleTypes = map[SampleType]bool{
	SampleBlood: true, SampleUrine: true, SampleStool: true,
	SampleSaliva: true, SampleTissue: true, SampleOther: true,
}

// StorageCondition describes how a collected sample is kept.
type StorageCondition string

const (
	StorageAmbient      StorageCondition = "ambient"
	StorageRefrigerated StorageCondition = "refrigerated"
	StorageFrozen       StorageCondition = "frozen"
	StorageUltraFrozen  StorageCondition = "ultra_frozen"
)

var validStorageConditions = map[StorageCondition]bool{
	StorageAmbient: true, StorageRefrigerated: true, StorageFrozen: true, StorageUltraFrozen: true,
}

// Sample maps to the sample table.
type Sample struct {
	ID                  string           `db:"id" json:"id"`
	Barcode             string           `db:"barcode" json:"barcode"`
	PatientID           string           `db:"patient_id" json:"patient_id"`
	AppointmentID       string           `db:"appointment_id" json:"appointment_id,omitempty"`
	TestType            string           `db:"test_type" json:"test_type"`
	SampleType          SampleType       `db:"sample_type" json:"sample_type"`
	CollectedAt         *time.Time       `db:"collected_at" json:"collected_at,omitempty"`
	StorageCondition    StorageCondition `db:"storage_condition" json:"storage_condition"`
	Technician          string           `db:"technician" json:"technician,omitempty"`
	Status              SampleStatus     `db:"status" json:"status"`
	Observations        string           `db:"observations" json:"observations,omitempty"`
	SpecialInstructions string           `db:"special_instructions" json:"special_instructions,omitempty"`
	Voided              bool             `db:"voided" json:"voided"`
	VoidReason          string           `db:"void_reason" json:"void_reason,omitempty"`
	VersionID           int              `db:"version_id" json:"version_id"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// NewSample validates s. A sample starts pending, or collected when it is
// registered at the point of draw, in which case a technician is required.
// The barcode is assigned by the store.
func NewSample(s Sample) (*Sample, error) {
	s.PatientID = strings.TrimSpace(s.PatientID)
	s.AppointmentID = strings.TrimSpace(s.AppointmentID)
	s.TestType = strings.TrimSpace(s.TestType)
	s.Technician = strings.TrimSpace(s.Technician)

	if s.PatientID == "" {
		return nil, required("patient_id")
	}
	if s.TestType == "" {
		return nil, required("test_type")
	}
	if s.SampleType == "" {
		return nil, required("sample_type")
	}
	if !validSampleTypes[s.SampleType] {
		return nil, invalid("sample_type", "must be one of blood, urine, stool, saliva, tissue, other")
	}
	if s.StorageCondition == "" {
		s.StorageCondition = StorageAmbient
	}
	if !validStorageConditions[s.StorageCondition] {
		return nil, invalid("storage_condition", "must be one of ambient, refrigerated, frozen, ultra_frozen")
	}
	switch s.Status {
	case "":
		s.Status = SamplePending
	case SamplePending:
	case SampleCollected:
		if s.Technician == "" {
			return nil, &MissingAssignmentError{}
		}
	default:
		return nil, invalid("status", "new samples start as pending or collected")
	}
	s.Voided = false
	s.VoidReason = ""
	return &s, nil
}

// ResultEntry is one measured parameter of a result.
type ResultEntry struct {
	Parameter   string `json:"parameter"`
	Value       string `json:"value"`
	Unit        string `json:"unit,omitempty"`
	NormalRange string `json:"normal_range,omitempty"`
}

// OutOfRange reports whether the measured value falls outside the entry's
// normal range. Entries whose range cannot be interpreted are never out of
// range.
func (e ResultEntry) OutOfRange() bool {
	return ParseRange(e.NormalRange).Excludes(e.Value)
}

// Result maps to the result table.
type Result struct {
	ID             string        `db:"id" json:"id"`
	SampleID       string        `db:"sample_id" json:"sample_id"`
	PatientID      string        `db:"patient_id" json:"patient_id"`
	TestType       string        `db:"test_type" json:"test_type"`
	ResultDate     Date          `db:"result_date" json:"result_date"`
	Entries        []ResultEntry `db:"entries" json:"entries"`
	Reviewed       bool          `db:"reviewed" json:"reviewed"`
	Abnormal       bool          `db:"-" json:"abnormal"`
	Status         ResultStatus  `db:"status" json:"status"`
	Observations   string        `db:"observations" json:"observations,omitempty"`
	Interpretation string        `db:"interpretation" json:"interpretation,omitempty"`
	Equipment      string        `db:"equipment" json:"equipment,omitempty"`
	ReviewedBy     string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	VersionID      int           `db:"version_id" json:"version_id"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// SetEntries replaces the parameter entries and recomputes the abnormal flag.
func (r *Result) SetEntries(entries []ResultEntry) {
	r.Entries = append([]ResultEntry(nil), entries...)
	r.Refresh()
}

// Refresh recomputes derived fields from the stored entries.
func (r *Result) Refresh() {
	r.Abnormal = EntriesAbnormal(r.Entries)
}

// EntriesAbnormal reports whether any entry falls outside its normal range.
func EntriesAbnormal(entries []ResultEntry) bool {
	for _, e := range entries {
		if e.OutOfRange() {
			return true
		}
	}
	return false
}

func validateEntries(entries []ResultEntry) error {
	for _, e := range entries {
		if strings.TrimSpace(e.Parameter) == "" {
			return required("entries.parameter")
		}
		if strings.TrimSpace(e.Value) == "" {
			return invalid("entries.value", "is required for "+e.Parameter)
		}
	}
	return nil
}

// NewResult validates r and returns a pending copy with derived fields set.
// The patient reference and test type are taken from the owning sample by
// the service.
func NewResult(r Result) (*Result, error) {
	r.SampleID = strings.TrimSpace(r.SampleID)
	if r.SampleID == "" {
		return nil, required("sample_id")
	}
	if r.PatientID == "" {
		return nil, required("patient_id")
	}
	if r.TestType == "" {
		return nil, required("test_type")
	}
	if r.ResultDate.IsZero() {
		return nil, required("result_date")
	}
	if err := validateEntries(r.Entries); err != nil {
		return nil, err
	}
	if r.Status == "" {
		r.Status = ResultPending
	}
	if r.Status != ResultPending {
		return nil, invalid("status", "new results start as pending")
	}
	r.Reviewed = false
	r.SetEntries(r.Entries)
	return &r, nil
}

// Category of an inventory item.
type Category string

const (
	CategoryMaterial   Category = "material"
	CategoryReagent    Category = "reagent"
	CategoryEquipment  Category = "equipment"
	CategoryConsumable Category = "consumable"
)

var validCategories = map[Category]bool{
	CategoryMaterial: true, CategoryReagent: true, CategoryEquipment: true, CategoryConsumable: true,
}

// InventoryItem maps to the inventory_item table. Its stock status is always
// derived with Classify and never stored.
type InventoryItem struct {
	ID           string          `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Category     Category        `db:"category" json:"category"`
	CurrentStock decimal.Decimal `db:"current_stock" json:"current_stock"`
	MinThreshold decimal.Decimal `db:"min_threshold" json:"min_threshold"`
	MaxCapacity  decimal.Decimal `db:"max_capacity" json:"max_capacity"`
	Unit         string          `db:"unit" json:"unit"`
	ExpiryDate   *Date           `db:"expiry_date" json:"expiry_date,omitempty"`
	Supplier     string          `db:"supplier" json:"supplier,omitempty"`
	Location     string          `db:"location" json:"location,omitempty"`
	LotNumber    string          `db:"lot_number" json:"lot_number,omitempty"`
	Notes        string          `db:"notes" json:"notes,omitempty"`
	VersionID    int             `db:"version_id" json:"version_id"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// NewInventoryItem validates it and returns a normalized copy.
func NewInventoryItem(it InventoryItem) (*InventoryItem, error) {
	it.Name = strings.TrimSpace(it.Name)
	it.Unit = strings.TrimSpace(it.Unit)
	it.Category = Category(strings.ToLower(strings.TrimSpace(string(it.Category))))

	if it.Name == "" {
		return nil, required("name")
	}
	if it.Category == "" {
		return nil, required("category")
	}
	if !validCategories[it.Category] {
		return nil, invalid("category", "must be one of material, reagent, equipment, consumable")
	}
	if it.Unit == "" {
		return nil, required("unit")
	}
	if err := validateStockLevels(it); err != nil {
		return nil, err
	}
	return &it, nil
}

func validateStockLevels(it InventoryItem) error {
	if it.CurrentStock.IsNegative() {
		return invalid("current_stock", "cannot be negative")
	}
	if it.MinThreshold.IsNegative() {
		return invalid("min_threshold", "cannot be negative")
	}
	if it.MaxCapacity.IsNegative() {
		return invalid("max_capacity", "cannot be negative")
	}
	if it.MinThreshold.GreaterThan(it.MaxCapacity) {
		return invalid("min_threshold", "cannot exceed max_capacity")
	}
	return nil
}

// AdjustStock returns a copy of it with delta applied to the current stock.
// Receipts are positive, consumption negative. An adjustment that would drive
// the stock below zero is rejected and it is returned unchanged.
func AdjustStock(it InventoryItem, delta decimal.Decimal) (InventoryItem, error) {
	next := it.CurrentStock.Add(delta)
	if next.IsNegative() {
		return it, invalid("current_stock", "adjustment would make stock negative")
	}
	it.CurrentStock = next
	return it, nil
}

// EntityKind names the record types that carry a workflow status.
type EntityKind string

const (
	KindAppointment EntityKind = "appointment"
	KindSample      EntityKind = "sample"
	KindResult      EntityKind = "result"
)

// StatusChange records a status transition, mirroring an order status
// history row.
type StatusChange struct {
	ID        string     `db:"id" json:"id"`
	Entity    EntityKind `db:"entity" json:"entity"`
	EntityID  string     `db:"entity_id" json:"entity_id"`
	From      string     `db:"from_status" json:"from_status"`
	To        string     `db:"to_status" json:"to_status"`
	ChangedBy string     `db:"changed_by" json:"changed_by,omitempty"`
	ChangedAt time.Time  `db:"changed_at" json:"changed_at"`
}
