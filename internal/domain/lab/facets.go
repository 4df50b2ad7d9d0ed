package lab

import (
	"strconv"

	"github.com/clinlab/labdesk/internal/platform/search"
)

var (
	_ search.Searchable = Patient{}
	_ search.Searchable = Appointment{}
	_ search.Searchable = Sample{}
	_ search.Searchable = Result{}
	_ search.Searchable = InventoryItem{}
)

func (p Patient) SearchText() []string {
	return []string{p.ID, p.FullName(), p.NationalID, p.Phone, p.Email}
}

func (p Patient) FacetValue(name string) (string, bool) {
	switch name {
	case "gender":
		return p.Gender, true
	case "blood_type":
		return p.BloodType, true
	case "archived":
		return strconv.FormatBool(p.Archived), true
	}
	return "", false
}

func (a Appointment) SearchText() []string {
	return []string{a.ID, a.PatientID, a.TestType, a.Notes}
}

func (a Appointment) FacetValue(name string) (string, bool) {
	switch name {
	case "status":
		return string(a.Status), true
	case "priority":
		return string(a.Priority), true
	case "test_type":
		return a.TestType, true
	case "date":
		return a.Date.String(), true
	case "patient_id":
		return a.PatientID, true
	}
	return "", false
}

func (s Sample) SearchText() []string {
	return []string{s.ID, s.Barcode, s.PatientID, s.TestType, s.Technician}
}

func (s Sample) FacetValue(name string) (string, bool) {
	switch name {
	case "status":
		return string(s.Status), true
	case "sample_type":
		return string(s.SampleType), true
	case "storage":
		return string(s.StorageCondition), true
	case "technician":
		return s.Technician, true
	case "patient_id":
		return s.PatientID, true
	case "voided":
		return strconv.FormatBool(s.Voided), true
	}
	return "", false
}

func (r Result) SearchText() []string {
	text := []string{r.ID, r.SampleID, r.PatientID, r.TestType}
	for _, e := range r.Entries {
		text = append(text, e.Parameter)
	}
	return text
}

// FacetValue derives "abnormal" from the entries so a stale flag can never
// leak into a filter.
func (r Result) FacetValue(name string) (string, bool) {
	switch name {
	case "status":
		return string(r.Status), true
	case "abnormal":
		return strconv.FormatBool(EntriesAbnormal(r.Entries)), true
	case "reviewed":
		return strconv.FormatBool(r.Reviewed), true
	case "test_type":
		return r.TestType, true
	case "patient_id":
		return r.PatientID, true
	}
	return "", false
}

func (it InventoryItem) SearchText() []string {
	return []string{it.ID, it.Name, it.Supplier, it.LotNumber}
}

func (it InventoryItem) FacetValue(name string) (string, bool) {
	switch name {
	case "category":
		return string(it.Category), true
	case "supplier":
		return it.Supplier, true
	case "location":
		return it.Location, true
	}
	return "", false
}

// classifiedItem adds the threshold-dependent stock_status and expiry facets
// to an inventory item.
type classifiedItem struct {
	InventoryItem
	stock  StockStatus
	expiry ExpiryRisk
}

func (c classifiedItem) FacetValue(name string) (string, bool) {
	switch name {
	case "stock_status":
		return string(c.stock), true
	case "expiry":
		return string(c.expiry), true
	}
	return c.InventoryItem.FacetValue(name)
}
