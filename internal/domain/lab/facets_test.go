package lab

import (
	"testing"

	"github.com/clinlab/labdesk/internal/platform/search"
)

func TestPatientSearch(t *testing.T) {
	patients := []Patient{
		{ID: "P001", FirstName: "María", LastName: "García Rodríguez", NationalID: "12345678A", Gender: "female"},
		{ID: "P002", FirstName: "Juan", LastName: "Pérez López", NationalID: "87654321B", Gender: "male"},
		{ID: "P003", FirstName: "Ana", LastName: "López Martín", NationalID: "11223344C", Gender: "female"},
	}
	tests := []struct {
		name   string
		filter search.Filter
		want   []string
	}{
		{"accent-insensitive name", search.Filter{Query: "garcia"}, []string{"P001"}},
		{"shared surname", search.Filter{Query: "lópez"}, []string{"P002", "P003"}},
		{"national id", search.Filter{Query: "8765"}, []string{"P002"}},
		{"facet", search.Filter{Facets: map[string]string{"gender": "FEMALE"}}, []string{"P001", "P003"}},
		{"query and facet", search.Filter{Query: "lopez", Facets: map[string]string{"gender": "female"}}, []string{"P003"}},
		{"unknown facet", search.Filter{Facets: map[string]string{"ward": "3"}}, nil},
		{"empty", search.Filter{}, []string{"P001", "P002", "P003"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := search.Apply(patients, tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d matches, want %d", len(got), len(tt.want))
			}
			for i, p := range got {
				if p.ID != tt.want[i] {
					t.Errorf("match %d: got %s, want %s", i, p.ID, tt.want[i])
				}
			}
		})
	}
}

func TestResultFacet_AbnormalDerivedFromEntries(t *testing.T) {
	r := Result{Entries: []ResultEntry{{Parameter: "Glucosa", Value: "128", NormalRange: "70-100"}}}
	if v, ok := r.FacetValue("abnormal"); !ok || v != "true" {
		t.Errorf("expected abnormal=true from entries, got %q %v", v, ok)
	}
}

func TestClassifiedItemFacets(t *testing.T) {
	c := classifiedItem{InventoryItem: InventoryItem{Category: CategoryReagent}, stock: StockCritical, expiry: ExpiryExpired}
	if v, _ := c.FacetValue("stock_status"); v != "critical" {
		t.Errorf("stock_status = %q", v)
	}
	if v, _ := c.FacetValue("expiry"); v != "expired" {
		t.Errorf("expiry = %q", v)
	}
	if v, _ := c.FacetValue("category"); v != "reagent" {
		t.Errorf("category = %q", v)
	}
	if _, ok := c.FacetValue("nope"); ok {
		t.Error("unknown facet should report false")
	}
}
