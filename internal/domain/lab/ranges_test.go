package lab

import "testing"

func TestParseRange_Kinds(t *testing.T) {
	tests := []struct {
		raw  string
		kind RangeKind
		low  string
		high string
	}{
		{"70-100", RangeNumeric, "70", "100"},
		{"4.5-5.5", RangeNumeric, "4.5", "5.5"},
		{"12,0 - 16,0", RangeNumeric, "12", "16"},
		{"0.4 – 4.0", RangeNumeric, "0.4", "4"},
		{"1 to 3", RangeNumeric, "1", "3"},
		{"-5-5", RangeNumeric, "-5", "5"},
		{"70-100 mg/dL", RangeNumeric, "70", "100"},
		{"<200", RangeNumeric, "", "200"},
		{">= 40", RangeNumeric, "40", ""},
		{"≤ 5", RangeNumeric, "", "5"},
		{"Negativo", RangeQualitative, "", ""},
		{"", RangeNone, "", ""},
		{"100-70", RangeNone, "", ""},
		{"12-abc", RangeNone, "", ""},
		{"<abc", RangeNone, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := ParseRange(tt.raw)
			if r.Kind != tt.kind {
				t.Fatalf("expected kind %d, got %d", tt.kind, r.Kind)
			}
			if tt.low != "" && (r.Low == nil || r.Low.String() != tt.low) {
				t.Errorf("expected low %s, got %v", tt.low, r.Low)
			}
			if tt.high != "" && (r.High == nil || r.High.String() != tt.high) {
				t.Errorf("expected high %s, got %v", tt.high, r.High)
			}
		})
	}
}

func TestNormalRange_Excludes(t *testing.T) {
	tests := []struct {
		rng   string
		value string
		want  bool
	}{
		{"70-100", "128", true},
		{"70-100", "128 mg/dL", true},
		{"70-100", "69.9", true},
		{"70-100", "70", false},
		{"70-100", "100", false},
		{"70-100", "85,5", false},
		{"<200", "200", true},
		{"<200", "199", false},
		{"<=200", "200", false},
		{">40", "40", true},
		{">=40", "40", false},
		{"Negativo", "negativo", false},
		{"Negativo", "Positivo", true},
		{"70-100", "hemolizada", false},
		{"", "128", false},
		{"100-70", "128", false},
	}
	for _, tt := range tests {
		t.Run(tt.rng+"/"+tt.value, func(t *testing.T) {
			if got := ParseRange(tt.rng).Excludes(tt.value); got != tt.want {
				t.Errorf("Excludes(%q) against %q = %v, want %v", tt.value, tt.rng, got, tt.want)
			}
		})
	}
}

func TestResultEntry_OutOfRange(t *testing.T) {
	e := ResultEntry{Parameter: "Glucosa", Value: "128", Unit: "mg/dL", NormalRange: "70-100"}
	if !e.OutOfRange() {
		t.Error("expected 128 to be out of 70-100")
	}
	if EntriesAbnormal(nil) {
		t.Error("no entries means not abnormal")
	}
}
