package lab

import (
	"errors"
	"testing"
)

func TestCanTransitionAppointment(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{AppointmentPending, AppointmentConfirmed, true},
		{AppointmentPending, AppointmentCancelled, true},
		{AppointmentConfirmed, AppointmentCompleted, true},
		{AppointmentConfirmed, AppointmentCancelled, true},
		{AppointmentPending, AppointmentCompleted, false},
		{AppointmentCompleted, AppointmentPending, false},
		{AppointmentCancelled, AppointmentConfirmed, false},
		{AppointmentPending, AppointmentPending, false},
	}
	for _, tt := range tests {
		if got := CanTransitionAppointment(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCanTransitionSample(t *testing.T) {
	tests := []struct {
		from, to SampleStatus
		want     bool
	}{
		{SamplePending, SampleCollected, true},
		{SampleCollected, SampleProcessing, true},
		{SampleProcessing, SampleCompleted, true},
		{SamplePending, SampleCompleted, false},
		{SampleCollected, SampleCompleted, false},
		{SampleCompleted, SampleProcessing, false},
		{SampleProcessing, SamplePending, false},
	}
	for _, tt := range tests {
		if got := CanTransitionSample(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCanTransitionResult(t *testing.T) {
	tests := []struct {
		from, to ResultStatus
		want     bool
	}{
		{ResultPending, ResultInReview, true},
		{ResultInReview, ResultCompleted, true},
		{ResultInReview, ResultPending, false},
		{ResultPending, ResultCompleted, false},
		{ResultCompleted, ResultInReview, false},
	}
	for _, tt := range tests {
		if got := CanTransitionResult(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

// expectEdge checks one transition outcome: permitted edges move to the
// target, every other edge fails with InvalidTransitionError and leaves the
// status where it was.
func expectEdge(t *testing.T, entity, from, to, got string, allowed bool, err error) {
	t.Helper()
	if allowed {
		if err != nil || got != to {
			t.Errorf("%s %s -> %s: expected success, got status %s, err %v", entity, from, to, got, err)
		}
		return
	}
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Errorf("%s %s -> %s: expected InvalidTransitionError, got %v", entity, from, to, err)
		return
	}
	if ite.Entity != entity || ite.From != from || ite.To != to {
		t.Errorf("%s %s -> %s: unexpected error fields %+v", entity, from, to, ite)
	}
	if got != from {
		t.Errorf("%s %s -> %s: rejected edge moved status to %s", entity, from, to, got)
	}
}

func TestTransitions_EveryEdge(t *testing.T) {
	appointments := []AppointmentStatus{AppointmentPending, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled, "archived"}
	apptEdges := map[[2]AppointmentStatus]bool{
		{AppointmentPending, AppointmentConfirmed}:   true,
		{AppointmentPending, AppointmentCancelled}:   true,
		{AppointmentConfirmed, AppointmentCompleted}: true,
		{AppointmentConfirmed, AppointmentCancelled}: true,
	}
	for _, from := range appointments {
		for _, to := range appointments {
			next, err := TransitionAppointment(Appointment{ID: "C001", Status: from}, to)
			expectEdge(t, "appointment", string(from), string(to), string(next.Status), apptEdges[[2]AppointmentStatus{from, to}], err)
		}
	}

	samples := []SampleStatus{SamplePending, SampleCollected, SampleProcessing, SampleCompleted, "lost"}
	sampleEdges := map[[2]SampleStatus]bool{
		{SamplePending, SampleCollected}:    true,
		{SampleCollected, SampleProcessing}: true,
		{SampleProcessing, SampleCompleted}: true,
	}
	for _, from := range samples {
		for _, to := range samples {
			next, err := TransitionSample(Sample{ID: "M001", Status: from, Technician: "Dr. López"}, to)
			expectEdge(t, "sample", string(from), string(to), string(next.Status), sampleEdges[[2]SampleStatus{from, to}], err)
		}
	}

	results := []ResultStatus{ResultPending, ResultInReview, ResultCompleted, "amended"}
	resultEdges := map[[2]ResultStatus]bool{
		{ResultPending, ResultInReview}:   true,
		{ResultInReview, ResultCompleted}: true,
	}
	for _, from := range results {
		for _, to := range results {
			next, err := TransitionResult(Result{ID: "R001", Status: from, ReviewedBy: "Dra. Martínez"}, to)
			expectEdge(t, "result", string(from), string(to), string(next.Status), resultEdges[[2]ResultStatus{from, to}], err)
		}
	}
}

func TestTransitionAppointment_CompletedCannotBeCancelled(t *testing.T) {
	a := Appointment{ID: "C001", Status: AppointmentCompleted}
	next, err := TransitionAppointment(a, AppointmentCancelled)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if next.Status != AppointmentCompleted {
		t.Errorf("expected status to stay completed, got %s", next.Status)
	}
}

func TestTransitionAppointment_LeavesInputUntouched(t *testing.T) {
	a := Appointment{ID: "C001", Status: AppointmentPending}
	next, err := TransitionAppointment(a, AppointmentConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Status != AppointmentConfirmed || a.Status != AppointmentPending {
		t.Errorf("expected copy to move and input to stay, got %s / %s", next.Status, a.Status)
	}

	_, err = TransitionAppointment(a, AppointmentCompleted)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.Entity != "appointment" || ite.From != "pending" || ite.To != "completed" {
		t.Errorf("unexpected error fields %+v", ite)
	}
}

func TestTransitionSample_RequiresTechnician(t *testing.T) {
	s := Sample{ID: "M003", Status: SamplePending}
	_, err := TransitionSample(s, SampleCollected)
	var mae *MissingAssignmentError
	if !errors.As(err, &mae) || mae.SampleID != "M003" {
		t.Fatalf("expected MissingAssignmentError for M003, got %v", err)
	}

	s.Technician = "Dr. López"
	next, err := TransitionSample(s, SampleCollected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Status != SampleCollected {
		t.Errorf("expected collected, got %s", next.Status)
	}
}

func TestTransitionSample_Voided(t *testing.T) {
	s := Sample{ID: "M001", Status: SampleCollected, Technician: "x", Voided: true}
	_, err := TransitionSample(s, SampleProcessing)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "voided" {
		t.Fatalf("expected voided validation error, got %v", err)
	}
}

func TestTransitionSample_CannotSkip(t *testing.T) {
	_, err := TransitionSample(Sample{Status: SamplePending, Technician: "x"}, SampleCompleted)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestTransitionResult_RequiresReviewer(t *testing.T) {
	r := Result{ID: "R002", Status: ResultInReview}
	_, err := TransitionResult(r, ResultCompleted)
	var mre *MissingReviewerError
	if !errors.As(err, &mre) || mre.ResultID != "R002" {
		t.Fatalf("expected MissingReviewerError, got %v", err)
	}

	r.ReviewedBy = "Dra. Martínez"
	next, err := TransitionResult(r, ResultCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Reviewed || next.Status != ResultCompleted {
		t.Errorf("expected reviewed completed result, got %+v", next)
	}
}

func TestStatusLabels(t *testing.T) {
	if got := ResultInReview.Label(); got != "En Revisión" {
		t.Errorf("unexpected label %q", got)
	}
	if got := SampleProcessing.Label(); got != "En Proceso" {
		t.Errorf("unexpected label %q", got)
	}
	if got := AppointmentStatus("unknown").Label(); got != "unknown" {
		t.Errorf("unknown statuses should fall back to their value, got %q", got)
	}
}

func TestSampleStatus_Rank(t *testing.T) {
	if !(SamplePending.Rank() < SampleCollected.Rank() && SampleCollected.Rank() < SampleProcessing.Rank() && SampleProcessing.Rank() < SampleCompleted.Rank()) {
		t.Error("ranks must follow the workflow")
	}
}
