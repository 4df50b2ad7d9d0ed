package lab

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

var appointmentLabels = map[AppointmentStatus]string{
	AppointmentPending:   "Pendiente",
	AppointmentConfirmed: "Confirmada",
	AppointmentCompleted: "Completada",
	AppointmentCancelled: "Cancelada",
}

// Label returns the front-desk display text.
func (s AppointmentStatus) Label() string { return label(appointmentLabels, s) }

// SampleStatus is the lifecycle state of a sample.
type SampleStatus string

const (
	SamplePending    SampleStatus = "pending"
	SampleCollected  SampleStatus = "collected"
	SampleProcessing SampleStatus = "processing"
	SampleCompleted  SampleStatus = "completed"
)

var sampleLabels = map[SampleStatus]string{
	SamplePending:    "Pendiente",
	SampleCollected:  "Recolectada",
	SampleProcessing: "En Proceso",
	SampleCompleted:  "Completada",
}

func (s SampleStatus) Label() string { return label(sampleLabels, s) }

// Rank orders sample states along the forward-only workflow. Unknown states
// rank below pending.
func (s SampleStatus) Rank() int {
	switch s {
	case SamplePending:
		return 1
	case SampleCollected:
		return 2
	case SampleProcessing:
		return 3
	case SampleCompleted:
		return 4
	}
	return 0
}

// ResultStatus is the lifecycle state of a result.
type ResultStatus string

const (
	ResultPending   ResultStatus = "pending"
	ResultInReview  ResultStatus = "in_review"
	ResultCompleted ResultStatus = "completed"
)

var resultLabels = map[ResultStatus]string{
	ResultPending:   "Pendiente",
	ResultInReview:  "En Revisión",
	ResultCompleted: "Completado",
}

func (s ResultStatus) Label() string { return label(resultLabels, s) }

func label[S ~string](labels map[S]string, s S) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// -- Workflow state machines --

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentPending:   {AppointmentConfirmed, AppointmentCancelled},
	AppointmentConfirmed: {AppointmentCompleted, AppointmentCancelled},
	AppointmentCompleted: {},
	AppointmentCancelled: {},
}

var sampleTransitions = map[SampleStatus][]SampleStatus{
	SamplePending:    {SampleCollected},
	SampleCollected:  {SampleProcessing},
	SampleProcessing: {SampleCompleted},
	SampleCompleted:  {},
}

var resultTransitions = map[ResultStatus][]ResultStatus{
	ResultPending:   {ResultInReview},
	ResultInReview:  {ResultCompleted},
	ResultCompleted: {},
}

func allowed[S comparable](table map[S][]S, from, to S) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionAppointment reports whether from -> to is a permitted edge.
func CanTransitionAppointment(from, to AppointmentStatus) bool {
	return allowed(appointmentTransitions, from, to)
}

// CanTransitionSample reports whether from -> to is a permitted edge.
func CanTransitionSample(from, to SampleStatus) bool {
	return allowed(sampleTransitions, from, to)
}

// CanTransitionResult reports whether from -> to is a permitted edge.
func CanTransitionResult(from, to ResultStatus) bool {
	return allowed(resultTransitions, from, to)
}

// TransitionAppointment returns a with its status moved to to. a itself is
// not modified.
func TransitionAppointment(a Appointment, to AppointmentStatus) (Appointment, error) {
	if !CanTransitionAppointment(a.Status, to) {
		return a, &InvalidTransitionError{Entity: string(KindAppointment), From: string(a.Status), To: string(to)}
	}
	a.Status = to
	return a, nil
}

// TransitionSample returns s with its status moved to to. Collecting requires
// an assigned technician, and voided samples accept no transition.
func TransitionSample(s Sample, to SampleStatus) (Sample, error) {
	if s.Voided {
		return s, invalid("voided", "sample "+s.ID+" is voided and cannot change status")
	}
	if !CanTransitionSample(s.Status, to) {
		return s, &InvalidTransitionError{Entity: string(KindSample), From: string(s.Status), To: string(to)}
	}
	if to == SampleCollected && s.Technician == "" {
		return s, &MissingAssignmentError{SampleID: s.ID}
	}
	s.Status = to
	return s, nil
}

// TransitionResult returns r with its status moved to to. Completing
// requires a reviewer and marks the result reviewed.
func TransitionResult(r Result, to ResultStatus) (Result, error) {
	if !CanTransitionResult(r.Status, to) {
		return r, &InvalidTransitionError{Entity: string(KindResult), From: string(r.Status), To: string(to)}
	}
	if to == ResultCompleted {
		if r.ReviewedBy == "" {
			return r, &MissingReviewerError{ResultID: r.ID}
		}
		r.Reviewed = true
	}
	r.Status = to
	return r, nil
}
