package lab

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/clinlab/labdesk/internal/platform/search"
	"github.com/clinlab/labdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.POST("/patients/:id/archive", h.ArchivePatient)
	api.GET("/patients/:id/history", h.GetPatientHistory)

	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.POST("/appointments/:id/transition", h.TransitionAppointment)

	api.POST("/samples", h.CreateSample)
	api.GET("/samples", h.ListSamples)
	api.GET("/samples/:id", h.GetSample)
	api.POST("/samples/:id/assign", h.AssignTechnician)
	api.POST("/samples/:id/transition", h.TransitionSample)
	api.POST("/samples/:id/void", h.VoidSample)
	api.POST("/samples/:id/reassign", h.ReassignSample)

	api.POST("/results", h.CreateResult)
	api.GET("/results", h.ListResults)
	api.GET("/results/:id", h.GetResult)
	api.PUT("/results/:id/entries", h.RecordEntries)
	api.POST("/results/:id/transition", h.TransitionResult)

	api.POST("/inventory", h.CreateInventoryItem)
	api.GET("/inventory", h.ListInventory)
	api.GET("/inventory/:id", h.GetInventoryItem)
	api.PUT("/inventory/:id", h.UpdateInventoryItem)
	api.POST("/inventory/:id/adjust", h.AdjustStock)

	api.GET("/alerts", h.GetAlerts)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/status-history", h.GetStatusHistory)
}

// mapError translates service errors into HTTP errors.
func mapError(err error) error {
	var (
		ve  *ValidationError
		ite *InvalidTransitionError
		mae *MissingAssignmentError
		mre *MissingReviewerError
	)
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &ite), errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &mae), errors.As(err, &mre):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// filterFrom reads the free-text query "q" and the named facets from the
// query string.
func filterFrom(c echo.Context, facets ...string) search.Filter {
	f := search.Filter{Query: c.QueryParam("q")}
	for _, name := range facets {
		if v := c.QueryParam(name); v != "" {
			if f.Facets == nil {
				f.Facets = make(map[string]string)
			}
			f.Facets[name] = v
		}
	}
	return f
}

// asOf reads the "as_of" query parameter as a date or an RFC 3339
// timestamp, defaulting to the service clock.
func (h *Handler) asOf(c echo.Context) (time.Time, error) {
	raw := c.QueryParam("as_of")
	if raw == "" {
		return h.svc.Now(), nil
	}
	if d, err := ParseDate(raw); err == nil {
		return d.Time, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "as_of must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

func bindJSON(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// -- Patients --

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := bindJSON(c, &p); err != nil {
		return err
	}
	out, err := h.svc.RegisterPatient(c.Request().Context(), p)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ListPatients(c echo.Context) error {
	items, err := h.svc.ListPatients(c.Request().Context(), filterFrom(c, "gender", "blood_type", "archived"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var p Patient
	if err := bindJSON(c, &p); err != nil {
		return err
	}
	p.ID = c.Param("id")
	out, err := h.svc.UpdatePatient(c.Request().Context(), p)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ArchivePatient(c echo.Context) error {
	p, err := h.svc.ArchivePatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPatientHistory(c echo.Context) error {
	hist, err := h.svc.PatientHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, hist)
}

// -- Appointments --

type transitionRequest struct {
	Status     string `json:"status"`
	Actor      string `json:"actor"`
	ReviewedBy string `json:"reviewed_by"`
}

func (h *Handler) bindTransition(c echo.Context) (transitionRequest, error) {
	var req transitionRequest
	if err := bindJSON(c, &req); err != nil {
		return req, err
	}
	if req.Status == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	return req, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := bindJSON(c, &a); err != nil {
		return err
	}
	out, err := h.svc.ScheduleAppointment(c.Request().Context(), a)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	items, err := h.svc.ListAppointments(c.Request().Context(), filterFrom(c, "status", "priority", "test_type", "date", "patient_id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.svc.GetAppointment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) TransitionAppointment(c echo.Context) error {
	req, err := h.bindTransition(c)
	if err != nil {
		return err
	}
	a, err := h.svc.TransitionAppointment(c.Request().Context(), c.Param("id"), AppointmentStatus(req.Status), req.Actor)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// -- Samples --

func (h *Handler) CreateSample(c echo.Context) error {
	var s Sample
	if err := bindJSON(c, &s); err != nil {
		return err
	}
	out, err := h.svc.RegisterSample(c.Request().Context(), s)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

// ListSamples also resolves an exact "barcode" query parameter.
func (h *Handler) ListSamples(c echo.Context) error {
	ctx := c.Request().Context()
	if code := c.QueryParam("barcode"); code != "" {
		s, err := h.svc.GetSampleByBarcode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusOK, pagination.Page([]Sample{}, pagination.FromContext(c)))
		}
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, pagination.Page([]Sample{*s}, pagination.FromContext(c)))
	}
	items, err := h.svc.ListSamples(ctx, filterFrom(c, "status", "sample_type", "storage", "technician", "patient_id", "voided"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}

func (h *Handler) GetSample(c echo.Context) error {
	s, err := h.svc.GetSample(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) AssignTechnician(c echo.Context) error {
	var req struct {
		Technician string `json:"technician"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	s, err := h.svc.AssignTechnician(c.Request().Context(), c.Param("id"), req.Technician)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) TransitionSample(c echo.Context) error {
	req, err := h.bindTransition(c)
	if err != nil {
		return err
	}
	s, err := h.svc.TransitionSample(c.Request().Context(), c.Param("id"), SampleStatus(req.Status), req.Actor)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) VoidSample(c echo.Context) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	s, err := h.svc.VoidSample(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ReassignSample(c echo.Context) error {
	var req struct {
		PatientID string `json:"patient_id"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	s, err := h.svc.ReassignSample(c.Request().Context(), c.Param("id"), req.PatientID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

// -- Results --

func (h *Handler) CreateResult(c echo.Context) error {
	var r Result
	if err := bindJSON(c, &r); err != nil {
		return err
	}
	out, err := h.svc.RegisterResult(c.Request().Context(), r)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ListResults(c echo.Context) error {
	items, err := h.svc.ListResults(c.Request().Context(), filterFrom(c, "status", "abnormal", "reviewed", "test_type", "patient_id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}

func (h *Handler) GetResult(c echo.Context) error {
	r, err := h.svc.GetResult(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) RecordEntries(c echo.Context) error {
	var req struct {
		Entries []ResultEntry `json:"entries"`
		ResultDetails
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	r, err := h.svc.RecordEntries(c.Request().Context(), c.Param("id"), req.Entries, req.ResultDetails)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) TransitionResult(c echo.Context) error {
	req, err := h.bindTransition(c)
	if err != nil {
		return err
	}
	r, err := h.svc.TransitionResult(c.Request().Context(), c.Param("id"), ResultStatus(req.Status), req.ReviewedBy, req.Actor)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, r)
}

// -- Inventory --

func (h *Handler) views(items []InventoryItem, asOf time.Time) []InventoryView {
	out := make([]InventoryView, len(items))
	for i, it := range items {
		out[i] = h.svc.Describe(it, asOf)
	}
	return out
}

func (h *Handler) CreateInventoryItem(c echo.Context) error {
	var it InventoryItem
	if err := bindJSON(c, &it); err != nil {
		return err
	}
	out, err := h.svc.AddInventoryItem(c.Request().Context(), it)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, h.svc.Describe(*out, h.svc.Now()))
}

func (h *Handler) ListInventory(c echo.Context) error {
	asOf, err := h.asOf(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListInventory(c.Request().Context(), filterFrom(c, "category", "supplier", "location", "stock_status", "expiry"), asOf)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(h.views(items, asOf), pagination.FromContext(c)))
}

func (h *Handler) GetInventoryItem(c echo.Context) error {
	it, err := h.svc.GetInventoryItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, h.svc.Describe(*it, h.svc.Now()))
}

func (h *Handler) UpdateInventoryItem(c echo.Context) error {
	var it InventoryItem
	if err := bindJSON(c, &it); err != nil {
		return err
	}
	it.ID = c.Param("id")
	out, err := h.svc.UpdateInventoryItem(c.Request().Context(), it)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, h.svc.Describe(*out, h.svc.Now()))
}

func (h *Handler) AdjustStock(c echo.Context) error {
	var req struct {
		Delta  decimal.Decimal `json:"delta"`
		Reason string          `json:"reason"`
		Actor  string          `json:"actor"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	it, err := h.svc.AdjustStock(c.Request().Context(), c.Param("id"), req.Delta, req.Reason, req.Actor)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, h.svc.Describe(*it, h.svc.Now()))
}

// -- Overview --

func (h *Handler) GetAlerts(c echo.Context) error {
	asOf, err := h.asOf(c)
	if err != nil {
		return err
	}
	set, err := h.svc.Alerts(c.Request().Context(), asOf)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, set)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	asOf, err := h.asOf(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), asOf)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetStatusHistory(c echo.Context) error {
	id := c.QueryParam("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	changes, err := h.svc.StatusHistory(c.Request().Context(), EntityKind(c.QueryParam("entity")), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, changes)
}
