package controllers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gymcheckin/internal/delivery/http/helpers"
	"gymcheckin/internal/domain"
)

// ScanRequest is the request body for POST /attendance/scans.
type ScanRequest struct {
	Payload string `json:"payload"`
}

// Validate implements Validator.
func (s ScanRequest) Validate() []string {
	if strings.TrimSpace(s.Payload) == "" {
		return []string{"payload is required"}
	}
	return nil
}

// ManualEntryRequest is the request body for POST /attendance/events.
type ManualEntryRequest struct {
	MemberID string `json:"member_id"`
	Kind     string `json:"kind"`
}

// Validate implements Validator. kind is "in" or "out".
func (m ManualEntryRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(m.MemberID) == "" {
		errs = append(errs, "member_id is required")
	}
	if _, ok := domain.ParseKind(m.Kind); !ok {
		errs = append(errs, "kind must be one of: in, out")
	}
	return errs
}

// CapacityRequest is the request body for PUT /attendance/capacity.
type CapacityRequest struct {
	Limit  int     `json:"limit"`
	WarnAt float64 `json:"warn_at"`
}

// Validate implements Validator.
func (c CapacityRequest) Validate() []string {
	return domain.CapacityConfig{Limit: c.Limit, WarnAt: c.WarnAt}.Validate()
}

// ScanSuccessResponse is the success response envelope for scans and manual entries.
type ScanSuccessResponse struct {
	Data  *domain.ScanOutcome `json:"data"`
	Error *helpers.APIError   `json:"error"`
}

// PresenceSuccessResponse is the success response envelope for GET /attendance/presence (200).
type PresenceSuccessResponse struct {
	Data  *domain.PresenceSnapshot `json:"data"`
	Error *helpers.APIError        `json:"error"`
}

// CapacitySuccessResponse is the success response envelope for the capacity endpoints (200).
type CapacitySuccessResponse struct {
	Data  domain.CapacityUtilization `json:"data"`
	Error *helpers.APIError          `json:"error"`
}

// ListEventsResponse is the data payload for GET /attendance/events.
type ListEventsResponse struct {
	Items      []domain.HistoryRow    `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListEventsSuccessResponse is the success response envelope for GET /attendance/events (200).
type ListEventsSuccessResponse struct {
	Data  ListEventsResponse `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// ResetDayResponse is the data payload for DELETE /attendance/events.
type ResetDayResponse struct {
	Day     string `json:"day"`
	Removed int    `json:"removed"`
}

// ResetDaySuccessResponse is the success response envelope for DELETE /attendance/events (200).
type ResetDaySuccessResponse struct {
	Data  ResetDayResponse  `json:"data"`
	Error *helpers.APIError `json:"error"`
}

type AttendanceController struct {
	Logger   *slog.Logger
	Service  domain.AttendanceService
	Location *time.Location
	now      func() time.Time
}

func NewAttendanceController(logger *slog.Logger, svc domain.AttendanceService, loc *time.Location) *AttendanceController {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceController{
		Logger:   logger,
		Service:  svc,
		Location: loc,
		now:      time.Now,
	}
}

// Scan godoc
// @Summary Submit a decoded payload
// @Description Resolves the payload to a member and checks them in, or out if they are already inside.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ScanRequest true "Decoded code payload"
// @Success 201 {object} controllers.ScanSuccessResponse "data contains the member, the event and utilization"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 422 {object} helpers.APIResponse "error.code: unprocessable (unknown member)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/scans [post]
func (c *AttendanceController) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	out, err := c.Service.Scan(r.Context(), req.Payload)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, out)
}

// ManualEntry godoc
// @Summary Record a manual check-in or check-out
// @Description Operator fallback when the camera is unavailable. The direction must match the member's current state.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ManualEntryRequest true "Member id and direction"
// @Success 201 {object} controllers.ScanSuccessResponse "data contains the member, the event and utilization"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (already inside / not inside)"
// @Failure 422 {object} helpers.APIResponse "error.code: unprocessable (unknown member)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/events [post]
func (c *AttendanceController) ManualEntry(w http.ResponseWriter, r *http.Request) {
	var req ManualEntryRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	kind, _ := domain.ParseKind(req.Kind)
	out, err := c.Service.ManualEntry(r.Context(), strings.TrimSpace(req.MemberID), kind)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, out)
}

// ForceCheckOut godoc
// @Summary Force a member out
// @Description Appends a check-out for a member who is currently inside.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param memberID path string true "Member ID"
// @Success 200 {object} controllers.ScanSuccessResponse "data contains the member, the event and utilization"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (member not inside)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/members/{memberID}/checkout [post]
func (c *AttendanceController) ForceCheckOut(w http.ResponseWriter, r *http.Request) {
	memberID := strings.TrimSpace(r.PathValue("memberID"))
	if memberID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing memberID")
		return
	}
	out, err := c.Service.ForceCheckOut(r.Context(), memberID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, out)
}

// ResetDay godoc
// @Summary Clear one day of attendance
// @Description Removes every event of the given calendar day (facility time, default today) and rebuilds presence from what remains.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param day query string false "Day as YYYY-MM-DD"
// @Success 200 {object} controllers.ResetDaySuccessResponse "data contains the day and the number of removed events"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/events [delete]
func (c *AttendanceController) ResetDay(w http.ResponseWriter, r *http.Request) {
	day := c.now().In(c.Location)
	if s := r.URL.Query().Get("day"); s != "" {
		d, err := time.ParseInLocation(time.DateOnly, s, c.Location)
		if err != nil {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "day must be YYYY-MM-DD")
			return
		}
		day = d
	}
	removed, err := c.Service.ResetDay(r.Context(), day)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ResetDayResponse{Day: day.Format(time.DateOnly), Removed: removed})
}

// ListEvents godoc
// @Summary List attendance history
// @Description Paginated history, newest first. from and to accept RFC3339 timestamps or YYYY-MM-DD days (to is inclusive of that day).
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param from query string false "Start (inclusive)"
// @Param to query string false "End"
// @Param member_id query string false "Member ID"
// @Param kind query string false "in or out"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 50, max 500)"
// @Success 200 {object} controllers.ListEventsSuccessResponse "data contains items and pagination"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/events [get]
func (c *AttendanceController) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := c.parseFilter(r)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}
	page := helpers.ParsePagination(r)
	rows, total, err := c.Service.History(r.Context(), filter, page)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ListEventsResponse{
		Items:      rows,
		Pagination: helpers.NewPaginationMeta(page, total),
	})
}

// ExportEvents godoc
// @Summary Export attendance history as CSV
// @Description Columns at,memberId,name,type. Every field is quoted; at is RFC3339 UTC.
// @Tags attendance
// @Produce text/csv
// @Security BearerAuth
// @Param from query string false "Start (inclusive)"
// @Param to query string false "End"
// @Param member_id query string false "Member ID"
// @Param kind query string false "in or out"
// @Success 200 {string} string "CSV document"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /attendance/events/export [get]
func (c *AttendanceController) ExportEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := c.parseFilter(r)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}
	name := fmt.Sprintf("attendance-%s.csv", c.now().In(c.Location).Format("20060102"))
	helpers.SetAttachment(w, "text/csv; charset=utf-8", name)
	if err := c.Service.ExportCSV(r.Context(), w, filter); err != nil {
		// The CSV header may already be on the wire.
		c.Logger.ErrorContext(r.Context(), "csv export failed", "path", r.URL.Path, "err", err)
	}
}

// GetPresence godoc
// @Summary Who is inside
// @Description Members currently inside, earliest check-in first, with utilization.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.PresenceSuccessResponse "data contains members and utilization"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/presence [get]
func (c *AttendanceController) GetPresence(w http.ResponseWriter, r *http.Request) {
	snap, err := c.Service.Presence(r.Context())
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, snap)
}

// GetCapacity godoc
// @Summary Current utilization
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.CapacitySuccessResponse "data contains count, limit, pct and status"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /attendance/capacity [get]
func (c *AttendanceController) GetCapacity(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONSuccess(w, http.StatusOK, c.Service.Capacity())
}

// SetCapacity godoc
// @Summary Change the capacity limit
// @Description Sets the limit and warning threshold (0..1, default 0.8). The setting is stored and survives restarts.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CapacityRequest true "Capacity configuration"
// @Success 200 {object} controllers.CapacitySuccessResponse "data contains the recomputed utilization"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/capacity [put]
func (c *AttendanceController) SetCapacity(w http.ResponseWriter, r *http.Request) {
	var req CapacityRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	u, err := c.Service.SetCapacity(r.Context(), domain.CapacityConfig{Limit: req.Limit, WarnAt: req.WarnAt})
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, u)
}

func (c *AttendanceController) parseFilter(r *http.Request) (domain.HistoryFilter, error) {
	q := r.URL.Query()
	f := domain.HistoryFilter{MemberID: strings.TrimSpace(q.Get("member_id"))}
	if s := q.Get("kind"); s != "" {
		kind, ok := domain.ParseKind(s)
		if !ok {
			return f, errors.New("kind must be one of: in, out")
		}
		f.Kind = kind
	}
	var err error
	if f.From, err = c.parseBound(q.Get("from"), false); err != nil {
		return f, fmt.Errorf("from: %w", err)
	}
	if f.To, err = c.parseBound(q.Get("to"), true); err != nil {
		return f, fmt.Errorf("to: %w", err)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, errors.New("from must be before to")
	}
	return f, nil
}

// parseBound reads an RFC3339 timestamp or a YYYY-MM-DD day. A day used as
// an upper bound covers that whole day.
func (c *AttendanceController) parseBound(s string, upper bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, c.Location)
	if err != nil {
		return time.Time{}, errors.New("expected RFC3339 timestamp or YYYY-MM-DD")
	}
	if upper {
		return d.AddDate(0, 0, 1), nil
	}
	return d, nil
}

func (c *AttendanceController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if !helpers.WriteDomainError(w, err) {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	}
}
