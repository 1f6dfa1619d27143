package controllers

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"gymcheckin/internal/delivery/http/helpers"
	"gymcheckin/internal/domain"
)

// maxFrameBytes bounds an uploaded camera frame.
const maxFrameBytes = 8 << 20

// FrameSink receives frames and permission changes from the device that owns
// the camera. camera.Feed implements it.
type FrameSink interface {
	Publish(img image.Image) bool
	Deny()
	Allow()
}

// StartDetectionRequest is the request body for POST /attendance/detection.
type StartDetectionRequest struct {
	FacingMode string `json:"facing_mode"`
}

// Validate implements Validator. facing_mode is "user" or "environment" (default).
func (s StartDetectionRequest) Validate() []string {
	if _, ok := domain.ParseFacingMode(s.FacingMode); !ok {
		return []string{"facing_mode must be one of: user, environment"}
	}
	return nil
}

// DetectionStatusSuccessResponse is the success response envelope for the detection endpoints.
type DetectionStatusSuccessResponse struct {
	Data  domain.DetectionStatus `json:"data"`
	Error *helpers.APIError      `json:"error"`
}

type DetectionController struct {
	Logger  *slog.Logger
	Service domain.DetectionService
	Frames  FrameSink
}

func NewDetectionController(logger *slog.Logger, svc domain.DetectionService, frames FrameSink) *DetectionController {
	return &DetectionController{
		Logger:  logger,
		Service: svc,
		Frames:  frames,
	}
}

// Start godoc
// @Summary Start camera detection
// @Description Opens the camera and starts the scan loop. Decoded codes are dispatched exactly like POST /attendance/scans.
// @Tags detection
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body StartDetectionRequest false "Camera selection"
// @Success 201 {object} controllers.DetectionStatusSuccessResponse "data contains the session status"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (session already active)"
// @Failure 422 {object} helpers.APIResponse "error.code: unprocessable (permission denied, no camera, no decoder)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/detection [post]
func (c *DetectionController) Start(w http.ResponseWriter, r *http.Request) {
	var req StartDetectionRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	mode, _ := domain.ParseFacingMode(req.FacingMode)
	// Starting from the device is a fresh grant.
	c.Frames.Allow()
	st, err := c.Service.Start(r.Context(), mode)
	if err != nil {
		if !helpers.WriteDomainError(w, err) {
			c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		}
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, st)
}

// Stop godoc
// @Summary Stop camera detection
// @Description Stops the scan loop and releases the camera. Idempotent.
// @Tags detection
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.DetectionStatusSuccessResponse "data contains the session status"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /attendance/detection [delete]
func (c *DetectionController) Stop(w http.ResponseWriter, r *http.Request) {
	if err := c.Service.Stop(); err != nil {
		c.Logger.WarnContext(r.Context(), "camera release failed", "err", err)
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, c.Service.Status())
}

// Status godoc
// @Summary Detection status
// @Tags detection
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.DetectionStatusSuccessResponse "data contains the session status"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /attendance/detection [get]
func (c *DetectionController) Status(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONSuccess(w, http.StatusOK, c.Service.Status())
}

// PushFrame godoc
// @Summary Upload a camera frame
// @Description The device owning the camera posts frames here while a session is active. Only the latest unread frame is kept.
// @Tags detection
// @Accept image/png
// @Accept image/jpeg
// @Produce json
// @Security BearerAuth
// @Success 202 {object} helpers.APIResponse "frame accepted"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (no session streaming)"
// @Router /attendance/detection/frames [post]
func (c *DetectionController) PushFrame(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/png") && !strings.HasPrefix(ct, "image/jpeg") {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "content type must be image/png or image/jpeg")
		return
	}
	img, _, err := image.Decode(io.LimitReader(r.Body, maxFrameBytes))
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "unreadable image: "+err.Error())
		return
	}
	if !c.Frames.Publish(img) {
		helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeConflict, "no detection session is streaming")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// ReportDenied godoc
// @Summary Report a camera permission denial
// @Description The device refused camera access. The running session ends with permission denied; manual entry keeps working.
// @Tags detection
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.DetectionStatusSuccessResponse "data contains the session status"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /attendance/detection/denied [post]
func (c *DetectionController) ReportDenied(w http.ResponseWriter, r *http.Request) {
	c.Frames.Deny()
	c.Logger.InfoContext(r.Context(), "camera permission denied by device")
	if err := c.Service.Stop(); err != nil {
		c.Logger.WarnContext(r.Context(), "camera release failed", "err", err)
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, c.Service.Status())
}
