package http

import (
	"context"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	"gymcheckin/internal/delivery/http/controllers"
	"gymcheckin/internal/delivery/http/helpers"
)

// HealthCheck reports whether the process can serve traffic.
type HealthCheck func(ctx context.Context) error

// NewRouter initializes the HTTP router with all application routes.
// requireAuth wraps every attendance route.
func NewRouter(
	attendance *controllers.AttendanceController,
	detection *controllers.DetectionController,
	requireAuth func(http.HandlerFunc) http.HandlerFunc,
	health HealthCheck,
) *http.ServeMux {
	mux := http.NewServeMux()

	// Attendance
	mux.HandleFunc("POST /attendance/scans", requireAuth(attendance.Scan))
	mux.HandleFunc("POST /attendance/events", requireAuth(attendance.ManualEntry))
	mux.HandleFunc("GET /attendance/events", requireAuth(attendance.ListEvents))
	mux.HandleFunc("DELETE /attendance/events", requireAuth(attendance.ResetDay))
	mux.HandleFunc("GET /attendance/events/export", requireAuth(attendance.ExportEvents))
	mux.HandleFunc("POST /attendance/members/{memberID}/checkout", requireAuth(attendance.ForceCheckOut))
	mux.HandleFunc("GET /attendance/presence", requireAuth(attendance.GetPresence))
	mux.HandleFunc("GET /attendance/capacity", requireAuth(attendance.GetCapacity))
	mux.HandleFunc("PUT /attendance/capacity", requireAuth(attendance.SetCapacity))

	// Detection
	mux.HandleFunc("POST /attendance/detection", requireAuth(detection.Start))
	mux.HandleFunc("GET /attendance/detection", requireAuth(detection.Status))
	mux.HandleFunc("DELETE /attendance/detection", requireAuth(detection.Stop))
	mux.HandleFunc("POST /attendance/detection/frames", requireAuth(detection.PushFrame))
	mux.HandleFunc("POST /attendance/detection/denied", requireAuth(detection.ReportDenied))

	mux.HandleFunc("GET /healthz", healthz(health))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

func healthz(check HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				helpers.WriteJSONError(w, http.StatusServiceUnavailable, helpers.ErrCodeInternalError, err.Error())
				return
			}
		}
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
