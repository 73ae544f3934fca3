package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"washhub/internal/config"
	"washhub/internal/database"
	"washhub/internal/domain"
	"washhub/internal/export"
	"washhub/internal/metrics"
	"washhub/internal/models"
	"washhub/internal/payments"
	"washhub/internal/scheduler"
	"washhub/internal/service"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
)

const maxWebhookBody = 64 * 1024

// HTTPServer exposes the booking API, the payment webhook endpoint and
// the job trigger for the assignment sweep.
type HTTPServer struct {
	cfg        config.APIConfig
	stripeCfg  config.StripeConfig
	schedCfg   config.SchedulerConfig
	bookings   *service.BookingService
	washers    *service.WasherService
	assigner   *scheduler.Assigner
	exporter   *export.Exporter
	eventStore domain.EventStore
	server     *http.Server
	auth       *HTTPAuth
	logger     *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, stripeCfg config.StripeConfig, schedCfg config.SchedulerConfig,
	bookings *service.BookingService, washers *service.WasherService, assigner *scheduler.Assigner,
	exporter *export.Exporter, eventStore domain.EventStore, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:        cfg,
		stripeCfg:  stripeCfg,
		schedCfg:   schedCfg,
		bookings:   bookings,
		washers:    washers,
		assigner:   assigner,
		exporter:   exporter,
		eventStore: eventStore,
		logger:     logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/webhooks/stripe", srv.handleStripeWebhook)
	mux.HandleFunc("/api/v1/jobs/assign", srv.handleAssignJob)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingByID)
	mux.HandleFunc("/api/v1/washers/apply", srv.handleWasherApply)
	mux.HandleFunc("/api/v1/admin/applications/review", srv.handleApplicationReview)
	mux.HandleFunc("/api/v1/admin/export", srv.handleAdminExport)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleStripeWebhook verifies the signature, drops duplicate events and
// dispatches by event type. Unhandled event types are acknowledged so
// the provider stops retrying them.
func (s *HTTPServer) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	event, err := payments.VerifyEvent(payload, r.Header.Get("Stripe-Signature"), s.stripeCfg.WebhookSecret)
	if err != nil {
		metrics.IncWebhookEvent("unknown", "bad_signature")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	eventType := string(event.Type)

	seen, err := s.eventStore.MarkEventProcessed(r.Context(), event.ID)
	if err != nil {
		// Dedup is best-effort; the booking update itself is idempotent.
		s.logger.Error().Err(err).Str("event_id", event.ID).Msg("Event dedup check failed")
	}
	if seen {
		metrics.IncWebhookEvent(eventType, "duplicate")
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "duplicate event ignored"})
		return
	}

	var handled bool
	switch eventType {
	case payments.EventCheckoutCompleted:
		handled = s.processCheckoutEvent(w, r, event)
	case payments.EventAccountUpdated:
		handled = s.processAccountEvent(w, r, event)
	default:
		metrics.IncWebhookEvent(eventType, "ignored")
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "event type ignored"})
		handled = true
	}

	// The provider retries failed deliveries; release the id so the retry
	// is processed instead of dropped as a duplicate.
	if !handled {
		if err := s.eventStore.UnmarkEvent(r.Context(), event.ID); err != nil {
			s.logger.Error().Err(err).Str("event_id", event.ID).Msg("Failed to release event id for retry")
		}
	}
}

func (s *HTTPServer) processCheckoutEvent(w http.ResponseWriter, r *http.Request, event stripe.Event) bool {
	session, err := payments.ParseCheckoutSession(event)
	if err != nil {
		metrics.IncWebhookEvent(payments.EventCheckoutCompleted, "malformed")
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}

	if err := s.bookings.HandleCheckoutCompleted(r.Context(), session); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			metrics.IncWebhookEvent(payments.EventCheckoutCompleted, "unknown_booking")
			writeError(w, http.StatusNotFound, "booking not found")
		case errors.Is(err, payments.ErrInvalidBookingMetadata):
			metrics.IncWebhookEvent(payments.EventCheckoutCompleted, "malformed")
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			metrics.IncWebhookEvent(payments.EventCheckoutCompleted, "error")
			writeError(w, http.StatusInternalServerError, "failed to process event")
		}
		return false
	}

	metrics.IncWebhookEvent(payments.EventCheckoutCompleted, "processed")
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "checkout processed"})
	return true
}

func (s *HTTPServer) processAccountEvent(w http.ResponseWriter, r *http.Request, event stripe.Event) bool {
	account, err := payments.ParseAccount(event)
	if err != nil {
		metrics.IncWebhookEvent(payments.EventAccountUpdated, "malformed")
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}

	if err := s.washers.HandleAccountUpdated(r.Context(), account); err != nil {
		metrics.IncWebhookEvent(payments.EventAccountUpdated, "error")
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return false
	}

	metrics.IncWebhookEvent(payments.EventAccountUpdated, "processed")
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "account processed"})
	return true
}

// handleAssignJob lets an external cron fire the assignment sweep. GET
// reports readiness, POST runs one sweep synchronously.
func (s *HTTPServer) handleAssignJob(w http.ResponseWriter, r *http.Request) {
	if err := checkTriggerToken(r, s.schedCfg.TriggerToken); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{
			"status":              "ok",
			"stale_after_minutes": s.schedCfg.StaleAfterMinutes,
			"batch_size":          s.schedCfg.BatchSize,
		}})
	case http.MethodPost:
		summary, err := s.assigner.Run(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "assignment run failed")
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{
			"processed":   summary.Processed,
			"assigned":    summary.Assigned,
			"skipped":     summary.Skipped,
			"failed":      summary.Failed,
			"duration_ms": summary.Duration.Milliseconds(),
			"results":     summary.Results,
			"errors":      summary.Errors,
		}})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req service.CreateBookingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		booking, err := s.bookings.Create(r.Context(), &req)
		if err != nil {
			if errors.Is(err, service.ErrValidation) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to create booking")
			return
		}
		writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: booking})
	case http.MethodGet:
		userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		bookings, err := s.bookings.ListForUser(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list bookings")
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: bookings})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleBookingByID serves GET /bookings/{id} and the PIN handover
// endpoints POST /bookings/{id}/collect and /bookings/{id}/deliver.
func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	parts := strings.SplitN(rest, "/", 2)

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		booking, err := s.bookings.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "booking not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to get booking")
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: booking})
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var booking *models.Booking
	switch parts[1] {
	case "collect":
		booking, err = s.bookings.VerifyCollection(r.Context(), id, req.PIN)
	case "deliver":
		booking, err = s.bookings.VerifyDelivery(r.Context(), id, req.PIN)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "booking not found")
		case errors.Is(err, service.ErrWrongPIN):
			writeError(w, http.StatusForbidden, "pin does not match")
		case errors.Is(err, database.ErrStatusConflict):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to verify handover")
		}
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: booking})
}

func (s *HTTPServer) handleWasherApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var app models.WasherApplication
	if err := decodeJSON(r, &app); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.washers.Apply(r.Context(), &app); err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to submit application")
		return
	}

	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: app})
}

func (s *HTTPServer) handleApplicationReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		ApplicationID int64 `json:"application_id"`
		Approve       bool  `json:"approve"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ApplicationID <= 0 {
		writeError(w, http.StatusBadRequest, "application_id is required")
		return
	}

	if err := s.washers.ReviewApplication(r.Context(), req.ApplicationID, req.Approve); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "application not found")
		case errors.Is(err, service.ErrAlreadyReviewed):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to review application")
		}
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "application reviewed"})
}

// handleAdminExport writes an Excel report of bookings collected inside
// the requested date range and returns its path.
func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export is not configured")
		return
	}

	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be a YYYY-MM-DD date")
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be a YYYY-MM-DD date")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end must not precede start")
		return
	}

	path, err := s.exporter.BookingsReport(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]string{"file_path": path}})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, apiResponse{Success: false, Message: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
