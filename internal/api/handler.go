// Package api exposes the HTTP control surface: engine run/pause/resume,
// campaign start/stop/preflight, job and send-log listings, and health.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/truesoulcoder/crm-admin-sub001/internal/campaign"
	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
	"github.com/truesoulcoder/crm-admin-sub001/internal/engine"
	"github.com/truesoulcoder/crm-admin-sub001/internal/leads"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

type Store interface {
	ListJobs(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, status string, limit, offset int) ([]domain.CampaignJob, error)
	ListTasks(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, status string, limit, offset int) ([]domain.EmailTask, error)
	RequeueJob(ctx context.Context, jobID uuid.UUID, now time.Time) error
}

// Controller drives campaign lifecycle operations.
type Controller interface {
	Start(ctx context.Context, campaignID uuid.UUID) (int64, error)
	Stop(ctx context.Context, campaignID uuid.UUID) (int64, error)
	SendPreflight(ctx context.Context, campaignID uuid.UUID, recipient string) (domain.EmailTask, error)
}

// EngineControl toggles and reports the dispatch engine.
type EngineControl interface {
	Status(ctx context.Context) (domain.EngineState, error)
	SetRunning(ctx context.Context, running bool) error
	Pause(ctx context.Context) (int64, error)
	Resume(ctx context.Context) (int64, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	store     Store
	campaigns Controller
	control   EngineControl

	userID        uuid.UUID // single-tenant for now
	operatorEmail string
	db            HealthChecker
	clock         func() time.Time
}

func NewHandler(store Store, campaigns Controller, control EngineControl, userID uuid.UUID, operatorEmail string) *Handler {
	return &Handler{
		store:         store,
		campaigns:     campaigns,
		control:       control,
		userID:        userID,
		operatorEmail: operatorEmail,
		clock:         time.Now,
	}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// Router builds the HTTP routing table.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.health)

	r.Route("/engine", func(r chi.Router) {
		r.Get("/crondonkey", h.engineStatus)
		r.Post("/crondonkey", h.engineControl)

		r.Route("/campaigns/{campaignID}", func(r chi.Router) {
			r.Post("/start", h.startCampaign)
			r.Post("/stop", h.stopCampaign)
			r.Post("/preflight", h.preflight)
		})

		r.Get("/jobs", h.listJobs)
		r.Post("/jobs/{jobID}/requeue", h.requeueJob)
		r.Get("/tasks", h.listTasks)
	})

	return r
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	// Check if verbose mode requested via ?verbose=true
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		// Simple health check - just return ok
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	// Verbose health check - check all components
	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	// Check database connectivity with timeout
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) engineStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.control.Status(r.Context())
	if err != nil {
		log.Printf("api: engine status error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read engine state")
		return
	}

	resp := EngineStatusResponse{
		Success:   true,
		IsRunning: state.IsRunning,
		IsPaused:  state.IsPaused,
		UpdatedAt: formatTime(state.UpdatedAt),
	}
	if state.PausedAt != nil {
		pausedAt := formatTime(*state.PausedAt)
		resp.PausedAt = &pausedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) engineControl(w http.ResponseWriter, r *http.Request) {
	var req EngineControlRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateEngineControl(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	switch {
	case req.Pause != nil && *req.Pause:
		paused, err := h.control.Pause(ctx)
		if err != nil {
			h.writeControlError(w, "pause", err)
			return
		}
		writeJSON(w, http.StatusOK, ActionResponse{Success: true, Message: "engine paused", Affected: paused})

	case req.Pause != nil:
		resumed, err := h.control.Resume(ctx)
		if err != nil {
			h.writeControlError(w, "resume", err)
			return
		}
		writeJSON(w, http.StatusOK, ActionResponse{Success: true, Message: "engine resumed", Affected: resumed})

	default:
		if err := h.control.SetRunning(ctx, *req.Run); err != nil {
			h.writeControlError(w, "set running", err)
			return
		}
		msg := "engine stopped"
		if *req.Run {
			msg = "engine running"
		}
		writeJSON(w, http.StatusOK, ActionResponse{Success: true, Message: msg})
	}
}

func (h *Handler) writeControlError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, engine.ErrTransitionDenied) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	log.Printf("api: engine %s error: %v", op, err)
	writeError(w, http.StatusInternalServerError, "failed to "+op)
}

func (h *Handler) startCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}

	enrolled, err := h.campaigns.Start(r.Context(), campaignID)
	if err != nil {
		h.writeCampaignError(w, "start", err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Success: true, Message: "campaign started", Affected: enrolled})
}

func (h *Handler) stopCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}

	canceled, err := h.campaigns.Stop(r.Context(), campaignID)
	if err != nil {
		h.writeCampaignError(w, "stop", err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Success: true, Message: "campaign stopped", Affected: canceled})
}

func (h *Handler) preflight(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}

	var req PreflightRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Recipient == "" {
		req.Recipient = h.operatorEmail
	}
	if err := validateRecipient(req.Recipient); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.campaigns.SendPreflight(r.Context(), campaignID, req.Recipient)
	if err != nil {
		// A recorded failure still returns the task so the caller sees
		// the send-log entry; only lookup and infra errors are opaque.
		if task.Status != "" {
			writeJSON(w, http.StatusBadGateway, PreflightResponse{Success: false, Task: taskResponse(task)})
			return
		}
		h.writeCampaignError(w, "preflight", err)
		return
	}
	writeJSON(w, http.StatusOK, PreflightResponse{Success: true, Task: taskResponse(task)})
}

func (h *Handler) writeCampaignError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "campaign not found")
	case errors.Is(err, campaign.ErrNotStartable), errors.Is(err, leads.ErrUnknownRegion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrTransitionDenied):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("api: campaign %s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "failed to "+op+" campaign")
	}
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	campaignID, status, limit, offset, err := parseListFilters(r, validateJobStatus)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := h.store.ListJobs(r.Context(), h.userID, campaignID, status, limit, offset)
	if err != nil {
		log.Printf("api: list jobs error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	resp := ListJobsResponse{Success: true, Jobs: make([]JobResponse, len(jobs))}
	for i, job := range jobs {
		resp.Jobs[i] = jobResponse(job)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	campaignID, status, limit, offset, err := parseListFilters(r, validateTaskStatus)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := h.store.ListTasks(r.Context(), h.userID, campaignID, status, limit, offset)
	if err != nil {
		log.Printf("api: list tasks error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	resp := ListTasksResponse{Success: true, Tasks: make([]TaskResponse, len(tasks))}
	for i, task := range tasks {
		resp.Tasks[i] = taskResponse(task)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) requeueJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	if err := h.store.RequeueJob(r.Context(), jobID, h.clock()); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, engine.ErrTransitionDenied):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("api: requeue job error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to requeue job")
		}
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Success: true, Message: "job requeued", Affected: 1})
}

func jobResponse(job domain.CampaignJob) JobResponse {
	resp := JobResponse{
		ID:                 job.ID.String(),
		CampaignID:         job.CampaignID.String(),
		LeadID:             job.LeadID,
		LeadTable:          job.LeadTable,
		ContactEmail:       job.ContactEmail,
		Status:             string(job.Status),
		NextProcessingTime: formatTime(job.NextProcessingTime),
		ErrorMessage:       job.ErrorMessage,
		CreatedAt:          formatTime(job.CreatedAt),
	}
	if job.SenderID != uuid.Nil {
		resp.SenderID = job.SenderID.String()
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = formatTime(*job.CompletedAt)
	}
	return resp
}

func taskResponse(task domain.EmailTask) TaskResponse {
	resp := TaskResponse{
		ID:             task.ID.String(),
		CampaignID:     task.CampaignID.String(),
		SenderEmail:    task.SenderEmail,
		Recipient:      task.Recipient,
		Subject:        task.Subject,
		BodyPreview:    task.BodyPreview,
		Status:         string(task.Status),
		ErrorMessage:   task.ErrorMessage,
		AttachmentName: task.AttachmentName,
		CreatedAt:      formatTime(task.CreatedAt),
	}
	if task.JobID != nil {
		resp.JobID = task.JobID.String()
	}
	if task.SentAt != nil {
		resp.SentAt = formatTime(*task.SentAt)
	}
	return resp
}

func parseCampaignID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "campaignID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody decodes a size-limited JSON body. An empty body decodes to
// the zero request.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func parseListFilters(r *http.Request, validStatus func(string) error) (*uuid.UUID, string, int, int, error) {
	var campaignID *uuid.UUID
	if idStr := r.URL.Query().Get("campaign_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, "", 0, 0, errors.New("invalid campaign_id")
		}
		campaignID = &id
	}

	status := r.URL.Query().Get("status")
	if err := validStatus(status); err != nil {
		return nil, "", 0, 0, err
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		return nil, "", 0, 0, err
	}
	return campaignID, status, limit, offset, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
