// Package api provides HTTP handlers for the incident response engine.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bracketops/incidentd/internal/domain"
	"github.com/bracketops/incidentd/internal/engine"
	"github.com/bracketops/incidentd/internal/journal"
	"github.com/bracketops/incidentd/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// NotifyFunc is called after a notification_sent event is accepted, so the
// delivery pipeline can send the outbound message.
type NotifyFunc func(incident *domain.Incident, role string, method domain.NotificationMethod, notifiedAt time.Time)

// Handler handles HTTP requests for incidents, events and escalations.
type Handler struct {
	registry  *engine.Registry
	journal   journal.Repository
	notify    NotifyFunc
	validator *validator.Validate
}

// NewHandler creates a new API handler. journal and notify may be nil when
// the journal or delivery pipeline is disabled.
func NewHandler(registry *engine.Registry, journalRepo journal.Repository, notify NotifyFunc) *Handler {
	return &Handler{
		registry:  registry,
		journal:   journalRepo,
		notify:    notify,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the engine API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events", h.IngestEvent)

	r.Route("/incidents", func(r chi.Router) {
		r.Get("/", h.ListIncidents)
		r.Post("/", h.CreateIncident)
		r.Get("/{id}", h.GetIncident)
		r.Get("/{id}/sla", h.GetSLA)
		r.Get("/{id}/notifications", h.GetNotifications)
		r.Get("/{id}/timeline", h.GetTimeline)
	})

	r.Route("/escalations", func(r chi.Router) {
		r.Get("/", h.ListEscalations)
		r.Get("/{id}", h.GetEscalation)
	})
}

var errorMappings = []httputil.ErrorMapping{
	{Error: engine.ErrNotFound, Status: http.StatusNotFound},
	{Error: engine.ErrActionNotFound, Status: http.StatusNotFound},
	{Error: engine.ErrInvalidEvent, Status: http.StatusBadRequest},
	{Error: engine.ErrOutOfOrderPhase, Status: http.StatusConflict},
	{Error: engine.ErrUnassignedAction, Status: http.StatusConflict},
	{Error: engine.ErrActionNotExecuting, Status: http.StatusConflict},
	{Error: engine.ErrNotNotified, Status: http.StatusConflict},
	{Error: engine.ErrTerminalState, Status: http.StatusConflict},
}

// IngestEvent handles POST /events. The body is the event envelope; the
// payload section must match the event type.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	incident, err := h.registry.ApplyEvent(r.Context(), &event)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	if event.Type == domain.EventNotificationSent && h.notify != nil {
		h.notify(incident, event.Notification.Role, event.Notification.Method, event.OccurredAt)
	}

	status := http.StatusOK
	if event.Type == domain.EventIncidentDetected {
		status = http.StatusCreated
	}
	httputil.Success(w, status, incident)
}

// CreateIncidentRequest represents the request body for creating an incident.
type CreateIncidentRequest struct {
	Title           string   `json:"title" validate:"required,min=1,max=500"`
	Category        string   `json:"category" validate:"required,min=1,max=255"`
	Severity        string   `json:"severity" validate:"required,oneof=low medium high critical"`
	DetectionSource string   `json:"detection_source" validate:"required,min=1,max=255"`
	ThreatActors    []string `json:"threat_actors"`
	Priority        *int     `json:"priority" validate:"omitempty,min=0,max=3"`
}

// CreateIncident handles POST /incidents request.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.registry.CreateIncident(r.Context(), engine.CreateIncidentInput{
		Title:           req.Title,
		Category:        req.Category,
		Severity:        domain.Severity(req.Severity),
		DetectionSource: req.DetectionSource,
		ThreatActors:    req.ThreatActors,
		Priority:        req.Priority,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// ListIncidents handles GET /incidents request with optional status,
// severity, priority and assigned_to filters.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := engine.ListFilter{
		Status:     domain.Status(query.Get("status")),
		Severity:   domain.Severity(query.Get("severity")),
		AssignedTo: query.Get("assigned_to"),
	}

	if filter.Status != "" && !filter.Status.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	if filter.Severity != "" && !filter.Severity.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "unknown severity filter")
		return
	}

	if raw := query.Get("priority"); raw != "" {
		priority, err := strconv.Atoi(raw)
		if err != nil || priority < domain.PriorityHighest || priority > domain.PriorityLowest {
			httputil.Error(w, http.StatusBadRequest, "invalid priority filter")
			return
		}
		filter.Priority = &priority
	}

	httputil.Success(w, http.StatusOK, h.registry.ListIncidents(filter))
}

// GetIncident handles GET /incidents/{id} request.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.registry.GetIncident(chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// SLAResponse is the GET /incidents/{id}/sla response body.
type SLAResponse struct {
	IncidentID       string  `json:"incident_id"`
	ComplianceScore  float64 `json:"compliance_score"`
	SLATargetSeconds int64   `json:"sla_target_seconds"`
	Resolved         bool    `json:"resolved"`
}

// GetSLA handles GET /incidents/{id}/sla request.
func (h *Handler) GetSLA(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	incident, err := h.registry.GetIncident(id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	score, err := h.registry.SLA(id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, SLAResponse{
		IncidentID:       id,
		ComplianceScore:  score,
		SLATargetSeconds: incident.SLATargetSeconds,
		Resolved:         incident.IsResolved(),
	})
}

// GetNotifications handles GET /incidents/{id}/notifications request.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	records, err := h.registry.NotificationStatus(chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, records)
}

// GetTimeline handles GET /incidents/{id}/timeline request. The timeline is
// the incident's slice of the event journal in append order.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.registry.GetIncident(id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	if h.journal == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "event journal is not enabled")
		return
	}

	events, err := h.journal.ListByIncident(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}

	httputil.Success(w, http.StatusOK, events)
}

// ListEscalations handles GET /escalations request. An optional limit query
// parameter returns only the head of the queue.
func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		httputil.Success(w, http.StatusOK, h.registry.Peek(limit))
		return
	}

	httputil.Success(w, http.StatusOK, h.registry.EscalationQueue())
}

// EscalationResponse is the GET /escalations/{id} response body.
type EscalationResponse struct {
	IncidentID         string  `json:"incident_id"`
	Queued             bool    `json:"queued"`
	TimeInQueueSeconds float64 `json:"time_in_queue_seconds"`
}

// GetEscalation handles GET /escalations/{id} request, reporting how long
// the incident has been waiting for escalation.
func (h *Handler) GetEscalation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	waited, err := h.registry.TimeInQueue(id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, EscalationResponse{
		IncidentID:         id,
		Queued:             waited > 0,
		TimeInQueueSeconds: waited.Seconds(),
	})
}
