// Package gatehouse exposes the guard layer over HTTP for the marketplace
// backends that cannot link it in-process.
package gatehouse

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/harborline/gatehouse/internal/apperr"
	"github.com/harborline/gatehouse/internal/audit"
	"github.com/harborline/gatehouse/internal/guard"
	"github.com/harborline/gatehouse/internal/platform/httpx"
	"github.com/harborline/gatehouse/internal/policy"
	"github.com/harborline/gatehouse/internal/ratelimit"
	"github.com/harborline/gatehouse/internal/validate"
	"github.com/harborline/gatehouse/jobs"
)

var actionPattern = regexp.MustCompile(`^[a-z0-9_.:-]+$`)

// RetentionEnqueuer submits immediate retention sweeps to the job queue.
// Satisfied by jobs.Client.
type RetentionEnqueuer interface {
	EnqueueAuditRetention(ctx context.Context, payload jobs.AuditRetentionPayload) (*asynq.TaskInfo, error)
}

// Handler serves the guard API.
type Handler struct {
	guard     *guard.Guard
	store     ratelimit.RecordStore
	auditSvc  *audit.Service
	retention RetentionEnqueuer
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewHandler constructs the API handler. retention may be nil when no job
// queue is configured; the sweep endpoint then reports the queue as down.
func NewHandler(g *guard.Guard, store ratelimit.RecordStore, auditSvc *audit.Service, retention RetentionEnqueuer, logger *slog.Logger) *Handler {
	return &Handler{
		guard:     g,
		store:     store,
		auditSvc:  auditSvc,
		retention: retention,
		logger:    logger,
		validate:  validator.New(),
	}
}

// actorFromHeaders reads the operator identity forwarded by the calling
// backend for the ops endpoints.
func actorFromHeaders(r *http.Request) policy.Context {
	return policy.Context{
		UserID: r.Header.Get("X-Actor-ID"),
		Role:   r.Header.Get("X-Actor-Role"),
	}
}

// Check runs the full guard sequence for a prospective mutation and returns
// the decision. The actual mutation stays with the caller.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, apperr.New(apperr.CodeInvalidInput, "request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, validationError(err))
		return
	}

	action, err := validate.String(req.Action, validate.StringOpts{
		Field:     "action",
		MaxLength: 128,
		Pattern:   actionPattern,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	presetName := req.Preset
	if presetName == "" {
		presetName = "api"
	}
	cfg, ok := ratelimit.PresetByName(presetName)
	if !ok {
		httpx.RespondError(w, apperr.Newf(apperr.CodeInvalidInput, "unknown rate limit preset %q", presetName))
		return
	}

	decision, err := h.guard.Run(r.Context(), guard.Request{
		Actor:        policy.Context{UserID: req.UserID, Role: req.Role},
		Action:       action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		IP:           req.IP,
		UserAgent:    req.UserAgent,
		Policy:       requestPolicy(req),
		Limit:        cfg,
		Metadata:     req.Metadata,
	}, nil)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, CheckResponse{
		Allowed:   true,
		Remaining: decision.RateLimit.Remaining,
		ResetAt:   decision.RateLimit.ResetAt,
	})
}

// requestPolicy derives the authorization predicate from the request: the
// resource's owner or any allowed role may act; with neither constraint
// given, any authenticated actor passes.
func requestPolicy(req CheckRequest) policy.Predicate {
	staticOwner := func(id string) policy.OwnerFunc {
		return func(context.Context, policy.Context) (string, error) { return id, nil }
	}
	switch {
	case req.OwnerID != "" && len(req.AllowedRoles) > 0:
		return policy.OwnerOrRoles(staticOwner(req.OwnerID), req.AllowedRoles...)
	case req.OwnerID != "":
		return policy.IsOwner(staticOwner(req.OwnerID))
	case len(req.AllowedRoles) > 0:
		return policy.HasAnyRole(req.AllowedRoles...)
	default:
		return policy.HasAnyRole(req.Role)
	}
}

// RateLimitStatus reports the stored window state for a key, either given
// directly or derived from actorId+action.
func (h *Handler) RateLimitStatus(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		actorID := r.URL.Query().Get("actorId")
		action := r.URL.Query().Get("action")
		if actorID == "" || action == "" {
			httpx.RespondError(w, apperr.New(apperr.CodeValidationFailed, "key or actorId and action are required"))
			return
		}
		key = ratelimit.Key(actorID, action)
	}

	rec, err := h.store.Get(r.Context(), key)
	if err != nil {
		h.logger.Error("rate limit status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := RateLimitStatusResponse{Key: key, Found: rec != nil}
	if rec != nil {
		resp.Count = rec.Count
		resp.WindowStart = &rec.WindowStart
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// RateLimitReset clears the record for a key. This operator override is
// itself a guarded mutation: admin-only, rate limited and audited.
func (h *Handler) RateLimitReset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		httpx.RespondError(w, apperr.New(apperr.CodeValidationFailed, "key is required"))
		return
	}

	_, err := h.guard.Run(r.Context(), guard.Request{
		Actor:        actorFromHeaders(r),
		Action:       audit.ActionAdminRateLimitReset,
		ResourceType: "rate_limit",
		ResourceID:   key,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
		Policy:       policy.HasAnyRole(policy.RoleAdmin),
		Limit:        ratelimit.PresetAPI,
	}, func(ctx context.Context) error {
		return h.store.Reset(ctx, key)
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func timelineFilters(r *http.Request) (audit.TimelineFilters, error) {
	query := r.URL.Query()

	filters := audit.TimelineFilters{
		UserID: query.Get("userId"),
		Action: query.Get("action"),
	}
	if raw := query.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, apperr.New(apperr.CodeInvalidInput, "from must be an RFC3339 timestamp")
		}
		filters.From = ts
	}
	if raw := query.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, apperr.New(apperr.CodeInvalidInput, "to must be an RFC3339 timestamp")
		}
		filters.To = ts
	}

	one := 1.0
	fifty := 50.0
	page, err := validate.Number(query.Get("page"), validate.NumberOpts{Field: "page", Min: &one, Integer: true, Optional: true})
	if err != nil {
		return filters, err
	}
	pageSize, err := validate.Number(query.Get("pageSize"), validate.NumberOpts{Field: "pageSize", Min: &one, Max: &fifty, Integer: true, Optional: true})
	if err != nil {
		return filters, err
	}
	filters.Page = int(page)
	filters.PageSize = int(pageSize)
	return filters, nil
}

// AuditTimeline returns one page of audit entries, newest first. The audit
// read surface is restricted to staff roles.
func (h *Handler) AuditTimeline(w http.ResponseWriter, r *http.Request) {
	if err := policy.Authorize(r.Context(), actorFromHeaders(r), policy.HasAnyRole(policy.StaffRoles()...)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters, err := timelineFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	result, err := h.auditSvc.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := AuditTimelineResponse{
		Entries:  make([]AuditEntryResponse, 0, len(result.Entries)),
		Page:     result.Paging.Page,
		PageSize: result.Paging.PageSize,
		HasNext:  result.Paging.HasNext,
	}
	for _, entry := range result.Entries {
		resp.Entries = append(resp.Entries, AuditEntryResponse{
			ID:           entry.ID,
			Timestamp:    entry.Timestamp,
			UserID:       entry.UserID,
			Action:       entry.Action,
			ResourceType: entry.ResourceType,
			ResourceID:   entry.ResourceID,
			IPAddress:    entry.IPAddress,
			UserAgent:    entry.UserAgent,
			Metadata:     entry.Metadata,
			Success:      entry.Success,
			ErrorMessage: entry.ErrorMessage,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// AuditExport streams one page of the timeline as a CSV attachment. Staff
// roles only, like the timeline itself.
func (h *Handler) AuditExport(w http.ResponseWriter, r *http.Request) {
	if err := policy.Authorize(r.Context(), actorFromHeaders(r), policy.HasAnyRole(policy.StaffRoles()...)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters, err := timelineFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	result, err := h.auditSvc.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	if err := audit.WriteTimelineCSV(w, result.Entries); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// AuditRetentionSweep enqueues an immediate retention sweep instead of
// waiting for the next scheduled run. Admin-only, guarded and audited like
// any other mutation.
func (h *Handler) AuditRetentionSweep(w http.ResponseWriter, r *http.Request) {
	if h.retention == nil {
		httpx.RespondError(w, apperr.New(apperr.CodeExternalService, "job queue is not configured"))
		return
	}

	var req RetentionSweepRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, apperr.New(apperr.CodeInvalidInput, "request body must be valid JSON"))
			return
		}
	}
	if req.OlderThanHours < 0 {
		httpx.RespondError(w, apperr.New(apperr.CodeValidationFailed, "olderThanHours must not be negative"))
		return
	}

	var info *asynq.TaskInfo
	_, err := h.guard.Run(r.Context(), guard.Request{
		Actor:        actorFromHeaders(r),
		Action:       audit.ActionAdminAuditSweep,
		ResourceType: "audit_log",
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
		Policy:       policy.HasAnyRole(policy.RoleAdmin),
		Limit:        ratelimit.PresetAPI,
		Metadata:     map[string]any{"olderThanHours": req.OlderThanHours},
	}, func(ctx context.Context) error {
		queued, err := h.retention.EnqueueAuditRetention(ctx, jobs.AuditRetentionPayload{OlderThanHours: req.OlderThanHours})
		if err != nil {
			h.logger.Error("enqueue retention sweep", slog.Any("error", err))
			return apperr.New(apperr.CodeExternalService, "could not enqueue retention sweep")
		}
		info = queued
		return nil
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	resp := RetentionSweepResponse{Queued: true}
	if info != nil {
		resp.TaskID = info.ID
	}
	httpx.JSON(w, http.StatusAccepted, resp)
}

func validationError(err error) error {
	var fields []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			fields = append(fields, verr.Field())
		}
	}
	appErr := apperr.New(apperr.CodeValidationFailed, "request validation failed")
	if len(fields) > 0 {
		appErr = appErr.WithDetails(map[string]any{"fields": fields})
	}
	return appErr
}
