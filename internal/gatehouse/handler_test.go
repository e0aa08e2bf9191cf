package gatehouse_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/harborline/gatehouse/internal/audit"
	"github.com/harborline/gatehouse/internal/gatehouse"
	"github.com/harborline/gatehouse/internal/guard"
	"github.com/harborline/gatehouse/internal/ratelimit"
	"github.com/harborline/gatehouse/jobs"
)

type memRecorder struct {
	entries []audit.Entry
}

func (r *memRecorder) Record(_ context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

type stubAuditRepo struct {
	entries []audit.Entry
}

func (s *stubAuditRepo) Timeline(_ context.Context, _ audit.TimelineFilters, limit, offset int) ([]audit.Entry, error) {
	if offset >= len(s.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[offset:end], nil
}

func (s *stubAuditRepo) Purge(context.Context, time.Time) (int64, error) { return 0, nil }

type memEnqueuer struct {
	payloads []jobs.AuditRetentionPayload
	err      error
}

func (m *memEnqueuer) EnqueueAuditRetention(_ context.Context, payload jobs.AuditRetentionPayload) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.payloads = append(m.payloads, payload)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

type fixture struct {
	handler  *gatehouse.Handler
	router   chi.Router
	recorder *memRecorder
	store    *ratelimit.MemoryStore
	enqueuer *memEnqueuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ratelimit.NewMemoryStore()
	recorder := &memRecorder{}
	enqueuer := &memEnqueuer{}
	g, err := guard.New(guard.Config{
		Limiter:  ratelimit.NewLimiter(store),
		Recorder: recorder,
		Logger:   slog.Default(),
	})
	require.NoError(t, err)

	handler := gatehouse.NewHandler(g, store, audit.NewService(&stubAuditRepo{entries: []audit.Entry{
		audit.NewEntry(audit.Params{UserID: "u1", Action: audit.ActionOrderCreate, ResourceType: "order", Success: true}),
	}}), enqueuer, slog.Default())

	router := chi.NewRouter()
	handler.Routes(router)
	return &fixture{handler: handler, router: router, recorder: recorder, store: store, enqueuer: enqueuer}
}

func staffRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("X-Actor-ID", "ops-1")
	req.Header.Set("X-Actor-Role", "moderator")
	return req
}

func postCheck(t *testing.T, router chi.Router, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/check", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestCheckAllowed(t *testing.T) {
	fx := newFixture(t)

	res := postCheck(t, fx.router, map[string]any{
		"userId":       "user-1",
		"role":         "seller",
		"action":       "product.create",
		"resourceType": "product",
		"allowedRoles": []string{"seller", "admin"},
		"preset":       "content-creation",
		"ip":           "203.0.113.42",
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var decision gatehouse.CheckResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &decision))
	require.True(t, decision.Allowed)
	require.Equal(t, 9, decision.Remaining)

	require.Len(t, fx.recorder.entries, 1)
	require.Equal(t, "203.0.113.xxx", fx.recorder.entries[0].IPAddress)
}

func TestCheckValidationFailure(t *testing.T) {
	fx := newFixture(t)

	res := postCheck(t, fx.router, map[string]any{
		"userId": "user-1",
		// role, action, resourceType missing
	})
	require.Equal(t, http.StatusBadRequest, res.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Equal(t, "VALIDATION_FAILED", payload["code"])
}

func TestCheckForbiddenRole(t *testing.T) {
	fx := newFixture(t)

	res := postCheck(t, fx.router, map[string]any{
		"userId":       "user-1",
		"role":         "customer",
		"action":       "moderation.ban",
		"resourceType": "user",
		"allowedRoles": []string{"admin", "moderator"},
	})
	require.Equal(t, http.StatusForbidden, res.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Equal(t, "FORBIDDEN", payload["code"])
}

func TestCheckOwnerBypassesRoles(t *testing.T) {
	fx := newFixture(t)

	res := postCheck(t, fx.router, map[string]any{
		"userId":       "owner-9",
		"role":         "customer",
		"action":       "review.delete",
		"resourceType": "review",
		"ownerId":      "owner-9",
		"allowedRoles": []string{"moderator"},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
}

func TestCheckRateLimitedCarriesRetryAfter(t *testing.T) {
	fx := newFixture(t)

	body := map[string]any{
		"userId":       "user-1",
		"role":         "customer",
		"action":       "auth.password_reset",
		"resourceType": "user",
		"allowedRoles": []string{"customer"},
		"preset":       "password-reset",
	}
	for i := 0; i < 3; i++ {
		res := postCheck(t, fx.router, body)
		require.Equal(t, http.StatusOK, res.Code)
	}

	res := postCheck(t, fx.router, body)
	require.Equal(t, http.StatusTooManyRequests, res.Code)
	require.NotEmpty(t, res.Header().Get("Retry-After"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Equal(t, "RATE_LIMITED", payload["code"])
	require.Greater(t, payload["retryAfter"].(float64), float64(0))
}

func TestCheckUnknownPreset(t *testing.T) {
	fx := newFixture(t)

	res := postCheck(t, fx.router, map[string]any{
		"userId":       "user-1",
		"role":         "customer",
		"action":       "order.create",
		"resourceType": "order",
		"preset":       "warp-speed",
	})
	require.Equal(t, http.StatusBadRequest, res.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Equal(t, "INVALID_INPUT", payload["code"])
}

func TestRateLimitStatusAndReset(t *testing.T) {
	fx := newFixture(t)

	// Prime a record.
	res := postCheck(t, fx.router, map[string]any{
		"userId":       "user-1",
		"role":         "seller",
		"action":       "product.create",
		"resourceType": "product",
		"allowedRoles": []string{"seller"},
		"preset":       "content-creation",
	})
	require.Equal(t, http.StatusOK, res.Code)

	statusReq := httptest.NewRequest(http.MethodGet, "/v1/ratelimit/status?actorId=user-1&action=content-creation", nil)
	statusRes := httptest.NewRecorder()
	fx.router.ServeHTTP(statusRes, statusReq)
	require.Equal(t, http.StatusOK, statusRes.Code)

	var status gatehouse.RateLimitStatusResponse
	require.NoError(t, json.Unmarshal(statusRes.Body.Bytes(), &status))
	require.True(t, status.Found)
	require.Equal(t, 1, status.Count)

	// Reset requires the admin role.
	key := ratelimit.Key("user-1", "content-creation")
	denyReq := httptest.NewRequest(http.MethodDelete, "/v1/ratelimit/"+key, nil)
	denyReq.Header.Set("X-Actor-ID", "user-2")
	denyReq.Header.Set("X-Actor-Role", "customer")
	denyRes := httptest.NewRecorder()
	fx.router.ServeHTTP(denyRes, denyReq)
	require.Equal(t, http.StatusForbidden, denyRes.Code)

	resetReq := httptest.NewRequest(http.MethodDelete, "/v1/ratelimit/"+key, nil)
	resetReq.Header.Set("X-Actor-ID", "admin-1")
	resetReq.Header.Set("X-Actor-Role", "admin")
	resetRes := httptest.NewRecorder()
	fx.router.ServeHTTP(resetRes, resetReq)
	require.Equal(t, http.StatusNoContent, resetRes.Code)

	rec, err := fx.store.Get(context.Background(), key)
	require.NoError(t, err)
	require.Nil(t, rec, "reset must clear the record")
}

func TestAuditTimelineEndpoint(t *testing.T) {
	fx := newFixture(t)

	req := staffRequest(http.MethodGet, "/v1/audit?page=1&pageSize=10", nil)
	res := httptest.NewRecorder()
	fx.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var timeline gatehouse.AuditTimelineResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &timeline))
	require.Len(t, timeline.Entries, 1)
	require.Equal(t, audit.ActionOrderCreate, timeline.Entries[0].Action)

	badReq := staffRequest(http.MethodGet, "/v1/audit?page=zero", nil)
	badRes := httptest.NewRecorder()
	fx.router.ServeHTTP(badRes, badReq)
	require.Equal(t, http.StatusBadRequest, badRes.Code)
}

func TestAuditTimelineRequiresStaffRole(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
	req.Header.Set("X-Actor-ID", "user-1")
	req.Header.Set("X-Actor-Role", "customer")
	res := httptest.NewRecorder()
	fx.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)

	// No identity at all is unauthenticated, not forbidden.
	anonRes := httptest.NewRecorder()
	fx.router.ServeHTTP(anonRes, httptest.NewRequest(http.MethodGet, "/v1/audit", nil))
	require.Equal(t, http.StatusUnauthorized, anonRes.Code)
}

func TestAuditExportCSV(t *testing.T) {
	fx := newFixture(t)

	req := staffRequest(http.MethodGet, "/v1/audit/export.csv", nil)
	res := httptest.NewRecorder()
	fx.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "text/csv; charset=utf-8", res.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(res.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Action")
	require.Contains(t, lines[1], audit.ActionOrderCreate)

	denyRes := httptest.NewRecorder()
	denyReq := httptest.NewRequest(http.MethodGet, "/v1/audit/export.csv", nil)
	denyReq.Header.Set("X-Actor-ID", "user-1")
	denyReq.Header.Set("X-Actor-Role", "seller")
	fx.router.ServeHTTP(denyRes, denyReq)
	require.Equal(t, http.StatusForbidden, denyRes.Code)
}

func TestAuditRetentionSweep(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/audit/retention", strings.NewReader(`{"olderThanHours":24}`))
	req.Header.Set("X-Actor-ID", "admin-1")
	req.Header.Set("X-Actor-Role", "admin")
	res := httptest.NewRecorder()
	fx.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusAccepted, res.Code, res.Body.String())

	var resp gatehouse.RetentionSweepResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &resp))
	require.True(t, resp.Queued)
	require.Equal(t, "task-1", resp.TaskID)

	require.Len(t, fx.enqueuer.payloads, 1)
	require.Equal(t, 24, fx.enqueuer.payloads[0].OlderThanHours)

	denyReq := httptest.NewRequest(http.MethodPost, "/v1/audit/retention", nil)
	denyReq.Header.Set("X-Actor-ID", "mod-1")
	denyReq.Header.Set("X-Actor-Role", "moderator")
	denyRes := httptest.NewRecorder()
	fx.router.ServeHTTP(denyRes, denyReq)
	require.Equal(t, http.StatusForbidden, denyRes.Code)
	require.Len(t, fx.enqueuer.payloads, 1, "denied sweep must not enqueue")
}

func TestAuditRetentionSweepQueueDown(t *testing.T) {
	fx := newFixture(t)
	fx.enqueuer.err = errors.New("redis down")

	req := httptest.NewRequest(http.MethodPost, "/v1/audit/retention", nil)
	req.Header.Set("X-Actor-ID", "admin-1")
	req.Header.Set("X-Actor-Role", "admin")
	res := httptest.NewRecorder()
	fx.router.ServeHTTP(res, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Equal(t, "EXTERNAL_SERVICE_ERROR", payload["code"])
}
