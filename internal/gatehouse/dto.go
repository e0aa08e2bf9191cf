package gatehouse

import "time"

// CheckRequest is the decision API payload. The caller is a trusted
// backend; userId and role come from its authenticated session.
type CheckRequest struct {
	UserID       string         `json:"userId" validate:"required"`
	Role         string         `json:"role" validate:"required"`
	Action       string         `json:"action" validate:"required"`
	ResourceType string         `json:"resourceType" validate:"required"`
	ResourceID   string         `json:"resourceId,omitempty"`
	OwnerID      string         `json:"ownerId,omitempty"`
	AllowedRoles []string       `json:"allowedRoles,omitempty"`
	Preset       string         `json:"preset,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// CheckResponse reports an allowed decision. Denials are rendered as
// structured errors, never as a 200 with allowed=false.
type CheckResponse struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// RateLimitStatusResponse mirrors the stored window state for a key.
type RateLimitStatusResponse struct {
	Key         string     `json:"key"`
	Found       bool       `json:"found"`
	Count       int        `json:"count,omitempty"`
	WindowStart *time.Time `json:"windowStart,omitempty"`
}

// AuditEntryResponse is the wire form of one audit entry.
type AuditEntryResponse struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	UserID       string         `json:"userId,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// RetentionSweepRequest optionally narrows an immediate retention sweep.
// Zero means "use the configured retention window".
type RetentionSweepRequest struct {
	OlderThanHours int `json:"olderThanHours,omitempty"`
}

// RetentionSweepResponse acknowledges a queued sweep.
type RetentionSweepResponse struct {
	Queued bool   `json:"queued"`
	TaskID string `json:"taskId,omitempty"`
}

// AuditTimelineResponse is one page of audit entries.
type AuditTimelineResponse struct {
	Entries  []AuditEntryResponse `json:"entries"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
	HasNext  bool                 `json:"hasNext"`
}
