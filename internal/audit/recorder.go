package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder persists entries into audit_logs. The table is append-only; the
// retention purge in the worker is the only deletion path.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record persists the entry. Action and ResourceType are mandatory.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.pool == nil {
		return errors.New("audit: recorder not initialised")
	}
	if entry.Action == "" || entry.ResourceType == "" {
		return errors.New("audit: entry requires action and resource type")
	}
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, occurred_at, actor_id, action, resource_type, resource_id, ip_address, user_agent, metadata, success, error_message)
		VALUES ($1, COALESCE($2, NOW()), $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.Timestamp, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID,
		entry.IPAddress, entry.UserAgent, metaJSON, entry.Success, entry.ErrorMessage)
	return err
}
