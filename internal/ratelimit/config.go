// Package ratelimit implements fixed-window rate limiting in three tiers:
// a pure window check over caller-supplied timestamps, a best-effort Redis
// prefilter, and the authoritative Postgres-backed limiter used inside
// transactional mutations.
package ratelimit

import "time"

// Config is the immutable shape shared by every limiter variant.
type Config struct {
	MaxRequests int
	Window      time.Duration
	Action      string
}

// Named presets. Adding a guarded action means adding one entry here, not
// new logic.
var (
	PresetAPI             = Config{MaxRequests: 100, Window: time.Minute, Action: "api"}
	PresetAuth            = Config{MaxRequests: 5, Window: 15 * time.Minute, Action: "auth"}
	PresetContentCreation = Config{MaxRequests: 10, Window: time.Minute, Action: "content-creation"}
	PresetUpload          = Config{MaxRequests: 5, Window: time.Minute, Action: "upload"}
	PresetPasswordReset   = Config{MaxRequests: 3, Window: time.Hour, Action: "password-reset"}
	PresetReview          = Config{MaxRequests: 5, Window: 24 * time.Hour, Action: "review"}
)

var presets = map[string]Config{
	PresetAPI.Action:             PresetAPI,
	PresetAuth.Action:            PresetAuth,
	PresetContentCreation.Action: PresetContentCreation,
	PresetUpload.Action:          PresetUpload,
	PresetPasswordReset.Action:   PresetPasswordReset,
	PresetReview.Action:          PresetReview,
}

// PresetByName looks up a preset from the catalog.
func PresetByName(name string) (Config, bool) {
	cfg, ok := presets[name]
	return cfg, ok
}

// Presets returns a copy of the preset catalog.
func Presets() map[string]Config {
	out := make(map[string]Config, len(presets))
	for name, cfg := range presets {
		out[name] = cfg
	}
	return out
}
