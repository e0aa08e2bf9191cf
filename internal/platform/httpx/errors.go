package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/harborline/gatehouse/internal/apperr"
)

// RespondError renders err in the structured wire shape. Structured errors
// map to their code's status; RATE_LIMITED additionally gets a Retry-After
// header. Anything else is surfaced as an opaque internal error; the
// structured taxonomy is reserved for conditions callers can act on.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		JSON(w, http.StatusInternalServerError, map[string]any{
			"code":    apperr.CodeInternal,
			"message": "internal error",
		})
		return
	}

	if appErr.Code == apperr.CodeRateLimited {
		if ms, ok := appErr.Detail("retryAfter"); ok {
			if millis, ok := ms.(int64); ok {
				seconds := (millis + 999) / 1000
				w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
			}
		}
	}

	JSON(w, appErr.Code.HTTPStatus(), appErr)
}
