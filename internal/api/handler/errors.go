package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/domains/internal/api/response"
	"github.com/edvin/domains/internal/core"
	"github.com/edvin/domains/internal/dnsprovider"
	"github.com/edvin/domains/internal/lifecycle"
	"github.com/edvin/domains/internal/proxyroute"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var rl *lifecycle.RateLimitError
	var apiErr *dnsprovider.APIError
	switch {
	case errors.As(err, &rl):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrHostnameTaken),
		errors.Is(err, core.ErrSlugTaken),
		errors.Is(err, core.ErrAlreadyAssigned),
		errors.Is(err, core.ErrStaleRecord),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrNotVerified):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidHostname),
		errors.Is(err, lifecycle.ErrReservedHostname),
		errors.Is(err, lifecycle.ErrInvalidSlug):
		return http.StatusBadRequest
	case errors.Is(err, proxyroute.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status. Rate-limited calls
// carry Retry-After in whole seconds, rounded up.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	var rl *lifecycle.RateLimitError
	if errors.As(err, &rl) {
		secs := int((rl.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	response.WriteError(w, status, err.Error())
}
