package handler

import (
	"net/http"

	"github.com/rs/zerolog"
)

// TLSGuard answers the TLS terminator's question whether it may obtain a
// certificate for a hostname. It fails closed: anything but a positive
// answer from the domain store is a 404.
type TLSGuard struct {
	svc DomainService
}

func NewTLSGuard(svc DomainService) *TLSGuard {
	return &TLSGuard{svc: svc}
}

// VerifyDomain handles GET /verify-domain?domain=<host>.
func (h *TLSGuard) VerifyDomain(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("domain")
	defer func() {
		if rec := recover(); rec != nil {
			zerolog.Ctx(r.Context()).Error().Interface("panic", rec).Str("domain", host).Msg("tls guard panicked, denying")
			w.WriteHeader(http.StatusNotFound)
		}
	}()
	if host == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	allowed, err := h.svc.IsDomainAllowedForTLS(r.Context(), host)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("domain", host).Msg("tls guard lookup failed, denying")
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !allowed {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}
