package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/domains/internal/api/request"
	"github.com/edvin/domains/internal/api/response"
	"github.com/edvin/domains/internal/model"
)

// SubdomainService is the platform subdomain lifecycle behind the handlers.
type SubdomainService interface {
	Assign(ctx context.Context, ns model.Namespace, ownerID, slug string) (*model.PlatformSubdomain, error)
	Get(ctx context.Context, ns model.Namespace, ownerID string) (*model.PlatformSubdomain, error)
	Remove(ctx context.Context, ns model.Namespace, ownerID string) error
}

type Subdomain struct {
	svc SubdomainService
}

func NewSubdomain(svc SubdomainService) *Subdomain {
	return &Subdomain{svc: svc}
}

func pathOwner(r *http.Request) (model.Namespace, string, error) {
	ns, err := model.ParseNamespace(chi.URLParam(r, "namespace"))
	if err != nil {
		return "", "", err
	}
	ownerID, err := request.RequireID(chi.URLParam(r, "ownerID"))
	if err != nil {
		return "", "", err
	}
	return ns, ownerID, nil
}

// Assign godoc
//
//	@Summary		Assign or rename an owner's platform subdomain
//	@Tags			Subdomains
//	@Security		BearerAuth
//	@Param			namespace path string true "shop, booking or page"
//	@Param			ownerID path string true "Owner ID"
//	@Param			body body request.AssignSubdomain true "Slug"
//	@Success		202 {object} model.PlatformSubdomain
//	@Failure		409 {object} response.ErrorResponse
//	@Failure		502 {object} response.ErrorResponse
//	@Router			/subdomains/{namespace}/{ownerID} [put]
func (h *Subdomain) Assign(w http.ResponseWriter, r *http.Request) {
	ns, ownerID, err := pathOwner(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req request.AssignSubdomain
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.Assign(r.Context(), ns, ownerID, req.Slug)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, sub)
}

// Get godoc
//
//	@Summary		Get an owner's platform subdomain
//	@Tags			Subdomains
//	@Security		BearerAuth
//	@Param			namespace path string true "shop, booking or page"
//	@Param			ownerID path string true "Owner ID"
//	@Success		200 {object} model.PlatformSubdomain
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/subdomains/{namespace}/{ownerID} [get]
func (h *Subdomain) Get(w http.ResponseWriter, r *http.Request) {
	ns, ownerID, err := pathOwner(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := h.svc.Get(r.Context(), ns, ownerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sub)
}

// Delete godoc
//
//	@Summary		Remove an owner's platform subdomain
//	@Tags			Subdomains
//	@Security		BearerAuth
//	@Param			namespace path string true "shop, booking or page"
//	@Param			ownerID path string true "Owner ID"
//	@Success		204
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/subdomains/{namespace}/{ownerID} [delete]
func (h *Subdomain) Delete(w http.ResponseWriter, r *http.Request) {
	ns, ownerID, err := pathOwner(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Remove(r.Context(), ns, ownerID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
