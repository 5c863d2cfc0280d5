package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/domains/internal/api/request"
	"github.com/edvin/domains/internal/api/response"
	"github.com/edvin/domains/internal/lifecycle"
	"github.com/edvin/domains/internal/model"
)

// DomainService is the custom domain lifecycle behind the handlers.
type DomainService interface {
	Policy() lifecycle.Policy
	CreateDomain(ctx context.Context, tenantID, hostname string, target model.Target) (*model.CustomDomain, error)
	GetDomain(ctx context.Context, id string) (*model.CustomDomain, error)
	ListDomains(ctx context.Context, tenantID string) ([]model.CustomDomain, error)
	DeleteDomain(ctx context.Context, id string) error
	RequestDNSCheck(ctx context.Context, id string) (*model.CustomDomain, error)
	RequestOwnershipVerification(ctx context.Context, id string) (*model.CustomDomain, error)
	Reactivate(ctx context.Context, id string) (*model.CustomDomain, error)
	Suspend(ctx context.Context, id, reason string) (*model.CustomDomain, error)
	IsDomainAllowedForTLS(ctx context.Context, host string) (bool, error)
}

// DomainView is a domain with the DNS and ownership steps still required.
type DomainView struct {
	*model.CustomDomain
	Instructions []lifecycle.Instruction `json:"instructions"`
}

type Domain struct {
	svc DomainService
}

func NewDomain(svc DomainService) *Domain {
	return &Domain{svc: svc}
}

func (h *Domain) view(d *model.CustomDomain) DomainView {
	return DomainView{CustomDomain: d, Instructions: h.svc.Policy().Instructions(d)}
}

// Create godoc
//
//	@Summary		Register a custom domain
//	@Tags			Domains
//	@Security		BearerAuth
//	@Param			tenantID path string true "Tenant ID"
//	@Param			body body request.CreateDomain true "Domain details"
//	@Success		201 {object} DomainView
//	@Failure		400 {object} response.ErrorResponse
//	@Failure		409 {object} response.ErrorResponse
//	@Router			/tenants/{tenantID}/domains [post]
func (h *Domain) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.CreateDomain
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := model.ParseTarget(req.TargetType, req.TargetID)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.CreateDomain(r.Context(), tenantID, req.Hostname, target)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, h.view(d))
}

// List godoc
//
//	@Summary		List a tenant's custom domains
//	@Tags			Domains
//	@Security		BearerAuth
//	@Param			tenantID path string true "Tenant ID"
//	@Success		200 {object} response.ListResponse{items=[]DomainView}
//	@Router			/tenants/{tenantID}/domains [get]
func (h *Domain) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	domains, err := h.svc.ListDomains(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]DomainView, 0, len(domains))
	for i := range domains {
		views = append(views, h.view(&domains[i]))
	}
	response.WriteList(w, http.StatusOK, views, len(views))
}

// Get godoc
//
//	@Summary		Get a custom domain
//	@Tags			Domains
//	@Security		BearerAuth
//	@Param			id path string true "Domain ID"
//	@Success		200 {object} DomainView
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/domains/{id} [get]
func (h *Domain) Get(w http.ResponseWriter, r *http.Request) {
	h.withDomain(w, r, http.StatusOK, h.svc.GetDomain)
}

// Delete godoc
//
//	@Summary		Delete a custom domain
//	@Tags			Domains
//	@Security		BearerAuth
//	@Param			id path string true "Domain ID"
//	@Success		204
//	@Failure		404 {object} response.ErrorResponse
//	@Failure		503 {object} response.ErrorResponse
//	@Router			/domains/{id} [delete]
func (h *Domain) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.DeleteDomain(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DNSCheck godoc
//
//	@Summary		Check the domain's routing records
//	@Tags			Domains
//	@Security		BearerAuth
//	@Param			id path string true "Domain ID"
//	@Success		200 {object} DomainView
//	@Failure		409 {object} response.ErrorResponse
//	@Failure		429 {object} response.ErrorResponse
//	@Router			/domains/{id}/dns-check [post]
func (h *Domain) DNSCheck(w http.ResponseWriter, r *http.Request) {
	h.withDomain(w, r, http.StatusOK, h.svc.RequestDNSCheck)
}

// Verify godoc
//
//	@Summary		Check the domain's ownership proof
//	@Tags			Domains
//	@Security		BearerAuth
//	@Param			id path string true "Domain ID"
//	@Success		200 {object} DomainView
//	@Failure		409 {object} response.ErrorResponse
//	@Failure		429 {object} response.ErrorResponse
//	@Router			/domains/{id}/verify [post]
func (h *Domain) Verify(w http.ResponseWriter, r *http.Request) {
	h.withDomain(w, r, http.StatusOK, h.svc.RequestOwnershipVerification)
}

// Reactivate godoc
//
//	@Summary		Restart a suspended domain's setup
//	@Tags			Domains
//	@Security		BearerAuth
//	@Param			id path string true "Domain ID"
//	@Success		200 {object} DomainView
//	@Failure		409 {object} response.ErrorResponse
//	@Router			/domains/{id}/reactivate [post]
func (h *Domain) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.withDomain(w, r, http.StatusOK, h.svc.Reactivate)
}

// Suspend godoc
//
//	@Summary		Suspend a domain
//	@Tags			Domains
//	@Security		BearerAuth
//	@Param			id path string true "Domain ID"
//	@Param			body body request.SuspendDomain false "Reason"
//	@Success		200 {object} DomainView
//	@Failure		409 {object} response.ErrorResponse
//	@Router			/domains/{id}/suspend [post]
func (h *Domain) Suspend(w http.ResponseWriter, r *http.Request) {
	var req request.SuspendDomain
	if err := request.DecodeOptional(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.withDomain(w, r, http.StatusOK, func(ctx context.Context, id string) (*model.CustomDomain, error) {
		return h.svc.Suspend(ctx, id, req.Reason)
	})
}

// withDomain runs op on the domain named by the id URL parameter and writes
// the resulting view.
func (h *Domain) withDomain(w http.ResponseWriter, r *http.Request, status int,
	op func(ctx context.Context, id string) (*model.CustomDomain, error)) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := op(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, status, h.view(d))
}
