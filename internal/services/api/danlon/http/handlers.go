// Package http provides http transport for the payroll integration
package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"overtid/internal/modkit/httpkit"
	perr "overtid/internal/platform/errors"
	phttp "overtid/internal/platform/net/http"
	"overtid/internal/services/api/danlon/domain"
	svc "overtid/internal/services/api/danlon/service"
)

// Register mounts the payroll integration endpoints on the given router.
// Browser-facing endpoints redirect; the rest speak the JSON envelope
func Register(r httpkit.Router, s svc.Service, defaultUser string) {
	h := &handlers{svc: s, defaultUser: defaultUser}

	r.Get("/connect", h.connect)
	r.Get("/callback", h.callback)
	r.Get("/success", h.success)

	httpkit.Get(r, "/pending", h.pending)
	httpkit.PostJSON[domain.CompleteInput](r, "/complete", h.complete)
	httpkit.Post(r, "/disconnect", h.disconnect)
	httpkit.Get(r, "/status", h.status)

	httpkit.Get(r, "/paycode-mapping", h.payCodeMapping)
	httpkit.PutJSON[domain.PayCodeMapping](r, "/paycode-mapping", h.savePayCodeMapping)
	httpkit.Get(r, "/employee-mapping", h.employeeMapping)
	httpkit.PutJSON[domain.EmployeeMapping](r, "/employee-mapping", h.saveEmployeeMapping)

	httpkit.Get(r, "/employees", h.employees)
	httpkit.Get(r, "/paypart-meta", h.payPartMeta)

	httpkit.Post(r, "/sync/{session_id}", h.sync)
}

type handlers struct {
	svc         svc.Service
	defaultUser string
}

func (h *handlers) userOf(r *stdhttp.Request) string {
	if u := r.URL.Query().Get("user_id"); u != "" {
		return u
	}
	return h.defaultUser
}

func companyOf(r *stdhttp.Request) string { return r.URL.Query().Get("company_id") }

// @Summary Start the payroll authorization flow
// @Tags Danlon
// @Param return_uri query string false "Where to send the user afterwards"
// @Success 302 {string} string "redirect to the identity provider"
// @Router /danlon/connect [get]
func (h *handlers) connect(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	stdhttp.Redirect(w, r, h.svc.AuthorizeURL(r.URL.Query().Get("return_uri")), stdhttp.StatusFound)
}

// @Summary Authorization code callback
// @Tags Danlon
// @Param code query string true "Authorization code"
// @Param return_uri query string false "Forwarded return target"
// @Success 302 {string} string "redirect to company selection"
// @Router /danlon/callback [get]
func (h *handlers) callback(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()
	returnURI := q.Get("return_uri")

	if errCode := q.Get("error"); errCode != "" {
		if returnURI != "" {
			stdhttp.Redirect(w, r, returnURI, stdhttp.StatusFound)
			return
		}
		phttp.RespondError(w, r, perr.InvalidInputf("authorization denied: %s", errCode))
		return
	}

	redirect, err := h.svc.Callback(r.Context(), h.userOf(r), q.Get("code"), returnURI)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	stdhttp.Redirect(w, r, redirect, stdhttp.StatusFound)
}

// @Summary Company selection return endpoint
// @Tags Danlon
// @Param code query string true "Marketplace code"
// @Param company_id query string false "Base64 company id"
// @Param return_uri query string false "Forwarded return target"
// @Success 302 {string} string "redirect to the original return target"
// @Router /danlon/success [get]
func (h *handlers) success(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()
	redirect, err := h.svc.Success(r.Context(), h.userOf(r), q.Get("code"), q.Get("company_id"), q.Get("return_uri"))
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	stdhttp.Redirect(w, r, redirect, stdhttp.StatusFound)
}

// @Summary Report a pending authorization awaiting company selection
// @Tags Danlon
// @Produce json
// @Param user_id query string false "User id"
// @Success 200 {object} domain.PendingInfo "ok"
// @Router /danlon/pending [get]
func (h *handlers) pending(r *stdhttp.Request) (any, error) {
	return h.svc.Pending(r.Context(), h.userOf(r))
}

// @Summary Complete a connection manually
// @Tags Danlon
// @Accept json
// @Produce json
// @Param payload body domain.CompleteInput true "Code, or token pair with company id"
// @Success 200 {object} domain.ConnectionStatus "ok"
// @Router /danlon/complete [post]
func (h *handlers) complete(r *stdhttp.Request, in domain.CompleteInput) (any, error) {
	return h.svc.Complete(r.Context(), in)
}

// @Summary Revoke the connection and drop the stored credential
// @Tags Danlon
// @Produce json
// @Param user_id query string false "User id"
// @Param company_id query string false "Company id"
// @Success 200 {object} map[string]bool "ok"
// @Router /danlon/disconnect [post]
func (h *handlers) disconnect(r *stdhttp.Request) (any, error) {
	if err := h.svc.Disconnect(r.Context(), h.userOf(r), companyOf(r)); err != nil {
		return nil, err
	}
	return map[string]bool{"disconnected": true}, nil
}

// @Summary Report the stored connection
// @Tags Danlon
// @Produce json
// @Param user_id query string false "User id"
// @Param company_id query string false "Company id"
// @Success 200 {object} domain.ConnectionStatus "ok"
// @Router /danlon/status [get]
func (h *handlers) status(r *stdhttp.Request) (any, error) {
	return h.svc.Status(r.Context(), h.userOf(r), companyOf(r))
}

// @Summary Get the pay code mapping
// @Tags Danlon
// @Produce json
// @Success 200 {object} domain.PayCodeMapping "ok"
// @Router /danlon/paycode-mapping [get]
func (h *handlers) payCodeMapping(r *stdhttp.Request) (any, error) {
	return h.svc.PayCodeMapping(r.Context(), h.userOf(r), companyOf(r))
}

// @Summary Save the pay code mapping
// @Tags Danlon
// @Accept json
// @Produce json
// @Param payload body domain.PayCodeMapping true "Codes for normal, overtime and call-out pay"
// @Success 200 {object} domain.PayCodeMapping "ok"
// @Router /danlon/paycode-mapping [put]
func (h *handlers) savePayCodeMapping(r *stdhttp.Request, in domain.PayCodeMapping) (any, error) {
	if err := h.svc.SavePayCodeMapping(r.Context(), h.userOf(r), companyOf(r), in); err != nil {
		return nil, err
	}
	return in, nil
}

// @Summary Get the employee mapping
// @Tags Danlon
// @Produce json
// @Success 200 {object} domain.EmployeeMapping "ok"
// @Router /danlon/employee-mapping [get]
func (h *handlers) employeeMapping(r *stdhttp.Request) (any, error) {
	return h.svc.EmployeeMapping(r.Context(), h.userOf(r), companyOf(r))
}

// @Summary Replace the employee mapping
// @Tags Danlon
// @Accept json
// @Produce json
// @Param payload body domain.EmployeeMapping true "Mapping rows, at most one fallback"
// @Success 200 {object} domain.EmployeeMapping "ok"
// @Router /danlon/employee-mapping [put]
func (h *handlers) saveEmployeeMapping(r *stdhttp.Request, in domain.EmployeeMapping) (any, error) {
	if err := h.svc.SaveEmployeeMapping(r.Context(), h.userOf(r), companyOf(r), in); err != nil {
		return nil, err
	}
	return in, nil
}

// @Summary List payroll employees of the connected company
// @Tags Danlon
// @Produce json
// @Param include_deleted query bool false "Include inactive employees"
// @Success 200 {array} domain.Employee "ok"
// @Router /danlon/employees [get]
func (h *handlers) employees(r *stdhttp.Request) (any, error) {
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	return h.svc.Employees(r.Context(), h.userOf(r), companyOf(r), includeDeleted)
}

// @Summary List pay, absence and hour type codes
// @Tags Danlon
// @Produce json
// @Success 200 {object} domain.PayPartMeta "ok"
// @Router /danlon/paypart-meta [get]
func (h *handlers) payPartMeta(r *stdhttp.Request) (any, error) {
	return h.svc.PayPartMeta(r.Context(), h.userOf(r), companyOf(r))
}

// @Summary Submit the hours of a preview session as pay parts
// @Tags Danlon
// @Produce json
// @Param session_id path string true "Preview session id"
// @Param user_id query string false "User id"
// @Param company_id query string false "Company id"
// @Success 200 {object} domain.SyncResult "ok"
// @Router /danlon/sync/{session_id} [post]
func (h *handlers) sync(r *stdhttp.Request) (any, error) {
	return h.svc.Sync(r.Context(), chi.URLParam(r, "session_id"), h.userOf(r), companyOf(r))
}
