// Package http provides http transport for preview
package http

import (
	"encoding/json"
	"fmt"
	"io"
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"overtid/internal/modkit/httpkit"
	perr "overtid/internal/platform/errors"
	phttp "overtid/internal/platform/net/http"
	"overtid/internal/services/api/preview/domain"
	svc "overtid/internal/services/api/preview/service"
)

// maxUploadBytes bounds a single preview upload
const maxUploadBytes = 16 << 20

// Register mounts preview endpoints on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}
	r.Post("/preview", h.preview)
	r.Post("/export/{session_id}", h.export)
	r.Post("/mark-absence/{session_id}", h.markAbsence)
	httpkit.PostJSON[domain.FetchInput](r, "/fetch-api", h.fetchAPI)
}

type handlers struct{ svc svc.Service }

// @Summary Upload registration CSVs and preview the categorized overtime
// @Tags Preview
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "One or more registration CSV files"
// @Param employee_type formData string false "Employee type"
// @Success 200 {object} domain.PreviewPayload "ok"
// @Router /api/preview [post]
func (h *handlers) preview(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		phttp.RespondError(w, r, perr.InvalidInputf("parse multipart form: %v", err))
		return
	}

	var files [][]byte
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			phttp.RespondError(w, r, perr.InvalidInputf("open upload %q: %v", fh.Filename, err))
			return
		}
		raw, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		_ = f.Close()
		if err != nil {
			phttp.RespondError(w, r, perr.InvalidInputf("read upload %q: %v", fh.Filename, err))
			return
		}
		files = append(files, raw)
	}

	out, err := h.svc.Preview(r.Context(), files, r.FormValue("employee_type"))
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	phttp.RespondOK(w, r, out)
}

// @Summary Export a preview session as CSV
// @Tags Preview
// @Accept x-www-form-urlencoded
// @Produce text/csv
// @Param session_id path string true "Preview session id"
// @Param output_format formData string false "daily, detailed, weekly, weekly_detailed or combined"
// @Param call_out_selections formData string false "JSON map DD-MM-YYYY to bool"
// @Success 200 {file} file "csv attachment"
// @Router /api/export/{session_id} [post]
func (h *handlers) export(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	in := domain.ExportInput{Format: r.FormValue("output_format")}
	if raw := r.FormValue("call_out_selections"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.CallOutSelections); err != nil {
			phttp.RespondError(w, r, perr.InvalidInputf("call_out_selections: %v", err))
			return
		}
	}

	file, err := h.svc.Export(r.Context(), chi.URLParam(r, "session_id"), in)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = w.Write(file.Content)
}

// @Summary Mark days as absence and recalculate the session
// @Tags Preview
// @Accept x-www-form-urlencoded
// @Produce json
// @Param session_id path string true "Preview session id"
// @Param absence_selections formData string true "JSON map DD-MM-YYYY to Vacation, Sick, Kursus or None"
// @Success 200 {object} domain.PreviewPayload "ok"
// @Router /api/mark-absence/{session_id} [post]
func (h *handlers) markAbsence(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var selections map[string]string
	raw := r.FormValue("absence_selections")
	if raw == "" {
		phttp.RespondError(w, r, perr.InvalidInputf("absence_selections required"))
		return
	}
	if err := json.Unmarshal([]byte(raw), &selections); err != nil {
		phttp.RespondError(w, r, perr.InvalidInputf("absence_selections: %v", err))
		return
	}

	out, err := h.svc.MarkAbsence(r.Context(), chi.URLParam(r, "session_id"), selections)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	phttp.RespondOK(w, r, out)
}

// @Summary Fetch registrations from the workshop API and preview them
// @Tags Preview
// @Accept json
// @Produce json
// @Param payload body domain.FetchInput true "Employee and date range"
// @Success 200 {object} domain.PreviewPayload "ok"
// @Router /api/fetch-api [post]
func (h *handlers) fetchAPI(r *stdhttp.Request, in domain.FetchInput) (any, error) {
	return h.svc.FetchUpstream(r.Context(), in)
}
