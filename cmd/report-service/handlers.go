package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
	"github.com/megcare/platform/pkg/report/export"
	"github.com/megcare/platform/pkg/workflow"
)

func (a *ReportApp) handleGenerate(w http.ResponseWriter, r *http.Request) {
	c, ok := a.loadCase(w, r)
	if !ok {
		return
	}

	in, err := a.buildInput(r.Context(), c)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rpt, _, err := a.reports.Generate(r.Context(), in, headerID(r, "X-User-ID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpt)
}

func (a *ReportApp) handleExport(w http.ResponseWriter, r *http.Request) {
	c, ok := a.loadCase(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatHTML
	}

	in, err := a.buildInput(r.Context(), c)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, assembled, err := a.reports.Generate(r.Context(), in, headerID(r, "X-User-ID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	artifact, err := a.exporter.Export(r.Context(), assembled, format)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", artifact.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Content); err != nil {
		logger.Log.WithError(err).Error("failed to write export body")
	}
}

// loadCase resolves the path case and enforces tenancy. Cases from
// another hospital surface as not-found.
func (a *ReportApp) loadCase(w http.ResponseWriter, r *http.Request) (models.Case, bool) {
	c, err := a.workflow.Case(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, err)
		return models.Case{}, false
	}
	if c.HospitalID != headerID(r, "X-Hospital-ID") {
		writeError(w, http.StatusNotFound, "not found")
		return models.Case{}, false
	}
	return c, true
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func headerID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.Header.Get(name), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrCaseNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		logger.Log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
