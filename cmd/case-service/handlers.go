package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/megcare/platform/pkg/cases"
	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
	"github.com/megcare/platform/pkg/recommend"
	"github.com/megcare/platform/pkg/workflow"
)

const maxUploadBytes = 32 << 20

func (a *CaseApp) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.HospitalID = headerID(r, "X-Hospital-ID")
	req.UserID = headerID(r, "X-User-ID")

	created, err := a.cases.CreateCase(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetCase also runs the view transition for the caller's role, the
// same way opening a case in the UI does.
func (a *CaseApp) handleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID := pathID(r)
	hospitalID := headerID(r, "X-Hospital-ID")
	userID := headerID(r, "X-User-ID")
	role := models.UserRole(r.Header.Get("X-User-Role"))

	c, err := a.cases.GetCase(r.Context(), hospitalID, caseID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if transitioned, err := a.workflow.TransitionOnView(r.Context(), caseID, role, userID); err != nil {
		logger.Log.WithError(err).WithField("case_id", caseID).Error("view transition failed")
	} else if transitioned {
		c, err = a.cases.GetCase(r.Context(), hospitalID, caseID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *CaseApp) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromRole          string `json:"from_role"`
		ToRole            string `json:"to_role"`
		AssignedToID      int64  `json:"assigned_to_id"`
		ObservedVersionID *int64 `json:"observed_version_id"`
		Notes             string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := a.workflow.TransitionOnAssignment(r.Context(), pathID(r),
		models.UserRole(req.FromRole), models.UserRole(req.ToRole),
		headerID(r, "X-User-ID"), req.AssignedToID, req.ObservedVersionID, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"assigned": ok})
}

func (a *CaseApp) handleComplete(w http.ResponseWriter, r *http.Request) {
	ok, err := a.workflow.CascadeCompletion(r.Context(), pathID(r), headerID(r, "X-User-ID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": ok})
}

func (a *CaseApp) handleReconcileProcedures(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExamProcedureIDs []int64 `json:"exam_procedure_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.cases.ReconcileProcedures(r.Context(), pathID(r), req.ExamProcedureIDs); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadDocument accepts raw file bytes, runs the analysis pipeline
// and attaches the document to the case. The storage collaborator has
// already persisted the file; we receive its metadata in headers.
func (a *CaseApp) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	caseID := pathID(r)
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable upload")
		return
	}

	links, err := a.cases.Procedures(r.Context(), caseID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	candidates := make(map[int64]string, len(links))
	for _, link := range links {
		if link.Procedure != nil {
			candidates[link.ID] = link.Procedure.DisplayName()
		}
	}

	mimeType := r.Header.Get("Content-Type")
	filename := r.Header.Get("X-Original-Filename")
	content := a.analyzer.Analyze(r.Context(), data, mimeType, filename, candidates)

	doc := models.Document{
		CaseID:                caseID,
		UserID:                headerID(r, "X-User-ID"),
		DocumentType:          content.Analysis.DocumentType,
		FilePath:              r.Header.Get("X-File-Path"),
		FileType:              mimeType,
		FileSize:              int64(len(data)),
		OriginalFilename:      filename,
		Description:           content.Analysis.Description,
		CasesExamsProcedureID: content.Analysis.SuggestedProcedureID,
	}
	if err := a.cases.AttachDocument(r.Context(), &doc); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"document": doc,
		"analysis": content.Analysis,
	})
}

func (a *CaseApp) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.HospitalID = headerID(r, "X-Hospital-ID")

	patient, account, err := a.cases.CreatePatientWithAccount(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"patient": patient,
		"user":    account,
	})
}

func (a *CaseApp) handlePatientView(w http.ResponseWriter, r *http.Request) {
	patient, err := a.cases.Patient(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	viewer, err := a.cases.User(r.Context(), headerID(r, "X-User-ID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if patient.HospitalID != viewer.HospitalID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, a.masking.MaskForUser(r.Context(), patient, viewer))
}

func (a *CaseApp) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var in recommend.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec := a.recommend.Recommend(r.Context(), headerID(r, "X-Hospital-ID"), headerID(r, "X-User-ID"), in)
	writeJSON(w, http.StatusOK, rec)
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

// writeServiceError maps domain errors onto status codes. Cross-tenant
// access surfaces as a plain not-found.
func writeServiceError(w http.ResponseWriter, err error) {
	var validation *cases.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": validation.Fields,
		})
	case errors.Is(err, cases.ErrNotFound), errors.Is(err, workflow.ErrCaseNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, workflow.ErrVersionConflict):
		writeError(w, http.StatusConflict, "case was modified by another user")
	case errors.Is(err, cases.ErrEmailTaken), errors.Is(err, cases.ErrMRNTaken):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
