package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
	"github.com/megcare/platform/pkg/workflow"
	"golang.org/x/crypto/bcrypt"
)

// ValidationError carries field-level messages for the wizard; nothing is
// persisted when one is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Store is the persistence surface of the case façade; *Repository is the
// Postgres implementation.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error
	CreateUser(ctx context.Context, user *models.User, passwordHash string) error
	GetUser(ctx context.Context, userID int64) (models.User, error)
	CountUsersByEmail(ctx context.Context, email string) (int64, error)
	CountPatientsByMRN(ctx context.Context, hospitalID int64, mrn string) (int64, error)
	CreatePatient(ctx context.Context, patient *models.Patient) error
	GetPatient(ctx context.Context, patientID int64) (models.Patient, error)
	ListCaseProcedures(ctx context.Context, caseID int64) ([]models.CasesExamsProcedure, error)
	CreateCaseProcedure(ctx context.Context, link models.CasesExamsProcedure) error
	DeleteCaseProcedure(ctx context.Context, linkID int64) error
	UpdateCaseProcedureStatus(ctx context.Context, linkID int64, status string) error
	CreateDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context, caseID int64) ([]models.Document, error)
	GetDepartment(ctx context.Context, id int64) (models.Department, error)
	GetSedation(ctx context.Context, id int64) (models.Sedation, error)
}

type Service struct {
	repo      Store
	cases     workflow.Store
	publisher workflow.Publisher
}

func NewService(repo Store, cases workflow.Store, publisher workflow.Publisher) *Service {
	return &Service{repo: repo, cases: cases, publisher: publisher}
}

var validPriorities = map[string]bool{
	models.PriorityLow:    true,
	models.PriorityMedium: true,
	models.PriorityHigh:   true,
	models.PriorityUrgent: true,
}

// CreateCase is the technician wizard's final step. The technician column
// starts in_progress, the other roles and the global status start draft.
func (s *Service) CreateCase(ctx context.Context, req models.CreateCaseRequest) (models.Case, error) {
	fields := map[string]string{}
	if req.HospitalID == 0 {
		fields["hospital_id"] = "required"
	}
	if req.PatientID == 0 {
		fields["patient_id"] = "required"
	}
	if req.UserID == 0 {
		fields["user_id"] = "required"
	}
	if req.Priority != "" && !validPriorities[req.Priority] {
		fields["priority"] = "must be one of low, medium, high, urgent"
	}
	if len(fields) > 0 {
		return models.Case{}, &ValidationError{Fields: fields}
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	c := models.Case{
		HospitalID:       req.HospitalID,
		PatientID:        req.PatientID,
		UserID:           req.UserID,
		CurrentUserID:    req.UserID,
		Date:             req.Date,
		DepartmentID:     req.DepartmentID,
		SedationID:       req.SedationID,
		Priority:         priority,
		Status:           models.CaseStatusDraft,
		TechnicianStatus: models.RoleStatusInProgress,
		ScientistStatus:  models.RoleStatusDraft,
		DoctorStatus:     models.RoleStatusDraft,
		Symptoms:         req.Symptoms,
		Notes:            req.Notes,
	}

	err := s.cases.Transaction(ctx, func(tx workflow.Store) error {
		if err := tx.CreateCase(ctx, &c); err != nil {
			return err
		}
		version, err := tx.CreateVersion(ctx, c.ID, req.UserID)
		if err != nil {
			return err
		}
		if err := tx.UpdateCaseColumns(ctx, c.ID, map[string]interface{}{
			"current_version_id": version.ID,
		}); err != nil {
			return err
		}
		c.CurrentVersionID = &version.ID
		return tx.AppendAudit(ctx, models.CaseAudit{
			CaseID:    c.ID,
			VersionID: &version.ID,
			FieldName: "status",
			OldValue:  "",
			NewValue:  models.CaseStatusDraft,
			ChangedBy: req.UserID,
			Notes:     "case created",
		})
	})
	if err != nil {
		return models.Case{}, err
	}

	for _, procedureID := range req.ExamProcedureIDs {
		link := models.CasesExamsProcedure{
			CaseID:           c.ID,
			ExamsProcedureID: procedureID,
			Status:           models.ProcedureStatusPending,
		}
		if err := s.repo.CreateCaseProcedure(ctx, link); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"case_id":      c.ID,
				"procedure_id": procedureID,
			}).Error("failed to link procedure")
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishCaseEvent(ctx, "case_created", "cases", c.ID, map[string]interface{}{
			"hospital_id": c.HospitalID,
			"priority":    c.Priority,
		}); err != nil {
			logger.Log.WithError(err).WithField("case_id", c.ID).Error("failed to publish case_created")
		}
	}

	return c, nil
}

// GetCase enforces the hospital boundary: a case belonging to another
// hospital is indistinguishable from a missing one.
func (s *Service) GetCase(ctx context.Context, hospitalID, caseID int64) (models.Case, error) {
	c, err := s.cases.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, workflow.ErrCaseNotFound) {
			return models.Case{}, ErrNotFound
		}
		return models.Case{}, err
	}
	if c.HospitalID != hospitalID {
		return models.Case{}, ErrNotFound
	}
	return c, nil
}

// CreatePatientWithAccount validates the patient record and the portal user
// fully before persisting either, then writes both inside one transaction so
// a failure on either side leaves nothing behind.
func (s *Service) CreatePatientWithAccount(ctx context.Context, req models.CreatePatientRequest) (models.Patient, models.User, error) {
	fields := map[string]string{}
	if req.HospitalID == 0 {
		fields["hospital_id"] = "required"
	}
	if strings.TrimSpace(req.FirstName) == "" {
		fields["first_name"] = "required"
	}
	if strings.TrimSpace(req.LastName) == "" {
		fields["last_name"] = "required"
	}
	if strings.TrimSpace(req.MRN) == "" {
		fields["mrn"] = "required"
	}
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		fields["email"] = "valid email required"
	}
	if len(req.Password) < 8 {
		fields["password"] = "minimum 8 characters"
	}
	if len(fields) > 0 {
		return models.Patient{}, models.User{}, &ValidationError{Fields: fields}
	}

	if count, err := s.repo.CountUsersByEmail(ctx, req.Email); err != nil {
		return models.Patient{}, models.User{}, err
	} else if count > 0 {
		return models.Patient{}, models.User{}, ErrEmailTaken
	}
	if count, err := s.repo.CountPatientsByMRN(ctx, req.HospitalID, req.MRN); err != nil {
		return models.Patient{}, models.User{}, err
	} else if count > 0 {
		return models.Patient{}, models.User{}, ErrMRNTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.Patient{}, models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		HospitalID: req.HospitalID,
		Email:      req.Email,
		Name:       strings.TrimSpace(req.FirstName + " " + req.LastName),
		Role:       models.RolePatient,
	}
	patient := models.Patient{
		HospitalID:     req.HospitalID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		MRN:            req.MRN,
		DateOfBirth:    req.DateOfBirth,
		Gender:         req.Gender,
		Phone:          req.Phone,
		Email:          req.Email,
		Address:        req.Address,
		MedicalHistory: req.MedicalHistory,
		Medications:    req.Medications,
	}

	err = s.repo.Transaction(ctx, func(tx Store) error {
		if err := tx.CreateUser(ctx, &user, string(hash)); err != nil {
			return err
		}
		patient.UserID = user.ID
		return tx.CreatePatient(ctx, &patient)
	})
	if err != nil {
		return models.Patient{}, models.User{}, err
	}
	return patient, user, nil
}

// ReconcileProcedures diffs the selected catalog ids against the existing
// links: missing ones are created pending, deselected ones are removed.
// Completed links survive even when deselected; their work already happened.
func (s *Service) ReconcileProcedures(ctx context.Context, caseID int64, selectedIDs []int64) error {
	existing, err := s.repo.ListCaseProcedures(ctx, caseID)
	if err != nil {
		return err
	}

	selected := make(map[int64]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}

	current := make(map[int64]models.CasesExamsProcedure, len(existing))
	for _, link := range existing {
		current[link.ExamsProcedureID] = link
	}

	for _, id := range selectedIDs {
		if _, ok := current[id]; !ok {
			if err := s.repo.CreateCaseProcedure(ctx, models.CasesExamsProcedure{
				CaseID:           caseID,
				ExamsProcedureID: id,
				Status:           models.ProcedureStatusPending,
			}); err != nil {
				return err
			}
		}
	}

	for procedureID, link := range current {
		if !selected[procedureID] && link.Status != models.ProcedureStatusCompleted {
			if err := s.repo.DeleteCaseProcedure(ctx, link.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) CompleteProcedure(ctx context.Context, linkID int64) error {
	return s.repo.UpdateCaseProcedureStatus(ctx, linkID, models.ProcedureStatusCompleted)
}

// AttachDocument records an uploaded artifact. The upload transport and the
// storage backend live elsewhere; by the time we see it the file is stored.
func (s *Service) AttachDocument(ctx context.Context, doc *models.Document) error {
	if doc.CaseID == 0 {
		return &ValidationError{Fields: map[string]string{"case_id": "required"}}
	}
	if doc.FilePath == "" || doc.OriginalFilename == "" {
		return &ValidationError{Fields: map[string]string{"file": "upload result incomplete"}}
	}
	return s.repo.CreateDocument(ctx, doc)
}

func (s *Service) Documents(ctx context.Context, caseID int64) ([]models.Document, error) {
	return s.repo.ListDocuments(ctx, caseID)
}

func (s *Service) Procedures(ctx context.Context, caseID int64) ([]models.CasesExamsProcedure, error) {
	return s.repo.ListCaseProcedures(ctx, caseID)
}

func (s *Service) Patient(ctx context.Context, patientID int64) (models.Patient, error) {
	return s.repo.GetPatient(ctx, patientID)
}

func (s *Service) User(ctx context.Context, userID int64) (models.User, error) {
	return s.repo.GetUser(ctx, userID)
}

func (s *Service) Department(ctx context.Context, id int64) (models.Department, error) {
	return s.repo.GetDepartment(ctx, id)
}

func (s *Service) Sedation(ctx context.Context, id int64) (models.Sedation, error) {
	return s.repo.GetSedation(ctx, id)
}
