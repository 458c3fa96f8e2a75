package workflow

import (
	"context"
	"fmt"

	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
)

// AuditError marks a transition whose case mutation was fine but whose audit
// trail could not be written. Inside the transactional paths below it always
// rolls the case mutation back with it; the type lets callers tell the two
// failure modes apart instead of having the distinction swallowed here.
type AuditError struct {
	Err error
}

func (e *AuditError) Error() string { return fmt.Sprintf("audit write failed: %v", e.Err) }
func (e *AuditError) Unwrap() error { return e.Err }

// Publisher is the slice of the Kafka producer the state machine needs.
type Publisher interface {
	PublishCaseEvent(ctx context.Context, eventType string, source string, caseID int64, data map[string]interface{}) error
}

// Store is the persistence surface the state machine drives. *Repository is
// the Postgres implementation; tests substitute an in-memory one.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error
	CreateCase(ctx context.Context, c *models.Case) error
	GetCase(ctx context.Context, caseID int64) (models.Case, error)
	UpdateCaseColumns(ctx context.Context, caseID int64, columns map[string]interface{}) error
	UpdateCaseColumnsCAS(ctx context.Context, caseID int64, observedVersionID *int64, columns map[string]interface{}) error
	CreateVersion(ctx context.Context, caseID int64, userID int64) (models.CaseVersion, error)
	AppendAudit(ctx context.Context, audit models.CaseAudit) error
	CreateAssignment(ctx context.Context, assignment models.CaseAssignment) (models.CaseAssignment, error)
	ListAudits(ctx context.Context, caseID int64, limit int) ([]models.CaseAudit, error)
	ListAssignments(ctx context.Context, caseID int64) ([]models.CaseAssignment, error)
}

type Service struct {
	repo      Store
	publisher Publisher
}

func NewService(repo Store, publisher Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// roleStatusColumn maps a workflow role to its status column. Unknown roles
// fall through to the global status column.
func roleStatusColumn(role models.UserRole) string {
	switch role {
	case models.RoleTechnician:
		return "technician_status"
	case models.RoleScientist:
		return "scientist_status"
	case models.RoleDoctor:
		return "doctor_status"
	default:
		return "status"
	}
}

func roleStatusValue(c *models.Case, role models.UserRole) string {
	switch role {
	case models.RoleTechnician:
		return c.TechnicianStatus
	case models.RoleScientist:
		return c.ScientistStatus
	case models.RoleDoctor:
		return c.DoctorStatus
	default:
		return c.Status
	}
}

// TransitionOnView promotes a role status from draft to in_progress the first
// time its owner opens the case, promoting the global status alongside when it
// is still draft. Any later call is a no-op returning false.
func (s *Service) TransitionOnView(ctx context.Context, caseID int64, role models.UserRole, userID int64) (bool, error) {
	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return false, err
	}

	if roleStatusValue(&c, role) != models.RoleStatusDraft {
		return false, nil
	}

	column := roleStatusColumn(role)
	columns := map[string]interface{}{column: models.RoleStatusInProgress}
	if column != "status" && c.Status == models.CaseStatusDraft {
		columns["status"] = models.CaseStatusInProgress
	}

	err = s.repo.Transaction(ctx, func(tx Store) error {
		if err := tx.UpdateCaseColumns(ctx, caseID, columns); err != nil {
			return err
		}
		audit := models.CaseAudit{
			CaseID:    caseID,
			VersionID: c.CurrentVersionID,
			FieldName: column,
			OldValue:  models.RoleStatusDraft,
			NewValue:  models.RoleStatusInProgress,
			ChangedBy: userID,
		}
		if err := tx.AppendAudit(ctx, audit); err != nil {
			return &AuditError{Err: err}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"case_id": caseID,
		"role":    role,
		"column":  column,
	}).Info("case opened, role status now in_progress")
	return true, nil
}

// TransitionOnAssignment hands a case from one role to the next: the from
// role completes, the to role is assigned, the global status becomes
// in_progress if it was not already. The case mutation, new version, the
// assignment record and every audit row commit together or not at all. The
// caller's observed version id guards against a concurrent hand-off.
func (s *Service) TransitionOnAssignment(ctx context.Context, caseID int64, from, to models.UserRole, userID, assignedToID int64, observedVersionID *int64, notes string) (bool, error) {
	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return false, err
	}

	fromColumn := roleStatusColumn(from)
	toColumn := roleStatusColumn(to)
	statusChanged := c.Status != models.CaseStatusInProgress

	var version models.CaseVersion
	err = s.repo.Transaction(ctx, func(tx Store) error {
		version, err = tx.CreateVersion(ctx, caseID, userID)
		if err != nil {
			return err
		}

		columns := map[string]interface{}{
			fromColumn:           models.RoleStatusCompleted,
			toColumn:             models.RoleStatusAssigned,
			"current_user_id":    assignedToID,
			"current_version_id": version.ID,
		}
		if statusChanged {
			columns["status"] = models.CaseStatusInProgress
		}
		if err := tx.UpdateCaseColumnsCAS(ctx, caseID, observedVersionID, columns); err != nil {
			return err
		}

		if _, err := tx.CreateAssignment(ctx, models.CaseAssignment{
			CaseID:        caseID,
			CaseVersionID: version.ID,
			UserID:        userID,
			AssignedToID:  assignedToID,
			Notes:         notes,
		}); err != nil {
			return err
		}

		audits := []models.CaseAudit{
			{CaseID: caseID, VersionID: &version.ID, FieldName: fromColumn, OldValue: roleStatusValue(&c, from), NewValue: models.RoleStatusCompleted, ChangedBy: userID},
			{CaseID: caseID, VersionID: &version.ID, FieldName: toColumn, OldValue: roleStatusValue(&c, to), NewValue: models.RoleStatusAssigned, ChangedBy: userID},
		}
		if statusChanged {
			audits = append(audits, models.CaseAudit{
				CaseID: caseID, VersionID: &version.ID, FieldName: "status",
				OldValue: c.Status, NewValue: models.CaseStatusInProgress, ChangedBy: userID,
			})
		}
		for _, audit := range audits {
			if err := tx.AppendAudit(ctx, audit); err != nil {
				return &AuditError{Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.publish(ctx, "case_assigned", caseID, map[string]interface{}{
		"from_role":   string(from),
		"to_role":     string(to),
		"assigned_to": assignedToID,
		"version":     version.VersionNumber,
	})
	return true, nil
}

// CascadeCompletion closes the whole case: every role status and the global
// status go to completed. It is idempotent; running it on an already
// completed case rewrites the same terminal values.
func (s *Service) CascadeCompletion(ctx context.Context, caseID int64, userID int64) (bool, error) {
	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return false, err
	}

	err = s.repo.Transaction(ctx, func(tx Store) error {
		columns := map[string]interface{}{
			"technician_status": models.RoleStatusCompleted,
			"scientist_status":  models.RoleStatusCompleted,
			"doctor_status":     models.RoleStatusCompleted,
			"status":            models.CaseStatusCompleted,
		}
		if err := tx.UpdateCaseColumns(ctx, caseID, columns); err != nil {
			return err
		}

		audits := []models.CaseAudit{
			{CaseID: caseID, VersionID: c.CurrentVersionID, FieldName: "technician_status", OldValue: c.TechnicianStatus, NewValue: models.RoleStatusCompleted, ChangedBy: userID},
			{CaseID: caseID, VersionID: c.CurrentVersionID, FieldName: "scientist_status", OldValue: c.ScientistStatus, NewValue: models.RoleStatusCompleted, ChangedBy: userID},
			{CaseID: caseID, VersionID: c.CurrentVersionID, FieldName: "doctor_status", OldValue: c.DoctorStatus, NewValue: models.RoleStatusCompleted, ChangedBy: userID},
		}
		for _, audit := range audits {
			if err := tx.AppendAudit(ctx, audit); err != nil {
				return &AuditError{Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.publish(ctx, "case_completed", caseID, map[string]interface{}{
		"completed_by": userID,
	})
	return true, nil
}

func (s *Service) Case(ctx context.Context, caseID int64) (models.Case, error) {
	return s.repo.GetCase(ctx, caseID)
}

func (s *Service) Audits(ctx context.Context, caseID int64, limit int) ([]models.CaseAudit, error) {
	return s.repo.ListAudits(ctx, caseID, limit)
}

func (s *Service) Assignments(ctx context.Context, caseID int64) ([]models.CaseAssignment, error) {
	return s.repo.ListAssignments(ctx, caseID)
}

// publish is best-effort; a broker outage must never fail a transition that
// already committed.
func (s *Service) publish(ctx context.Context, eventType string, caseID int64, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCaseEvent(ctx, eventType, "workflow", caseID, data); err != nil {
		logger.Log.WithError(err).WithField("case_id", caseID).Error("failed to publish workflow event")
	}
}
