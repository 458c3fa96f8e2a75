package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/megcare/platform/pkg/common/models"
	"gorm.io/gorm"
)

var (
	ErrCaseNotFound    = errors.New("case not found")
	ErrVersionConflict = errors.New("case version conflict")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type caseModel struct {
	ID               int64      `gorm:"primaryKey;column:id"`
	HospitalID       int64      `gorm:"column:hospital_id;index"`
	PatientID        int64      `gorm:"column:patient_id;index"`
	UserID           int64      `gorm:"column:user_id"`
	CurrentUserID    int64      `gorm:"column:current_user_id"`
	Date             *time.Time `gorm:"column:date"`
	DepartmentID     *int64     `gorm:"column:department_id"`
	SedationID       *int64     `gorm:"column:sedation_id"`
	Priority         string     `gorm:"column:priority"`
	Status           string     `gorm:"column:status"`
	TechnicianStatus string     `gorm:"column:technician_status"`
	ScientistStatus  string     `gorm:"column:scientist_status"`
	DoctorStatus     string     `gorm:"column:doctor_status"`
	Symptoms         string     `gorm:"column:symptoms"`
	Notes            string     `gorm:"column:notes"`
	CurrentVersionID *int64     `gorm:"column:current_version_id"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (caseModel) TableName() string { return "cases" }

type caseVersionModel struct {
	ID            int64     `gorm:"primaryKey;column:id"`
	CaseID        int64     `gorm:"column:case_id;index"`
	VersionNumber int       `gorm:"column:version_number"`
	UserID        int64     `gorm:"column:user_id"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (caseVersionModel) TableName() string { return "case_versions" }

type caseAuditModel struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	CaseID    int64     `gorm:"column:case_id;index"`
	VersionID *int64    `gorm:"column:version_id"`
	FieldName string    `gorm:"column:field_name"`
	OldValue  string    `gorm:"column:old_value"`
	NewValue  string    `gorm:"column:new_value"`
	ChangedBy int64     `gorm:"column:changed_by"`
	Notes     string    `gorm:"column:notes"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (caseAuditModel) TableName() string { return "case_audits" }

type caseAssignmentModel struct {
	ID            int64     `gorm:"primaryKey;column:id"`
	CaseID        int64     `gorm:"column:case_id;index"`
	CaseVersionID int64     `gorm:"column:case_version_id"`
	UserID        int64     `gorm:"column:user_id"`
	AssignedToID  int64     `gorm:"column:assigned_to_id"`
	Notes         string    `gorm:"column:notes"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (caseAssignmentModel) TableName() string { return "case_assignments" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&caseModel{},
		&caseVersionModel{},
		&caseAuditModel{},
		&caseAssignmentModel{},
	)
}

// Transaction runs fn against a store bound to a transaction; any error
// rolls the whole unit back.
func (r *Repository) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) CreateCase(ctx context.Context, c *models.Case) error {
	row := toCaseRow(c)
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*c = *fromCaseRow(row)
	return nil
}

func (r *Repository) GetCase(ctx context.Context, caseID int64) (models.Case, error) {
	var row caseModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Case{}, ErrCaseNotFound
		}
		return models.Case{}, err
	}
	return *fromCaseRow(&row), nil
}

// UpdateCaseColumns writes the given columns plus updated_at for the case.
func (r *Repository) UpdateCaseColumns(ctx context.Context, caseID int64, columns map[string]interface{}) error {
	columns["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&caseModel{}).Where("id = ?", caseID).Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCaseNotFound
	}
	return nil
}

// UpdateCaseColumnsCAS is UpdateCaseColumns guarded by the caller's observed
// current_version_id; a mismatch means another user saved the case first.
func (r *Repository) UpdateCaseColumnsCAS(ctx context.Context, caseID int64, observedVersionID *int64, columns map[string]interface{}) error {
	columns["updated_at"] = time.Now().UTC()
	query := r.db.WithContext(ctx).Model(&caseModel{}).Where("id = ?", caseID)
	if observedVersionID == nil {
		query = query.Where("current_version_id IS NULL")
	} else {
		query = query.Where("current_version_id = ?", *observedVersionID)
	}
	res := query.Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// CreateVersion appends the next snapshot marker for the case. Version
// numbers are strictly increasing per case.
func (r *Repository) CreateVersion(ctx context.Context, caseID int64, userID int64) (models.CaseVersion, error) {
	var latest caseVersionModel
	next := 1
	err := r.db.WithContext(ctx).Where("case_id = ?", caseID).Order("version_number DESC").First(&latest).Error
	if err == nil {
		next = latest.VersionNumber + 1
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CaseVersion{}, err
	}

	row := &caseVersionModel{
		CaseID:        caseID,
		VersionNumber: next,
		UserID:        userID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.CaseVersion{}, err
	}
	return models.CaseVersion{
		ID:            row.ID,
		CaseID:        row.CaseID,
		VersionNumber: row.VersionNumber,
		UserID:        row.UserID,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func (r *Repository) AppendAudit(ctx context.Context, audit models.CaseAudit) error {
	row := &caseAuditModel{
		CaseID:    audit.CaseID,
		VersionID: audit.VersionID,
		FieldName: audit.FieldName,
		OldValue:  audit.OldValue,
		NewValue:  audit.NewValue,
		ChangedBy: audit.ChangedBy,
		Notes:     audit.Notes,
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) ListAudits(ctx context.Context, caseID int64, limit int) ([]models.CaseAudit, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []caseAuditModel
	if err := r.db.WithContext(ctx).Where("case_id = ?", caseID).Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	audits := make([]models.CaseAudit, 0, len(rows))
	for _, row := range rows {
		audits = append(audits, models.CaseAudit{
			ID:        row.ID,
			CaseID:    row.CaseID,
			VersionID: row.VersionID,
			FieldName: row.FieldName,
			OldValue:  row.OldValue,
			NewValue:  row.NewValue,
			ChangedBy: row.ChangedBy,
			Notes:     row.Notes,
			CreatedAt: row.CreatedAt,
		})
	}
	return audits, nil
}

func (r *Repository) CreateAssignment(ctx context.Context, assignment models.CaseAssignment) (models.CaseAssignment, error) {
	row := &caseAssignmentModel{
		CaseID:        assignment.CaseID,
		CaseVersionID: assignment.CaseVersionID,
		UserID:        assignment.UserID,
		AssignedToID:  assignment.AssignedToID,
		Notes:         assignment.Notes,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.CaseAssignment{}, err
	}
	assignment.ID = row.ID
	assignment.CreatedAt = row.CreatedAt
	return assignment, nil
}

// ListAssignments returns hand-off records most-recent-first; the first entry
// defines the current assignment.
func (r *Repository) ListAssignments(ctx context.Context, caseID int64) ([]models.CaseAssignment, error) {
	var rows []caseAssignmentModel
	if err := r.db.WithContext(ctx).Where("case_id = ?", caseID).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	assignments := make([]models.CaseAssignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, models.CaseAssignment{
			ID:            row.ID,
			CaseID:        row.CaseID,
			CaseVersionID: row.CaseVersionID,
			UserID:        row.UserID,
			AssignedToID:  row.AssignedToID,
			Notes:         row.Notes,
			CreatedAt:     row.CreatedAt,
		})
	}
	return assignments, nil
}

func toCaseRow(c *models.Case) *caseModel {
	return &caseModel{
		ID:               c.ID,
		HospitalID:       c.HospitalID,
		PatientID:        c.PatientID,
		UserID:           c.UserID,
		CurrentUserID:    c.CurrentUserID,
		Date:             c.Date,
		DepartmentID:     c.DepartmentID,
		SedationID:       c.SedationID,
		Priority:         c.Priority,
		Status:           c.Status,
		TechnicianStatus: c.TechnicianStatus,
		ScientistStatus:  c.ScientistStatus,
		DoctorStatus:     c.DoctorStatus,
		Symptoms:         c.Symptoms,
		Notes:            c.Notes,
		CurrentVersionID: c.CurrentVersionID,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func fromCaseRow(row *caseModel) *models.Case {
	return &models.Case{
		ID:               row.ID,
		HospitalID:       row.HospitalID,
		PatientID:        row.PatientID,
		UserID:           row.UserID,
		CurrentUserID:    row.CurrentUserID,
		Date:             row.Date,
		DepartmentID:     row.DepartmentID,
		SedationID:       row.SedationID,
		Priority:         row.Priority,
		Status:           row.Status,
		TechnicianStatus: row.TechnicianStatus,
		ScientistStatus:  row.ScientistStatus,
		DoctorStatus:     row.DoctorStatus,
		Symptoms:         row.Symptoms,
		Notes:            row.Notes,
		CurrentVersionID: row.CurrentVersionID,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}
