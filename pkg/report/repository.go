package report

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/megcare/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type reportModel struct {
	ID              uuid.UUID      `gorm:"primaryKey;column:id;type:uuid"`
	CaseID          int64          `gorm:"column:case_id;index"`
	HospitalID      int64          `gorm:"column:hospital_id;index"`
	UserID          int64          `gorm:"column:user_id"`
	Status          string         `gorm:"column:status"`
	Type            string         `gorm:"column:type"`
	ReportData      datatypes.JSON `gorm:"column:report_data"`
	ConfidenceScore float64        `gorm:"column:confidence_score"`
	AIGenerated     bool           `gorm:"column:ai_generated"`
	CreatedAt       time.Time      `gorm:"column:created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"`
}

func (reportModel) TableName() string { return "reports" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&reportModel{})
}

// FindByCaseAndUser returns the existing report for (case, user), or nil
// when none exists yet.
func (r *Repository) FindByCaseAndUser(ctx context.Context, caseID, userID int64) (*models.Report, error) {
	var row reportModel
	err := r.db.WithContext(ctx).
		Where("case_id = ? AND user_id = ?", caseID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	report := fromReportRow(row)
	return &report, nil
}

// Save upserts on the report id; repeated generation for the same (case,
// user) overwrites report_data in place.
func (r *Repository) Save(ctx context.Context, report *models.Report) error {
	row := reportModel{
		ID:              report.ID,
		CaseID:          report.CaseID,
		HospitalID:      report.HospitalID,
		UserID:          report.UserID,
		Status:          report.Status,
		Type:            report.Type,
		ReportData:      datatypes.JSON(report.ReportData),
		ConfidenceScore: report.ConfidenceScore,
		AIGenerated:     report.AIGenerated,
		CreatedAt:       report.CreatedAt,
		UpdatedAt:       report.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return err
	}
	report.CreatedAt = row.CreatedAt
	report.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var row reportModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	report := fromReportRow(row)
	return &report, nil
}

func fromReportRow(row reportModel) models.Report {
	return models.Report{
		ID:              row.ID,
		CaseID:          row.CaseID,
		HospitalID:      row.HospitalID,
		UserID:          row.UserID,
		Status:          row.Status,
		Type:            row.Type,
		ReportData:      json.RawMessage(row.ReportData),
		ConfidenceScore: row.ConfidenceScore,
		AIGenerated:     row.AIGenerated,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}
