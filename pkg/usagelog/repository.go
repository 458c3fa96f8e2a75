package usagelog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/megcare/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrEntryNotFound = errors.New("usage log entry not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type usageLogModel struct {
	ID             int64          `gorm:"primaryKey;column:id"`
	HospitalID     int64          `gorm:"column:hospital_id;index"`
	Type           string         `gorm:"column:type"`
	Provider       string         `gorm:"column:provider;index"`
	Action         string         `gorm:"column:action"`
	UserID         int64          `gorm:"column:user_id"`
	RelatedID      int64          `gorm:"column:related_id"`
	Request        datatypes.JSON `gorm:"column:request"`
	Response       datatypes.JSON `gorm:"column:response"`
	Status         string         `gorm:"column:status"`
	ResponseTimeMs int64          `gorm:"column:response_time_ms"`
	ErrorCode      string         `gorm:"column:error_code"`
	ErrorMessage   string         `gorm:"column:error_message"`
	UnitsConsumed  int64          `gorm:"column:units_consumed"`
	UnitCost       float64        `gorm:"column:unit_cost"`
	TotalCostUSD   float64        `gorm:"column:total_cost_usd"`
	Metadata       datatypes.JSON `gorm:"column:metadata"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
}

func (usageLogModel) TableName() string { return "service_usage_logs" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&usageLogModel{})
}

func (r *Repository) Create(ctx context.Context, entry models.ServiceUsageLog) (int64, error) {
	row := &usageLogModel{
		HospitalID: entry.HospitalID,
		Type:       entry.Type,
		Provider:   entry.Provider,
		Action:     entry.Action,
		UserID:     entry.UserID,
		RelatedID:  entry.RelatedID,
		Status:     entry.Status,
		CreatedAt:  time.Now().UTC(),
	}
	if entry.Request != nil {
		if data, err := json.Marshal(entry.Request); err == nil {
			row.Request = datatypes.JSON(data)
		}
	}
	if entry.Metadata != nil {
		if data, err := json.Marshal(entry.Metadata); err == nil {
			row.Metadata = datatypes.JSON(data)
		}
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (r *Repository) Update(ctx context.Context, id int64, columns map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&usageLogModel{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// SumMonthlyCost totals spend for a hospital and provider over the calendar
// month containing at.
func (r *Repository) SumMonthlyCost(ctx context.Context, hospitalID int64, provider string, at time.Time) (float64, error) {
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var total struct {
		Total float64
	}
	err := r.db.WithContext(ctx).Model(&usageLogModel{}).
		Select("COALESCE(SUM(total_cost_usd), 0) AS total").
		Where("hospital_id = ? AND provider = ? AND created_at >= ? AND created_at < ?", hospitalID, provider, start, end).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total.Total, nil
}
