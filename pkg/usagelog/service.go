package usagelog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
	"gorm.io/datatypes"
)

// Store is the persistence surface of the usage ledger.
type Store interface {
	Create(ctx context.Context, entry models.ServiceUsageLog) (int64, error)
	Update(ctx context.Context, id int64, columns map[string]interface{}) error
	SumMonthlyCost(ctx context.Context, hospitalID int64, provider string, at time.Time) (float64, error)
}

// Service is a generic start/complete/fail ledger for any external service
// call. Rows are append-only; Complete and Fail only fill in the outcome of
// the row Start opened.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Start opens a pending ledger row and returns its id and the start time the
// caller should pass back to Complete or Fail.
func (s *Service) Start(ctx context.Context, entry models.ServiceUsageLog) (int64, time.Time, error) {
	entry.Status = models.UsageStatusPending
	started := s.now()
	id, err := s.store.Create(ctx, entry)
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"provider": entry.Provider,
			"action":   entry.Action,
		}).Error("failed to open usage log entry")
		return 0, started, err
	}
	return id, started, nil
}

// Complete closes a pending row as success. Cost is units per thousand times
// the provider's unit rate.
func (s *Service) Complete(ctx context.Context, id int64, started time.Time, response map[string]interface{}, units int64, unitCostPer1K float64) error {
	cost := Cost(units, unitCostPer1K)
	columns := map[string]interface{}{
		"status":           models.UsageStatusSuccess,
		"response_time_ms": s.now().Sub(started).Milliseconds(),
		"units_consumed":   units,
		"unit_cost":        unitCostPer1K,
		"total_cost_usd":   cost,
	}
	if response != nil {
		if data, err := json.Marshal(response); err == nil {
			columns["response"] = datatypes.JSON(data)
		}
	}
	return s.store.Update(ctx, id, columns)
}

// Fail closes a pending row with one of failed, timeout or cancelled.
func (s *Service) Fail(ctx context.Context, id int64, started time.Time, status, code, message string) error {
	switch status {
	case models.UsageStatusFailed, models.UsageStatusTimeout, models.UsageStatusCancelled:
	default:
		status = models.UsageStatusFailed
	}
	return s.store.Update(ctx, id, map[string]interface{}{
		"status":           status,
		"response_time_ms": s.now().Sub(started).Milliseconds(),
		"error_code":       code,
		"error_message":    message,
	})
}

// MonthlySpend reports a hospital's spend on a provider for the calendar
// month containing at.
func (s *Service) MonthlySpend(ctx context.Context, hospitalID int64, provider string, at time.Time) (float64, error) {
	return s.store.SumMonthlyCost(ctx, hospitalID, provider, at)
}

// Cost converts a token count into dollars at a per-1000-token rate.
func Cost(units int64, unitCostPer1K float64) float64 {
	return float64(units) / 1000 * unitCostPer1K
}
