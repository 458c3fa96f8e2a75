package aiprovider

import (
	"context"

	"github.com/megcare/platform/pkg/common/config"
)

// ConfigSettings serves the same AI settings for every hospital, straight
// from process configuration. Deployments that store per-hospital
// settings in the database swap in their own SettingsSource.
type ConfigSettings struct {
	cfg *config.Config
}

func NewConfigSettings(cfg *config.Config) *ConfigSettings {
	return &ConfigSettings{cfg: cfg}
}

func (c *ConfigSettings) HospitalAISettings(ctx context.Context, hospitalID int64) (Settings, error) {
	return Settings{
		Preferred: c.cfg.PreferredAI,
		Enabled: map[string]bool{
			ProviderOpenAI: c.cfg.OpenAIEnabled,
			ProviderGemini: c.cfg.GeminiEnabled,
		},
		MonthlyBudgetUSD: c.cfg.MonthlyBudget,
	}, nil
}
