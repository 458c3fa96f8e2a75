package aiprovider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/megcare/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// Provider names. ProviderFallback is a sentinel: always available, zero
// cost, served by local templates instead of a network call.
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderFallback = "fallback"
)

// preferenceOrder is the fixed order tried when the hospital's preferred
// provider does not qualify.
var preferenceOrder = []string{ProviderOpenAI, ProviderGemini}

// ratePer1K is the dollar cost per 1000 tokens for each provider.
var ratePer1K = map[string]float64{
	ProviderOpenAI:   0.03,
	ProviderGemini:   0.0125,
	ProviderFallback: 0,
}

func RatePer1K(provider string) float64 {
	return ratePer1K[provider]
}

// Settings is a hospital's AI configuration.
type Settings struct {
	Preferred        string
	Enabled          map[string]bool
	MonthlyBudgetUSD float64 // <= 0 means unlimited
}

// SettingsSource resolves per-hospital AI settings.
type SettingsSource interface {
	HospitalAISettings(ctx context.Context, hospitalID int64) (Settings, error)
}

// SpendSource reports a hospital's month-to-date spend on a provider; the
// usage ledger is the implementation.
type SpendSource interface {
	MonthlySpend(ctx context.Context, hospitalID int64, provider string, at time.Time) (float64, error)
}

type Router struct {
	settings SettingsSource
	spend    SpendSource
	cache    *redis.Client
	cacheTTL time.Duration
	now      func() time.Time
}

func NewRouter(settings SettingsSource, spend SpendSource, cache *redis.Client, cacheTTL time.Duration) *Router {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Router{settings: settings, spend: spend, cache: cache, cacheTTL: cacheTTL, now: time.Now}
}

// DetermineProvider picks the provider for a hospital: the preferred one if
// enabled and inside its monthly budget, else the first qualifying provider
// in the fixed preference order, else the fallback sentinel.
func (r *Router) DetermineProvider(ctx context.Context, hospitalID int64) string {
	settings, err := r.settings.HospitalAISettings(ctx, hospitalID)
	if err != nil {
		logger.Log.WithError(err).WithField("hospital_id", hospitalID).Error("failed to load AI settings")
		return ProviderFallback
	}

	if settings.Preferred != "" && r.qualifies(ctx, hospitalID, settings, settings.Preferred) {
		return settings.Preferred
	}

	for _, provider := range preferenceOrder {
		if provider == settings.Preferred {
			continue
		}
		if r.qualifies(ctx, hospitalID, settings, provider) {
			return provider
		}
	}
	return ProviderFallback
}

func (r *Router) qualifies(ctx context.Context, hospitalID int64, settings Settings, provider string) bool {
	if !settings.Enabled[provider] {
		return false
	}
	if settings.MonthlyBudgetUSD <= 0 {
		return true
	}
	spent, err := r.monthlySpend(ctx, hospitalID, provider)
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"hospital_id": hospitalID,
			"provider":    provider,
		}).Error("failed to compute monthly spend")
		return false
	}
	if spent >= settings.MonthlyBudgetUSD {
		logger.Log.WithFields(map[string]interface{}{
			"hospital_id": hospitalID,
			"provider":    provider,
			"spent_usd":   spent,
			"budget_usd":  settings.MonthlyBudgetUSD,
		}).Warn("provider over monthly budget, trying next")
		return false
	}
	return true
}

func (r *Router) monthlySpend(ctx context.Context, hospitalID int64, provider string) (float64, error) {
	at := r.now().UTC()
	key := fmt.Sprintf("ai:spend:%d:%s:%s", hospitalID, provider, at.Format("2006-01"))

	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
			if spent, err := strconv.ParseFloat(cached, 64); err == nil {
				return spent, nil
			}
		}
	}

	spent, err := r.spend.MonthlySpend(ctx, hospitalID, provider, at)
	if err != nil {
		return 0, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, strconv.FormatFloat(spent, 'f', -1, 64), r.cacheTTL).Err(); err != nil {
			logger.Log.WithError(err).Debug("failed to cache monthly spend")
		}
	}
	return spent, nil
}
