package aiprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/megcare/platform/pkg/common/config"
	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
	"github.com/megcare/platform/pkg/usagelog"
)

var (
	ErrProviderDisabled = errors.New("provider has no remote endpoint")
	ErrEmptyCompletion  = errors.New("provider returned empty content")
)

// Client performs the actual provider calls. Every call is single-attempt
// and goes through the usage ledger; callers own the fallback path.
type Client struct {
	cfg    *config.Config
	http   *http.Client
	ledger *usagelog.Service
}

func NewClient(cfg *config.Config, ledger *usagelog.Service) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.AICallTimeout},
		ledger: ledger,
	}
}

// Call sends one prompt to the named provider and returns the text blob.
// Non-200 or empty content is a hard failure.
func (c *Client) Call(ctx context.Context, provider string, hospitalID, userID int64, action, prompt string) (string, error) {
	if provider == ProviderFallback || provider == "" {
		return "", ErrProviderDisabled
	}

	logID, started, _ := c.ledger.Start(ctx, models.ServiceUsageLog{
		HospitalID: hospitalID,
		Type:       "ai",
		Provider:   provider,
		Action:     action,
		UserID:     userID,
		Request:    map[string]interface{}{"prompt_chars": len(prompt)},
	})

	text, tokens, err := c.call(ctx, provider, prompt)
	if err != nil {
		status := models.UsageStatusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			status = models.UsageStatusTimeout
		}
		if ferr := c.ledger.Fail(ctx, logID, started, status, "", err.Error()); ferr != nil {
			logger.Log.WithError(ferr).Error("failed to close usage log entry")
		}
		return "", err
	}

	if cerr := c.ledger.Complete(ctx, logID, started, map[string]interface{}{"content_chars": len(text)}, tokens, RatePer1K(provider)); cerr != nil {
		logger.Log.WithError(cerr).Error("failed to close usage log entry")
	}
	return text, nil
}

func (c *Client) call(ctx context.Context, provider, prompt string) (string, int64, error) {
	switch provider {
	case ProviderOpenAI:
		return c.callOpenAI(ctx, prompt)
	case ProviderGemini:
		return c.callGemini(ctx, prompt)
	default:
		return "", 0, fmt.Errorf("unknown provider %q", provider)
	}
}

func (c *Client) callOpenAI(ctx context.Context, prompt string) (string, int64, error) {
	payload := map[string]interface{}{
		"model": c.cfg.OpenAIModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.3,
	}

	body, err := c.post(ctx, c.cfg.OpenAIBaseURL+"/chat/completions", payload, map[string]string{
		"Authorization": "Bearer " + c.cfg.OpenAIAPIKey,
	})
	if err != nil {
		return "", 0, err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int64 `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", 0, err
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", 0, ErrEmptyCompletion
	}

	tokens := result.Usage.TotalTokens
	if tokens == 0 {
		tokens = estimateTokens(prompt, result.Choices[0].Message.Content)
	}
	return result.Choices[0].Message.Content, tokens, nil
}

func (c *Client) callGemini(ctx context.Context, prompt string) (string, int64, error) {
	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{"temperature": 0.3},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.GeminiBaseURL, c.cfg.GeminiModel, c.cfg.GeminiAPIKey)
	body, err := c.post(ctx, url, payload, nil)
	if err != nil {
		return "", 0, err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			TotalTokenCount int64 `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", 0, err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 || result.Candidates[0].Content.Parts[0].Text == "" {
		return "", 0, ErrEmptyCompletion
	}

	tokens := result.UsageMetadata.TotalTokenCount
	if tokens == 0 {
		tokens = estimateTokens(prompt, result.Candidates[0].Content.Parts[0].Text)
	}
	return result.Candidates[0].Content.Parts[0].Text, tokens, nil
}

func (c *Client) post(ctx context.Context, url string, payload interface{}, headers map[string]string) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return body, nil
}

// estimateTokens approximates usage when the provider omits a count; four
// characters per token is the usual rough cut.
func estimateTokens(prompt, completion string) int64 {
	return int64((len(prompt) + len(completion)) / 4)
}
