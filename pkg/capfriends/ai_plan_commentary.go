package capfriends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGeminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultCommentaryModel = "gemini-2.0-flash"
	commentaryTimeout      = 2 * time.Minute
)

const planCommentarySystemPrompt = `You review mutual fund rebalancing plans for a family investor in India.
You receive a computed plan as JSON. The numbers are final: never recompute or contradict them.
Write a short plain-text note (at most 8 sentences) that:
- names the funds whose drift exceeds the rebalance threshold and the suggested direction;
- explains how the SIP and lumpsum budgets are being redirected;
- mentions funds with missing prices, if any.
Do not promise returns. Do not use Markdown.`

// PlanCommentaryRequest asks for a narrative of a portfolio's rebalance plan.
type PlanCommentaryRequest struct {
	BaseURL     string
	APIKey      string
	Model       string
	PortfolioID string
	Prices      PriceSnapshot
	Logger      *slog.Logger
}

// PlanCommentaryResult is the narrative returned to clients.
type PlanCommentaryResult struct {
	PortfolioID string         `json:"portfolio_id"`
	Model       string         `json:"model"`
	Commentary  string         `json:"commentary"`
	Plan        *RebalancePlan `json:"plan"`
	GeneratedAt string         `json:"generated_at"`
}

type commentaryCompletionRequest struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	UserPrompt   string
	Logger       *slog.Logger
}

type commentaryCompletionResult struct {
	Model   string
	Content string
}

var planCommentaryCompletion = requestGeminiCommentary

// PlanCommentary computes the rebalance plan and asks the configured model
// to describe it. The plan itself is never altered by the model.
func (c *Core) PlanCommentary(ctx context.Context, req PlanCommentaryRequest) (*PlanCommentaryResult, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, NewError(ErrCodeInvalidInput, "api key required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = defaultCommentaryModel
	}
	logger := req.Logger
	if logger == nil {
		logger = c.logger
	}

	plan, err := c.GetRebalancePlan(ctx, req.PortfolioID, req.Prices)
	if err != nil {
		return nil, err
	}
	payload, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "encode plan", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, commentaryTimeout)
	defer cancel()
	result, err := planCommentaryCompletion(requestCtx, commentaryCompletionRequest{
		BaseURL:      req.BaseURL,
		APIKey:       req.APIKey,
		Model:        model,
		SystemPrompt: planCommentarySystemPrompt,
		UserPrompt:   "Rebalance plan:\n" + string(payload),
		Logger:       logger,
	})
	if err != nil {
		logger.Warn("plan commentary failed", "portfolio_id", plan.PortfolioID, "model", model, "err", err)
		return nil, WrapError(ErrCodeInternal, "plan commentary failed", err)
	}
	return &PlanCommentaryResult{
		PortfolioID: plan.PortfolioID,
		Model:       result.Model,
		Commentary:  result.Content,
		Plan:        plan,
		GeneratedAt: nowRFC3339(c.now),
	}, nil
}

func requestGeminiCommentary(ctx context.Context, req commentaryCompletionRequest) (commentaryCompletionResult, error) {
	if req.Logger != nil {
		req.Logger.Debug("plan commentary request", "model", req.Model, "prompt_chars", len(req.UserPrompt))
	}
	clientConfig, err := buildGeminiClientConfig(req.BaseURL, req.APIKey)
	if err != nil {
		return commentaryCompletionResult{}, err
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return commentaryCompletionResult{}, fmt.Errorf("create gemini client failed: %w", err)
	}

	response, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.UserPrompt), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		},
		Temperature: genai.Ptr(float32(0.2)),
	})
	if err != nil {
		return commentaryCompletionResult{}, fmt.Errorf("gemini generate content failed: %w", err)
	}
	content := strings.TrimSpace(response.Text())
	if content == "" {
		return commentaryCompletionResult{}, fmt.Errorf("ai response content is empty")
	}
	model := strings.TrimSpace(response.ModelVersion)
	if model == "" {
		model = req.Model
	}
	return commentaryCompletionResult{Model: model, Content: content}, nil
}

func buildGeminiClientConfig(endpoint, apiKey string) (*genai.ClientConfig, error) {
	baseURL, apiVersion, err := parseGeminiBaseURLAndVersion(endpoint)
	if err != nil {
		return nil, err
	}
	return &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: apiVersion,
		},
	}, nil
}

// parseGeminiBaseURLAndVersion splits ".../v1beta" style endpoints into the
// base URL and API version genai expects.
func parseGeminiBaseURLAndVersion(endpoint string) (string, string, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = defaultGeminiBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("invalid gemini endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", fmt.Errorf("invalid gemini endpoint scheme: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("invalid gemini endpoint host")
	}

	apiVersion := "v1beta"
	var prefix []string
	path := strings.Trim(parsed.Path, "/")
	if path != "" {
		segments := strings.Split(path, "/")
		prefix = segments
		for i, segment := range segments {
			if strings.HasPrefix(strings.ToLower(segment), "v1") {
				apiVersion = segment
				prefix = segments[:i]
				break
			}
		}
	}

	baseURL := fmt.Sprintf("%s://%s/", parsed.Scheme, parsed.Host)
	if basePath := strings.Join(prefix, "/"); basePath != "" {
		baseURL += basePath + "/"
	}
	return baseURL, apiVersion, nil
}
