// Package fallback provides the non-authoritative claim analysis used when no registered fact applies.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/factguard/internal/config"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/usecase"
)

var tracer = otel.Tracer("fallback")

const systemPrompt = `You are a medical fact-checking assistant. Provide accurate, evidence-based analysis while maintaining safety and never giving personal medical advice.`

const analysisPrompt = `Analyze the following health claim.

CLAIM TO VERIFY:
%q

INSTRUCTIONS:
1. Normalize the claim into a clear, concise statement
2. Determine the verdict: "True", "False", "Misleading", or "Unverified"
3. Assess severity: "Low", "Medium", or "High" based on health impact if the claim spreads
4. Provide a simple 2-3 sentence explanation in non-technical language
5. List the sources you relied on, if any

SAFETY REQUIREMENTS:
- Never provide personal medical advice
- Always recommend consulting healthcare professionals
- If evidence is weak or absent, use "Unverified"
- For dangerous claims, use severity "High"

Return ONLY a JSON object with this exact structure:
{"normalized_claim": "...", "verdict": "...", "severity": "...", "explanation": "...", "sources_used": ["url"]}`

const safeExplanation = "We were unable to verify this claim at this time. " +
	"Please consult healthcare professionals and check trusted sources like WHO or CDC for accurate health information. " +
	"This system is for informational purposes only and does not provide medical advice."

// Client implements usecase.Fallback with an OpenAI chat model.
type Client struct {
	client *openai.Client
	model  string
}

var _ usecase.Fallback = (*Client)(nil)

func NewClient(cfg config.Fallback) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Analyze asks the model for an assessment. Model or parse failures degrade to a
// cautious "unproven" answer instead of an error.
func (c *Client) Analyze(ctx context.Context, claimText string) (domain.FallbackAnalysis, error) {
	ctx, span := tracer.Start(ctx, "Fallback.Client.Analyze")
	defer span.End()

	analysis, err := c.analyze(ctx, claimText)
	if err != nil {
		if ctx.Err() != nil {
			return domain.FallbackAnalysis{}, ctx.Err()
		}
		span.RecordError(err)
		slog.WarnContext(ctx, "fallback analysis failed",
			slog.String("error", err.Error()),
			slog.String("module", "fallback"),
		)
		return SafeAnalysis(claimText), nil
	}
	return analysis, nil
}

func (c *Client) analyze(ctx context.Context, claimText string) (domain.FallbackAnalysis, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(analysisPrompt, claimText),
			},
		},
		Temperature: 0.1,
		MaxTokens:   500,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.FallbackAnalysis{}, fmt.Errorf("calling OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.FallbackAnalysis{}, errors.New("no response from OpenAI")
	}
	return parseAnalysis(resp.Choices[0].Message.Content)
}

type rawAnalysis struct {
	NormalizedClaim string   `json:"normalized_claim"`
	Verdict         string   `json:"verdict"`
	Severity        string   `json:"severity"`
	Explanation     string   `json:"explanation"`
	SourcesUsed     []string `json:"sources_used"`
}

func parseAnalysis(content string) (domain.FallbackAnalysis, error) {
	content = cleanJSONResponse(content)

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return domain.FallbackAnalysis{}, fmt.Errorf("parsing analysis JSON: %w (response: %s)", err, content)
	}
	if raw.NormalizedClaim == "" || raw.Verdict == "" || raw.Severity == "" || raw.Explanation == "" {
		return domain.FallbackAnalysis{}, fmt.Errorf("analysis is missing required fields (response: %s)", content)
	}

	sources := make([]domain.Source, 0, len(raw.SourcesUsed))
	for _, url := range raw.SourcesUsed {
		if url = strings.TrimSpace(url); url != "" {
			sources = append(sources, domain.Source{Name: "Reference", URL: url})
		}
	}

	return domain.FallbackAnalysis{
		NormalizedClaim: raw.NormalizedClaim,
		Verdict:         normalizeVerdict(raw.Verdict),
		Severity:        strings.ToLower(strings.TrimSpace(raw.Severity)),
		Explanation:     raw.Explanation,
		Sources:         sources,
	}, nil
}

// normalizeVerdict maps the model vocabulary onto registry verdict names.
func normalizeVerdict(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "unverified", "":
		return "unproven"
	case "partially true", "partially-true":
		return "partially_true"
	}
	return v
}

// SafeAnalysis is the cautious answer given when no model assessment is available.
func SafeAnalysis(claimText string) domain.FallbackAnalysis {
	return domain.FallbackAnalysis{
		NormalizedClaim: strings.TrimSpace(claimText),
		Verdict:         "unproven",
		Severity:        "medium",
		Explanation:     safeExplanation,
		Sources:         []domain.Source{},
	}
}

// cleanJSONResponse removes markdown code fences if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
