package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"feedback-dashboard-server/models"

	"github.com/sashabaranov/go-openai"
)

const analyzerTimeout = 10 * time.Second

const analyzeSystemPrompt = `You are an AI assistant that analyzes user feedback.
Analyze the feedback and return a JSON object with:
- summary: Brief summary of the feedback (max 100 chars)
- keywords: Array of 3-5 relevant keywords
- suggestedActions: Array of 2-3 actionable suggestions
- confidenceScore: Number between 0-1 indicating analysis confidence
- sentiment: "positive", "neutral", or "negative"

Return only valid JSON, no additional text.`

const insightsSystemPrompt = `Analyze this collection of user feedback and provide insights.
Return a JSON object with:
- summary: Overall summary of feedback themes
- trends: Array of 3-5 key trends identified
- recommendations: Array of 3-5 actionable recommendations
- totalAnalyzed: Number of feedback items analyzed

Return only valid JSON, no additional text.`

// OpenAIAnalyzer sends messages to a hosted model and expects a single
// structured JSON result back. Any failure (network, timeout, malformed
// output) is returned to the caller, which falls back to the local analyzer.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
}

func NewOpenAIAnalyzer(apiKey string) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		client: openai.NewClient(apiKey),
		model:  openai.GPT3Dot5Turbo,
	}
}

func (a *OpenAIAnalyzer) Name() string { return "OpenAI GPT-3.5" }

func (a *OpenAIAnalyzer) Remote() bool { return true }

func (a *OpenAIAnalyzer) AnalyzeFeedback(ctx context.Context, message string) (*FeedbackAnalysis, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzerTimeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analyzeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Analyze this feedback: %q", message)},
		},
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat completion: empty response")
	}

	var analysis FeedbackAnalysis
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("parse openai response: %w", err)
	}

	if analysis.Summary == "" {
		analysis.Summary = "AI analysis completed"
	}
	if analysis.Keywords == nil {
		analysis.Keywords = []string{}
	}
	if analysis.SuggestedActions == nil {
		analysis.SuggestedActions = []string{}
	}
	if analysis.ConfidenceScore == 0 {
		analysis.ConfidenceScore = 0.7
	}
	switch analysis.Sentiment {
	case "positive", "neutral", "negative":
	default:
		analysis.Sentiment = "neutral"
	}

	return &analysis, nil
}

// GenerateInsights delegates the batch summarization to the model in a single
// completion over "category: message" lines.
func (a *OpenAIAnalyzer) GenerateInsights(ctx context.Context, items []models.Feedback) (*Insights, error) {
	if len(items) == 0 {
		return NoDataInsights(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, analyzerTimeout)
	defer cancel()

	var sb strings.Builder
	for i := range items {
		sb.WriteString(items[i].Category)
		sb.WriteString(": ")
		sb.WriteString(items[i].Message)
		sb.WriteString("\n")
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: insightsSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Analyze this feedback collection:\n" + sb.String()},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai insights completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai insights completion: empty response")
	}

	var insights Insights
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &insights); err != nil {
		return nil, fmt.Errorf("parse openai insights: %w", err)
	}
	if insights.TotalAnalyzed == 0 {
		insights.TotalAnalyzed = len(items)
	}

	return &insights, nil
}
