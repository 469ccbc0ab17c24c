package services

import (
	"context"
	"log"
	"os"

	"feedback-dashboard-server/models"
)

// FeedbackAnalysis is the structured judgment produced for one message.
type FeedbackAnalysis struct {
	Summary          string   `json:"summary"`
	Keywords         []string `json:"keywords"`
	SuggestedActions []string `json:"suggestedActions"`
	ConfidenceScore  float64  `json:"confidenceScore"`
	Sentiment        string   `json:"sentiment"`
}

// Insights is the narrative summary derived from a batch of feedback items.
type Insights struct {
	Summary         string   `json:"summary"`
	Trends          []string `json:"trends"`
	Recommendations []string `json:"recommendations"`
	TotalAnalyzed   int      `json:"totalAnalyzed"`
}

// Analyzer classifies a single message and summarizes batches of items.
// Implementations must not mutate the items they are given.
type Analyzer interface {
	Name() string
	Remote() bool
	AnalyzeFeedback(ctx context.Context, message string) (*FeedbackAnalysis, error)
	GenerateInsights(ctx context.Context, items []models.Feedback) (*Insights, error)
}

// NoDataInsights is the fixed response returned when there is nothing to
// analyze, so no distribution is ever computed over zero items.
func NoDataInsights() *Insights {
	return &Insights{
		Summary:         "No feedback available for analysis",
		Trends:          []string{},
		Recommendations: []string{"Encourage users to submit more feedback"},
		TotalAnalyzed:   0,
	}
}

// NewAnalyzerFromEnv resolves the strategy once at startup: remote when an
// OpenAI credential is configured, local otherwise. The choice never changes
// at runtime.
func NewAnalyzerFromEnv() Analyzer {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		log.Println("feedback analysis: OpenAI strategy enabled")
		return NewOpenAIAnalyzer(apiKey)
	}
	log.Println("feedback analysis: no OPENAI_API_KEY, using local analyzer")
	return NewLocalAnalyzer()
}
