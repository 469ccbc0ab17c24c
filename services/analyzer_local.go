package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"feedback-dashboard-server/models"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "have": true, "has": true, "had": true, "do": true,
	"does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true,
}

var positiveWords = map[string]bool{
	"good": true, "great": true, "excellent": true, "amazing": true,
	"love": true, "like": true, "awesome": true, "fantastic": true,
	"wonderful": true, "perfect": true,
}

var negativeWords = map[string]bool{
	"bad": true, "terrible": true, "awful": true, "hate": true,
	"dislike": true, "horrible": true, "worst": true, "broken": true,
	"bug": true, "error": true, "problem": true, "issue": true,
}

var technicalKeywords = map[string]bool{"bug": true, "error": true, "broken": true, "issue": true}
var featureKeywords = map[string]bool{"feature": true, "add": true, "new": true, "request": true}

// LocalAnalyzer is the deterministic rule-based stand-in used when no remote
// credential is configured and as the fallback when the remote call fails.
// It is a pure function of the input text and never returns an error.
type LocalAnalyzer struct{}

func NewLocalAnalyzer() *LocalAnalyzer {
	return &LocalAnalyzer{}
}

func (a *LocalAnalyzer) Name() string { return "local rule-based analyzer" }

func (a *LocalAnalyzer) Remote() bool { return false }

func (a *LocalAnalyzer) AnalyzeFeedback(_ context.Context, message string) (*FeedbackAnalysis, error) {
	words := strings.Fields(strings.ToLower(message))

	// First five non-stopword tokens longer than three characters, in the
	// order they occur. Not deduplicated, not frequency-ranked.
	keywords := make([]string, 0, 5)
	for _, word := range words {
		if len(word) > 3 && !stopwords[word] {
			keywords = append(keywords, word)
			if len(keywords) == 5 {
				break
			}
		}
	}

	positiveCount, negativeCount := 0, 0
	for _, word := range words {
		if positiveWords[word] {
			positiveCount++
		}
		if negativeWords[word] {
			negativeCount++
		}
	}
	sentiment := "neutral"
	if positiveCount > negativeCount {
		sentiment = "positive"
	} else if negativeCount > positiveCount {
		sentiment = "negative"
	}

	summary := message
	if runes := []rune(message); len(runes) > 80 {
		summary = string(runes[:77]) + "..."
	}

	return &FeedbackAnalysis{
		Summary:          summary,
		Keywords:         keywords,
		SuggestedActions: suggestedActions(keywords),
		ConfidenceScore:  0.6,
		Sentiment:        sentiment,
	}, nil
}

// suggestedActions picks exactly one branch, checked in priority order:
// technical issues first, then feature requests, then the generic pair.
func suggestedActions(keywords []string) []string {
	for _, k := range keywords {
		if technicalKeywords[k] {
			return []string{"Investigate technical issue", "Assign to development team"}
		}
	}
	for _, k := range keywords {
		if featureKeywords[k] {
			return []string{"Evaluate feature request", "Add to product roadmap"}
		}
	}
	return []string{"Review feedback with team", "Follow up with user"}
}

// GenerateInsights derives the three trend sentences and three conditional
// recommendations by local counting over the given items.
func (a *LocalAnalyzer) GenerateInsights(_ context.Context, items []models.Feedback) (*Insights, error) {
	if len(items) == 0 {
		return NoDataInsights(), nil
	}

	categoryCount := map[string]int{}
	sentimentCount := map[string]int{"positive": 0, "neutral": 0, "negative": 0}
	keywordCount := map[string]int{}

	for i := range items {
		categoryCount[items[i].Category]++
		sentimentCount[items[i].Sentiment]++
		if items[i].AnalysisKeywords != nil {
			var keywords []string
			if err := json.Unmarshal(items[i].AnalysisKeywords, &keywords); err == nil {
				for _, k := range keywords {
					keywordCount[k]++
				}
			}
		}
	}

	topCategory := "general"
	topCount := categoryCount[topCategory]
	for _, cat := range models.FeedbackCategories {
		if categoryCount[cat] > topCount {
			topCategory = cat
			topCount = categoryCount[cat]
		}
	}

	topKeywords := make([]string, 0, len(keywordCount))
	for k := range keywordCount {
		topKeywords = append(topKeywords, k)
	}
	sort.Slice(topKeywords, func(i, j int) bool {
		if keywordCount[topKeywords[i]] != keywordCount[topKeywords[j]] {
			return keywordCount[topKeywords[i]] > keywordCount[topKeywords[j]]
		}
		return topKeywords[i] < topKeywords[j]
	})
	if len(topKeywords) > 5 {
		topKeywords = topKeywords[:5]
	}

	share := int(math.Round(float64(categoryCount[topCategory]) / float64(len(items)) * 100))
	themes := "Diverse feedback topics"
	if len(topKeywords) > 0 {
		themes = "Common themes: " + strings.Join(topKeywords, ", ")
	}
	trends := []string{
		fmt.Sprintf("%s feedback represents %d%% of submissions", topCategory, share),
		fmt.Sprintf("%d positive vs %d negative responses", sentimentCount["positive"], sentimentCount["negative"]),
		themes,
	}

	recommendations := make([]string, 0, 3)
	if categoryCount["bug"] > 0 {
		recommendations = append(recommendations, "Prioritize bug fixes to improve user experience")
	} else {
		recommendations = append(recommendations, "Continue monitoring for technical issues")
	}
	if categoryCount["feature"] > 0 {
		recommendations = append(recommendations, "Evaluate popular feature requests for roadmap inclusion")
	} else {
		recommendations = append(recommendations, "Gather more feature feedback")
	}
	if sentimentCount["negative"] > sentimentCount["positive"] {
		recommendations = append(recommendations, "Focus on addressing user pain points")
	} else {
		recommendations = append(recommendations, "Maintain current positive user experience")
	}

	return &Insights{
		Summary: fmt.Sprintf("Analyzed %d feedback submissions. Primary focus areas: %s improvements and user experience enhancement.",
			len(items), topCategory),
		Trends:          trends,
		Recommendations: recommendations,
		TotalAnalyzed:   len(items),
	}, nil
}
