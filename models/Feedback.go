package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Closed enumerations for feedback classification and lifecycle.
var (
	FeedbackCategories = []string{"bug", "feature", "general", "improvement", "complaint"}
	FeedbackPriorities = []string{"low", "medium", "high", "critical"}
	FeedbackStatuses   = []string{"open", "in-progress", "resolved", "closed"}
	FeedbackSentiments = []string{"positive", "neutral", "negative"}
)

// Feedback is a single user-submitted feedback item. Title and message are
// immutable after creation; the analysis columns are written once when
// classification succeeds and status moves freely between its four values.
type Feedback struct {
	gorm.Model
	UserID    uint           `json:"userID" gorm:"index;not null"`
	User      User           `json:"user" gorm:"foreignKey:UserID;references:ID"`
	Title     string         `json:"title" gorm:"size:100;not null"`
	Message   string         `json:"message" gorm:"type:text;not null"`
	Category  string         `json:"category" gorm:"type:varchar(20);index;not null"`         // bug, feature, general, improvement, complaint
	Priority  string         `json:"priority" gorm:"type:varchar(20);default:medium"`         // low, medium, high, critical
	Status    string         `json:"status" gorm:"type:varchar(20);default:open;index"`       // open, in-progress, resolved, closed
	Sentiment string         `json:"sentiment" gorm:"type:varchar(20);default:neutral;index"` // positive, neutral, negative
	Tags      datatypes.JSON `json:"tags"`

	// Request metadata captured at creation, never updated afterwards
	UserAgent string `json:"-" gorm:"size:500"`
	IPAddress string `json:"-" gorm:"size:64"`
	Source    string `json:"-" gorm:"size:50;default:web"`

	// AI analysis payload; absent until classification succeeds at least once
	AnalysisSummary    string         `json:"-" gorm:"size:200"`
	AnalysisKeywords   datatypes.JSON `json:"-"`
	AnalysisActions    datatypes.JSON `json:"-"`
	AnalysisConfidence *float64       `json:"-"`

	Responses  []FeedbackResponse `json:"responses" gorm:"foreignKey:FeedbackID;references:ID"`
	IsArchived bool               `json:"isArchived" gorm:"default:false"` // reserved, no operation sets it yet
}

// FeedbackResponse is one entry of the append-only response thread. Status
// changes by an admin append a system entry; admin commentary appends another.
type FeedbackResponse struct {
	gorm.Model
	FeedbackID uint   `json:"feedbackID" gorm:"index;not null"`
	AdminID    uint   `json:"adminID" gorm:"index;not null"`
	Admin      User   `json:"admin" gorm:"foreignKey:AdminID;references:ID"`
	Message    string `json:"message" gorm:"size:500"`
}

// AIAnalysis is the serialized form of the stored analysis columns.
type AIAnalysis struct {
	Summary          string   `json:"summary"`
	Keywords         []string `json:"keywords"`
	SuggestedActions []string `json:"suggestedActions"`
	ConfidenceScore  float64  `json:"confidenceScore"`
}

// HasAnalysis reports whether the classification merge has happened.
func (f *Feedback) HasAnalysis() bool {
	return f.AnalysisConfidence != nil
}

// Custom JSON marshaling: render tags as a plain array, fold the analysis
// columns into a nested aiAnalysis object (omitted until classification ran)
// and expose the metadata block the way the dashboard expects it.
func (f *Feedback) MarshalJSON() ([]byte, error) {
	type Alias Feedback
	aux := &struct {
		Tags       []string          `json:"tags"`
		AIAnalysis *AIAnalysis       `json:"aiAnalysis,omitempty"`
		Metadata   map[string]string `json:"metadata"`
		*Alias
	}{
		Tags:  []string{},
		Alias: (*Alias)(f),
	}

	if f.Tags != nil {
		var tags []string
		if err := json.Unmarshal(f.Tags, &tags); err == nil {
			aux.Tags = tags
		}
	}

	if f.HasAnalysis() {
		analysis := &AIAnalysis{
			Summary:          f.AnalysisSummary,
			Keywords:         []string{},
			SuggestedActions: []string{},
			ConfidenceScore:  *f.AnalysisConfidence,
		}
		if f.AnalysisKeywords != nil {
			var keywords []string
			if err := json.Unmarshal(f.AnalysisKeywords, &keywords); err == nil {
				analysis.Keywords = keywords
			}
		}
		if f.AnalysisActions != nil {
			var actions []string
			if err := json.Unmarshal(f.AnalysisActions, &actions); err == nil {
				analysis.SuggestedActions = actions
			}
		}
		aux.AIAnalysis = analysis
	}

	aux.Metadata = map[string]string{
		"userAgent": f.UserAgent,
		"ipAddress": f.IPAddress,
		"source":    f.Source,
	}

	return json.Marshal(aux)
}

// AgeInDays returns how long the item has been open, for the dashboard list.
func (f *Feedback) AgeInDays() int {
	return int(time.Since(f.CreatedAt).Hours() / 24)
}
