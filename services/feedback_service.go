package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"unicode/utf8"

	"feedback-dashboard-server/models"

	"gorm.io/gorm"
)

var (
	ErrFeedbackNotFound = errors.New("feedback not found")
	ErrAccessDenied     = errors.New("access denied")
)

// FieldError describes one violated constraint on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated field, not just the first.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Broadcaster pushes lifecycle events to connected dashboard clients.
// Delivery is best-effort; Emit never blocks and never fails the caller.
type Broadcaster interface {
	Emit(event string, payload interface{})
}

// FeedbackService orchestrates the feedback lifecycle: creation,
// classification merge, status transitions, deletion and aggregation.
// The analyzer and broadcaster are injected so tests can substitute a
// deterministic classifier and a no-op hub.
type FeedbackService struct {
	db       *gorm.DB
	analyzer Analyzer
	fallback *LocalAnalyzer
	hub      Broadcaster
}

func NewFeedbackService(db *gorm.DB, analyzer Analyzer, hub Broadcaster) *FeedbackService {
	return &FeedbackService{
		db:       db,
		analyzer: analyzer,
		fallback: NewLocalAnalyzer(),
		hub:      hub,
	}
}

// Analyzer exposes the active strategy for the insights status endpoint.
func (s *FeedbackService) Analyzer() Analyzer { return s.analyzer }

type CreateFeedbackInput struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Priority string `json:"priority"`
}

// RequestMeta is the request origin captured once at creation.
type RequestMeta struct {
	UserAgent string
	IPAddress string
	Source    string
}

func validateCreateInput(input *CreateFeedbackInput) *ValidationError {
	input.Title = strings.TrimSpace(input.Title)
	input.Message = strings.TrimSpace(input.Message)

	// Limits are character counts, so multi-byte text is measured in runes
	var fields []FieldError
	if n := utf8.RuneCountInString(input.Title); n < 3 || n > 100 {
		fields = append(fields, FieldError{Field: "title", Message: "Title must be between 3 and 100 characters"})
	}
	if n := utf8.RuneCountInString(input.Message); n < 10 || n > 1000 {
		fields = append(fields, FieldError{Field: "message", Message: "Message must be between 10 and 1000 characters"})
	}
	if !slices.Contains(models.FeedbackCategories, input.Category) {
		fields = append(fields, FieldError{Field: "category", Message: "Category must be one of: bug, feature, general, improvement, complaint"})
	}
	if input.Priority == "" {
		input.Priority = "medium"
	} else if !slices.Contains(models.FeedbackPriorities, input.Priority) {
		fields = append(fields, FieldError{Field: "priority", Message: "Priority must be one of: low, medium, high, critical"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create persists a new item with status open and sentiment neutral,
// increments the author's feedback count, then attempts classification
// synchronously. A failed classification never fails the creation; the item
// persists with default analysis fields.
func (s *FeedbackService) Create(ctx context.Context, userID uint, input CreateFeedbackInput, meta RequestMeta) (*models.Feedback, error) {
	if vErr := validateCreateInput(&input); vErr != nil {
		return nil, vErr
	}

	source := meta.Source
	if source == "" {
		source = "web"
	}
	fb := models.Feedback{
		UserID:    userID,
		Title:     input.Title,
		Message:   input.Message,
		Category:  input.Category,
		Priority:  input.Priority,
		Status:    "open",
		Sentiment: "neutral",
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		Source:    source,
	}
	if err := s.db.Create(&fb).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("feedback_count", gorm.Expr("feedback_count + ?", 1)).Error; err != nil {
		log.Printf("feedback %d: could not increment author feedback count: %v", fb.ID, err)
	}

	analysis, err := s.analyzer.AnalyzeFeedback(ctx, fb.Message)
	if err != nil {
		log.Printf("feedback %d: analysis failed, falling back to local: %v", fb.ID, err)
		analysis, _ = s.fallback.AnalyzeFeedback(ctx, fb.Message)
	}
	if analysis != nil {
		if err := s.mergeAnalysis(&fb, analysis); err != nil {
			log.Printf("feedback %d: could not store analysis: %v", fb.ID, err)
		}
	}

	if err := s.db.Preload("User").First(&fb, fb.ID).Error; err != nil {
		return nil, err
	}

	s.hub.Emit("feedback:new", map[string]interface{}{
		"id":        fb.ID,
		"title":     fb.Title,
		"category":  fb.Category,
		"priority":  fb.Priority,
		"user":      fb.User.Public(),
		"createdAt": fb.CreatedAt,
	})

	return &fb, nil
}

// mergeAnalysis writes the classification result onto the stored record.
// Sentiment is overwritten; the analysis payload is set at most once.
func (s *FeedbackService) mergeAnalysis(fb *models.Feedback, analysis *FeedbackAnalysis) error {
	keywords, err := json.Marshal(analysis.Keywords)
	if err != nil {
		return err
	}
	actions, err := json.Marshal(analysis.SuggestedActions)
	if err != nil {
		return err
	}

	confidence := analysis.ConfidenceScore
	fb.AnalysisSummary = analysis.Summary
	fb.AnalysisKeywords = keywords
	fb.AnalysisActions = actions
	fb.AnalysisConfidence = &confidence
	if slices.Contains(models.FeedbackSentiments, analysis.Sentiment) {
		fb.Sentiment = analysis.Sentiment
	}

	return s.db.Model(fb).Updates(map[string]interface{}{
		"analysis_summary":    fb.AnalysisSummary,
		"analysis_keywords":   fb.AnalysisKeywords,
		"analysis_actions":    fb.AnalysisActions,
		"analysis_confidence": fb.AnalysisConfidence,
		"sentiment":           fb.Sentiment,
	}).Error
}

type ListFeedbackQuery struct {
	Page      int
	Limit     int
	Category  string
	Status    string
	Priority  string
	Sentiment string
	SortBy    string
	SortOrder string
}

// Sort keys are a fixed allow-list; anything else is rejected, not ignored.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"category":  "category",
	"priority":  "priority",
	"status":    "status",
}

func validateListQuery(q *ListFeedbackQuery) *ValidationError {
	var fields []FieldError
	if q.Category != "" && !slices.Contains(models.FeedbackCategories, q.Category) {
		fields = append(fields, FieldError{Field: "category", Message: "Invalid category"})
	}
	if q.Status != "" && !slices.Contains(models.FeedbackStatuses, q.Status) {
		fields = append(fields, FieldError{Field: "status", Message: "Invalid status"})
	}
	if q.Priority != "" && !slices.Contains(models.FeedbackPriorities, q.Priority) {
		fields = append(fields, FieldError{Field: "priority", Message: "Invalid priority"})
	}
	if q.Sentiment != "" && !slices.Contains(models.FeedbackSentiments, q.Sentiment) {
		fields = append(fields, FieldError{Field: "sentiment", Message: "Invalid sentiment"})
	}
	if q.SortBy == "" {
		q.SortBy = "createdAt"
	} else if _, ok := sortColumns[q.SortBy]; !ok {
		fields = append(fields, FieldError{Field: "sortBy", Message: "Invalid sort field"})
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	} else if q.SortOrder != "asc" && q.SortOrder != "desc" {
		fields = append(fields, FieldError{Field: "sortOrder", Message: "Sort order must be asc or desc"})
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// List returns a page of items. Non-admin callers are force-scoped to their
// own submissions regardless of the requested filter. Paging defaults and the
// limit clamp are written back into q so callers report the page actually
// served, not the one requested.
func (s *FeedbackService) List(callerID uint, callerRole string, q *ListFeedbackQuery) ([]models.Feedback, int64, error) {
	if vErr := validateListQuery(q); vErr != nil {
		return nil, 0, vErr
	}

	query := s.db.Model(&models.Feedback{})
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Priority != "" {
		query = query.Where("priority = ?", q.Priority)
	}
	if q.Sentiment != "" {
		query = query.Where("sentiment = ?", q.Sentiment)
	}
	if callerRole != "admin" {
		query = query.Where("user_id = ?", callerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Feedback
	err := query.Preload("User").
		Order(fmt.Sprintf("%s %s", sortColumns[q.SortBy], q.SortOrder)).
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// GetByID resolves the item with author and response-thread actor identities.
// Only the author or an admin may read it.
func (s *FeedbackService) GetByID(id, callerID uint, callerRole string) (*models.Feedback, error) {
	var fb models.Feedback
	err := s.db.Preload("User").
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("feedback_responses.created_at ASC, feedback_responses.id ASC")
		}).
		Preload("Responses.Admin").
		First(&fb, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFeedbackNotFound
	}
	if err != nil {
		return nil, err
	}
	if callerRole != "admin" && fb.UserID != callerID {
		return nil, ErrAccessDenied
	}
	return &fb, nil
}

// UpdateStatus is the admin transition. Any move to a non-open status appends
// a system-authored thread entry; a non-empty response appends a second,
// admin-authored entry.
func (s *FeedbackService) UpdateStatus(id, adminID uint, status, response string) (*models.Feedback, error) {
	if !slices.Contains(models.FeedbackStatuses, status) {
		return nil, &ValidationError{Fields: []FieldError{
			{Field: "status", Message: "Status must be one of: open, in-progress, resolved, closed"},
		}}
	}

	var fb models.Feedback
	if err := s.db.First(&fb, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, err
	}

	fb.Status = status
	if err := s.db.Model(&fb).Update("status", status).Error; err != nil {
		return nil, err
	}

	if status != "open" {
		note := models.FeedbackResponse{
			FeedbackID: fb.ID,
			AdminID:    adminID,
			Message:    "Status updated to: " + status,
		}
		if err := s.db.Create(&note).Error; err != nil {
			return nil, err
		}
	}
	if trimmed := strings.TrimSpace(response); trimmed != "" {
		reply := models.FeedbackResponse{
			FeedbackID: fb.ID,
			AdminID:    adminID,
			Message:    trimmed,
		}
		if err := s.db.Create(&reply).Error; err != nil {
			return nil, err
		}
	}

	updated, err := s.GetByID(id, adminID, "admin")
	if err != nil {
		return nil, err
	}

	s.hub.Emit("feedback:updated", map[string]interface{}{
		"id":        updated.ID,
		"status":    updated.Status,
		"updatedAt": updated.UpdatedAt,
	})

	return updated, nil
}

// Resolve is the owner-or-admin shortcut straight to resolved. Unlike
// UpdateStatus it appends no thread entry; that asymmetry is intentional.
func (s *FeedbackService) Resolve(id, callerID uint, callerRole string) (*models.Feedback, error) {
	var fb models.Feedback
	if err := s.db.First(&fb, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, err
	}
	if fb.UserID != callerID && callerRole != "admin" {
		return nil, ErrAccessDenied
	}

	fb.Status = "resolved"
	if err := s.db.Model(&fb).Update("status", "resolved").Error; err != nil {
		return nil, err
	}
	if err := s.db.Preload("User").First(&fb, id).Error; err != nil {
		return nil, err
	}

	s.hub.Emit("feedback:updated", map[string]interface{}{
		"id":        fb.ID,
		"status":    fb.Status,
		"updatedAt": fb.UpdatedAt,
	})

	return &fb, nil
}

// Delete removes the item permanently (no soft delete), responses included.
func (s *FeedbackService) Delete(id, callerID uint, callerRole string) error {
	var fb models.Feedback
	if err := s.db.First(&fb, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFeedbackNotFound
		}
		return err
	}
	if fb.UserID != callerID && callerRole != "admin" {
		return ErrAccessDenied
	}

	if err := s.db.Unscoped().Where("feedback_id = ?", id).Delete(&models.FeedbackResponse{}).Error; err != nil {
		return err
	}
	if err := s.db.Unscoped().Delete(&models.Feedback{}, id).Error; err != nil {
		return err
	}

	s.hub.Emit("feedback:deleted", map[string]interface{}{"id": id})

	return nil
}

// FeedbackStats is the aggregated counts block plus the five newest items.
type FeedbackStats struct {
	Total                 int64          `json:"total"`
	CategoryDistribution  map[string]int `json:"categoryDistribution"`
	StatusDistribution    map[string]int `json:"statusDistribution"`
	SentimentDistribution map[string]int `json:"sentimentDistribution"`
}

// Stats scans every matching item and zero-fills each bucket, so empty
// corpora produce all-zero distributions rather than missing keys.
func (s *FeedbackService) Stats(callerID uint, callerRole string) (*FeedbackStats, []models.Feedback, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if callerRole != "admin" {
			return db.Where("user_id = ?", callerID)
		}
		return db
	}

	var all []models.Feedback
	if err := scope(s.db).Find(&all).Error; err != nil {
		return nil, nil, err
	}

	stats := &FeedbackStats{
		Total:                 int64(len(all)),
		CategoryDistribution:  map[string]int{},
		StatusDistribution:    map[string]int{},
		SentimentDistribution: map[string]int{},
	}
	for _, c := range models.FeedbackCategories {
		stats.CategoryDistribution[c] = 0
	}
	for _, st := range models.FeedbackStatuses {
		stats.StatusDistribution[st] = 0
	}
	for _, sn := range models.FeedbackSentiments {
		stats.SentimentDistribution[sn] = 0
	}
	for i := range all {
		stats.CategoryDistribution[all[i].Category]++
		stats.StatusDistribution[all[i].Status]++
		stats.SentimentDistribution[all[i].Sentiment]++
	}

	var recent []models.Feedback
	err := scope(s.db).Preload("User").Order("created_at DESC").Limit(5).Find(&recent).Error
	if err != nil {
		return nil, nil, err
	}

	return stats, recent, nil
}

// Insights summarizes up to the 50 most recent matching items, delegating to
// the active analyzer and falling back to local counting on remote failure.
func (s *FeedbackService) Insights(ctx context.Context, callerID uint, callerRole string) (*Insights, error) {
	query := s.db.Order("created_at DESC").Limit(50)
	if callerRole != "admin" {
		query = query.Where("user_id = ?", callerID)
	}
	var items []models.Feedback
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return NoDataInsights(), nil
	}

	insights, err := s.analyzer.GenerateInsights(ctx, items)
	if err != nil {
		log.Printf("insights: remote generation failed, falling back to local: %v", err)
		insights, _ = s.fallback.GenerateInsights(ctx, items)
	}
	return insights, nil
}
