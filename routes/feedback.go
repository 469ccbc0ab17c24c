package routes

import (
	"errors"
	"net/http"

	"feedback-dashboard-server/services"
	"feedback-dashboard-server/utils"

	"github.com/kataras/iris/v12"
)

// FeedbackHandler binds the lifecycle service to the HTTP surface. The
// service (with its analyzer and broadcaster) is injected at startup.
type FeedbackHandler struct {
	service *services.FeedbackService
}

func NewFeedbackHandler(service *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// handleServiceError maps service errors onto the HTTP taxonomy.
func handleServiceError(ctx iris.Context, err error) {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		ctx.StopWithJSON(http.StatusBadRequest, iris.Map{
			"message": "Validation failed",
			"errors":  vErr.Fields,
		})
	case errors.Is(err, services.ErrFeedbackNotFound):
		utils.JSONError(ctx, http.StatusNotFound, "FEEDBACK_NOT_FOUND", "Feedback not found")
	case errors.Is(err, services.ErrAccessDenied):
		utils.JSONError(ctx, http.StatusForbidden, "ACCESS_DENIED", "Access denied")
	default:
		utils.CreateInternalServerError(ctx)
	}
}

// POST /api/feedback
func (h *FeedbackHandler) Create(ctx iris.Context) {
	callerID, _ := utils.CallerFromContext(ctx)

	var input services.CreateFeedbackInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	meta := services.RequestMeta{
		UserAgent: ctx.GetHeader("User-Agent"),
		IPAddress: utils.ClientIP(ctx),
		Source:    "web",
	}

	fb, err := h.service.Create(ctx.Request().Context(), callerID, input, meta)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.StatusCode(http.StatusCreated)
	ctx.JSON(iris.Map{
		"message":  "Feedback submitted successfully",
		"feedback": fb,
	})
}

// GET /api/feedback
func (h *FeedbackHandler) List(ctx iris.Context) {
	callerID, callerRole := utils.CallerFromContext(ctx)

	q := services.ListFeedbackQuery{
		Page:      ctx.URLParamIntDefault("page", 1),
		Limit:     ctx.URLParamIntDefault("limit", 10),
		Category:  ctx.URLParam("category"),
		Status:    ctx.URLParam("status"),
		Priority:  ctx.URLParam("priority"),
		Sentiment: ctx.URLParam("sentiment"),
		SortBy:    ctx.URLParam("sortBy"),
		SortOrder: ctx.URLParam("sortOrder"),
	}

	items, total, err := h.service.List(callerID, callerRole, &q)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	// q now holds the effective page/limit after defaulting and clamping
	ctx.JSON(iris.Map{
		"feedback":   items,
		"pagination": utils.NewPagination(q.Page, q.Limit, total),
	})
}

// GET /api/feedback/{id}
func (h *FeedbackHandler) GetByID(ctx iris.Context) {
	callerID, callerRole := utils.CallerFromContext(ctx)
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.JSONError(ctx, http.StatusBadRequest, "INVALID_ID", "Invalid feedback ID")
		return
	}

	fb, svcErr := h.service.GetByID(id, callerID, callerRole)
	if svcErr != nil {
		handleServiceError(ctx, svcErr)
		return
	}

	ctx.JSON(iris.Map{"feedback": fb})
}

// PATCH /api/feedback/{id}/status — admin only (enforced by middleware).
func (h *FeedbackHandler) UpdateStatus(ctx iris.Context) {
	adminID, _ := utils.CallerFromContext(ctx)
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.JSONError(ctx, http.StatusBadRequest, "INVALID_ID", "Invalid feedback ID")
		return
	}

	var input struct {
		Status   string `json:"status"`
		Response string `json:"response"`
	}
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	before, _ := h.service.GetByID(id, adminID, "admin")

	fb, svcErr := h.service.UpdateStatus(id, adminID, input.Status, input.Response)
	if svcErr != nil {
		handleServiceError(ctx, svcErr)
		return
	}

	utils.Audit(ctx, "feedback.status_update", "feedback", id, before, fb)

	ctx.JSON(iris.Map{
		"message":  "Feedback updated successfully",
		"feedback": fb,
	})
}

// PATCH /api/feedback/{id}/resolve — owner-or-admin shortcut.
func (h *FeedbackHandler) Resolve(ctx iris.Context) {
	callerID, callerRole := utils.CallerFromContext(ctx)
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.JSONError(ctx, http.StatusBadRequest, "INVALID_ID", "Invalid feedback ID")
		return
	}

	fb, svcErr := h.service.Resolve(id, callerID, callerRole)
	if svcErr != nil {
		handleServiceError(ctx, svcErr)
		return
	}

	ctx.JSON(iris.Map{
		"message":  "Feedback marked as resolved",
		"feedback": fb,
	})
}

// DELETE /api/feedback/{id}
func (h *FeedbackHandler) Delete(ctx iris.Context) {
	callerID, callerRole := utils.CallerFromContext(ctx)
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.JSONError(ctx, http.StatusBadRequest, "INVALID_ID", "Invalid feedback ID")
		return
	}

	if svcErr := h.service.Delete(id, callerID, callerRole); svcErr != nil {
		handleServiceError(ctx, svcErr)
		return
	}

	if callerRole == "admin" {
		utils.Audit(ctx, "feedback.delete", "feedback", id, nil, nil)
	}

	ctx.JSON(iris.Map{"message": "Feedback deleted successfully"})
}

// GET /api/feedback/stats
func (h *FeedbackHandler) Stats(ctx iris.Context) {
	callerID, callerRole := utils.CallerFromContext(ctx)

	stats, recent, err := h.service.Stats(callerID, callerRole)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{
		"stats":          stats,
		"recentFeedback": recent,
	})
}
