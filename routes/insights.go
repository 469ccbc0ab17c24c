package routes

import (
	"time"

	"feedback-dashboard-server/services"
	"feedback-dashboard-server/utils"

	"github.com/kataras/iris/v12"
)

type InsightsHandler struct {
	service *services.FeedbackService
}

func NewInsightsHandler(service *services.FeedbackService) *InsightsHandler {
	return &InsightsHandler{service: service}
}

// GET /api/insights — narrative summary scoped to the caller unless admin.
func (h *InsightsHandler) Get(ctx iris.Context) {
	callerID, callerRole := utils.CallerFromContext(ctx)

	insights, err := h.service.Insights(ctx.Request().Context(), callerID, callerRole)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{
		"insights":    insights,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
		"aiEnabled":   h.service.Analyzer().Remote(),
	})
}

// GET /api/insights/status — reports which classifier strategy is active.
func (h *InsightsHandler) Status(ctx iris.Context) {
	analyzer := h.service.Analyzer()
	ctx.JSON(iris.Map{
		"aiEnabled": analyzer.Remote(),
		"service":   analyzer.Name(),
		"capabilities": []string{
			"Feedback summarization",
			"Keyword extraction",
			"Sentiment analysis",
			"Trend identification",
			"Action recommendations",
		},
	})
}
