package routes

import (
	"feedback-dashboard-server/models"
	"feedback-dashboard-server/storage"

	"github.com/kataras/iris/v12"
)

// GET /api/admin/activity — last 100 moderation actions.
func AdminActivity(ctx iris.Context) {
	var logs []models.AuditLog
	storage.DB.Order("created_at DESC").Limit(100).Find(&logs)
	ctx.JSON(iris.Map{"data": logs})
}
