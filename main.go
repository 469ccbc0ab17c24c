package main

import (
	"os"
	"time"

	"feedback-dashboard-server/realtime"
	"feedback-dashboard-server/routes"
	"feedback-dashboard-server/services"
	"feedback-dashboard-server/storage"
	"feedback-dashboard-server/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()
	db := storage.InitializeDB()
	storage.InitializeRedis()

	analyzer := services.NewAnalyzerFromEnv()
	hub := realtime.NewHub()
	go hub.Run()
	feedbackService := services.NewFeedbackService(db, analyzer, hub)

	app := iris.New()
	app.Validator = validator.New()

	// CORS for the dashboard (http://localhost:3000)
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})
	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})
	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		if err := ctx.ReadJSON(&tokenInput); err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"status":    "OK",
			"service":   "feedback-dashboard-server",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Push channel for live dashboard updates
	app.Get("/ws", func(ctx iris.Context) {
		realtime.ServeWs(hub, ctx.ResponseWriter(), ctx.Request())
	})

	auth := app.Party("/api/auth")
	{
		auth.Post("/register", routes.Register)
		auth.Post("/login", routes.Login)
		auth.Post("/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)
		auth.Get("/me", accessTokenVerifierMiddleware, routes.Me)
	}

	feedbackHandler := routes.NewFeedbackHandler(feedbackService)
	feedback := app.Party("/api/feedback", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		feedback.Post("/", feedbackHandler.Create)
		feedback.Get("/", feedbackHandler.List)
		feedback.Get("/stats", feedbackHandler.Stats)
		feedback.Get("/{id:uint}", feedbackHandler.GetByID)
		feedback.Patch("/{id:uint}/status", utils.AdminOnlyMiddleware, feedbackHandler.UpdateStatus)
		feedback.Patch("/{id:uint}/resolve", feedbackHandler.Resolve)
		feedback.Delete("/{id:uint}", feedbackHandler.Delete)
	}

	insightsHandler := routes.NewInsightsHandler(feedbackService)
	insights := app.Party("/api/insights", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		insights.Get("/", insightsHandler.Get)
		insights.Get("/status", insightsHandler.Status)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/activity", routes.AdminActivity)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}
	app.Listen(":" + port)
}
