package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"feedback-dashboard-server/models"
	"feedback-dashboard-server/services"
	"feedback-dashboard-server/storage"
	"feedback-dashboard-server/utils"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"
)

type nopHub struct{}

func (nopHub) Emit(string, interface{}) {}

// buildTestApp wires the feedback routes against an sqlite-backed service
// with the local analyzer, mirroring the production party layout.
func buildTestApp(t *testing.T) (*iris.Application, *gorm.DB) {
	t.Helper()
	os.Setenv("ACCESS_TOKEN_SECRET", "testsecret")

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "routes.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Feedback{}, &models.FeedbackResponse{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// The audit writer goes through the storage global
	storage.DB = db

	svc := services.NewFeedbackService(db, services.NewLocalAnalyzer(), nopHub{})
	handler := NewFeedbackHandler(svc)

	app := iris.New()
	app.Validator = validator.New()

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	feedback := app.Party("/api/feedback", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		feedback.Post("/", handler.Create)
		feedback.Get("/", handler.List)
		feedback.Get("/stats", handler.Stats)
		feedback.Get("/{id:uint}", handler.GetByID)
		feedback.Patch("/{id:uint}/status", utils.AdminOnlyMiddleware, handler.UpdateStatus)
		feedback.Patch("/{id:uint}/resolve", handler.Resolve)
		feedback.Delete("/{id:uint}", handler.Delete)
	}

	if err := app.Build(); err != nil {
		t.Fatalf("build app: %v", err)
	}
	return app, db
}

func signTestToken(t *testing.T, id uint, role string) string {
	t.Helper()
	signer := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), 0)
	token, err := signer.Sign(utils.AccessToken{ID: id, Role: role})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(token)
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()
	user := models.User{Name: name, Email: name + "@example.com", Role: role}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func doJSON(app *iris.Application, method, target, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

func TestFeedbackRequiresAuthentication(t *testing.T) {
	app, _ := buildTestApp(t)

	resp := doJSON(app, http.MethodGet, "/api/feedback", "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
}

func TestCreateFeedbackEndToEnd(t *testing.T) {
	app, db := buildTestApp(t)
	user := seedUser(t, db, "alice", "user")
	token := signTestToken(t, user.ID, "user")

	resp := doJSON(app, http.MethodPost, "/api/feedback", token,
		`{"title":"Mobile login broken","message":"Login page is broken on mobile, please fix","category":"bug"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var out struct {
		Feedback struct {
			ID        uint   `json:"ID"`
			Status    string `json:"status"`
			Sentiment string `json:"sentiment"`
			User      struct {
				Name string `json:"name"`
			} `json:"user"`
			AIAnalysis *struct {
				Keywords []string `json:"keywords"`
			} `json:"aiAnalysis"`
		} `json:"feedback"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Feedback.Status != "open" {
		t.Errorf("status = %q, want open", out.Feedback.Status)
	}
	if out.Feedback.Sentiment != "negative" {
		t.Errorf("sentiment = %q, want negative", out.Feedback.Sentiment)
	}
	if out.Feedback.User.Name != "alice" {
		t.Errorf("author not joined: %+v", out.Feedback.User)
	}
	if out.Feedback.AIAnalysis == nil {
		t.Fatal("aiAnalysis missing from response")
	}
	found := false
	for _, k := range out.Feedback.AIAnalysis.Keywords {
		if k == "login" {
			found = true
		}
	}
	if !found {
		t.Errorf("keywords should include login: %v", out.Feedback.AIAnalysis.Keywords)
	}
}

func TestCreateFeedbackValidationListsEveryField(t *testing.T) {
	app, db := buildTestApp(t)
	user := seedUser(t, db, "bob", "user")
	token := signTestToken(t, user.ID, "user")

	resp := doJSON(app, http.MethodPost, "/api/feedback", token,
		`{"title":"ab","message":"too short","category":"nonsense"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	var out struct {
		Message string                `json:"message"`
		Errors  []services.FieldError `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Errors) != 3 {
		t.Fatalf("expected all 3 field errors, got %d: %+v", len(out.Errors), out.Errors)
	}
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	app, db := buildTestApp(t)
	user := seedUser(t, db, "alice", "user")
	token := signTestToken(t, user.ID, "user")

	resp := doJSON(app, http.MethodPatch, "/api/feedback/1/status", token, `{"status":"resolved"}`)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.Code)
	}
}

func TestUpdateStatusWritesAuditRow(t *testing.T) {
	app, db := buildTestApp(t)
	user := seedUser(t, db, "alice", "user")
	admin := seedUser(t, db, "root", "admin")
	userToken := signTestToken(t, user.ID, "user")
	adminToken := signTestToken(t, admin.ID, "admin")

	resp := doJSON(app, http.MethodPost, "/api/feedback", userToken,
		`{"title":"Audit me","message":"please look into this problem","category":"general"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("seed feedback: %d", resp.Code)
	}
	var created struct {
		Feedback struct {
			ID uint `json:"ID"`
		} `json:"feedback"`
	}
	json.Unmarshal(resp.Body.Bytes(), &created)

	resp = doJSON(app, http.MethodPatch,
		"/api/feedback/"+itoa(created.Feedback.ID)+"/status", adminToken,
		`{"status":"in-progress","response":"On it"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("admin status update: %d: %s", resp.Code, resp.Body.String())
	}

	var logs []models.AuditLog
	db.Find(&logs)
	if len(logs) != 1 {
		t.Fatalf("expected one audit row, got %d", len(logs))
	}
	if logs[0].Action != "feedback.status_update" || logs[0].AdminUserID != admin.ID {
		t.Errorf("audit row wrong: %+v", logs[0])
	}
}

func TestGetForeignFeedbackDenied(t *testing.T) {
	app, db := buildTestApp(t)
	alice := seedUser(t, db, "alice", "user")
	mallory := seedUser(t, db, "mallory", "user")
	aliceToken := signTestToken(t, alice.ID, "user")
	malloryToken := signTestToken(t, mallory.ID, "user")

	resp := doJSON(app, http.MethodPost, "/api/feedback", aliceToken,
		`{"title":"Private item","message":"only mine to see please","category":"general"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("seed feedback: %d", resp.Code)
	}
	var created struct {
		Feedback struct {
			ID uint `json:"ID"`
		} `json:"feedback"`
	}
	json.Unmarshal(resp.Body.Bytes(), &created)

	resp = doJSON(app, http.MethodGet, "/api/feedback/"+itoa(created.Feedback.ID), malloryToken, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign item, got %d", resp.Code)
	}
}

func TestListPaginationReflectsClampedLimit(t *testing.T) {
	app, db := buildTestApp(t)
	user := seedUser(t, db, "alice", "user")
	token := signTestToken(t, user.ID, "user")

	for i := 0; i < 101; i++ {
		fb := models.Feedback{
			UserID:    user.ID,
			Title:     "Bulk item",
			Message:   "one of many submissions in this batch",
			Category:  "general",
			Priority:  "medium",
			Status:    "open",
			Sentiment: "neutral",
		}
		if err := db.Create(&fb).Error; err != nil {
			t.Fatalf("seed feedback: %v", err)
		}
	}

	resp := doJSON(app, http.MethodGet, "/api/feedback?limit=500", token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list: %d", resp.Code)
	}

	var out struct {
		Feedback   []json.RawMessage `json:"feedback"`
		Pagination utils.Pagination  `json:"pagination"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(out.Feedback) != 100 {
		t.Fatalf("returned %d items, want clamped 100", len(out.Feedback))
	}
	// Metadata must describe the page actually served, not the requested one
	if out.Pagination.ItemsPerPage != 100 {
		t.Errorf("itemsPerPage = %d, want 100", out.Pagination.ItemsPerPage)
	}
	if out.Pagination.TotalPages != 2 || !out.Pagination.HasNext {
		t.Errorf("totalPages = %d hasNext = %v, want 2/true over 101 items",
			out.Pagination.TotalPages, out.Pagination.HasNext)
	}
	if out.Pagination.TotalItems != 101 {
		t.Errorf("totalItems = %d, want 101", out.Pagination.TotalItems)
	}
}

func TestStatsEndpoint(t *testing.T) {
	app, db := buildTestApp(t)
	user := seedUser(t, db, "alice", "user")
	token := signTestToken(t, user.ID, "user")

	resp := doJSON(app, http.MethodGet, "/api/feedback/stats", token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("stats: %d", resp.Code)
	}
	var out struct {
		Stats struct {
			Total                int            `json:"total"`
			CategoryDistribution map[string]int `json:"categoryDistribution"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if out.Stats.Total != 0 {
		t.Errorf("total = %d, want 0", out.Stats.Total)
	}
	if v, ok := out.Stats.CategoryDistribution["bug"]; !ok || v != 0 {
		t.Errorf("bug bucket must be present and zero, got %d (present=%v)", v, ok)
	}
}

func itoa(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}
