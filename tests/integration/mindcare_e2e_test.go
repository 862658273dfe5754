package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/config"
	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/handler"
	"github.com/noah-isme/mindcare-api/internal/lock"
	"github.com/noah-isme/mindcare-api/internal/middleware"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/repository"
	"github.com/noah-isme/mindcare-api/internal/router"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/pkg/ai"
	"github.com/noah-isme/mindcare-api/pkg/sealbox"
)

const (
	jwtSecret = "integration-secret"
	seedToken = "seed-token"
)

type integrationUploader struct{}

func (integrationUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "https://files.test/" + name, nil
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func setupMindCareApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	store := repository.NewStore(db)
	locker := lock.NewKeyed()

	notifications := service.NewNotificationService(store.Notifications(), nil, "", nil, logger)
	activity := service.NewActivityService(store.ActivityLogs(), validate, logger)
	riskService := service.NewRiskService(nil, validate, logger)
	documents := service.NewDocumentService(integrationUploader{}, service.NoopExtractor{}, 5, logger)
	crisis := service.NewCrisisService(store, notifications, service.CascadeConfig{FollowUpTimeout: 2 * time.Second, MaxRetries: 1, InitialBackoff: time.Millisecond}, validate, logger)
	leaderboard := service.NewLeaderboardService(store, nil, time.Minute, logger)
	chatBox, err := sealbox.New([]byte(jwtSecret), "mindcare/consultation-messages")
	require.NoError(t, err)

	cfg := config.Config{
		AppName:         "MindCare API",
		JWTSecret:       jwtSecret,
		RateLimitMax:    1000,
		RateLimitWindow: time.Minute,
		SeedEnabled:     true,
	}

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler: handler.NewAuthHandler(
			service.NewRegistrationService(store, riskService, documents, notifications, validate, logger),
			service.NewAuthService(store, service.TokenConfig{Secret: jwtSecret, TTL: time.Hour, Issuer: "mindcare-test"}, validate, logger),
			logger,
		),
		ApprovalHandler:     handler.NewApprovalHandler(service.NewApprovalService(store, locker, activity, validate, logger), logger),
		RemovalHandler:      handler.NewRemovalHandler(service.NewRemovalService(store, locker, activity, notifications, leaderboard, validate, logger), logger),
		CrisisHandler:       handler.NewCrisisHandler(crisis, logger),
		ChatbotHandler:      handler.NewChatbotHandler(service.NewChatbotService(store, crisis, ai.StaticReplier{Text: "Thanks for sharing."}, time.Second, validate, logger), logger),
		GamificationHandler: handler.NewGamificationHandler(service.NewGamificationService(store, locker, crisis, leaderboard, validate, logger), logger),
		LeaderboardHandler:  handler.NewLeaderboardHandler(leaderboard, logger),
		ConsultationHandler: handler.NewConsultationHandler(service.NewConsultationService(store, locker, notifications, chatBox, validate, logger), logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, time.Second),
		SeedHandler:         handler.NewSeedHandler(service.NewSeedService(store, validate, true, seedToken, logger), logger),
		JWTMiddleware:       middleware.JWTProtected(jwtSecret),
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, target, token string, payload interface{}, headers ...string) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out envelope[T]
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func login(t *testing.T, app *fiber.App, username, password string) *http.Response {
	t.Helper()
	return call(t, app, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Username: username, Password: password}, "User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
}

func tokenFor(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	resp := login(t, app, username, password)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return decode[dto.LoginResponse](t, resp).Data.Token
}

func registerClinician(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, value := range map[string]string{
		"username":         "drjones",
		"email":            "jones@clinic.example.com",
		"password":         "clinician-pass",
		"first_name":       "Morgan",
		"last_name":        "Jones",
		"institute_code":   "NORTH-01",
		"license_number":   "LIC-2048",
		"specialization":   "counselling",
		"experience_years": "6",
	} {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, field := range []string{"id_document", "license_document"} {
		part, err := writer.CreateFormFile(field, field+".pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4\n% credential scan\n"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register/clinician", buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestMindCareEndToEndFlow(t *testing.T) {
	app := setupMindCareApp(t)

	// Step 1: bootstrap an approved institute with its manager
	resp := call(t, app, http.MethodPost, "/api/v1/seed/institute", "", map[string]interface{}{
		"name":              "North Campus",
		"registration_code": "NORTH-01",
		"contact_email":     "office@north.example.com",
		"manager": map[string]string{
			"username":   "manager",
			"email":      "manager@north.example.com",
			"password":   "manager-pass",
			"first_name": "Riley",
		},
	}, handler.SeedHeader, seedToken)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Step 2: a clinician applies and cannot log in while pending
	resp = registerClinician(t, app)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	clinicianReg := decode[dto.RegistrationResponse](t, resp)
	require.Equal(t, models.ApprovalPending, clinicianReg.Data.ApprovalStatus)

	resp = login(t, app, "drjones", "clinician-pass")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Step 3: the manager approves the application
	managerToken := tokenFor(t, app, "manager", "manager-pass")
	resp = call(t, app, http.MethodGet, "/api/v1/approvals/pending?entity_type=clinician", managerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	pending := decode[dto.ApprovalListResponse](t, resp)
	require.Len(t, pending.Data.Items, 1)
	require.Equal(t, clinicianReg.Data.ApprovalID, pending.Data.Items[0].ID)

	resp = call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%d/decision", clinicianReg.Data.ApprovalID), managerToken, dto.ApprovalDecisionRequest{Outcome: "approved", Notes: "license checked"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%d/decision", clinicianReg.Data.ApprovalID), managerToken, dto.ApprovalDecisionRequest{Outcome: "rejected"})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	clinicianToken := tokenFor(t, app, "drjones", "clinician-pass")

	// Step 4: a learner joins and is admitted straight away
	resp = call(t, app, http.MethodPost, "/api/v1/auth/register/learner", "", map[string]interface{}{
		"username":       "sam.rivera",
		"email":          "sam.rivera@north.example.com",
		"password":       "learner-pass",
		"first_name":     "Sam",
		"last_name":      "Rivera",
		"age":            19,
		"institute_code": "NORTH-01",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	learnerReg := decode[dto.RegistrationResponse](t, resp)
	require.Equal(t, models.ApprovalApproved, learnerReg.Data.ApprovalStatus)

	learnerToken := tokenFor(t, app, "sam.rivera", "learner-pass")

	// Step 5: daily check-in earns points, a second one conflicts
	checkin := dto.CheckinRequest{Mood: 4, Energy: 2, SleepQuality: 3}
	resp = call(t, app, http.MethodPost, "/api/v1/gamification/checkins", learnerToken, checkin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp = call(t, app, http.MethodPost, "/api/v1/gamification/checkins", learnerToken, checkin)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = call(t, app, http.MethodGet, "/api/v1/gamification/me", learnerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	state := decode[dto.GamificationStateResponse](t, resp)
	require.GreaterOrEqual(t, state.Data.Points, service.CheckinPoints)

	resp = call(t, app, http.MethodGet, "/api/v1/leaderboard", learnerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	board := decode[dto.LeaderboardResponse](t, resp)
	require.Len(t, board.Data.Entries, 1)
	require.Equal(t, learnerReg.Data.Account.ID, board.Data.Entries[0].AccountID)

	// Step 6: crisis language raises an alert the clinician can see
	resp = call(t, app, http.MethodPost, "/api/v1/chatbot/messages", learnerToken, dto.ChatbotMessageRequest{Message: "Some days I want to die"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	reply := decode[dto.ChatbotReplyResponse](t, resp)
	require.Equal(t, models.SeverityCritical, reply.Data.Severity)
	require.NotNil(t, reply.Data.AlertID)
	require.NotEmpty(t, reply.Data.Recommendations)

	resp = call(t, app, http.MethodGet, "/api/v1/crisis/alerts", clinicianToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	alerts := decode[dto.CrisisAlertListResponse](t, resp)
	require.Len(t, alerts.Data.Items, 1)
	require.Equal(t, *reply.Data.AlertID, alerts.Data.Items[0].ID)
	require.True(t, alerts.Data.Items[0].ClinicianNotified)

	resp = call(t, app, http.MethodGet, "/api/v1/crisis/alerts", learnerToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = call(t, app, http.MethodGet, "/api/v1/notifications?unread_only=true", clinicianToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	inbox := decode[[]dto.NotificationResponse](t, resp)
	require.NotEmpty(t, inbox.Data)
	require.Equal(t, "crisis_alert", inbox.Data[0].Kind)

	// Step 7: the learner works through the activity plan made at registration
	require.NotEmpty(t, learnerReg.Data.Activities)
	resp = call(t, app, http.MethodGet, "/api/v1/gamification/activities", learnerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	plan := decode[[]dto.ActivityRecommendationResponse](t, resp)
	require.Len(t, plan.Data, len(learnerReg.Data.Activities))

	completeURL := fmt.Sprintf("/api/v1/gamification/activities/%d/complete", plan.Data[0].ID)
	resp = call(t, app, http.MethodPost, completeURL, learnerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = call(t, app, http.MethodPost, completeURL, learnerToken, nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// Step 8: a consultation opens a private chat with the clinician
	resp = call(t, app, http.MethodPost, "/api/v1/consultations", learnerToken, dto.ConsultationRequest{Issue: "Struggling before exams", Urgency: "high"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	consultation := decode[dto.ConsultationResponse](t, resp)
	messagesURL := fmt.Sprintf("/api/v1/consultations/%d/messages", consultation.Data.ID)

	resp = call(t, app, http.MethodPost, messagesURL, learnerToken, dto.ConsultationMessageRequest{Content: "Hello"})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/consultations/%d/accept", consultation.Data.ID), clinicianToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = call(t, app, http.MethodPost, messagesURL, learnerToken, dto.ConsultationMessageRequest{Content: "Thank you for taking this"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp = call(t, app, http.MethodGet, messagesURL, clinicianToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	thread := decode[[]dto.ConsultationMessageResponse](t, resp)
	require.Len(t, thread.Data, 1)
	require.Equal(t, "Thank you for taking this", thread.Data[0].Content)

	resp = call(t, app, http.MethodGet, messagesURL, managerToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Step 9: the manager asks for the learner to be removed and a moderator approves
	resp = call(t, app, http.MethodPost, "/api/v1/seed/moderator", "", map[string]string{
		"username":   "moderator",
		"email":      "moderator@mindcare.example.com",
		"password":   "moderator-pass",
		"first_name": "Alex",
	}, handler.SeedHeader, seedToken)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	moderatorToken := tokenFor(t, app, "moderator", "moderator-pass")

	resp = call(t, app, http.MethodPost, "/api/v1/removals", managerToken, dto.RemovalCreateRequest{EntityType: "learner", EntityID: learnerReg.Data.Account.ID, Reason: "left the institute"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	removal := decode[dto.RemovalResponse](t, resp)

	resp = call(t, app, http.MethodGet, "/api/v1/removals", managerToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/removals/%d/decision", removal.Data.ID), moderatorToken, dto.RemovalDecisionRequest{Outcome: "approved"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = login(t, app, "sam.rivera", "learner-pass")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
