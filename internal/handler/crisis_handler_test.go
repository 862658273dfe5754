package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/handler"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/service"
)

type mockCrisisService struct {
	lastAccount uint
	lastViewer  service.ActivityActor
	lastQuery   dto.CrisisAlertListRequest
	lastText    string
}

func (m *mockCrisisService) Cascade(context.Context, service.CascadeInput) (service.CascadeResult, error) {
	return service.CascadeResult{}, nil
}

func (m *mockCrisisService) Evaluate(_ context.Context, accountID uint, req dto.CrisisEvaluateRequest) (dto.CrisisEvaluationResponse, error) {
	m.lastAccount = accountID
	m.lastText = req.Text
	return dto.CrisisEvaluationResponse{Detected: true, Severity: models.SeverityHigh, MatchedTerms: []string{"hopeless"}}, nil
}

func (m *mockCrisisService) ListAlerts(_ context.Context, viewer service.ActivityActor, req dto.CrisisAlertListRequest) (dto.CrisisAlertListResponse, error) {
	m.lastViewer = viewer
	m.lastQuery = req
	if viewer.Role == models.RoleLearner {
		return dto.CrisisAlertListResponse{}, service.ErrForbidden
	}
	return dto.CrisisAlertListResponse{}, nil
}

type mockLeaderboardService struct {
	lastViewer    service.ActivityActor
	lastInstitute uint
	lastLimit     int
}

func (m *mockLeaderboardService) Invalidate(context.Context, uint) {}

func (m *mockLeaderboardService) Top(_ context.Context, viewer service.ActivityActor, instituteID uint, limit int) (dto.LeaderboardResponse, error) {
	m.lastViewer = viewer
	m.lastInstitute = instituteID
	m.lastLimit = limit
	return dto.LeaderboardResponse{InstituteID: instituteID, Entries: []dto.LeaderboardEntry{}}, nil
}

func TestCrisisHandler_EvaluateAndAlerts(t *testing.T) {
	svc := &mockCrisisService{}
	h := handler.NewCrisisHandler(svc, discard)

	app := fiber.New()
	app.Post("/crisis/evaluate", asUser(15, "learner"), h.Evaluate)
	app.Get("/crisis/alerts", asUser(40, "institute_manager"), h.Alerts)
	app.Get("/learner/alerts", asUser(15, "learner"), h.Alerts)

	resp := doJSON(t, app, http.MethodPost, "/crisis/evaluate", dto.CrisisEvaluateRequest{Text: "I feel hopeless", Context: "journal"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var evaluation apiResponse[dto.CrisisEvaluationResponse]
	decodeResponse(t, resp, &evaluation)
	require.True(t, evaluation.Data.Detected)
	require.Equal(t, uint(15), svc.lastAccount)

	resp = doJSON(t, app, http.MethodGet, "/crisis/alerts?severity=critical&page=2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "critical", svc.lastQuery.Severity)
	require.Equal(t, 2, svc.lastQuery.Page)
	require.Equal(t, models.RoleInstituteManager, svc.lastViewer.Role)

	resp = doJSON(t, app, http.MethodGet, "/learner/alerts", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestLeaderboardHandler_Query(t *testing.T) {
	svc := &mockLeaderboardService{}
	app := fiber.New()
	app.Get("/leaderboard", asUser(1, "moderator"), handler.NewLeaderboardHandler(svc, discard).Top)

	resp := doJSON(t, app, http.MethodGet, "/leaderboard?institute_id=4&limit=25", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(4), svc.lastInstitute)
	require.Equal(t, 25, svc.lastLimit)
	require.Equal(t, models.RoleModerator, svc.lastViewer.Role)

	resp = doJSON(t, app, http.MethodGet, "/leaderboard?institute_id=-1", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRiskHandler_ScoreWithRules(t *testing.T) {
	riskService := service.NewRiskService(nil, validator.New(validator.WithRequiredStructEnabled()), discard)
	h := handler.NewRiskHandler(riskService, discard)
	app := fiber.New()
	app.Post("/risk/score", asUser(1, "moderator"), h.Score)
	app.Post("/risk/reload", asUser(1, "moderator"), h.Reload)

	resp := doJSON(t, app, http.MethodPost, "/risk/score", dto.RiskScoreRequest{Username: "user123", Email: "bot@tempmail.com", FirstName: "A"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var scored apiResponse[dto.RiskAssessmentResponse]
	decodeResponse(t, resp, &scored)
	require.True(t, scored.Data.Suspect)
	require.True(t, scored.Data.GenericUsername)
	require.True(t, scored.Data.SuspiciousEmailDomain)
	require.Equal(t, "rules", scored.Data.Source)

	resp = doJSON(t, app, http.MethodPost, "/risk/score", dto.RiskScoreRequest{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var invalid struct {
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	}
	decodeResponse(t, resp, &invalid)
	require.Equal(t, "validation failed", invalid.Message)
	require.Equal(t, "required", invalid.Details["username"])

	resp = doJSON(t, app, http.MethodPost, "/risk/reload", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
