package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/handler"
	"github.com/noah-isme/mindcare-api/internal/service"
)

type mockSeedService struct {
	err           error
	lastToken     string
	lastModerator dto.SeedModeratorRequest
	lastInstitute dto.SeedInstituteRequest
}

func (m *mockSeedService) SeedModerator(_ context.Context, token string, req dto.SeedModeratorRequest) (dto.SeedResponse, error) {
	m.lastToken = token
	m.lastModerator = req
	if m.err != nil {
		return dto.SeedResponse{}, m.err
	}
	return dto.SeedResponse{AccountID: 1}, nil
}

func (m *mockSeedService) SeedInstitute(_ context.Context, token string, req dto.SeedInstituteRequest) (dto.SeedResponse, error) {
	m.lastToken = token
	m.lastInstitute = req
	if m.err != nil {
		return dto.SeedResponse{}, m.err
	}
	instituteID := uint(3)
	return dto.SeedResponse{AccountID: 2, InstituteID: &instituteID}, nil
}

func postSeed(t *testing.T, app *fiber.App, target, token string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handler.SeedHeader, token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestSeedHandler_InstituteSuccess(t *testing.T) {
	svc := &mockSeedService{}
	app := fiber.New()
	handler.NewSeedHandler(svc, discard).Register(app.Group("/api/v1/seed"))

	resp := postSeed(t, app, "/api/v1/seed/institute", "secret", map[string]interface{}{
		"name":              "North Campus",
		"registration_code": "NORTH-01",
		"manager":           map[string]string{"username": "manager", "email": "m@example.com", "password": "password123", "first_name": "Mia"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response apiResponse[dto.SeedResponse]
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.NotNil(t, response.Data.InstituteID)
	require.Equal(t, "secret", svc.lastToken)
	require.Equal(t, "NORTH-01", svc.lastInstitute.RegistrationCode)
	require.Equal(t, "manager", svc.lastInstitute.Manager.Username)
}

func TestSeedHandler_Errors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{service.ErrSeedDisabled, fiber.StatusForbidden, "seeding disabled"},
		{service.ErrSeedUnauthorized, fiber.StatusForbidden, "invalid token"},
		{service.ErrConflict, fiber.StatusConflict, service.ErrConflict.Error()},
	}
	for _, tc := range cases {
		app := fiber.New()
		handler.NewSeedHandler(&mockSeedService{err: tc.err}, discard).Register(app.Group("/api/v1/seed"))

		resp := postSeed(t, app, "/api/v1/seed/moderator", "wrong", map[string]string{"username": "root"})
		require.Equal(t, tc.status, resp.StatusCode)

		var response apiResponse[any]
		decodeResponse(t, resp, &response)
		require.Equal(t, tc.message, response.Message)
	}
}
