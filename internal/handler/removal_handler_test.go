package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/handler"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/service"
)

type mockRemovalService struct {
	processErr  error
	lastActor   service.ActivityActor
	lastCreate  dto.RemovalCreateRequest
	lastID      uint
	lastOutcome string
	lastQuery   dto.RemovalListRequest
}

func (m *mockRemovalService) Request(_ context.Context, actor service.ActivityActor, req dto.RemovalCreateRequest) (dto.RemovalResponse, error) {
	m.lastActor = actor
	m.lastCreate = req
	return dto.RemovalResponse{ID: 4, EntityType: models.EntityType(req.EntityType), EntityID: req.EntityID, Status: models.RemovalPending}, nil
}

func (m *mockRemovalService) Process(_ context.Context, actor service.ActivityActor, requestID uint, req dto.RemovalDecisionRequest) (dto.RemovalResponse, error) {
	m.lastActor = actor
	m.lastID = requestID
	m.lastOutcome = req.Outcome
	if m.processErr != nil {
		return dto.RemovalResponse{}, m.processErr
	}
	return dto.RemovalResponse{ID: requestID, Status: models.RemovalStatus(req.Outcome)}, nil
}

func (m *mockRemovalService) List(_ context.Context, actor service.ActivityActor, req dto.RemovalListRequest) (dto.RemovalListResponse, error) {
	m.lastActor = actor
	m.lastQuery = req
	return dto.RemovalListResponse{Items: []dto.RemovalResponse{}}, nil
}

func newRemovalApp(svc service.RemovalService, userID uint, role string) *fiber.App {
	app := fiber.New()
	h := handler.NewRemovalHandler(svc, discard)
	group := app.Group("/removals", asUser(userID, role))
	group.Get("/", h.List)
	group.Post("/", h.Create)
	group.Post("/:id/decision", h.Process)
	return app
}

func TestRemovalHandler_CreatePassesActor(t *testing.T) {
	svc := &mockRemovalService{}
	app := newRemovalApp(svc, 41, "institute_manager")

	resp := doJSON(t, app, http.MethodPost, "/removals", dto.RemovalCreateRequest{EntityType: "clinician", EntityID: 9, Reason: "license revoked"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response apiResponse[dto.RemovalResponse]
	decodeResponse(t, resp, &response)
	require.Equal(t, models.RemovalPending, response.Data.Status)
	require.Equal(t, service.ActivityActor{ID: 41, Role: models.RoleInstituteManager}, svc.lastActor)
	require.Equal(t, "license revoked", svc.lastCreate.Reason)
}

func TestRemovalHandler_ProcessAndList(t *testing.T) {
	svc := &mockRemovalService{}
	app := newRemovalApp(svc, 1, "moderator")

	resp := doJSON(t, app, http.MethodPost, "/removals/6/decision", dto.RemovalDecisionRequest{Outcome: "approved"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(6), svc.lastID)
	require.Equal(t, "approved", svc.lastOutcome)

	resp = doJSON(t, app, http.MethodPost, "/removals/x/decision", dto.RemovalDecisionRequest{Outcome: "approved"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/removals?status=rejected&page=2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "rejected", svc.lastQuery.Status)
	require.Equal(t, 2, svc.lastQuery.Page)
}

func TestRemovalHandler_ProcessTwiceIsUnprocessable(t *testing.T) {
	svc := &mockRemovalService{processErr: fmt.Errorf("%w: removal request is already approved", service.ErrInvalidTransition)}
	app := newRemovalApp(svc, 1, "moderator")

	resp := doJSON(t, app, http.MethodPost, "/removals/6/decision", dto.RemovalDecisionRequest{Outcome: "rejected"})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}
