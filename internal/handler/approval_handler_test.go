package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/handler"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/service"
)

type mockApprovalService struct {
	decideErr    error
	lastActor    service.ActivityActor
	lastRecordID uint
	lastDecision dto.ApprovalDecisionRequest
	lastEntity   models.EntityType
	lastQuery    dto.ApprovalListRequest
}

func (m *mockApprovalService) Submit(_ context.Context, actor service.ActivityActor, entityType models.EntityType, entityID uint) (models.ApprovalRecord, error) {
	m.lastActor = actor
	m.lastEntity = entityType
	return models.ApprovalRecord{ID: 3, EntityType: entityType, EntityID: entityID, Status: models.ApprovalPending, RequestedAt: time.Now()}, nil
}

func (m *mockApprovalService) Decide(_ context.Context, actor service.ActivityActor, recordID uint, req dto.ApprovalDecisionRequest) (models.ApprovalRecord, error) {
	m.lastActor = actor
	m.lastRecordID = recordID
	m.lastDecision = req
	if m.decideErr != nil {
		return models.ApprovalRecord{}, m.decideErr
	}
	decidedBy := actor.ID
	return models.ApprovalRecord{ID: recordID, EntityType: models.EntityClinician, EntityID: 12, Status: models.ApprovalStatus(req.Outcome), DecidedBy: &decidedBy}, nil
}

func (m *mockApprovalService) ListPending(_ context.Context, actor service.ActivityActor, req dto.ApprovalListRequest) (dto.ApprovalListResponse, error) {
	m.lastActor = actor
	m.lastQuery = req
	return dto.ApprovalListResponse{}, nil
}

func (m *mockApprovalService) InstituteEligible(context.Context, string) (models.Institute, error) {
	return models.Institute{}, nil
}

func newApprovalApp(svc service.ApprovalService, userID uint, role string) *fiber.App {
	app := fiber.New()
	h := handler.NewApprovalHandler(svc, discard)
	group := app.Group("/approvals", asUser(userID, role))
	group.Get("/pending", h.Pending)
	group.Post("/", h.Submit)
	group.Post("/:id/decision", h.Decide)
	return app
}

func TestApprovalHandler_DecidePassesActor(t *testing.T) {
	svc := &mockApprovalService{}
	app := newApprovalApp(svc, 77, "institute_manager")

	resp := doJSON(t, app, http.MethodPost, "/approvals/5/decision", dto.ApprovalDecisionRequest{Outcome: "approved", Notes: "license verified"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response apiResponse[dto.ApprovalResponse]
	decodeResponse(t, resp, &response)
	require.Equal(t, models.ApprovalApproved, response.Data.Status)
	require.Equal(t, uint(5), svc.lastRecordID)
	require.Equal(t, service.ActivityActor{ID: 77, Role: models.RoleInstituteManager}, svc.lastActor)
	require.Equal(t, "license verified", svc.lastDecision.Notes)
}

func TestApprovalHandler_DecideErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: record already decided", service.ErrInvalidTransition), fiber.StatusUnprocessableEntity},
		{fmt.Errorf("%w: not your institute", service.ErrForbidden), fiber.StatusForbidden},
		{fmt.Errorf("%w: approval not found", service.ErrNotFound), fiber.StatusNotFound},
		{fmt.Errorf("%w: unknown outcome", service.ErrValidation), fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		app := newApprovalApp(&mockApprovalService{decideErr: tc.err}, 1, "moderator")
		resp := doJSON(t, app, http.MethodPost, "/approvals/9/decision", dto.ApprovalDecisionRequest{Outcome: "approved"})
		require.Equal(t, tc.status, resp.StatusCode, tc.err.Error())
	}

	app := newApprovalApp(&mockApprovalService{}, 1, "moderator")
	resp := doJSON(t, app, http.MethodPost, "/approvals/abc/decision", dto.ApprovalDecisionRequest{Outcome: "approved"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestApprovalHandler_SubmitValidatesEntityType(t *testing.T) {
	svc := &mockApprovalService{}
	app := newApprovalApp(svc, 1, "moderator")

	resp := doJSON(t, app, http.MethodPost, "/approvals", dto.ApprovalSubmitRequest{EntityType: "school", EntityID: 4})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/approvals", dto.ApprovalSubmitRequest{EntityType: "institute", EntityID: 4})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, models.EntityInstitute, svc.lastEntity)
}

func TestApprovalHandler_PendingParsesQuery(t *testing.T) {
	svc := &mockApprovalService{}
	app := newApprovalApp(svc, 1, "moderator")

	resp := doJSON(t, app, http.MethodGet, "/approvals/pending?page=2&page_size=5&entity_type=clinician", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 2, svc.lastQuery.Page)
	require.Equal(t, 5, svc.lastQuery.PageSize)
	require.Equal(t, "clinician", svc.lastQuery.EntityType)
}
