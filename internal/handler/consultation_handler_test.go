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

type mockConsultationService struct {
	transitionErr error
	lastAction    string
	lastClinician uint
	lastID        uint
	lastViewer    service.ActivityActor
	lastStatus    string
	lastRequest   dto.ConsultationRequest
	lastMessage   dto.ConsultationMessageRequest
	lastSender    uint
	lastAfter     uint
	messageErr    error
}

func (m *mockConsultationService) Request(_ context.Context, patientID uint, req dto.ConsultationRequest) (dto.ConsultationResponse, error) {
	m.lastRequest = req
	return dto.ConsultationResponse{ID: 1, PatientAccountID: patientID, Status: models.ConsultationPending}, nil
}

func (m *mockConsultationService) record(action string, clinicianID, id uint) (dto.ConsultationResponse, error) {
	m.lastAction = action
	m.lastClinician = clinicianID
	m.lastID = id
	if m.transitionErr != nil {
		return dto.ConsultationResponse{}, m.transitionErr
	}
	return dto.ConsultationResponse{ID: id}, nil
}

func (m *mockConsultationService) Accept(_ context.Context, clinicianID, id uint) (dto.ConsultationResponse, error) {
	return m.record("accept", clinicianID, id)
}

func (m *mockConsultationService) Decline(_ context.Context, clinicianID, id uint) (dto.ConsultationResponse, error) {
	return m.record("decline", clinicianID, id)
}

func (m *mockConsultationService) Complete(_ context.Context, clinicianID, id uint) (dto.ConsultationResponse, error) {
	return m.record("complete", clinicianID, id)
}

func (m *mockConsultationService) List(_ context.Context, viewer service.ActivityActor, status string) ([]dto.ConsultationResponse, error) {
	m.lastViewer = viewer
	m.lastStatus = status
	return []dto.ConsultationResponse{}, nil
}

func (m *mockConsultationService) SendMessage(_ context.Context, senderID, consultationID uint, req dto.ConsultationMessageRequest) (dto.ConsultationMessageResponse, error) {
	m.lastSender = senderID
	m.lastID = consultationID
	m.lastMessage = req
	if m.messageErr != nil {
		return dto.ConsultationMessageResponse{}, m.messageErr
	}
	return dto.ConsultationMessageResponse{ID: 1, ConsultationID: consultationID, SenderAccountID: senderID, Content: req.Content}, nil
}

func (m *mockConsultationService) Messages(_ context.Context, viewerID, consultationID, afterID uint) ([]dto.ConsultationMessageResponse, error) {
	m.lastSender = viewerID
	m.lastID = consultationID
	m.lastAfter = afterID
	if m.messageErr != nil {
		return nil, m.messageErr
	}
	return []dto.ConsultationMessageResponse{{ID: afterID + 1, ConsultationID: consultationID}}, nil
}

func newConsultationApp(svc service.ConsultationService, userID uint, role string) *fiber.App {
	app := fiber.New()
	h := handler.NewConsultationHandler(svc, discard)
	group := app.Group("/consultations", asUser(userID, role))
	group.Post("/", h.Request)
	group.Get("/", h.List)
	group.Post("/:id/accept", h.Accept)
	group.Post("/:id/decline", h.Decline)
	group.Post("/:id/complete", h.Complete)
	group.Get("/:id/messages", h.Messages)
	group.Post("/:id/messages", h.SendMessage)
	return app
}

func TestConsultationHandler_Transitions(t *testing.T) {
	svc := &mockConsultationService{}
	app := newConsultationApp(svc, 50, "clinician")

	for _, action := range []string{"accept", "decline", "complete"} {
		resp := doJSON(t, app, http.MethodPost, "/consultations/14/"+action, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, action)
		require.Equal(t, action, svc.lastAction)
		require.Equal(t, uint(50), svc.lastClinician)
		require.Equal(t, uint(14), svc.lastID)
	}
}

func TestConsultationHandler_TransitionErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: consultation is completed", service.ErrInvalidTransition), fiber.StatusUnprocessableEntity},
		{fmt.Errorf("%w: another clinician owns this consultation", service.ErrForbidden), fiber.StatusForbidden},
		{service.ErrNotFound, fiber.StatusNotFound},
	}
	for _, tc := range cases {
		app := newConsultationApp(&mockConsultationService{transitionErr: tc.err}, 50, "clinician")
		resp := doJSON(t, app, http.MethodPost, "/consultations/3/complete", nil)
		require.Equal(t, tc.status, resp.StatusCode)
	}
}

func TestConsultationHandler_RequestAndList(t *testing.T) {
	svc := &mockConsultationService{}
	app := newConsultationApp(svc, 8, "learner")

	resp := doJSON(t, app, http.MethodPost, "/consultations", dto.ConsultationRequest{Issue: "trouble sleeping", Urgency: "high"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "high", svc.lastRequest.Urgency)

	var created apiResponse[dto.ConsultationResponse]
	decodeResponse(t, resp, &created)
	require.Equal(t, uint(8), created.Data.PatientAccountID)

	resp = doJSON(t, app, http.MethodGet, "/consultations?status=pending", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "pending", svc.lastStatus)
	require.Equal(t, models.RoleLearner, svc.lastViewer.Role)
}

func TestConsultationHandler_Messages(t *testing.T) {
	svc := &mockConsultationService{}
	app := newConsultationApp(svc, 8, "learner")

	resp := doJSON(t, app, http.MethodPost, "/consultations/6/messages", dto.ConsultationMessageRequest{Content: "hello doctor"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, uint(8), svc.lastSender)
	require.Equal(t, uint(6), svc.lastID)
	require.Equal(t, "hello doctor", svc.lastMessage.Content)

	resp = doJSON(t, app, http.MethodGet, "/consultations/6/messages?after=4", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(4), svc.lastAfter)

	var listed apiResponse[[]dto.ConsultationMessageResponse]
	decodeResponse(t, resp, &listed)
	require.Len(t, listed.Data, 1)
	require.Equal(t, uint(5), listed.Data[0].ID)

	resp = doJSON(t, app, http.MethodGet, "/consultations/abc/messages", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestConsultationHandler_MessageErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: not a participant of this consultation", service.ErrForbidden), fiber.StatusForbidden},
		{fmt.Errorf("%w: consultation is pending", service.ErrInvalidTransition), fiber.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		app := newConsultationApp(&mockConsultationService{messageErr: tc.err}, 8, "learner")
		resp := doJSON(t, app, http.MethodPost, "/consultations/6/messages", dto.ConsultationMessageRequest{Content: "hi"})
		require.Equal(t, tc.status, resp.StatusCode)
	}
}
