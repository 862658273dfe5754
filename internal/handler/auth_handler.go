package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

// Multipart field names of the credential documents.
const (
	formIDDocument      = "id_document"
	formLicenseDocument = "license_document"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	registration service.RegistrationService
	auth         service.AuthService
	logger       zerolog.Logger
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(registration service.RegistrationService, auth service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		registration: registration,
		auth:         auth,
		logger:       logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register wires auth routes. The login limiter is applied by the caller.
func (h *AuthHandler) Register(router fiber.Router, loginGuards ...fiber.Handler) {
	router.Post("/register/learner", h.registerLearner)
	router.Post("/register/institute", h.registerInstitute)
	router.Post("/register/clinician", h.registerClinician)
	router.Post("/login", append(loginGuards, h.login)...)
}

func (h *AuthHandler) registerLearner(c *fiber.Ctx) error {
	var payload dto.LearnerRegistrationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.registration.RegisterLearner(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to register learner")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "learner registered", response)
}

func (h *AuthHandler) registerInstitute(c *fiber.Ctx) error {
	var payload dto.InstituteRegistrationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.registration.RegisterInstitute(requestContext(c), payload, credentialDocuments(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to register institute")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "institute registration submitted", response)
}

func (h *AuthHandler) registerClinician(c *fiber.Ctx) error {
	var payload dto.ClinicianRegistrationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.registration.RegisterClinician(requestContext(c), payload, credentialDocuments(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to register clinician")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "clinician application submitted", response)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	client := service.ClientInfo{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
	response, err := h.auth.Login(requestContext(c), payload, client)
	if err != nil {
		return respondError(c, h.logger, err, "login failed")
	}
	return utils.SendSuccess(c, "login successful", response)
}

// credentialDocuments collects the optional uploads; a missing file is reported by the document service.
func credentialDocuments(c *fiber.Ctx) service.CredentialDocuments {
	var docs service.CredentialDocuments
	if file, err := c.FormFile(formIDDocument); err == nil {
		docs.ID = file
	}
	if file, err := c.FormFile(formLicenseDocument); err == nil {
		docs.License = file
	}
	return docs
}
