package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/repository"
)

var botUserAgentMarkers = []string{"bot", "crawler", "spider", "scraper", "selenium", "automation", "headless"}

// ClientInfo describes where a login attempt came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// TokenConfig controls issued access tokens.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// AuthService authenticates accounts and enforces approval gating.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest, client ClientInfo) (dto.LoginResponse, error)
	CanLogin(ctx context.Context, account models.Account) error
}

type authService struct {
	store     repository.Store
	tokens    TokenConfig
	validator *validator.Validate
	logger    zerolog.Logger
	clock     func() time.Time
}

// NewAuthService constructs the authentication service.
func NewAuthService(store repository.Store, tokens TokenConfig, validate *validator.Validate, logger zerolog.Logger) AuthService {
	if tokens.TTL <= 0 {
		tokens.TTL = 24 * time.Hour
	}
	if tokens.Issuer == "" {
		tokens.Issuer = "mindcare-api"
	}
	return &authService{
		store:     store,
		tokens:    tokens,
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest, client ClientInfo) (dto.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LoginResponse{}, validationFailed(err)
	}
	username := strings.TrimSpace(req.Username)

	if IsAutomatedUserAgent(client.UserAgent) {
		s.recordAttempt(ctx, username, nil, client, models.LoginBlockedBot)
		return dto.LoginResponse{}, ErrAutomatedClient
	}

	account, err := s.store.Accounts().FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(storeError(err, "account"), ErrNotFound) {
			s.recordAttempt(ctx, username, nil, client, models.LoginInvalid)
			return dto.LoginResponse{}, ErrInvalidCredentials
		}
		return dto.LoginResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		s.recordAttempt(ctx, username, &account.ID, client, models.LoginInvalid)
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	if err := s.CanLogin(ctx, account); err != nil {
		s.recordAttempt(ctx, username, &account.ID, client, models.LoginDenied)
		return dto.LoginResponse{}, err
	}

	token, expiresAt, err := s.issueToken(account)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	s.recordAttempt(ctx, username, &account.ID, client, models.LoginAllowed)
	return dto.LoginResponse{Token: token, ExpiresAt: expiresAt, Account: dto.NewAccountResponse(account)}, nil
}

// CanLogin allows moderators unconditionally and every other role only once its
// gating approval record is approved.
func (s *authService) CanLogin(ctx context.Context, account models.Account) error {
	var (
		entityType models.EntityType
		entityID   uint
	)

	switch account.Role {
	case models.RoleModerator:
		return nil
	case models.RoleLearner:
		entityType, entityID = models.EntityLearner, account.ID
	case models.RoleClinician:
		clinician, err := s.store.Clinicians().FindByAccount(ctx, account.ID)
		if err != nil {
			if errors.Is(storeError(err, "clinician"), ErrNotFound) {
				return &DenialReason{Role: account.Role, State: ApprovalStateNone}
			}
			return err
		}
		entityType, entityID = models.EntityClinician, clinician.ID
	case models.RoleInstituteManager:
		institute, err := s.store.Institutes().FindByManager(ctx, account.ID)
		if err != nil {
			if errors.Is(storeError(err, "institute"), ErrNotFound) {
				return &DenialReason{Role: account.Role, State: ApprovalStateNone}
			}
			return err
		}
		entityType, entityID = models.EntityInstitute, institute.ID
	default:
		return &DenialReason{Role: account.Role, State: ApprovalStateNone}
	}

	record, found, err := s.store.Approvals().FindLatest(ctx, entityType, entityID)
	if err != nil {
		return err
	}
	if !found {
		return &DenialReason{Role: account.Role, State: ApprovalStateNone}
	}
	if record.Status != models.ApprovalApproved {
		return &DenialReason{Role: account.Role, State: string(record.Status)}
	}
	return nil
}

func (s *authService) issueToken(account models.Account) (string, time.Time, error) {
	if s.tokens.Secret == "" {
		return "", time.Time{}, errors.New("token secret is not configured")
	}
	now := s.clock()
	expiresAt := now.Add(s.tokens.TTL)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(account.ID), 10),
		"role": string(account.Role),
		"iss":  s.tokens.Issuer,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}
	if account.InstituteID != nil {
		claims["institute_id"] = *account.InstituteID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.tokens.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *authService) recordAttempt(ctx context.Context, username string, accountID *uint, client ClientInfo, outcome string) {
	observability.LoginAttempts().WithLabelValues(outcome).Inc()

	attempt := models.LoginActivity{
		Username:  username,
		AccountID: accountID,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Outcome:   outcome,
	}
	if err := s.store.Logins().Create(ctx, &attempt); err != nil {
		s.logger.Warn().Err(err).Str("outcome", outcome).Msg("failed to record login attempt")
	}

	event := s.logger.Info()
	if outcome != models.LoginAllowed {
		event = s.logger.Warn()
	}
	event.Str("username", username).Str("ip", client.IP).Str("outcome", outcome).Msg("login attempt")
}

// IsAutomatedUserAgent reports whether a user agent names a crawler or browser automation tool.
func IsAutomatedUserAgent(userAgent string) bool {
	lowered := strings.ToLower(userAgent)
	for _, marker := range botUserAgentMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// HashPassword hashes a password with bcrypt's default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
