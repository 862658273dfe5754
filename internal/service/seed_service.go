package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService bootstraps accounts that have no self-service registration path.
type SeedService interface {
	SeedModerator(ctx context.Context, token string, req dto.SeedModeratorRequest) (dto.SeedResponse, error)
	SeedInstitute(ctx context.Context, token string, req dto.SeedInstituteRequest) (dto.SeedResponse, error)
}

type seedService struct {
	store     repository.Store
	validator *validator.Validate
	enabled   bool
	token     string
	logger    zerolog.Logger
	clock     func() time.Time
}

// NewSeedService constructs a seeding service.
func NewSeedService(store repository.Store, validate *validator.Validate, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		store:     store,
		validator: validate,
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "seed_service").Logger(),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *seedService) SeedModerator(ctx context.Context, token string, req dto.SeedModeratorRequest) (dto.SeedResponse, error) {
	if err := s.authorize(token); err != nil {
		return dto.SeedResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SeedResponse{}, validationFailed(err)
	}

	account, err := seedAccount(req.AccountFields, models.RoleModerator)
	if err != nil {
		return dto.SeedResponse{}, err
	}
	if err := s.store.Accounts().Create(ctx, &account); err != nil {
		return dto.SeedResponse{}, storeError(err, "username")
	}

	s.logger.Info().Uint("account_id", account.ID).Msg("moderator seeded")
	return dto.SeedResponse{AccountID: account.ID}, nil
}

func (s *seedService) SeedInstitute(ctx context.Context, token string, req dto.SeedInstituteRequest) (dto.SeedResponse, error) {
	if err := s.authorize(token); err != nil {
		return dto.SeedResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SeedResponse{}, validationFailed(err)
	}

	manager, err := seedAccount(req.Manager, models.RoleInstituteManager)
	if err != nil {
		return dto.SeedResponse{}, err
	}

	var (
		institute models.Institute
		record    models.ApprovalRecord
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Accounts().Create(ctx, &manager); err != nil {
			return storeError(err, "username")
		}
		institute = models.Institute{
			Name:             strings.TrimSpace(req.Name),
			ManagerAccountID: manager.ID,
			Address:          strings.TrimSpace(req.Address),
			RegistrationCode: strings.TrimSpace(req.RegistrationCode),
			ContactEmail:     strings.ToLower(strings.TrimSpace(req.ContactEmail)),
		}
		if err := tx.Institutes().Create(ctx, &institute); err != nil {
			return storeError(err, "registration code")
		}
		manager.InstituteID = &institute.ID
		if err := tx.Accounts().Save(ctx, &manager); err != nil {
			return err
		}

		now := s.clock()
		record, err = openApproval(ctx, tx, models.EntityInstitute, institute.ID, models.ApprovalApproved, nil, now)
		if err != nil {
			return err
		}
		record.DecidedAt = &now
		record.Notes = "seeded"
		return tx.Approvals().Save(ctx, &record)
	})
	if err != nil {
		return dto.SeedResponse{}, err
	}

	s.logger.Info().Uint("institute_id", institute.ID).Uint("manager_id", manager.ID).Msg("institute seeded")
	return dto.SeedResponse{AccountID: manager.ID, InstituteID: &institute.ID, ApprovalID: &record.ID}, nil
}

func (s *seedService) authorize(token string) error {
	if !s.enabled {
		return ErrSeedDisabled
	}
	expected := strings.TrimSpace(s.token)
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) != 1 {
		return ErrSeedUnauthorized
	}
	return nil
}

func seedAccount(fields dto.AccountFields, role models.Role) (models.Account, error) {
	hash, err := HashPassword(fields.Password)
	if err != nil {
		return models.Account{}, err
	}
	return models.Account{
		Username:     strings.TrimSpace(fields.Username),
		Email:        strings.ToLower(strings.TrimSpace(fields.Email)),
		FirstName:    strings.TrimSpace(fields.FirstName),
		LastName:     strings.TrimSpace(fields.LastName),
		Phone:        strings.TrimSpace(fields.Phone),
		PasswordHash: hash,
		Role:         role,
	}, nil
}
