package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a uniqueness violation or a repeated one-shot action.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks a missing or foreign record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition marks a state change that is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrForbidden marks an actor acting outside their scope.
	ErrForbidden = errors.New("forbidden")
	// ErrNotEligible marks a reference to an institute that is not approved.
	ErrNotEligible = errors.New("not eligible")
	// ErrExternalService marks a failing collaborator such as storage.
	ErrExternalService = errors.New("external service failure")
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAutomatedClient is returned when a login comes from a bot user agent.
	ErrAutomatedClient = errors.New("automated clients are not allowed")
)

// ApprovalStateNone is reported when an account has no approval record yet.
const ApprovalStateNone = "none"

// DenialReason explains why an account may not log in.
type DenialReason struct {
	Role  models.Role
	State string
}

func (d *DenialReason) Error() string {
	return fmt.Sprintf("%s login denied: approval %s", d.Role, d.State)
}

func validationFailed(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// storeError maps persistence errors onto the service sentinels.
func storeError(err error, subject string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, subject)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", ErrConflict, subject)
	default:
		return err
	}
}
