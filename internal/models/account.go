package models

import "time"

// Role identifies the kind of account. Roles never change after registration.
type Role string

const (
	RoleLearner          Role = "learner"
	RoleClinician        Role = "clinician"
	RoleInstituteManager Role = "institute_manager"
	RoleModerator        Role = "moderator"
)

// ParseRole normalises a role string, reporting whether it names a known role.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleLearner, RoleClinician, RoleInstituteManager, RoleModerator:
		return Role(value), true
	default:
		return "", false
	}
}

// Account is the root identity every other record points back to.
type Account struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255;not null" json:"email"`
	FirstName    string    `gorm:"size:150" json:"first_name"`
	LastName     string    `gorm:"size:150" json:"last_name"`
	Age          *int      `json:"age,omitempty"`
	WeightKg     *float64  `json:"weight_kg,omitempty"`
	HeightCm     *float64  `json:"height_cm,omitempty"`
	Phone        string    `gorm:"size:20" json:"phone,omitempty"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         Role      `gorm:"size:32;not null;index" json:"role"`
	InstituteID  *uint     `gorm:"index" json:"institute_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Institute is an organisation learners and clinicians attach to through its registration code.
type Institute struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Name               string    `gorm:"size:200;not null" json:"name"`
	ManagerAccountID   uint      `gorm:"uniqueIndex;not null" json:"manager_account_id"`
	Address            string    `gorm:"type:text" json:"address"`
	RegistrationCode   string    `gorm:"size:100;uniqueIndex;not null" json:"registration_code"`
	ContactEmail       string    `gorm:"size:255" json:"contact_email"`
	ContactPhone       string    `gorm:"size:20" json:"contact_phone"`
	IDDocumentURL      string    `gorm:"size:512" json:"id_document_url,omitempty"`
	LicenseDocumentURL string    `gorm:"size:512" json:"license_document_url,omitempty"`
	ExtractedText      string    `gorm:"type:text" json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Clinician holds the professional profile of a clinician account.
type Clinician struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	AccountID          uint      `gorm:"uniqueIndex;not null" json:"account_id"`
	InstituteID        uint      `gorm:"index;not null" json:"institute_id"`
	LicenseNumber      string    `gorm:"size:100;not null" json:"license_number"`
	Specialization     string    `gorm:"size:100" json:"specialization"`
	ExperienceYears    int       `json:"experience_years"`
	Qualification      string    `gorm:"size:200" json:"qualification"`
	IDDocumentURL      string    `gorm:"size:512" json:"id_document_url,omitempty"`
	LicenseDocumentURL string    `gorm:"size:512" json:"license_document_url,omitempty"`
	ExtractedText      string    `gorm:"type:text" json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
