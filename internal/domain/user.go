package domain

import (
	"regexp"
	"strings"
	"time"
)

// Valid user roles. A role is fixed at registration and never changes.
const (
	RoleDonor     = "donor"
	RoleRecipient = "recipient"
	RoleHospital  = "hospital"
)

var validRoles = map[string]bool{
	RoleDonor:     true,
	RoleRecipient: true,
	RoleHospital:  true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

// The eight ABO/Rh blood types.
var validBloodTypes = map[string]bool{
	"A+": true, "A-": true,
	"B+": true, "B-": true,
	"AB+": true, "AB-": true,
	"O+": true, "O-": true,
}

func IsValidBloodType(bt string) bool {
	return validBloodTypes[bt]
}

type User struct {
	ID           int64  `json:"id"`
	Role         string `json:"role"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	// Donor attributes. Other roles carry zero values and ignore them.
	BloodType   string `json:"blood_type,omitempty"`
	IsAvailable bool   `json:"is_available"`
	City        string `json:"city,omitempty"`
	Address     string `json:"address,omitempty"`

	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (u *User) IsDonor() bool     { return u.Role == RoleDonor }
func (u *User) IsRecipient() bool { return u.Role == RoleRecipient }
func (u *User) IsHospital() bool  { return u.Role == RoleHospital }

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	BloodType string `json:"blood_type,omitempty"`
	City      string `json:"city,omitempty"`
	Address   string `json:"address,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in"`
	User         *UserInfo `json:"user"`
}

type UserInfo struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
	BloodType   string `json:"blood_type,omitempty"`
	IsAvailable bool   `json:"is_available"`
	City        string `json:"city,omitempty"`
	IsVerified  bool   `json:"is_verified"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateProfileRequest deliberately has no role field: roles never change
// after registration.
type UpdateProfileRequest struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	City    *string `json:"city,omitempty"`
	Address *string `json:"address,omitempty"`
}

type AvailabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

// DonorFilter carries the optional directory search filters. BloodType is an
// exact match, City a case-insensitive substring match.
type DonorFilter struct {
	BloodType string
	City      string
}

func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.BloodType = strings.ToUpper(strings.TrimSpace(r.BloodType))
	r.City = strings.TrimSpace(r.City)
	r.Address = strings.TrimSpace(r.Address)
	if r.Role == "" {
		r.Role = RoleRecipient
	}
}

func (r *RegisterRequest) Validate() error {
	if r.Email == "" {
		return Validationf("email is required")
	}
	if !isValidEmail(r.Email) {
		return Validationf("invalid email format")
	}
	if r.Password == "" {
		return Validationf("password is required")
	}
	if len(r.Password) < 8 {
		return Validationf("password must be at least 8 characters")
	}
	if r.Name == "" {
		return Validationf("name is required")
	}
	if r.Phone == "" {
		return Validationf("phone is required")
	}
	if !isValidPhone(r.Phone) {
		return Validationf("invalid phone format")
	}
	if !validRoles[r.Role] {
		return Validationf("invalid role")
	}
	if r.Role == RoleDonor && !IsValidBloodType(r.BloodType) {
		return Validationf("donors must register a valid blood type")
	}
	return nil
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return Validationf("email is required")
	}
	if !isValidEmail(r.Email) {
		return Validationf("invalid email format")
	}
	if r.Password == "" {
		return Validationf("password is required")
	}
	return nil
}

func (r *UpdateProfileRequest) Validate() error {
	if r.Phone != nil && !isValidPhone(*r.Phone) {
		return Validationf("invalid phone format")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return Validationf("name cannot be empty")
	}
	return nil
}

func isValidEmail(email string) bool {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailRegex.MatchString(email)
}

func isValidPhone(phone string) bool {
	phoneRegex := regexp.MustCompile(`^[\+]?[\d\s\-\(\)]+$`)
	return phoneRegex.MatchString(phone) && len(phone) >= 7
}

func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Phone:       u.Phone,
		Role:        u.Role,
		BloodType:   u.BloodType,
		IsAvailable: u.IsAvailable,
		City:        u.City,
		IsVerified:  u.IsVerified,
	}
}
