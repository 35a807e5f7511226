package auth

import (
	"strings"

	"github.com/frahmantamala/trading-iam/internal"
)

const minPasswordLength = 8

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() error {
	if strings.TrimSpace(d.Email) == "" {
		return internal.NewValidationFieldError("email", "email is required", internal.ErrCodeValidationFailed)
	}
	if d.Password == "" {
		return internal.NewValidationFieldError("password", "password is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

// RoleRequestDTO names an additional role the caller asks for at registration,
// on top of the default base role.
type RoleRequestDTO struct {
	RoleCode string            `json:"role_code"`
	Params   map[string]string `json:"params,omitempty"`
}

type RegisterDTO struct {
	Email                string           `json:"email"`
	Name                 string           `json:"name"`
	Password             string           `json:"password"`
	PasswordConfirmation string           `json:"password_confirmation"`
	Roles                []RoleRequestDTO `json:"roles,omitempty"`
}

func (d RegisterDTO) Validate() error {
	if strings.TrimSpace(d.Email) == "" {
		return internal.NewValidationFieldError("email", "email is required", internal.ErrCodeValidationFailed)
	}
	if !strings.Contains(d.Email, "@") {
		return internal.NewValidationFieldError("email", "email is invalid", internal.ErrCodeValidationFailed)
	}
	if strings.TrimSpace(d.Name) == "" {
		return internal.NewValidationFieldError("name", "name is required", internal.ErrCodeValidationFailed)
	}
	if len(d.Password) < minPasswordLength {
		return internal.NewValidationFieldError("password", "password must be at least 8 characters", internal.ErrCodeValidationFailed)
	}
	if d.Password != d.PasswordConfirmation {
		return internal.NewValidationFieldError("password_confirmation", "password confirmation does not match", internal.ErrCodeValidationFailed)
	}
	for _, r := range d.Roles {
		if strings.TrimSpace(r.RoleCode) == "" {
			return internal.NewValidationFieldError("roles", "role_code is required", internal.ErrCodeValidationFailed)
		}
	}
	return nil
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (d RefreshTokenDTO) Validate() error {
	if d.RefreshToken == "" {
		return internal.NewValidationFieldError("refresh_token", "refresh_token is required", internal.ErrCodeValidationFailed)
	}
	return nil
}
