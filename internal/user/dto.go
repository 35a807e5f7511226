package user

import (
	"strings"

	"github.com/frahmantamala/trading-iam/internal"
)

type GrantPermissionDTO struct {
	Directive   string `json:"directive"`
	Description string `json:"description,omitempty"`
}

func (d GrantPermissionDTO) Validate() error {
	if strings.TrimSpace(d.Directive) == "" {
		return internal.NewValidationFieldError("directive", "directive is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

type RevokePermissionDTO struct {
	Directive string `json:"directive"`
}

func (d RevokePermissionDTO) Validate() error {
	if strings.TrimSpace(d.Directive) == "" {
		return internal.NewValidationFieldError("directive", "directive is required", internal.ErrCodeValidationFailed)
	}
	return nil
}
