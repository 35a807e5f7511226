package role

import (
	"strconv"
	"strings"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/scope"
)

type ScopeTemplateDTO struct {
	Type   string            `json:"type"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
}

func (t ScopeTemplateDTO) toTemplate() ScopeTemplate {
	return ScopeTemplate{
		Type:   scope.Type(t.Type),
		Path:   t.Path,
		Params: t.Params,
	}
}

type CreateRoleDTO struct {
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Templates   []ScopeTemplateDTO `json:"templates"`
}

func (d CreateRoleDTO) Validate() error {
	if strings.TrimSpace(d.Code) == "" {
		return internal.NewValidationFieldError("code", "code is required", internal.ErrCodeValidationFailed)
	}
	if strings.TrimSpace(d.Name) == "" {
		return internal.NewValidationFieldError("name", "name is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

func (d CreateRoleDTO) templates() []ScopeTemplate {
	templates := make([]ScopeTemplate, 0, len(d.Templates))
	for _, t := range d.Templates {
		templates = append(templates, t.toTemplate())
	}
	return templates
}

type UpdateRoleDTO struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Templates   []ScopeTemplateDTO `json:"templates"`
}

type AssignRoleDTO struct {
	RoleCode string            `json:"role_code"`
	Params   map[string]string `json:"params,omitempty"`
}

func (d AssignRoleDTO) Validate() error {
	if strings.TrimSpace(d.RoleCode) == "" {
		return internal.NewValidationFieldError("role_code", "role_code is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

func formatUserID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
