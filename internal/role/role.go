// Package role implements the role catalog: named roles owning parameterized
// scope templates, assignments binding users to roles, and the resolver that
// expands templates into concrete scope directives.
package role

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/scope"
)

// placeholderPattern matches {paramName} tokens inside template values.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z][a-zA-Z0-9_]*)\}`)

// ScopeTemplate is a directive whose parameter values may contain
// {placeholder} tokens filled from an assignment's parameter values.
type ScopeTemplate struct {
	Type   scope.Type        `json:"type"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
}

func (t ScopeTemplate) Validate() error {
	if t.Type != scope.TypeAllow && t.Type != scope.TypeDeny {
		return internal.ErrInvalidScopeType
	}
	if strings.TrimSpace(t.Path) == "" {
		return internal.ErrMalformedDirective
	}
	return nil
}

// Placeholders returns the parameter names referenced by this template.
func (t ScopeTemplate) Placeholders() []string {
	var names []string
	seen := make(map[string]bool)
	for _, value := range t.Params {
		for _, match := range placeholderPattern.FindAllStringSubmatch(value, -1) {
			if !seen[match[1]] {
				seen[match[1]] = true
				names = append(names, match[1])
			}
		}
	}
	sort.Strings(names)
	return names
}

// Expand substitutes {name} tokens with the assignment's parameter values and
// returns the concrete directive. Unreferenced values pass through untouched.
func (t ScopeTemplate) Expand(values map[string]string) scope.Directive {
	var params map[string]string
	if len(t.Params) > 0 {
		params = make(map[string]string, len(t.Params))
		for key, value := range t.Params {
			params[key] = placeholderPattern.ReplaceAllStringFunc(value, func(token string) string {
				name := token[1 : len(token)-1]
				if v, ok := values[name]; ok {
					return v
				}
				return token
			})
		}
	}
	return scope.Directive{Type: t.Type, Path: t.Path, Params: params}
}

type Role struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	IsSystem    bool            `json:"is_system"`
	Templates   []ScopeTemplate `json:"templates"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RequiredParameters derives the parameters an assignment must supply: every
// placeholder referenced by any of the role's templates.
func (r *Role) RequiredParameters() []string {
	var names []string
	seen := make(map[string]bool)
	for _, t := range r.Templates {
		for _, name := range t.Placeholders() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Assignment binds one user to one role with the concrete parameter values
// used to expand that role's templates.
type Assignment struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"user_id"`
	RoleID    int64             `json:"role_id"`
	RoleCode  string            `json:"role_code"`
	Params    map[string]string `json:"params,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Claim renders the assignment as a token role claim: the bare role code, or
// "CODE;k=v;k2=v2" with sorted keys when the assignment carries parameters.
func (a Assignment) Claim() string {
	if len(a.Params) == 0 {
		return a.RoleCode
	}
	keys := make([]string, 0, len(a.Params))
	for k := range a.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(a.RoleCode)
	for _, k := range keys {
		sb.WriteByte(';')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(a.Params[k])
	}
	return sb.String()
}

// NormalizeCode uppercases a role code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RepositoryAPI is the role catalog store.
type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*Role, error)
	GetByCode(ctx context.Context, code string) (*Role, error)
	Create(ctx context.Context, r *Role) error
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Role, error)

	GetAssignments(ctx context.Context, userID int64) ([]Assignment, error)
	SaveAssignment(ctx context.Context, a *Assignment) error
	DeleteAssignment(ctx context.Context, userID, roleID int64) error
}

// ServiceAPI is what the transport layer sees of the catalog.
type ServiceAPI interface {
	CreateRole(ctx context.Context, dto CreateRoleDTO) (*Role, error)
	GetRole(ctx context.Context, code string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, code string, dto UpdateRoleDTO) (*Role, error)
	DeleteRole(ctx context.Context, code string) error
}
