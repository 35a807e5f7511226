// Package scope implements the permission directive model: the atomic
// allow/deny unit evaluated for every authorization decision.
package scope

import (
	"sort"
	"strings"

	"github.com/frahmantamala/trading-iam/internal"
)

type Type string

const (
	TypeAllow Type = "allow"
	TypeDeny  Type = "deny"
)

// Directive is a fully resolved allow/deny rule for one permission path.
// Params scope the rule to concrete values; an empty Params map makes the
// directive global for its path.
type Directive struct {
	Type   Type              `json:"type"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
}

// New validates on construction. Permission paths are colon-delimited
// hierarchical strings, e.g. "api:iam:users:read".
func New(t Type, path string, params map[string]string) (Directive, error) {
	if t != TypeAllow && t != TypeDeny {
		return Directive{}, internal.ErrInvalidScopeType
	}
	if strings.TrimSpace(path) == "" {
		return Directive{}, internal.ErrMalformedDirective
	}
	return Directive{Type: t, Path: path, Params: params}, nil
}

// ParseDirective parses the canonical string form
// "allow;path;param=value;param2=value2" (or "deny;...").
func ParseDirective(s string) (Directive, error) {
	parts := strings.Split(s, ";")
	if len(parts) < 2 {
		return Directive{}, internal.ErrMalformedDirective
	}

	t := Type(strings.TrimSpace(parts[0]))
	if t != TypeAllow && t != TypeDeny {
		return Directive{}, internal.ErrMalformedDirective
	}

	path := strings.TrimSpace(parts[1])
	if path == "" {
		return Directive{}, internal.ErrMalformedDirective
	}

	var params map[string]string
	for _, pair := range parts[2:] {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return Directive{}, internal.ErrMalformedDirective
		}
		if params == nil {
			params = make(map[string]string)
		}
		params[strings.TrimSpace(key)] = value
	}

	return Directive{Type: t, Path: path, Params: params}, nil
}

// ParseDirectives parses a list of canonical directive strings, failing on the
// first malformed entry.
func ParseDirectives(raw []string) ([]Directive, error) {
	directives := make([]Directive, 0, len(raw))
	for _, s := range raw {
		d, err := ParseDirective(s)
		if err != nil {
			return nil, err
		}
		directives = append(directives, d)
	}
	return directives, nil
}

// String serializes to the canonical form with parameter keys sorted, so the
// same directive always produces the same string.
func (d Directive) String() string {
	var sb strings.Builder
	sb.WriteString(string(d.Type))
	sb.WriteByte(';')
	sb.WriteString(d.Path)

	keys := make([]string, 0, len(d.Params))
	for k := range d.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte(';')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(d.Params[k])
	}
	return sb.String()
}

func (d Directive) IsDeny() bool {
	return d.Type == TypeDeny
}

// Matches reports whether the directive applies to a requested permission.
// Paths must be equal (no prefix or wildcard matching). Every parameter
// present on the directive must be supplied by the request with the same
// value; a directive without parameters matches any request for its path.
func (d Directive) Matches(path string, params map[string]string) bool {
	if d.Path != path {
		return false
	}
	for key, want := range d.Params {
		got, ok := params[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Equal compares by exact type, path and key/value equality.
func (d Directive) Equal(other Directive) bool {
	if d.Type != other.Type || d.Path != other.Path || len(d.Params) != len(other.Params) {
		return false
	}
	for k, v := range d.Params {
		if other.Params[k] != v {
			return false
		}
	}
	return true
}
