package scope

// Decision is the outcome of evaluating a permission request against a
// principal's directive set. Matched carries every directive that applied,
// for audit logging.
type Decision struct {
	Allowed bool        `json:"allowed"`
	Matched []Directive `json:"matched,omitempty"`
}

// Evaluate decides a requested permission against the combined directive set.
//
// Precedence is flat: collect every directive whose path and parameters match
// the request; any matching deny forbids, no matter how many allows also
// match; otherwise a single matching allow grants; no match at all forbids.
// A parameter-scoped directive and a global one for the same path carry equal
// weight once both match; only the allow/deny flag breaks the tie.
func Evaluate(directives []Directive, path string, params map[string]string) Decision {
	var matched []Directive
	denied := false
	allowed := false

	for _, d := range directives {
		if !d.Matches(path, params) {
			continue
		}
		matched = append(matched, d)
		if d.IsDeny() {
			denied = true
		} else {
			allowed = true
		}
	}

	return Decision{
		Allowed: !denied && allowed,
		Matched: matched,
	}
}
