package scope

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func mustParse(s string) Directive {
	d, err := ParseDirective(s)
	Expect(err).ToNot(HaveOccurred())
	return d
}

var _ = Describe("Evaluate", func() {
	Context("deny precedence", func() {
		It("should forbid when any matching directive is deny, even with matching allows", func() {
			directives := []Directive{
				mustParse("allow;api:iam:users:read;userId=42"),
				mustParse("allow;api:iam:users:read"),
				mustParse("deny;api:iam:users:read;userId=42"),
			}

			decision := Evaluate(directives, "api:iam:users:read", map[string]string{"userId": "42"})

			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Matched).To(HaveLen(3))
		})

		It("should not rank a parameter-scoped directive above a global one", func() {
			// The specific allow does not beat the global deny; only the
			// allow/deny flag breaks the tie.
			directives := []Directive{
				mustParse("allow;api:trading:orders:create;accountId=7"),
				mustParse("deny;api:trading:orders:create"),
			}

			decision := Evaluate(directives, "api:trading:orders:create", map[string]string{"accountId": "7"})

			Expect(decision.Allowed).To(BeFalse())
		})
	})

	Context("deny by default", func() {
		It("should forbid when nothing matches at all", func() {
			directives := []Directive{
				mustParse("allow;api:iam:users:read"),
			}

			decision := Evaluate(directives, "api:iam:users:write", nil)

			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Matched).To(BeEmpty())
		})

		It("should forbid on an empty directive set", func() {
			decision := Evaluate(nil, "api:iam:users:read", nil)

			Expect(decision.Allowed).To(BeFalse())
		})
	})

	Context("grants", func() {
		It("should grant when at least one allow matches and no deny does", func() {
			directives := []Directive{
				mustParse("allow;api:iam:users:read;userId=42"),
				mustParse("deny;api:iam:users:read;userId=7"),
			}

			decision := Evaluate(directives, "api:iam:users:read", map[string]string{"userId": "42"})

			Expect(decision.Allowed).To(BeTrue())
			Expect(decision.Matched).To(HaveLen(1))
			Expect(decision.Matched[0].Type).To(Equal(TypeAllow))
		})

		It("should grant through a global allow regardless of request parameters", func() {
			directives := []Directive{
				mustParse("allow;api:iam:users:read"),
			}

			decision := Evaluate(directives, "api:iam:users:read", map[string]string{"userId": "anyone"})

			Expect(decision.Allowed).To(BeTrue())
		})
	})

	Context("parameter scoping", func() {
		It("should treat requests for other parameter values as unmatched", func() {
			// Role-style directive scoped to the holder's own user id.
			directives := []Directive{
				mustParse("allow;api:iam:users:read;userId=T"),
			}

			own := Evaluate(directives, "api:iam:users:read", map[string]string{"userId": "T"})
			other := Evaluate(directives, "api:iam:users:read", map[string]string{"userId": "Z"})

			Expect(own.Allowed).To(BeTrue())
			Expect(other.Allowed).To(BeFalse())
		})
	})
})
