package scope

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestScope(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Scope Module Suite")
}

var _ = Describe("Directive", func() {
	Describe("ParseDirective", func() {
		Context("when the string is well formed", func() {
			It("should parse an allow directive with parameters", func() {
				d, err := ParseDirective("allow;api:iam:users:read;userId=42;accountId=9")

				Expect(err).ToNot(HaveOccurred())
				Expect(d.Type).To(Equal(TypeAllow))
				Expect(d.Path).To(Equal("api:iam:users:read"))
				Expect(d.Params).To(HaveLen(2))
				Expect(d.Params["userId"]).To(Equal("42"))
				Expect(d.Params["accountId"]).To(Equal("9"))
			})

			It("should parse a deny directive without parameters", func() {
				d, err := ParseDirective("deny;api:trading:orders:create")

				Expect(err).ToNot(HaveOccurred())
				Expect(d.Type).To(Equal(TypeDeny))
				Expect(d.Params).To(BeEmpty())
			})

			It("should round-trip through String with sorted parameter keys", func() {
				d, err := ParseDirective("allow;api:iam:users:read;zeta=1;alpha=2")
				Expect(err).ToNot(HaveOccurred())

				Expect(d.String()).To(Equal("allow;api:iam:users:read;alpha=2;zeta=1"))

				again, err := ParseDirective(d.String())
				Expect(err).ToNot(HaveOccurred())
				Expect(again.Equal(d)).To(BeTrue())
			})
		})

		Context("when the string is malformed", func() {
			It("should reject an unrecognized type token", func() {
				_, err := ParseDirective("grant;api:iam:users:read")
				Expect(err).To(HaveOccurred())
			})

			It("should reject an empty path", func() {
				_, err := ParseDirective("allow; ;userId=42")
				Expect(err).To(HaveOccurred())
			})

			It("should reject a parameter token without a value separator", func() {
				_, err := ParseDirective("allow;api:iam:users:read;userId")
				Expect(err).To(HaveOccurred())
			})

			It("should reject a bare type with no path", func() {
				_, err := ParseDirective("allow")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("New", func() {
		It("should reject a type that is neither allow nor deny", func() {
			_, err := New(Type("maybe"), "api:iam:users:read", nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a blank path", func() {
			_, err := New(TypeAllow, "   ", nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Matches", func() {
		It("should require exact path equality, never prefix matching", func() {
			d, _ := ParseDirective("allow;api:iam:users")

			Expect(d.Matches("api:iam:users:read", nil)).To(BeFalse())
			Expect(d.Matches("api:iam:users", nil)).To(BeTrue())
		})

		It("should require every directive parameter to be supplied with the same value", func() {
			d, _ := ParseDirective("allow;api:iam:users:read;userId=42")

			Expect(d.Matches("api:iam:users:read", map[string]string{"userId": "42"})).To(BeTrue())
			Expect(d.Matches("api:iam:users:read", map[string]string{"userId": "7"})).To(BeFalse())
			Expect(d.Matches("api:iam:users:read", nil)).To(BeFalse())
		})

		It("should let a parameterless directive match any request for its path", func() {
			d, _ := ParseDirective("allow;api:iam:users:read")

			Expect(d.Matches("api:iam:users:read", nil)).To(BeTrue())
			Expect(d.Matches("api:iam:users:read", map[string]string{"userId": "anything"})).To(BeTrue())
		})

		It("should ignore extra request parameters not named by the directive", func() {
			d, _ := ParseDirective("allow;api:iam:users:read;userId=42")

			Expect(d.Matches("api:iam:users:read", map[string]string{"userId": "42", "extra": "x"})).To(BeTrue())
		})
	})
})
