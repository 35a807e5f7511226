package main_test

import (
	"context"

	"github.com/getkin/kin-openapi/openapi3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("OpenAPI Document", func() {
	var doc *openapi3.T

	BeforeEach(func() {
		loader := openapi3.NewLoader()
		var err error
		doc, err = loader.LoadFromFile("api/openapi3.yml")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should be a valid OpenAPI 3 document", func() {
		Expect(doc.Validate(context.Background())).To(Succeed())
	})

	It("should document the auth endpoints", func() {
		for _, path := range []string{
			"/auth/register",
			"/auth/login",
			"/auth/refresh",
			"/auth/logout",
			"/auth/sessions",
		} {
			Expect(doc.Paths.Find(path)).NotTo(BeNil(), "missing path %s", path)
		}
	})

	It("should document the role and grant administration endpoints", func() {
		for _, path := range []string{
			"/roles",
			"/roles/{code}",
			"/users/{id}/roles",
			"/users/{id}/roles/{code}",
			"/users/{id}/grants",
			"/users/{id}/grants/revoke",
		} {
			Expect(doc.Paths.Find(path)).NotTo(BeNil(), "missing path %s", path)
		}
	})

	It("should require bearer auth on session management", func() {
		op := doc.Paths.Find("/auth/logout").Post
		Expect(op).NotTo(BeNil())
		Expect(op.Security).NotTo(BeNil())
	})
})
