package role

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = ginkgo.Describe("Resolver", func() {
	var (
		resolver *Resolver
		mockRepo *mockRoleRepository
		ctx      context.Context
		reader   *Role
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockRoleRepository()
		resolver = NewResolver(mockRepo, nil, testLogger())
		ctx = context.Background()

		reader = mockRepo.seedRole(&Role{
			Code: "READER",
			Name: "Reader",
			Templates: []ScopeTemplate{
				{Type: "allow", Path: "api:iam:users:read", Params: map[string]string{"userId": "{roleUserId}"}},
			},
		})
	})

	ginkgo.Describe("AssignRole", func() {
		ginkgo.Context("when required parameters are supplied", func() {
			ginkgo.It("should record the assignment", func() {
				// When
				err := resolver.AssignRole(ctx, 7, "reader", map[string]string{"roleUserId": "T"})

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				assignments, _ := mockRepo.GetAssignments(ctx, 7)
				gomega.Expect(assignments).To(gomega.HaveLen(1))
				gomega.Expect(assignments[0].Params["roleUserId"]).To(gomega.Equal("T"))
			})
		})

		ginkgo.Context("when a required parameter is missing", func() {
			ginkgo.It("should auto-resolve roleUserId to the assignee's own id", func() {
				err := resolver.AssignRole(ctx, 7, "READER", nil)

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				assignments, _ := mockRepo.GetAssignments(ctx, 7)
				gomega.Expect(assignments[0].Params["roleUserId"]).To(gomega.Equal("7"))
			})

			ginkgo.It("should reject when no default resolver exists", func() {
				mockRepo.seedRole(&Role{
					Code: "DESK",
					Name: "Desk",
					Templates: []ScopeTemplate{
						{Type: "allow", Path: "api:trading:orders:read", Params: map[string]string{"deskId": "{deskId}"}},
					},
				})

				err := resolver.AssignRole(ctx, 7, "DESK", nil)

				gomega.Expect(err).To(gomega.MatchError(internal.ErrMissingRoleParameter))
				gomega.Expect(mockRepo.assignmentCount(7)).To(gomega.Equal(0))
			})

			ginkgo.It("should reject a blank value the same as a missing one", func() {
				mockRepo.seedRole(&Role{
					Code: "DESK",
					Name: "Desk",
					Templates: []ScopeTemplate{
						{Type: "allow", Path: "api:trading:orders:read", Params: map[string]string{"deskId": "{deskId}"}},
					},
				})

				err := resolver.AssignRole(ctx, 7, "DESK", map[string]string{"deskId": "   "})

				gomega.Expect(err).To(gomega.MatchError(internal.ErrMissingRoleParameter))
			})

			ginkgo.It("should honor registered default resolvers", func() {
				mockRepo.seedRole(&Role{
					Code: "DESK",
					Name: "Desk",
					Templates: []ScopeTemplate{
						{Type: "allow", Path: "api:trading:orders:read", Params: map[string]string{"deskId": "{deskId}"}},
					},
				})
				resolver.RegisterDefaultParam("deskId", func(_ context.Context, _ int64, _ *Role) (string, error) {
					return "main-desk", nil
				})

				err := resolver.AssignRole(ctx, 7, "DESK", nil)

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				assignments, _ := mockRepo.GetAssignments(ctx, 7)
				gomega.Expect(assignments[0].Params["deskId"]).To(gomega.Equal("main-desk"))
			})
		})

		ginkgo.Context("when the role does not exist", func() {
			ginkgo.It("should return role not found", func() {
				err := resolver.AssignRole(ctx, 7, "GHOST", nil)

				gomega.Expect(err).To(gomega.MatchError(internal.ErrRoleNotFound))
			})
		})

		ginkgo.Context("when the same assignment happens twice", func() {
			ginkgo.It("should be idempotent", func() {
				params := map[string]string{"roleUserId": "T"}

				gomega.Expect(resolver.AssignRole(ctx, 7, "READER", params)).To(gomega.Succeed())
				gomega.Expect(resolver.AssignRole(ctx, 7, "READER", params)).To(gomega.Succeed())

				gomega.Expect(mockRepo.assignmentCount(7)).To(gomega.Equal(1))
			})

			ginkgo.It("should converge under concurrent identical assignments", func() {
				params := map[string]string{"roleUserId": "T"}

				var wg sync.WaitGroup
				errs := make([]error, 8)
				for i := 0; i < 8; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						errs[i] = resolver.AssignRole(ctx, 7, "READER", params)
					}(i)
				}
				wg.Wait()

				for _, err := range errs {
					gomega.Expect(err).ToNot(gomega.HaveOccurred())
				}
				gomega.Expect(mockRepo.assignmentCount(7)).To(gomega.Equal(1))
			})
		})
	})

	ginkgo.Describe("ResolveDirectives", func() {
		ginkgo.It("should expand templates with assignment parameter values", func() {
			gomega.Expect(resolver.AssignRole(ctx, 7, "READER", map[string]string{"roleUserId": "T"})).To(gomega.Succeed())

			directives, err := resolver.ResolveDirectives(ctx, 7)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(directives).To(gomega.HaveLen(1))
			gomega.Expect(directives[0].Path).To(gomega.Equal("api:iam:users:read"))
			gomega.Expect(directives[0].Params["userId"]).To(gomega.Equal("T"))
		})

		ginkgo.It("should reflect role edits immediately", func() {
			gomega.Expect(resolver.AssignRole(ctx, 7, "READER", map[string]string{"roleUserId": "T"})).To(gomega.Succeed())

			// Given the role definition changes after assignment
			reader.Templates = append(reader.Templates, ScopeTemplate{
				Type: "allow", Path: "api:iam:users:list",
			})
			gomega.Expect(mockRepo.Update(ctx, reader)).To(gomega.Succeed())

			// When
			directives, err := resolver.ResolveDirectives(ctx, 7)

			// Then the new template shows up without re-assignment
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(directives).To(gomega.HaveLen(2))
		})

		ginkgo.It("should drop exactly the revoked role's directives", func() {
			mockRepo.seedRole(&Role{
				Code: "AUDITOR",
				Name: "Auditor",
				Templates: []ScopeTemplate{
					{Type: "allow", Path: "api:iam:audit:read"},
				},
			})
			gomega.Expect(resolver.AssignRole(ctx, 7, "READER", map[string]string{"roleUserId": "T"})).To(gomega.Succeed())
			gomega.Expect(resolver.AssignRole(ctx, 7, "AUDITOR", nil)).To(gomega.Succeed())

			gomega.Expect(resolver.RevokeRole(ctx, 7, "READER")).To(gomega.Succeed())

			directives, err := resolver.ResolveDirectives(ctx, 7)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(directives).To(gomega.HaveLen(1))
			gomega.Expect(directives[0].Path).To(gomega.Equal("api:iam:audit:read"))
		})
	})

	ginkgo.Describe("RoleClaims", func() {
		ginkgo.It("should render bare codes and parameterized codes", func() {
			mockRepo.seedRole(&Role{Code: "AUDITOR", Name: "Auditor"})
			gomega.Expect(resolver.AssignRole(ctx, 7, "READER", map[string]string{"roleUserId": "T"})).To(gomega.Succeed())
			gomega.Expect(resolver.AssignRole(ctx, 7, "AUDITOR", nil)).To(gomega.Succeed())

			claims, err := resolver.RoleClaims(ctx, 7)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims).To(gomega.ConsistOf("AUDITOR", "READER;roleUserId=T"))
		})
	})
})
