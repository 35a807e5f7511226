package auth

import (
	"context"
	"sync"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/scope"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

// Mock UserRepository for testing
type mockUserRepository struct {
	mu          sync.Mutex
	credentials map[string]*Credential
	grants      map[int64][]string
	nextID      int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		credentials: make(map[string]*Credential),
		grants:      make(map[int64][]string),
	}
}

func (m *mockUserRepository) seedUser(email, password string, twoFactor bool) *Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	m.nextID++
	cred := &Credential{
		UserID:           m.nextID,
		Email:            email,
		PasswordHash:     string(hash),
		IsActive:         true,
		TwoFactorEnabled: twoFactor,
	}
	m.credentials[email] = cred
	return cred
}

func (m *mockUserRepository) setGrants(userID int64, directives ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[userID] = directives
}

func (m *mockUserRepository) GetCredentialByEmail(_ context.Context, email string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred, ok := m.credentials[email]; ok {
		clone := *cred
		return &clone, nil
	}
	return nil, internal.ErrUserNotFound
}

func (m *mockUserRepository) CreateUser(_ context.Context, email, name, passwordHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.credentials[email]; exists {
		return 0, internal.ErrDuplicateEmail
	}
	m.nextID++
	m.credentials[email] = &Credential{
		UserID:       m.nextID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		IsActive:     true,
	}
	return m.nextID, nil
}

func (m *mockUserRepository) GetGrantDirectives(_ context.Context, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.grants[userID]...), nil
}

// Mock RoleResolverAPI for testing. Directives are mutable so specs can edit
// "role definitions" between requests.
type mockResolver struct {
	mu          sync.Mutex
	directives  map[int64][]scope.Directive
	claims      map[int64][]string
	assignments []string
}

func newMockResolver() *mockResolver {
	return &mockResolver{
		directives: make(map[int64][]scope.Directive),
		claims:     make(map[int64][]string),
	}
}

func (m *mockResolver) setDirectives(userID int64, directives ...scope.Directive) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directives[userID] = directives
}

func (m *mockResolver) AssignRole(_ context.Context, userID int64, roleCode string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, roleCode)
	m.claims[userID] = append(m.claims[userID], roleCode)
	return nil
}

func (m *mockResolver) ResolveDirectives(_ context.Context, userID int64) ([]scope.Directive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scope.Directive(nil), m.directives[userID]...), nil
}

func (m *mockResolver) RoleClaims(_ context.Context, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.claims[userID]...), nil
}

func mustDirective(raw string) scope.Directive {
	d, err := scope.ParseDirective(raw)
	gomega.ExpectWithOffset(1, err).ToNot(gomega.HaveOccurred())
	return d
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		service     *Service
		userRepo    *mockUserRepository
		resolver    *mockResolver
		sessionRepo *mockSessionRepository
		gen         *JWTTokenGenerator
		ctx         context.Context
		device      DeviceInfo
	)

	ginkgo.BeforeEach(func() {
		userRepo = newMockUserRepository()
		resolver = newMockResolver()
		sessionRepo = newMockSessionRepository()
		gen = newTestGenerator()
		sessions := NewSessionService(sessionRepo, nil, testLogger())
		service = NewService(userRepo, resolver, gen, sessions, nil, testLogger(), bcrypt.MinCost, "TRADER")
		ctx = context.Background()
		device = DeviceInfo{UserAgent: "test", IPAddress: "127.0.0.1"}
	})

	ginkgo.Describe("Register", func() {
		validDTO := RegisterDTO{
			Email:                "new@example.com",
			Name:                 "New Trader",
			Password:             "correct-horse",
			PasswordConfirmation: "correct-horse",
		}

		ginkgo.It("should create the user, bind the default role, and log in", func() {
			tokens, err := service.Register(ctx, validDTO, device)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(resolver.assignments).To(gomega.ConsistOf("TRADER"))

			claims, err := gen.ValidateAccessToken(tokens.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.Roles).To(gomega.ConsistOf("TRADER"))
			gomega.Expect(claims.SessionID).ToNot(gomega.BeEmpty())

			// A session backs the refresh token
			stored, err := sessionRepo.GetByID(ctx, claims.SessionID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(stored.RefreshTokenHash).To(gomega.Equal(HashRefreshToken(tokens.RefreshToken)))
		})

		ginkgo.It("should assign explicitly requested roles on top of the default", func() {
			dto := validDTO
			dto.Roles = []RoleRequestDTO{{RoleCode: "AUDITOR"}}

			tokens, err := service.Register(ctx, dto, device)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(resolver.assignments).To(gomega.ConsistOf("TRADER", "AUDITOR"))

			claims, err := gen.ValidateAccessToken(tokens.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.Roles).To(gomega.ConsistOf("TRADER", "AUDITOR"))
		})

		ginkgo.It("should reject a short password", func() {
			dto := validDTO
			dto.Password = "short"
			dto.PasswordConfirmation = "short"

			_, err := service.Register(ctx, dto, device)
			_, isAppErr := internal.IsAppError(err)
			gomega.Expect(isAppErr).To(gomega.BeTrue())
		})

		ginkgo.It("should reject a mismatched confirmation", func() {
			dto := validDTO
			dto.PasswordConfirmation = "something-else"

			_, err := service.Register(ctx, dto, device)
			_, isAppErr := internal.IsAppError(err)
			gomega.Expect(isAppErr).To(gomega.BeTrue())
		})

		ginkgo.It("should reject a duplicate email", func() {
			userRepo.seedUser("new@example.com", "whatever-pass", false)

			_, err := service.Register(ctx, validDTO, device)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrDuplicateEmail))
		})
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.BeforeEach(func() {
			userRepo.seedUser("t@example.com", "correct-horse", false)
		})

		ginkgo.It("should issue a token pair for valid credentials", func() {
			tokens, err := service.Authenticate(ctx, LoginDTO{Email: "t@example.com", Password: "correct-horse"}, device)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
			gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())
		})

		ginkgo.It("should return the same generic error for unknown email and wrong password", func() {
			_, unknownErr := service.Authenticate(ctx, LoginDTO{Email: "nobody@example.com", Password: "correct-horse"}, device)
			_, wrongErr := service.Authenticate(ctx, LoginDTO{Email: "t@example.com", Password: "wrong"}, device)

			gomega.Expect(unknownErr).To(gomega.MatchError(internal.ErrInvalidCredentials))
			gomega.Expect(wrongErr).To(gomega.MatchError(internal.ErrInvalidCredentials))
		})

		ginkgo.It("should short-circuit on two-factor before creating any session", func() {
			userRepo.seedUser("2fa@example.com", "correct-horse", true)

			_, err := service.Authenticate(ctx, LoginDTO{Email: "2fa@example.com", Password: "correct-horse"}, device)

			gomega.Expect(err).To(gomega.MatchError(internal.ErrTwoFactorRequired))
			gomega.Expect(sessionRepo.sessions).To(gomega.BeEmpty())
		})

		ginkgo.It("should embed direct-grant scopes in the access token", func() {
			cred, _ := userRepo.GetCredentialByEmail(ctx, "t@example.com")
			userRepo.setGrants(cred.UserID, "deny;api:iam:users:read;userId=9")

			tokens, err := service.Authenticate(ctx, LoginDTO{Email: "t@example.com", Password: "correct-horse"}, device)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			claims, err := gen.ValidateAccessToken(tokens.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.Scopes).To(gomega.ConsistOf("deny;api:iam:users:read;userId=9"))
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		var tokens AuthTokens

		ginkgo.BeforeEach(func() {
			userRepo.seedUser("t@example.com", "correct-horse", false)
			var err error
			tokens, err = service.Authenticate(ctx, LoginDTO{Email: "t@example.com", Password: "correct-horse"}, device)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should rotate the refresh token", func() {
			refreshed, err := service.RefreshTokens(ctx, tokens.RefreshToken, device)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(refreshed.RefreshToken).ToNot(gomega.Equal(tokens.RefreshToken))
		})

		ginkgo.It("should revoke the session when a pre-rotation token is replayed", func() {
			refreshed, err := service.RefreshTokens(ctx, tokens.RefreshToken, device)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// Replaying the old token is treated as theft
			_, err = service.RefreshTokens(ctx, tokens.RefreshToken, device)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSessionRevoked))

			// The whole session is dead, the rotated token included
			_, err = service.RefreshTokens(ctx, refreshed.RefreshToken, device)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSessionRevoked))
		})

		ginkgo.It("should reject an access token presented for refresh", func() {
			_, err := service.RefreshTokens(ctx, tokens.AccessToken, device)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
		})

		ginkgo.It("should pick up direct grants issued since login", func() {
			cred, _ := userRepo.GetCredentialByEmail(ctx, "t@example.com")
			userRepo.setGrants(cred.UserID, "allow;api:trading:orders:read")

			refreshed, err := service.RefreshTokens(ctx, tokens.RefreshToken, device)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			claims, err := gen.ValidateAccessToken(refreshed.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.Scopes).To(gomega.ConsistOf("allow;api:trading:orders:read"))
		})

		ginkgo.It("should fail after logout", func() {
			claims, err := gen.ValidateAccessToken(tokens.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(service.Logout(ctx, claims.SessionID)).To(gomega.Succeed())

			_, err = service.RefreshTokens(ctx, tokens.RefreshToken, device)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSessionRevoked))
		})
	})

	ginkgo.Describe("Authorize", func() {
		var (
			cred   *Credential
			claims *Claims
		)

		login := func() *Claims {
			tokens, err := service.Authenticate(ctx, LoginDTO{Email: "t@example.com", Password: "correct-horse"}, device)
			gomega.ExpectWithOffset(1, err).ToNot(gomega.HaveOccurred())
			c, err := gen.ValidateAccessToken(tokens.AccessToken)
			gomega.ExpectWithOffset(1, err).ToNot(gomega.HaveOccurred())
			return c
		}

		ginkgo.BeforeEach(func() {
			cred = userRepo.seedUser("t@example.com", "correct-horse", false)
			// READER expanded with roleUserId = T
			resolver.setDirectives(cred.UserID, mustDirective("allow;api:iam:users:read;userId=T"))
			claims = login()
		})

		ginkgo.It("should grant the parameterized path for the bound value", func() {
			decision, err := service.Authorize(ctx, claims, "api:iam:users:read", map[string]string{"userId": "T"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(decision.Allowed).To(gomega.BeTrue())
			gomega.Expect(decision.Matched).To(gomega.HaveLen(1))
		})

		ginkgo.It("should deny the same path for a different parameter value", func() {
			decision, err := service.Authorize(ctx, claims, "api:iam:users:read", map[string]string{"userId": "Z"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(decision.Allowed).To(gomega.BeFalse())
		})

		ginkgo.It("should see role edits on already-issued tokens", func() {
			// Given the role loses its template after the token was issued
			resolver.setDirectives(cred.UserID)

			decision, err := service.Authorize(ctx, claims, "api:iam:users:read", map[string]string{"userId": "T"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(decision.Allowed).To(gomega.BeFalse())
		})

		ginkgo.It("should not see direct grants issued after the token", func() {
			// A deny grant lands in storage, but the presented token predates it
			userRepo.setGrants(cred.UserID, "deny;api:iam:users:read;userId=T")

			decision, err := service.Authorize(ctx, claims, "api:iam:users:read", map[string]string{"userId": "T"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(decision.Allowed).To(gomega.BeTrue())
		})

		ginkgo.It("should apply a frozen deny grant after re-authentication", func() {
			userRepo.setGrants(cred.UserID, "deny;api:iam:users:read;userId=T")
			fresh := login()

			decision, err := service.Authorize(ctx, fresh, "api:iam:users:read", map[string]string{"userId": "T"})

			// Deny wins over the role's allow
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(decision.Allowed).To(gomega.BeFalse())
		})
	})
})
