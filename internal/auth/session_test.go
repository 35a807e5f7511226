package auth

import (
	"context"
	"sync"
	"time"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// Mock SessionRepositoryAPI for testing
type mockSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{sessions: make(map[string]*Session)}
}

func (m *mockSessionRepository) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.sessions[s.ID] = &clone
	return nil
}

func (m *mockSessionRepository) GetByID(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, internal.ErrSessionNotFound
}

func (m *mockSessionRepository) Update(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return internal.ErrSessionNotFound
	}
	clone := *s
	m.sessions[s.ID] = &clone
	return nil
}

func (m *mockSessionRepository) ListForUser(_ context.Context, userID int64) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSessionRepository) RevokeAllForUser(_ context.Context, userID int64, exceptID string, revokedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, s := range m.sessions {
		if s.UserID != userID || s.ID == exceptID || s.RevokedAt != nil {
			continue
		}
		at := revokedAt
		s.RevokedAt = &at
		count++
	}
	return count, nil
}

func (m *mockSessionRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(before) {
			delete(m.sessions, id)
			count++
		}
	}
	return count, nil
}

var _ = ginkgo.Describe("SessionService", func() {
	var (
		service  *SessionService
		mockRepo *mockSessionRepository
		ctx      context.Context
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockSessionRepository()
		service = NewSessionService(mockRepo, nil, testLogger())
		ctx = context.Background()
	})

	createSession := func(token string) *Session {
		session, err := service.CreateSession(ctx, NewSessionID(), 7, token,
			time.Now().Add(time.Hour), DeviceInfo{UserAgent: "test", IPAddress: "127.0.0.1"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		return session
	}

	ginkgo.Describe("CreateSession", func() {
		ginkgo.It("should store a hash, never the token itself", func() {
			session := createSession("refresh-token-plaintext")

			stored, err := mockRepo.GetByID(ctx, session.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(stored.RefreshTokenHash).ToNot(gomega.ContainSubstring("refresh-token-plaintext"))
			gomega.Expect(stored.RefreshTokenHash).To(gomega.Equal(HashRefreshToken("refresh-token-plaintext")))
		})
	})

	ginkgo.Describe("ValidateSession", func() {
		ginkgo.It("should return the session for a matching token", func() {
			session := createSession("token-a")

			validated, err := service.ValidateSession(ctx, session.ID, "token-a")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(validated.ID).To(gomega.Equal(session.ID))
		})

		ginkgo.It("should revoke the session on a hash mismatch", func() {
			// Given a live session
			session := createSession("token-a")

			// When a different token is presented
			_, err := service.ValidateSession(ctx, session.ID, "token-b")

			// Then validation fails and the session is dead for good
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSessionRevoked))

			_, err = service.ValidateSession(ctx, session.ID, "token-a")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSessionRevoked))
		})

		ginkgo.It("should reject a revoked session", func() {
			session := createSession("token-a")
			gomega.Expect(service.Revoke(ctx, session.ID)).To(gomega.Succeed())

			_, err := service.ValidateSession(ctx, session.ID, "token-a")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSessionRevoked))
		})

		ginkgo.It("should reject an expired session", func() {
			session, err := service.CreateSession(ctx, NewSessionID(), 7, "token-a",
				time.Now().Add(-time.Minute), DeviceInfo{})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.ValidateSession(ctx, session.ID, "token-a")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrTokenExpired))
		})

		ginkgo.It("should reject an unknown session", func() {
			_, err := service.ValidateSession(ctx, "nope", "token-a")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSessionNotFound))
		})
	})

	ginkgo.Describe("RotateRefreshToken", func() {
		ginkgo.It("should invalidate the previous token", func() {
			session := createSession("token-old")

			err := service.RotateRefreshToken(ctx, session.ID, "token-new", time.Now().Add(2*time.Hour))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// New token validates
			_, err = service.ValidateSession(ctx, session.ID, "token-new")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// Old token is treated as theft and kills the session
			_, err = service.ValidateSession(ctx, session.ID, "token-old")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSessionRevoked))
		})

		ginkgo.It("should refuse to rotate a revoked session", func() {
			session := createSession("token-a")
			gomega.Expect(service.Revoke(ctx, session.ID)).To(gomega.Succeed())

			err := service.RotateRefreshToken(ctx, session.ID, "token-b", time.Now().Add(time.Hour))
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSessionRevoked))
		})
	})

	ginkgo.Describe("Revoke", func() {
		ginkgo.It("should be idempotent", func() {
			session := createSession("token-a")

			gomega.Expect(service.Revoke(ctx, session.ID)).To(gomega.Succeed())
			gomega.Expect(service.Revoke(ctx, session.ID)).To(gomega.Succeed())
		})

		ginkgo.It("should report an unknown session", func() {
			gomega.Expect(service.Revoke(ctx, "nope")).To(gomega.MatchError(internal.ErrSessionNotFound))
		})
	})

	ginkgo.Describe("RevokeAllExcept", func() {
		ginkgo.It("should keep only the named session alive", func() {
			keep := createSession("token-keep")
			createSession("token-b")
			createSession("token-c")

			count, err := service.RevokeAllExcept(ctx, 7, keep.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(count).To(gomega.Equal(int64(2)))

			_, err = service.ValidateSession(ctx, keep.ID, "token-keep")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("DeleteExpired", func() {
		ginkgo.It("should remove only sessions past expiry", func() {
			live := createSession("token-live")
			expired, err := service.CreateSession(ctx, NewSessionID(), 7, "token-dead",
				time.Now().Add(-time.Hour), DeviceInfo{})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			count, err := service.DeleteExpired(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(count).To(gomega.Equal(int64(1)))

			_, err = mockRepo.GetByID(ctx, expired.ID)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSessionNotFound))
			_, err = mockRepo.GetByID(ctx, live.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})
	})
})
