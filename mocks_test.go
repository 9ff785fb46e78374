package auth_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/nestledger/auth"
)

// testIdentity is a plain Identity stub
type testIdentity struct {
	id        string
	email     string
	role      string
	firstName string
	lastName  string
}

func (i testIdentity) ID() string        { return i.id }
func (i testIdentity) Email() string     { return i.email }
func (i testIdentity) Role() string      { return i.role }
func (i testIdentity) FirstName() string { return i.firstName }
func (i testIdentity) LastName() string  { return i.lastName }

func newTestIdentity() testIdentity {
	return testIdentity{
		id:    uuid.NewString(),
		email: "pepe.rone@example.com",
		role:  auth.RoleUser,
	}
}

// MockIdentityProvider implements auth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, email, password string) (auth.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(auth.Identity), args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByID(ctx context.Context, id string) (auth.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(auth.Identity), args.Error(1)
}

// MockSessionStore implements auth.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Record(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, refreshToken, expiresAt)
	return args.Error(0)
}

func (m *MockSessionStore) IsActive(ctx context.Context, refreshToken string) (auth.Identity, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(auth.Identity), args.Error(1)
}

func (m *MockSessionStore) Revoke(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockSessionStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
