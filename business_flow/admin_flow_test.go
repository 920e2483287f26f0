package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/linktum-io/linktum/app/dto"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/utils"
)

type mockAdminRepo struct {
	byUsernameFunc      func(ctx context.Context, username string) (*models.Admin, error)
	updateLastLoginFunc func(ctx context.Context, id uint, at time.Time) error
}

func (m *mockAdminRepo) ByID(ctx context.Context, id uint) (*models.Admin, error) { return nil, nil }
func (m *mockAdminRepo) Save(ctx context.Context, entity *models.Admin) error     { return nil }
func (m *mockAdminRepo) SaveBatch(ctx context.Context, entities []*models.Admin) error {
	return nil
}
func (m *mockAdminRepo) ByUsername(ctx context.Context, username string) (*models.Admin, error) {
	return m.byUsernameFunc(ctx, username)
}
func (m *mockAdminRepo) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	if m.updateLastLoginFunc == nil {
		return nil
	}
	return m.updateLastLoginFunc(ctx, id, at)
}

type staticTokenIssuer struct{ token string }

func (s staticTokenIssuer) Issue(adminID uint, username string, ttl time.Duration) (string, error) {
	return s.token, nil
}

func testAdmin(t *testing.T, password string, active bool) *models.Admin {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.Admin{
		ID:           1,
		Username:     "operator",
		PasswordHash: string(hash),
		IsActive:     utils.ToPtr(active),
	}
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()
	admin := testAdmin(t, "correct horse", true)

	adminRepo := &mockAdminRepo{
		byUsernameFunc: func(ctx context.Context, username string) (*models.Admin, error) {
			if username == "operator" {
				return admin, nil
			}
			return nil, nil
		},
	}
	flow := NewAdminFlow(adminRepo, staticTokenIssuer{token: "signed-token"})

	resp, err := flow.Login(ctx, &dto.AdminLoginRequest{Username: "operator", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "operator", resp.Admin.Username)
	assert.Equal(t, "signed-token", resp.Session.AccessToken)
	assert.Equal(t, "Bearer", resp.Session.TokenType)
	assert.Equal(t, int(utils.AdminAccessTokenTTL.Seconds()), resp.Session.ExpiresIn)

	t.Run("wrong password", func(t *testing.T) {
		_, err := flow.Login(ctx, &dto.AdminLoginRequest{Username: "operator", Password: "wrong"})
		require.Error(t, err)
		assert.True(t, IsIncorrectPassword(err))
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := flow.Login(ctx, &dto.AdminLoginRequest{Username: "ghost", Password: "whatever"})
		require.Error(t, err)
		assert.True(t, IsAdminNotFound(err))
	})
}

func TestAdminLoginInactive(t *testing.T) {
	admin := testAdmin(t, "correct horse", false)
	adminRepo := &mockAdminRepo{
		byUsernameFunc: func(ctx context.Context, username string) (*models.Admin, error) {
			return admin, nil
		},
	}
	flow := NewAdminFlow(adminRepo, staticTokenIssuer{token: "t"})

	_, err := flow.Login(context.Background(), &dto.AdminLoginRequest{Username: "operator", Password: "correct horse"})
	require.Error(t, err)
	assert.True(t, IsAdminInactive(err))
}
