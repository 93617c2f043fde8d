package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAuthService_IssueAndValidate(t *testing.T) {
	svc, err := NewAuthService(testSecret, time.Hour)
	require.NoError(t, err)

	issued, err := svc.IssueToken(" ops@example.com ", "Operator", 0)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", issued.TokenType)
	assert.Equal(t, int64(3600), issued.ExpiresIn)

	claims, err := svc.ValidateToken(issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.UserID)
	assert.Equal(t, model.RoleOperator, claims.Role)
	assert.NotEmpty(t, claims.TokenID)
}

func TestAuthService_IssueRejectsBadInput(t *testing.T) {
	svc, err := NewAuthService(testSecret, time.Hour)
	require.NoError(t, err)

	_, err = svc.IssueToken("ops@example.com", "admin", 0)
	assert.Error(t, err)

	_, err = svc.IssueToken("  ", model.RoleViewer, 0)
	assert.Error(t, err)
}

func TestAuthService_ValidateRejects(t *testing.T) {
	svc, err := NewAuthService(testSecret, time.Hour)
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		other, err := NewAuthService("fedcba9876543210fedcba9876543210", time.Hour)
		require.NoError(t, err)
		issued, err := other.IssueToken("ops@example.com", model.RoleViewer, 0)
		require.NoError(t, err)

		_, err = svc.ValidateToken(issued.AccessToken)
		assert.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		issued, err := svc.IssueToken("ops@example.com", model.RoleViewer, time.Minute)
		require.NoError(t, err)

		later := *svc
		later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err = later.ValidateToken(issued.AccessToken)
		assert.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, model.ErrUnauthorized)
	})
}

func TestNewAuthService_RequiresSecret(t *testing.T) {
	_, err := NewAuthService(" ", time.Hour)
	assert.Error(t, err)
}
