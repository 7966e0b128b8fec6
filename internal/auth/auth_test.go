package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "routeaudit/pkg/domain-errors"
)

func testService() *Service {
	return New(Credentials{
		LoginUser:     "operator",
		LoginPassword: "operator-pass",
		AdminPassword: "admin-pass",
	}, "test-signing-key", time.Hour)
}

func TestVerifyLogin(t *testing.T) {
	svc := testService()
	assert.True(t, svc.VerifyLogin("operator", "operator-pass"))
	assert.False(t, svc.VerifyLogin("operator", "wrong"))
	assert.False(t, svc.VerifyLogin("someone", "operator-pass"))
}

func TestEmptyConfiguredCredentialsNeverMatch(t *testing.T) {
	svc := New(Credentials{}, "key", time.Hour)
	assert.False(t, svc.VerifyLogin("", ""))
	assert.False(t, svc.VerifyAdmin(""))
}

func TestLoginRoundTrip(t *testing.T) {
	svc := testService()
	token, err := svc.Login("operator", "operator-pass")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.User)
	assert.False(t, claims.Admin)
	assert.NotEmpty(t, claims.SessionID)
}

func TestLoginRejected(t *testing.T) {
	svc := testService()
	_, err := svc.Login("operator", "wrong")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestElevatePreservesSession(t *testing.T) {
	svc := testService()
	token, err := svc.Login("operator", "operator-pass")
	require.NoError(t, err)
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)

	adminToken, err := svc.Elevate(claims, "admin-pass")
	require.NoError(t, err)
	adminClaims, err := svc.ValidateToken(adminToken)
	require.NoError(t, err)

	assert.True(t, adminClaims.Admin)
	assert.Equal(t, claims.SessionID, adminClaims.SessionID, "elevation keeps the workflow session")

	_, err = svc.Elevate(claims, "wrong")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestExpiredTokenRejected(t *testing.T) {
	now := time.Now()
	svc := testService().WithClock(func() time.Time { return now })
	token, err := svc.Login("operator", "operator-pass")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestTamperedTokenRejected(t *testing.T) {
	svc := testService()
	token, err := svc.Login("operator", "operator-pass")
	require.NoError(t, err)

	other := New(Credentials{LoginUser: "operator", LoginPassword: "operator-pass"}, "different-key", time.Hour)
	_, err = other.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
