package services

import (
	"context"
	"testing"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_IssueVerify(t *testing.T) {
	m := newTestSessions(t, newMemRevocations())
	user := &models.User{ID: "u1", Name: "Ann", Email: "ann@x.com"}

	token, err := m.Issue(user, &DelegatedTokens{AccessToken: "access-xyz", RefreshToken: "refresh-xyz"})
	require.NoError(t, err)
	assert.NotContains(t, token, "access-xyz")

	id, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "Ann", id.Name)
	assert.Equal(t, "ann@x.com", id.Email)
	assert.NotEmpty(t, id.TokenID)
	require.NotNil(t, id.Twitter)
	assert.Equal(t, "access-xyz", id.Twitter.AccessToken)
	assert.Equal(t, "refresh-xyz", id.Twitter.RefreshToken)
}

func TestSessionManager_NoDelegatedTokens(t *testing.T) {
	m := newTestSessions(t, nil)
	token, err := m.Issue(&models.User{ID: "u1"}, nil)
	require.NoError(t, err)

	id, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, id.Twitter)
}

func TestSessionManager_AbsoluteExpiry(t *testing.T) {
	m := newTestSessions(t, nil)
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	token, err := m.Issue(&models.User{ID: "u1"}, nil)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(m.TTL() - time.Minute) }
	_, err = m.Verify(context.Background(), token)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(m.TTL() + time.Second) }
	_, err = m.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestSessionManager_RejectsBadTokens(t *testing.T) {
	m := newTestSessions(t, nil)
	other := NewSessionManager("another-secret-another-secret-xx", "agentdesk-test", time.Hour, newTestSealer(t), nil)
	foreign, err := other.Issue(&models.User{ID: "u1"}, nil)
	require.NoError(t, err)

	wrongIssuer := NewSessionManager("0123456789abcdef0123456789abcdef", "someone-else", time.Hour, newTestSealer(t), nil)
	misissued, err := wrongIssuer.Issue(&models.User{ID: "u1"}, nil)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "agentdesk-test",
		ID:        "x",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"wrong secret": foreign,
		"wrong issuer": misissued,
		"alg none":     unsigned,
	} {
		_, err := m.Verify(context.Background(), token)
		require.Error(t, err, name)
		assert.Equal(t, KindUnauthorized, KindOf(err), name)
	}
}

func TestSessionManager_Revoke(t *testing.T) {
	revocations := newMemRevocations()
	m := newTestSessions(t, revocations)

	token, err := m.Issue(&models.User{ID: "u1"}, nil)
	require.NoError(t, err)
	id, err := m.Verify(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(context.Background(), id))

	_, err = m.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestSessionManager_RevocationStoreDown(t *testing.T) {
	revocations := newMemRevocations()
	revocations.err = errBoom
	m := newTestSessions(t, revocations)

	token, err := m.Issue(&models.User{ID: "u1"}, nil)
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
}
