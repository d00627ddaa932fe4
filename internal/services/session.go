package services

import (
	"context"
	"errors"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/AnshRaj112/agentdesk-backend/pkg/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultSessionTTL is the absolute session lifetime (30 days).
	DefaultSessionTTL = 30 * 24 * time.Hour
	// RevokedSessionKeyPrefix is the Redis key prefix for signed-out token ids.
	RevokedSessionKeyPrefix = "session_revoked:"
)

// DelegatedTokens is a Twitter OAuth2 access/refresh token pair.
type DelegatedTokens struct {
	AccessToken  string
	RefreshToken string
}

// Identity is the request-scoped view of a verified session token.
type Identity struct {
	UserID    string
	Name      string
	Email     string
	Twitter   *DelegatedTokens
	TokenID   string
	ExpiresAt time.Time
}

// sessionClaims is the JWT payload. Delegated tokens are sealed with
// AES-GCM so the bearer string never exposes them in clear text.
type sessionClaims struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	TwitterToken        string `json:"twitterToken,omitempty"`
	TwitterRefreshToken string `json:"twitterRefreshToken,omitempty"`
	jwt.RegisteredClaims
}

// RevocationStore remembers signed-out token ids until they would have expired.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// SessionManager issues and verifies HS256 session tokens.
type SessionManager struct {
	secret      []byte
	issuer      string
	ttl         time.Duration
	sealer      *utils.Sealer
	revocations RevocationStore
	now         func() time.Time
}

func NewSessionManager(secret, issuer string, ttl time.Duration, sealer *utils.Sealer, revocations RevocationStore) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		secret:      []byte(secret),
		issuer:      issuer,
		ttl:         ttl,
		sealer:      sealer,
		revocations: revocations,
		now:         time.Now,
	}
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Issue creates a new session token for user. A non-nil tw embeds the
// delegated token pair; the token is never mutated afterwards, linking
// issues a fresh one that supersedes it.
func (m *SessionManager) Issue(user *models.User, tw *DelegatedTokens) (string, error) {
	now := m.now().UTC()
	claims := sessionClaims{
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	if tw != nil && tw.AccessToken != "" {
		var err error
		if claims.TwitterToken, err = m.sealer.Encrypt(tw.AccessToken); err != nil {
			return "", err
		}
		if claims.TwitterRefreshToken, err = m.sealer.Encrypt(tw.RefreshToken); err != nil {
			return "", err
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks signature, issuer and expiry, then the sign-out denylist.
// Every token problem is reported as KindUnauthorized.
func (m *SessionManager) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrUnauthorized
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, NewError(KindUnauthorized, ErrTokenInvalid.Message, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, Internal("Session check unavailable", err)
		}
		if revoked {
			return nil, ErrTokenInvalid
		}
	}

	id := &Identity{
		UserID:    claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if claims.TwitterToken != "" {
		access, err := m.sealer.Decrypt(claims.TwitterToken)
		if err != nil {
			return nil, NewError(KindUnauthorized, ErrTokenInvalid.Message, err)
		}
		refresh, err := m.sealer.Decrypt(claims.TwitterRefreshToken)
		if err != nil {
			return nil, NewError(KindUnauthorized, ErrTokenInvalid.Message, err)
		}
		id.Twitter = &DelegatedTokens{AccessToken: access, RefreshToken: refresh}
	}
	return id, nil
}

// Revoke signs the identity's token out until its natural expiry.
func (m *SessionManager) Revoke(ctx context.Context, id *Identity) error {
	if m.revocations == nil {
		return errors.New("session revocation not configured")
	}
	return m.revocations.Revoke(ctx, id.TokenID, id.ExpiresAt)
}

// RedisRevocationStore keeps revoked token ids as expiring Redis keys.
type RedisRevocationStore struct {
	client *redis.Client
}

func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, RevokedSessionKeyPrefix+tokenID, "1", ttl).Err()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, RevokedSessionKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
