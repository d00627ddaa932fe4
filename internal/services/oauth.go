package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/metrics"
	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/AnshRaj112/agentdesk-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	TwitterAuthURL  = "https://twitter.com/i/oauth2/authorize"
	TwitterTokenURL = "https://api.twitter.com/2/oauth2/token"

	// OAuthStateTTL bounds how long an authorization request may stay open.
	OAuthStateTTL = 10 * time.Minute
	// OAuthStateKeyPrefix is the Redis key prefix for pending link attempts.
	OAuthStateKeyPrefix = "oauth_state:"
)

// TwitterScopes are requested on every link attempt.
var TwitterScopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access"}

// LinkState is the per-attempt state of linking a Twitter account.
type LinkState string

const (
	LinkUnlinked               LinkState = "unlinked"
	LinkAuthorizationRequested LinkState = "authorization_requested"
	LinkExchanging             LinkState = "exchanging"
	LinkLinked                 LinkState = "linked"
)

// NewTwitterOAuthConfig builds the OAuth2 client configuration for Twitter.
func NewTwitterOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       TwitterScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   TwitterAuthURL,
			TokenURL:  TwitterTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// PendingLink is what the server remembers between redirect and callback.
type PendingLink struct {
	UserID    string    `json:"user_id"`
	Verifier  string    `json:"verifier"`
	CreatedAt time.Time `json:"created_at"`
}

// StateStore holds pending link attempts keyed by the OAuth state value.
// Consume must return a given state at most once; a missing or already
// consumed state yields (nil, nil).
type StateStore interface {
	Save(ctx context.Context, state string, link PendingLink, ttl time.Duration) error
	Consume(ctx context.Context, state string) (*PendingLink, error)
}

// RedisStateStore keeps pending links as expiring JSON values.
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Save(ctx context.Context, state string, link PendingLink, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, OAuthStateKeyPrefix+state, data, ttl).Err()
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (*PendingLink, error) {
	val, err := s.client.GetDel(ctx, OAuthStateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var link PendingLink
	if err := json.Unmarshal([]byte(val), &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// TokenVault seals delegated tokens onto user records and opens them again.
type TokenVault struct {
	users  UserStore
	sealer *utils.Sealer
}

func NewTokenVault(users UserStore, sealer *utils.Sealer) *TokenVault {
	return &TokenVault{users: users, sealer: sealer}
}

// Attach stores the pair on the user record (Linked state).
func (v *TokenVault) Attach(ctx context.Context, userID string, tw DelegatedTokens) (*models.User, error) {
	if tw.AccessToken == "" || tw.RefreshToken == "" {
		return nil, Validation("Both twitterToken and twitterRefreshToken are required")
	}
	access, err := v.sealer.Encrypt(tw.AccessToken)
	if err != nil {
		return nil, Internal("Failed to store tokens", err)
	}
	refresh, err := v.sealer.Encrypt(tw.RefreshToken)
	if err != nil {
		return nil, Internal("Failed to store tokens", err)
	}

	user, err := v.users.UpdateUser(ctx, userID, models.UserUpdate{
		TwitterTokenSealed:        &access,
		TwitterRefreshTokenSealed: &refresh,
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, Internal("Failed to store tokens", err)
	}
	return user, nil
}

// Open decrypts the pair stored on user.
func (v *TokenVault) Open(user *models.User) (*DelegatedTokens, error) {
	if !user.HasTwitterTokens() {
		return nil, ErrNotConnected
	}
	access, err := v.sealer.Decrypt(user.TwitterTokenSealed)
	if err != nil {
		return nil, err
	}
	refresh, err := v.sealer.Decrypt(user.TwitterRefreshTokenSealed)
	if err != nil {
		return nil, err
	}
	return &DelegatedTokens{AccessToken: access, RefreshToken: refresh}, nil
}

// Resolve returns the delegated tokens for a request. Refreshes rotate the
// pair on the user record, so the stored pair wins; the pair embedded in the
// session is used only when the record has none. Neither present is
// ErrNotConnected.
func (v *TokenVault) Resolve(ctx context.Context, id *Identity) (*DelegatedTokens, error) {
	session := id.Twitter
	if session != nil && session.AccessToken == "" {
		session = nil
	}

	user, err := v.users.GetUserByID(ctx, id.UserID)
	switch {
	case err == nil && user.HasTwitterTokens():
		tw, openErr := v.Open(user)
		if openErr == nil {
			return tw, nil
		}
		if session == nil {
			return nil, NewError(KindNotConnected, ErrNotConnected.Message, openErr)
		}
		slog.WarnContext(ctx, "stored twitter tokens unreadable, using session pair",
			slog.String("user_id", id.UserID), slog.String("error", openErr.Error()))
	case err != nil && !errors.Is(err, ErrUserNotFound):
		if session == nil {
			return nil, Internal("Failed to load user", err)
		}
		slog.WarnContext(ctx, "failed to load stored twitter tokens, using session pair",
			slog.String("user_id", id.UserID), slog.String("error", err.Error()))
	}

	if session != nil {
		return session, nil
	}
	return nil, ErrNotConnected
}

// TwitterAuth runs the OAuth2 authorization-code flow with PKCE against
// Twitter and the explicit refresh of a linked account.
type TwitterAuth struct {
	config  *oauth2.Config
	states  StateStore
	vault   *TokenVault
	metrics *metrics.Collector
	client  *http.Client

	refreshGroup singleflight.Group
}

func NewTwitterAuth(config *oauth2.Config, states StateStore, vault *TokenVault, client *http.Client, m *metrics.Collector) *TwitterAuth {
	return &TwitterAuth{
		config:  config,
		states:  states,
		vault:   vault,
		metrics: m,
		client:  client,
	}
}

// oauthContext makes the oauth2 package use a's HTTP client.
func (a *TwitterAuth) oauthContext(ctx context.Context) context.Context {
	if a.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.client)
}

// BeginLink moves Unlinked -> AuthorizationRequested and returns the provider
// URL the browser must visit.
func (a *TwitterAuth) BeginLink(ctx context.Context, userID string) (string, error) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	link := PendingLink{UserID: userID, Verifier: verifier, CreatedAt: time.Now().UTC()}
	if err := a.states.Save(ctx, state, link, OAuthStateTTL); err != nil {
		return "", Internal("Failed to start Twitter authorization", err)
	}
	a.metrics.RecordLinkTransition(string(LinkAuthorizationRequested))

	return a.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// CompleteExchange consumes state, exchanges code for a token pair and
// attaches it to the user who started the attempt. Any failure leaves the
// attempt Unlinked.
func (a *TwitterAuth) CompleteExchange(ctx context.Context, state, code string) (*models.User, *DelegatedTokens, error) {
	if state == "" || code == "" {
		a.metrics.RecordLinkTransition(string(LinkUnlinked))
		return nil, nil, Validation("Missing authorization code or state")
	}

	link, err := a.states.Consume(ctx, state)
	if err != nil {
		a.metrics.RecordLinkTransition(string(LinkUnlinked))
		return nil, nil, Internal("Failed to load authorization state", err)
	}
	if link == nil {
		a.metrics.RecordLinkTransition(string(LinkUnlinked))
		return nil, nil, Validation("Authorization request expired or already used")
	}
	a.metrics.RecordLinkTransition(string(LinkExchanging))

	start := time.Now()
	tok, err := a.config.Exchange(a.oauthContext(ctx), code, oauth2.VerifierOption(link.Verifier))
	a.metrics.RecordUpstream("twitter_oauth", err, time.Since(start))
	if err != nil {
		a.metrics.RecordLinkTransition(string(LinkUnlinked))
		return nil, nil, Upstream("Twitter authorization failed", err)
	}
	if tok.RefreshToken == "" {
		a.metrics.RecordLinkTransition(string(LinkUnlinked))
		return nil, nil, Upstream("Twitter did not return a refresh token", nil)
	}

	tw := &DelegatedTokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	user, err := a.vault.Attach(ctx, link.UserID, *tw)
	if err != nil {
		a.metrics.RecordLinkTransition(string(LinkUnlinked))
		return nil, nil, err
	}

	a.metrics.RecordLinkTransition(string(LinkLinked))
	slog.InfoContext(ctx, "twitter account linked", slog.String("user_id", link.UserID))
	return user, tw, nil
}

// Refresh trades the current refresh token for a new pair. Twitter rotates
// refresh tokens, so the pair comes from the user record when it has one and
// concurrent refreshes for one user share a single exchange.
// A rejected refresh token means the user has to link again.
func (a *TwitterAuth) Refresh(ctx context.Context, id *Identity) (*models.User, *DelegatedTokens, error) {
	type result struct {
		user *models.User
		tw   *DelegatedTokens
	}
	v, err, _ := a.refreshGroup.Do(id.UserID, func() (interface{}, error) {
		// Resolved inside the group so a refresh that follows another one
		// starts from the pair it stored.
		current, err := a.vault.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		src := a.config.TokenSource(a.oauthContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
		tok, err := src.Token()
		a.metrics.RecordUpstream("twitter_oauth", err, time.Since(start))
		if err != nil {
			return nil, NewError(KindNotConnected, "Twitter session expired. Please reconnect your account.", err)
		}

		tw := &DelegatedTokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
		if tw.RefreshToken == "" {
			tw.RefreshToken = current.RefreshToken
		}
		user, err := a.vault.Attach(ctx, id.UserID, *tw)
		if err != nil {
			return nil, err
		}
		return result{user: user, tw: tw}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	r := v.(result)
	return r.user, r.tw, nil
}
