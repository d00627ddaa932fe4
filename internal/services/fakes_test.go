package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/AnshRaj112/agentdesk-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*models.User)}
}

func (s *memUserStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memUserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) UpdateUser(ctx context.Context, id string, update models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if update.Email != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Email == *update.Email {
				return nil, ErrDuplicateEmail
			}
		}
		u.Email = *update.Email
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Password != nil {
		u.Password = *update.Password
	}
	if update.AvatarURL != nil {
		u.AvatarURL = *update.AvatarURL
	}
	if update.TwitterTokenSealed != nil {
		u.TwitterTokenSealed = *update.TwitterTokenSealed
	}
	if update.TwitterRefreshTokenSealed != nil {
		u.TwitterRefreshTokenSealed = *update.TwitterRefreshTokenSealed
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (s *memUserStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

type memActivityStore struct {
	mu   sync.Mutex
	list []models.Activity
	err  error
}

func (s *memActivityStore) InsertActivity(ctx context.Context, a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	a.ID = fmt.Sprintf("act-%d", len(s.list)+1)
	s.list = append(s.list, *a)
	return nil
}

func (s *memActivityStore) RecentActivities(ctx context.Context, userID string, limit int64) ([]models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Activity
	for _, a := range s.list {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memActivityStore) all() []models.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Activity(nil), s.list...)
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newMemRevocations() *memRevocations {
	return &memRevocations{revoked: make(map[string]time.Time)}
}

func (r *memRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = until
	return nil
}

func (r *memRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[tokenID]
	return ok, nil
}

type memStateStore struct {
	mu    sync.Mutex
	links map[string]PendingLink
}

func newMemStateStore() *memStateStore {
	return &memStateStore{links: make(map[string]PendingLink)}
}

func (s *memStateStore) Save(ctx context.Context, state string, link PendingLink, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[state] = link
	return nil
}

func (s *memStateStore) Consume(ctx context.Context, state string) (*PendingLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[state]
	if !ok {
		return nil, nil
	}
	delete(s.links, state)
	return &link, nil
}

type fakeGenerator struct {
	out        string
	err        error
	calls      int
	lastPrompt string
	lastParams GenerationParams
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	g.calls++
	g.lastPrompt = prompt
	g.lastParams = params
	if g.err != nil {
		return "", g.err
	}
	return g.out, nil
}

type postCall struct {
	token   string
	text    string
	replyTo string
}

// fakeTwitterAPI fails the failAt-th PostTweet call (1-based) with failErr.
type fakeTwitterAPI struct {
	mu      sync.Mutex
	posts   []postCall
	failAt  int
	failErr error
	meCalls int
	me      *TwitterUser
	meErr   error
}

func (f *fakeTwitterAPI) PostTweet(ctx context.Context, accessToken, text, replyTo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, postCall{token: accessToken, text: text, replyTo: replyTo})
	if f.failAt == len(f.posts) {
		return "", f.failErr
	}
	return fmt.Sprintf("tweet-%d", len(f.posts)), nil
}

func (f *fakeTwitterAPI) Me(ctx context.Context, accessToken string) (*TwitterUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.me, nil
}

type fakeTranscripts struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscripts) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeMetadata struct {
	title string
	err   error
}

func (f *fakeMetadata) VideoTitle(ctx context.Context, videoID string) (string, error) {
	return f.title, f.err
}

type memTranscriptCache struct {
	m map[string]string
}

func (c *memTranscriptCache) GetTranscript(ctx context.Context, videoID string) (string, bool, error) {
	t, ok := c.m[videoID]
	return t, ok, nil
}

func (c *memTranscriptCache) SetTranscript(ctx context.Context, videoID, transcript string) error {
	c.m[videoID] = transcript
	return nil
}

var errBoom = errors.New("boom")

func newTestSealer(t *testing.T) *utils.Sealer {
	t.Helper()
	s, err := utils.NewSealer(utils.DeriveKey("test-secret"))
	require.NoError(t, err)
	return s
}

func newTestSessions(t *testing.T, revocations RevocationStore) *SessionManager {
	t.Helper()
	return NewSessionManager("0123456789abcdef0123456789abcdef", "agentdesk-test", time.Hour, newTestSealer(t), revocations)
}

// seedUser stores a user directly, bypassing password hashing.
func seedUser(t *testing.T, store *memUserStore, email string) *models.User {
	t.Helper()
	u := &models.User{Name: "Ann", Email: email, Password: "unused"}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}
