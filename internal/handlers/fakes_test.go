package handlers_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/AnshRaj112/agentdesk-backend/internal/services"
	"github.com/google/uuid"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (s *memUsers) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return services.ErrDuplicateEmail
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	s.users[u.ID] = *u
	return nil
}

func (s *memUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, services.ErrUserNotFound
}

func (s *memUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	return &u, nil
}

func (s *memUsers) UpdateUser(ctx context.Context, id string, up models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	if up.Email != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Email == *up.Email {
				return nil, services.ErrDuplicateEmail
			}
		}
		u.Email = *up.Email
	}
	if up.Name != nil {
		u.Name = *up.Name
	}
	if up.Password != nil {
		u.Password = *up.Password
	}
	if up.AvatarURL != nil {
		u.AvatarURL = *up.AvatarURL
	}
	if up.TwitterTokenSealed != nil {
		u.TwitterTokenSealed = *up.TwitterTokenSealed
	}
	if up.TwitterRefreshTokenSealed != nil {
		u.TwitterRefreshTokenSealed = *up.TwitterRefreshTokenSealed
	}
	s.users[id] = u
	return &u, nil
}

func (s *memUsers) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return services.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

type memActivities struct {
	mu   sync.Mutex
	list []models.Activity
}

func (s *memActivities) InsertActivity(ctx context.Context, a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = fmt.Sprintf("act-%d", len(s.list)+1)
	s.list = append(s.list, *a)
	return nil
}

func (s *memActivities) RecentActivities(ctx context.Context, userID string, limit int64) ([]models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Activity
	for i := len(s.list) - 1; i >= 0; i-- {
		if s.list[i].UserID == userID {
			out = append(out, s.list[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (r *memRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = true
	return nil
}

func (r *memRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked[tokenID], nil
}

type stubGenerator struct {
	out string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string, params services.GenerationParams) (string, error) {
	return g.out, nil
}

// stubTwitter fails the failAt-th post (1-based) with failErr.
type stubTwitter struct {
	mu      sync.Mutex
	posts   int
	failAt  int
	failErr error
}

func (s *stubTwitter) PostTweet(ctx context.Context, accessToken, text, replyTo string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts++
	if s.posts == s.failAt {
		return "", s.failErr
	}
	return fmt.Sprintf("t-%d", s.posts), nil
}

func (s *stubTwitter) Me(ctx context.Context, accessToken string) (*services.TwitterUser, error) {
	return &services.TwitterUser{ID: "1", Username: "ann"}, nil
}

type stubAvatars struct{}

func (stubAvatars) UploadAvatar(ctx context.Context, userID string, file io.Reader) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://cdn.example/%s-%d.png", userID, len(data)), nil
}
