package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/AnshRaj112/agentdesk-backend/pkg/utils"
)

// CredentialService registers users and exchanges email/password for a
// session token.
type CredentialService struct {
	users    UserStore
	sessions *SessionManager
	tokens   *TokenVault

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialService(users UserStore, sessions *SessionManager, tokens *TokenVault) *CredentialService {
	return &CredentialService{users: users, sessions: sessions, tokens: tokens}
}

// Register creates exactly one user or none. The lookup is a fast path only;
// a concurrent insert of the same email is rejected by the store's unique
// index and surfaces as ErrDuplicateEmail too.
func (s *CredentialService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if err := utils.ValidateName(name); err != nil {
		return nil, Validation(err.Error())
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, Validation(err.Error())
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, Validation(err.Error())
	}
	email = utils.NormalizeEmail(email)

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, Internal("Failed to check existing user", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, Internal("Failed to process password", err)
	}

	user := &models.User{Name: name, Email: email, Password: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, Internal("Failed to create user", err)
	}

	slog.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password are indistinguishable to the caller. Tokens previously
// linked to the account are embedded in the new session.
func (s *CredentialService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", nil, Validation("Email and password are required")
	}
	email = utils.NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Spend the same hashing time as a real check.
			_, _ = utils.VerifyPassword(password, s.placeholderHash())
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, Internal("Failed to look up user", err)
	}

	ok, err := utils.VerifyPassword(password, user.Password)
	if err != nil {
		slog.ErrorContext(ctx, "stored password hash unreadable",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return "", nil, ErrInvalidCredentials
	}
	if !ok {
		return "", nil, ErrInvalidCredentials
	}

	// Upgrade legacy bcrypt hashes on successful login.
	if utils.IsLegacyHash(user.Password) {
		if hash, err := utils.HashPassword(password); err == nil {
			if _, err := s.users.UpdateUser(ctx, user.ID, models.UserUpdate{Password: &hash}); err != nil {
				slog.WarnContext(ctx, "password rehash failed", slog.String("user_id", user.ID), slog.String("error", err.Error()))
			}
		}
	}

	token, err := s.IssueFor(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// IssueFor issues a session token for user, embedding any stored Twitter tokens.
func (s *CredentialService) IssueFor(user *models.User) (string, error) {
	var tw *DelegatedTokens
	if s.tokens != nil && user.HasTwitterTokens() {
		opened, err := s.tokens.Open(user)
		if err != nil {
			slog.Warn("stored twitter tokens unreadable", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		} else {
			tw = opened
		}
	}
	token, err := s.sessions.Issue(user, tw)
	if err != nil {
		return "", Internal("Failed to issue session", err)
	}
	return token, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *CredentialService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" {
		return Validation("Current password is required")
	}
	if err := utils.ValidatePassword(next); err != nil {
		return Validation(err.Error())
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return Internal("Failed to load user", err)
	}

	ok, err := utils.VerifyPassword(current, user.Password)
	if err != nil || !ok {
		return Validation("Current password is incorrect")
	}

	hash, err := utils.HashPassword(next)
	if err != nil {
		return Internal("Failed to process password", err)
	}
	if _, err := s.users.UpdateUser(ctx, userID, models.UserUpdate{Password: &hash}); err != nil {
		return Internal("Failed to update password", err)
	}
	return nil
}

// UpdateProfile changes name and/or email. A taken email is ErrDuplicateEmail.
func (s *CredentialService) UpdateProfile(ctx context.Context, userID string, name, email *string) (*models.User, error) {
	var update models.UserUpdate
	if name != nil {
		n := strings.TrimSpace(*name)
		if err := utils.ValidateName(n); err != nil {
			return nil, Validation(err.Error())
		}
		update.Name = &n
	}
	if email != nil {
		if err := utils.ValidateEmail(*email); err != nil {
			return nil, Validation(err.Error())
		}
		e := utils.NormalizeEmail(*email)
		update.Email = &e
	}
	if update.Name == nil && update.Email == nil {
		return nil, Validation("Name or email is required")
	}

	user, err := s.users.UpdateUser(ctx, userID, update)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return nil, Validation("Email is already in use")
		case errors.Is(err, ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, Internal("Failed to update profile", err)
	}
	return user, nil
}

// Profile loads the current user record.
func (s *CredentialService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, Internal("Failed to load user", err)
	}
	return user, nil
}

// SetAvatar stores the URL of an uploaded avatar.
func (s *CredentialService) SetAvatar(ctx context.Context, userID, url string) (*models.User, error) {
	user, err := s.users.UpdateUser(ctx, userID, models.UserUpdate{AvatarURL: &url})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, Internal("Failed to update avatar", err)
	}
	return user, nil
}

// DeleteAccount removes the user record and signs the current session out.
// Activity records keep their weak reference and are not touched.
func (s *CredentialService) DeleteAccount(ctx context.Context, id *Identity) error {
	if err := s.users.DeleteUser(ctx, id.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return Internal("Failed to delete account", err)
	}
	if err := s.sessions.Revoke(ctx, id); err != nil {
		slog.WarnContext(ctx, "session not revoked after account deletion",
			slog.String("user_id", id.UserID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (s *CredentialService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = utils.HashPassword("placeholder-password")
	})
	return s.dummyHash
}
