package services

import (
	"context"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
)

// UserStore persists User records. Email uniqueness is enforced by the
// backing store (unique index or constraint); CreateUser and UpdateUser
// report a violation as ErrDuplicateEmail.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, update models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// ActivityStore persists Activity records. Records are append-only.
type ActivityStore interface {
	InsertActivity(ctx context.Context, activity *models.Activity) error
	RecentActivities(ctx context.Context, userID string, limit int64) ([]models.Activity, error)
}

// IndexEnsurer is implemented by stores that need indexes created at startup.
type IndexEnsurer interface {
	EnsureIndexes(ctx context.Context) error
}
