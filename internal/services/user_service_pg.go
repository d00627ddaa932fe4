package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const userColumns = `id, created_at, updated_at, name, email, password_hash, avatar_url,
	twitter_token_sealed, twitter_refresh_token_sealed`

// PostgresUserStore keeps users in the users table (see migrations).
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u                      models.User
		avatar, token, refresh sql.NullString
	)
	err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Name, &u.Email, &u.Password,
		&avatar, &token, &refresh)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.AvatarURL = avatar.String
	u.TwitterTokenSealed = token.String
	u.TwitterRefreshTokenSealed = refresh.String
	return &u, nil
}

func (s *PostgresUserStore) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, created_at, updated_at, name, email, password_hash)
		VALUES ($1, $2, $2, $3, $4, $5)
	`, id, now, user.Name, user.Email, user.Password)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (s *PostgresUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *PostgresUserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PostgresUserStore) UpdateUser(ctx context.Context, id string, update models.UserUpdate) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}

	// NULL parameters keep the current column value.
	row := s.db.QueryRowContext(ctx, `
		UPDATE users SET
			updated_at = $2,
			name = COALESCE($3, name),
			email = COALESCE($4, email),
			password_hash = COALESCE($5, password_hash),
			avatar_url = COALESCE($6, avatar_url),
			twitter_token_sealed = COALESCE($7, twitter_token_sealed),
			twitter_refresh_token_sealed = COALESCE($8, twitter_refresh_token_sealed)
		WHERE id = $1
		RETURNING `+userColumns,
		id, time.Now().UTC(), update.Name, update.Email, update.Password, update.AvatarURL,
		update.TwitterTokenSealed, update.TwitterRefreshTokenSealed)

	u, err := scanUser(row)
	if err != nil && isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	return u, err
}

func (s *PostgresUserStore) DeleteUser(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrUserNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// PostgresActivityStore keeps activities in the activities table.
type PostgresActivityStore struct {
	db *sql.DB
}

func NewPostgresActivityStore(db *sql.DB) *PostgresActivityStore {
	return &PostgresActivityStore{db: db}
}

func (s *PostgresActivityStore) InsertActivity(ctx context.Context, a *models.Activity) error {
	meta := a.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activities (id, user_id, type, title, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, a.UserID, string(a.Type), a.Title, a.Content, metaJSON, a.CreatedAt)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (s *PostgresActivityStore) RecentActivities(ctx context.Context, userID string, limit int64) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, content, metadata, created_at
		FROM activities
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		var (
			a        models.Activity
			typ      string
			metaJSON []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &typ, &a.Title, &a.Content, &metaJSON, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = models.ActivityType(typ)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &a.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
