package models

import "time"

// User is the account record. Delegated Twitter tokens are stored sealed
// (AES-GCM) and only opened by the services layer.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"-"` // hash only
	AvatarURL string `json:"avatarUrl,omitempty"`

	TwitterTokenSealed        string `json:"-"`
	TwitterRefreshTokenSealed string `json:"-"`
}

// HasTwitterTokens reports whether a delegated token pair is attached.
func (u *User) HasTwitterTokens() bool {
	return u.TwitterTokenSealed != "" && u.TwitterRefreshTokenSealed != ""
}

// PublicUser is the user shape returned to clients.
type PublicUser struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	AvatarURL        string `json:"avatarUrl,omitempty"`
	TwitterConnected *bool  `json:"twitterConnected,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, AvatarURL: u.AvatarURL}
}

// UserUpdate carries the mutable profile fields. Nil fields are left unchanged.
type UserUpdate struct {
	Name                      *string
	Email                     *string
	Password                  *string
	AvatarURL                 *string
	TwitterTokenSealed        *string
	TwitterRefreshTokenSealed *string
}
