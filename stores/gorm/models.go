//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	ak "github.com/smartdash/authkit"
)

// UserModel is the GORM model for users
type UserModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Email     string    `gorm:"uniqueIndex;size:255"`
	Name      string    `gorm:"size:255"`
	AvatarURL string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *ak.User {
	return &ak.User{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		AvatarURL: m.AvatarURL,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func UserToModel(u *ak.User) *UserModel {
	return &UserModel{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AuthTokenModel is the GORM model for one-time sign-in credentials
type AuthTokenModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Email     string    `gorm:"index;size:255"`
	Code      string    `gorm:"size:8"`
	Token     string    `gorm:"size:128;index"`
	Attempts  int       `gorm:"default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (AuthTokenModel) TableName() string {
	return "auth_tokens"
}

func (m *AuthTokenModel) ToAuthToken() *ak.AuthToken {
	return &ak.AuthToken{
		ID:        m.ID,
		Email:     m.Email,
		Code:      m.Code,
		Token:     m.Token,
		Attempts:  m.Attempts,
		CreatedAt: m.CreatedAt,
	}
}

func AuthTokenToModel(t *ak.AuthToken) *AuthTokenModel {
	return &AuthTokenModel{
		ID:        t.ID,
		Email:     t.Email,
		Code:      t.Code,
		Token:     t.Token,
		Attempts:  t.Attempts,
		CreatedAt: t.CreatedAt,
	}
}

// SessionModel is the GORM model for bearer sessions
type SessionModel struct {
	ID        string    `gorm:"primaryKey;size:128"`
	UserID    string    `gorm:"size:64;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SessionModel) TableName() string {
	return "sessions"
}

func (m *SessionModel) ToSession() *ak.Session {
	return &ak.Session{
		ID:        m.ID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}

func SessionToModel(s *ak.Session) *SessionModel {
	return &SessionModel{
		ID:        s.ID,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
	}
}
