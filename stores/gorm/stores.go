//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ak "github.com/smartdash/authkit"
)

// AutoMigrate runs database migrations for all authkit tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&AuthTokenModel{},
		&SessionModel{},
	)
}

// UserStore implements ak.UserStore on a relational database
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*ak.User, error) {
	var m UserModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	return m.ToUser(), nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*ak.User, error) {
	var m UserModel
	err := s.db.WithContext(ctx).First(&m, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	return m.ToUser(), nil
}

// UpsertUserByEmail inserts or, on email conflict, overwrites name and
// avatar in one statement. The stored id survives conflicts.
func (s *UserStore) UpsertUserByEmail(ctx context.Context, u *ak.User) (*ak.User, error) {
	m := UserToModel(u)
	m.UpdatedAt = time.Now()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "avatar_url", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return nil, err
	}

	// Re-read so the caller sees the stable id on the conflict path.
	return s.GetUserByEmail(ctx, u.Email)
}

// AuthTokenStore implements ak.AuthTokenStore on a relational database.
// The attempts increment and the consume are single SQL statements, so the
// database serializes them per row.
type AuthTokenStore struct {
	db *gorm.DB
}

func NewAuthTokenStore(db *gorm.DB) *AuthTokenStore {
	return &AuthTokenStore{db: db}
}

func (s *AuthTokenStore) CreateAuthToken(ctx context.Context, t *ak.AuthToken) error {
	return s.db.WithContext(ctx).Create(AuthTokenToModel(t)).Error
}

func (s *AuthTokenStore) GetAuthTokenByEmail(ctx context.Context, email string) (*ak.AuthToken, error) {
	var m AuthTokenModel
	err := s.db.WithContext(ctx).First(&m, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	return m.ToAuthToken(), nil
}

func (s *AuthTokenStore) GetAuthToken(ctx context.Context, email, token string) (*ak.AuthToken, error) {
	var m AuthTokenModel
	err := s.db.WithContext(ctx).First(&m, "email = ? AND token = ?", email, token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	return m.ToAuthToken(), nil
}

func (s *AuthTokenStore) IncrementAttempts(ctx context.Context, _ string, id string) (int, error) {
	res := s.db.WithContext(ctx).
		Model(&AuthTokenModel{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ak.ErrNotFound
	}

	var m AuthTokenModel
	if err := s.db.WithContext(ctx).Select("attempts").First(&m, "id = ?", id).Error; err != nil {
		return 0, err
	}
	return m.Attempts, nil
}

func (s *AuthTokenStore) ConsumeAuthToken(ctx context.Context, _ string, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&AuthTokenModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *AuthTokenStore) DeleteAuthTokensForEmail(ctx context.Context, email string) error {
	return s.db.WithContext(ctx).Where("email = ?", email).Delete(&AuthTokenModel{}).Error
}

// SessionStore implements ak.SessionStore on a relational database
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) CreateSession(ctx context.Context, sess *ak.Session) error {
	return s.db.WithContext(ctx).Create(SessionToModel(sess)).Error
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*ak.Session, error) {
	var m SessionModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	return m.ToSession(), nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	// Deleting an absent session is a no-op by contract.
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&SessionModel{}).Error
}
