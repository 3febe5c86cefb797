//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	ak "github.com/smartdash/authkit"
)

// Kind constants for Datastore entities
const (
	KindUser      = "User"
	KindUserID    = "UserID"
	KindAuthToken = "AuthToken"
	KindSession   = "Session"
)

// UserStore implements ak.UserStore using Google Cloud Datastore
type UserStore struct {
	client    *datastore.Client
	namespace string
}

// NewUserStore creates a new Datastore-backed UserStore
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{client: client, namespace: namespace}
}

func namespacedKey(namespace, kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = namespace
	return key
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*ak.User, error) {
	var entity UserEntity
	key := namespacedKey(s.namespace, KindUser, email)
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*ak.User, error) {
	var mapping UserIDEntity
	if err := s.client.Get(ctx, namespacedKey(s.namespace, KindUserID, id), &mapping); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	return s.GetUserByEmail(ctx, mapping.Email)
}

// UpsertUserByEmail runs the get-or-insert-or-overwrite inside a
// transaction so two concurrent first logins cannot mint two ids for the
// same address.
func (s *UserStore) UpsertUserByEmail(ctx context.Context, u *ak.User) (*ak.User, error) {
	userKey := namespacedKey(s.namespace, KindUser, u.Email)
	var out *ak.User

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		now := time.Now()
		var entity UserEntity
		err := tx.Get(userKey, &entity)
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			entity = UserEntity{
				ID:        u.ID,
				Email:     u.Email,
				Name:      u.Name,
				AvatarURL: u.AvatarURL,
				CreatedAt: now,
				UpdatedAt: now,
			}
			idKey := namespacedKey(s.namespace, KindUserID, u.ID)
			if _, err := tx.Put(idKey, &UserIDEntity{Email: u.Email}); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			entity.Name = u.Name
			entity.AvatarURL = u.AvatarURL
			entity.UpdatedAt = now
		}

		if _, err := tx.Put(userKey, &entity); err != nil {
			return err
		}
		out = entity.ToUser()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AuthTokenStore implements ak.AuthTokenStore using Google Cloud
// Datastore. The attempts increment and the consume run inside
// transactions, which gives the per-row serialization the attempt ceiling
// depends on.
type AuthTokenStore struct {
	client    *datastore.Client
	namespace string
}

func NewAuthTokenStore(client *datastore.Client, namespace string) *AuthTokenStore {
	return &AuthTokenStore{client: client, namespace: namespace}
}

func (s *AuthTokenStore) tokenKey(id string) *datastore.Key {
	return namespacedKey(s.namespace, KindAuthToken, id)
}

func (s *AuthTokenStore) CreateAuthToken(ctx context.Context, t *ak.AuthToken) error {
	entity := &AuthTokenEntity{
		Email:     t.Email,
		Code:      t.Code,
		Token:     t.Token,
		Attempts:  t.Attempts,
		CreatedAt: t.CreatedAt,
	}
	_, err := s.client.Put(ctx, s.tokenKey(t.ID), entity)
	return err
}

func (s *AuthTokenStore) GetAuthTokenByEmail(ctx context.Context, email string) (*ak.AuthToken, error) {
	q := datastore.NewQuery(KindAuthToken).
		Namespace(s.namespace).
		FilterField("email", "=", email).
		Limit(1)
	return s.runTokenQuery(ctx, q)
}

func (s *AuthTokenStore) GetAuthToken(ctx context.Context, email, token string) (*ak.AuthToken, error) {
	q := datastore.NewQuery(KindAuthToken).
		Namespace(s.namespace).
		FilterField("email", "=", email).
		FilterField("token", "=", token).
		Limit(1)
	return s.runTokenQuery(ctx, q)
}

func (s *AuthTokenStore) runTokenQuery(ctx context.Context, q *datastore.Query) (*ak.AuthToken, error) {
	it := s.client.Run(ctx, q)
	var entity AuthTokenEntity
	_, err := it.Next(&entity)
	if errors.Is(err, iterator.Done) {
		return nil, ak.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entity.ToAuthToken(), nil
}

func (s *AuthTokenStore) IncrementAttempts(ctx context.Context, _ string, id string) (int, error) {
	key := s.tokenKey(id)
	attempts := 0

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity AuthTokenEntity
		if err := tx.Get(key, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return ak.ErrNotFound
			}
			return err
		}
		entity.Attempts++
		attempts = entity.Attempts
		_, err := tx.Put(key, &entity)
		return err
	})
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (s *AuthTokenStore) ConsumeAuthToken(ctx context.Context, _ string, id string) (bool, error) {
	key := s.tokenKey(id)
	removed := false

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity AuthTokenEntity
		if err := tx.Get(key, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return nil // consumed by a racing verification
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (s *AuthTokenStore) DeleteAuthTokensForEmail(ctx context.Context, email string) error {
	q := datastore.NewQuery(KindAuthToken).
		Namespace(s.namespace).
		FilterField("email", "=", email).
		KeysOnly()

	it := s.client.Run(ctx, q)
	var keys []*datastore.Key
	for {
		key, err := it.Next(nil)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.DeleteMulti(ctx, keys)
}

// SessionStore implements ak.SessionStore using Google Cloud Datastore
type SessionStore struct {
	client    *datastore.Client
	namespace string
}

func NewSessionStore(client *datastore.Client, namespace string) *SessionStore {
	return &SessionStore{client: client, namespace: namespace}
}

func (s *SessionStore) sessionKey(id string) *datastore.Key {
	return namespacedKey(s.namespace, KindSession, id)
}

func (s *SessionStore) CreateSession(ctx context.Context, sess *ak.Session) error {
	entity := &SessionEntity{
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt,
	}
	_, err := s.client.Put(ctx, s.sessionKey(sess.ID), entity)
	return err
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*ak.Session, error) {
	var entity SessionEntity
	if err := s.client.Get(ctx, s.sessionKey(id), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	return entity.ToSession(), nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	err := s.client.Delete(ctx, s.sessionKey(id))
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil
	}
	return err
}
