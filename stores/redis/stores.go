// Package redis provides Redis-backed implementations of the authkit store
// interfaces. Rows are hashes; the credential keyspace is one hash per
// email, so the single-active-credential invariant is structural. The two
// racy mutations are pushed into Redis itself: the attempts counter uses
// HINCRBY and consumption is a small compare-and-delete Lua script, both
// atomic on the server.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	ak "github.com/smartdash/authkit"
)

const (
	userIDPrefix    = "user:id:"
	userEmailPrefix = "user:email:"
	authTokenPrefix = "authtoken:"
	sessionPrefix   = "session:"
)

// upsertUserScript resolves the stable id for an email (minting the
// supplied one on first sight) and overwrites the profile fields.
var upsertUserScript = redis.NewScript(`
local id = redis.call('GET', KEYS[1])
if not id then
  id = ARGV[1]
  redis.call('SET', KEYS[1], id)
  redis.call('HSET', 'user:id:'..id, 'created_at', ARGV[5])
end
redis.call('HSET', 'user:id:'..id,
  'id', id, 'email', ARGV[2], 'name', ARGV[3], 'avatar_url', ARGV[4], 'updated_at', ARGV[5])
return id
`)

// consumeTokenScript deletes the credential hash only if it still holds
// the row the caller observed.
var consumeTokenScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// incrAttemptsScript bumps the attempts counter only for the observed row.
var incrAttemptsScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') == ARGV[1] then
  return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
end
return -1
`)

// UserStore implements ak.UserStore on Redis
type UserStore struct {
	client redis.UniversalClient
}

func NewUserStore(client redis.UniversalClient) *UserStore {
	return &UserStore{client: client}
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*ak.User, error) {
	id, err := s.client.Get(ctx, userEmailPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ak.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*ak.User, error) {
	fields, err := s.client.HGetAll(ctx, userIDPrefix+id).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ak.ErrNotFound
	}
	return &ak.User{
		ID:        fields["id"],
		Email:     fields["email"],
		Name:      fields["name"],
		AvatarURL: fields["avatar_url"],
		CreatedAt: parseTime(fields["created_at"]),
		UpdatedAt: parseTime(fields["updated_at"]),
	}, nil
}

func (s *UserStore) UpsertUserByEmail(ctx context.Context, u *ak.User) (*ak.User, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	id, err := upsertUserScript.Run(ctx, s.client,
		[]string{userEmailPrefix + u.Email},
		u.ID, u.Email, u.Name, u.AvatarURL, now,
	).Text()
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// AuthTokenStore implements ak.AuthTokenStore on Redis
type AuthTokenStore struct {
	client redis.UniversalClient
}

func NewAuthTokenStore(client redis.UniversalClient) *AuthTokenStore {
	return &AuthTokenStore{client: client}
}

func (s *AuthTokenStore) CreateAuthToken(ctx context.Context, t *ak.AuthToken) error {
	return s.client.HSet(ctx, authTokenPrefix+t.Email, map[string]any{
		"id":         t.ID,
		"email":      t.Email,
		"code":       t.Code,
		"token":      t.Token,
		"attempts":   t.Attempts,
		"created_at": t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}).Err()
}

func (s *AuthTokenStore) GetAuthTokenByEmail(ctx context.Context, email string) (*ak.AuthToken, error) {
	fields, err := s.client.HGetAll(ctx, authTokenPrefix+email).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ak.ErrNotFound
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return &ak.AuthToken{
		ID:        fields["id"],
		Email:     fields["email"],
		Code:      fields["code"],
		Token:     fields["token"],
		Attempts:  attempts,
		CreatedAt: parseTime(fields["created_at"]),
	}, nil
}

func (s *AuthTokenStore) GetAuthToken(ctx context.Context, email, token string) (*ak.AuthToken, error) {
	row, err := s.GetAuthTokenByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if row.Token != token {
		return nil, ak.ErrNotFound
	}
	return row, nil
}

func (s *AuthTokenStore) IncrementAttempts(ctx context.Context, email, id string) (int, error) {
	n, err := incrAttemptsScript.Run(ctx, s.client, []string{authTokenPrefix + email}, id).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ak.ErrNotFound
	}
	return n, nil
}

func (s *AuthTokenStore) ConsumeAuthToken(ctx context.Context, email, id string) (bool, error) {
	n, err := consumeTokenScript.Run(ctx, s.client, []string{authTokenPrefix + email}, id).Int()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *AuthTokenStore) DeleteAuthTokensForEmail(ctx context.Context, email string) error {
	return s.client.Del(ctx, authTokenPrefix+email).Err()
}

// SessionStore implements ak.SessionStore on Redis
type SessionStore struct {
	client redis.UniversalClient
}

func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) CreateSession(ctx context.Context, sess *ak.Session) error {
	return s.client.HSet(ctx, sessionPrefix+sess.ID, map[string]any{
		"user_id":    sess.UserID,
		"created_at": sess.CreatedAt.UTC().Format(time.RFC3339Nano),
	}).Err()
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*ak.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionPrefix+id).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ak.ErrNotFound
	}
	return &ak.Session{
		ID:        id,
		UserID:    fields["user_id"],
		CreatedAt: parseTime(fields["created_at"]),
	}, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionPrefix+id).Err()
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
