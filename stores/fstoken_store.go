package stores

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	ak "github.com/smartdash/authkit"
)

// FSAuthTokenStore stores one-time credentials as one JSON file per email.
// The one-file-per-email layout makes the single-active-credential
// invariant structural: writing a new credential replaces the old one.
// A store-wide mutex serializes attempt increments and conditional
// deletes, which is the per-row boundary the verification engine needs.
type FSAuthTokenStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSAuthTokenStore(storagePath string) *FSAuthTokenStore {
	return &FSAuthTokenStore{StoragePath: storagePath}
}

func (s *FSAuthTokenStore) tokenPath(email string) string {
	return filepath.Join(s.StoragePath, "authtokens", url.QueryEscape(email)+".json")
}

func (s *FSAuthTokenStore) CreateAuthToken(_ context.Context, t *ak.AuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.tokenPath(t.Email)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

func (s *FSAuthTokenStore) GetAuthTokenByEmail(_ context.Context, email string) (*ak.AuthToken, error) {
	return s.readToken(email)
}

func (s *FSAuthTokenStore) GetAuthToken(_ context.Context, email, token string) (*ak.AuthToken, error) {
	row, err := s.readToken(email)
	if err != nil {
		return nil, err
	}
	if row.Token != token {
		return nil, ak.ErrNotFound
	}
	return row, nil
}

func (s *FSAuthTokenStore) IncrementAttempts(_ context.Context, email, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.readToken(email)
	if err != nil {
		return 0, err
	}
	if row.ID != id {
		return 0, ak.ErrNotFound
	}

	row.Attempts++
	data, err := json.MarshalIndent(row, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := writeAtomicFile(s.tokenPath(email), data); err != nil {
		return 0, err
	}
	return row.Attempts, nil
}

func (s *FSAuthTokenStore) ConsumeAuthToken(_ context.Context, email, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.readToken(email)
	if err != nil {
		if err == ak.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	if row.ID != id {
		// A newer credential replaced the one the caller observed.
		return false, nil
	}

	if err := os.Remove(s.tokenPath(email)); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return true, nil
}

func (s *FSAuthTokenStore) DeleteAuthTokensForEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.tokenPath(email))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FSAuthTokenStore) readToken(email string) (*ak.AuthToken, error) {
	data, err := os.ReadFile(s.tokenPath(email))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	var t ak.AuthToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
