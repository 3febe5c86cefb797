// Package stores provides file-backed implementations of the authkit store
// interfaces, suitable for development and small deployments. Rows are
// JSON files; writes are atomic renames; the mutable paths (upserts,
// attempt counters, conditional deletes) are serialized per store.
package stores

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	ak "github.com/smartdash/authkit"
)

// FSUserStore stores users as JSON files keyed by email, with an id index
// alongside for lookups by user id.
type FSUserStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) emailPath(email string) string {
	return filepath.Join(s.StoragePath, "users", url.QueryEscape(email)+".json")
}

func (s *FSUserStore) idPath(id string) string {
	return filepath.Join(s.StoragePath, "userids", id)
}

func (s *FSUserStore) GetUserByEmail(_ context.Context, email string) (*ak.User, error) {
	return s.readUser(s.emailPath(email))
}

func (s *FSUserStore) GetUserByID(ctx context.Context, id string) (*ak.User, error) {
	data, err := os.ReadFile(s.idPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	return s.GetUserByEmail(ctx, string(data))
}

func (s *FSUserStore) UpsertUserByEmail(_ context.Context, u *ak.User) (*ak.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	row := *u
	existing, err := s.readUser(s.emailPath(u.Email))
	if err == nil {
		// Keep the stable id and creation time, overwrite the rest.
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	path := s.emailPath(row.Email)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(&row, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeAtomicFile(path, data); err != nil {
		return nil, err
	}

	idPath := s.idPath(row.ID)
	if err := os.MkdirAll(filepath.Dir(idPath), 0755); err != nil {
		return nil, err
	}
	if err := writeAtomicFile(idPath, []byte(row.Email)); err != nil {
		return nil, err
	}

	return &row, nil
}

func (s *FSUserStore) readUser(path string) (*ak.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	var u ak.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
