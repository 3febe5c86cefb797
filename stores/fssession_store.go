package stores

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	ak "github.com/smartdash/authkit"
)

// FSSessionStore stores bearer sessions as JSON files keyed by the bearer
// token. Bearer tokens are hex strings, so they are filesystem-safe.
type FSSessionStore struct {
	StoragePath string
}

func NewFSSessionStore(storagePath string) *FSSessionStore {
	return &FSSessionStore{StoragePath: storagePath}
}

func (s *FSSessionStore) sessionPath(id string) string {
	return filepath.Join(s.StoragePath, "sessions", id+".json")
}

func (s *FSSessionStore) CreateSession(_ context.Context, sess *ak.Session) error {
	path := s.sessionPath(sess.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

func (s *FSSessionStore) GetSession(_ context.Context, id string) (*ak.Session, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ak.ErrNotFound
		}
		return nil, err
	}
	var sess ak.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *FSSessionStore) DeleteSession(_ context.Context, id string) error {
	err := os.Remove(s.sessionPath(id))
	if os.IsNotExist(err) {
		return nil // already gone
	}
	return err
}
