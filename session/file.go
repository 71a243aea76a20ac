package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/chatgraph/core"
)

var _ core.SessionStore = (*FileStore)(nil)

// FileStore persists each session as a JSON file under a base directory.
// Session IDs are sanitized before being used as file names so callers cannot
// escape the base directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the base directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the session file, returning (nil, nil) when it does not exist.
func (s *FileStore) Load(_ context.Context, sessionID string) (*core.Session, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &core.PersistenceError{SessionID: sessionID, Err: err}
	}
	var sess core.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, &core.PersistenceError{SessionID: sessionID, Err: err}
	}
	return &sess, nil
}

// Save writes the session atomically (temp file + rename) and refreshes the
// Updated timestamp.
func (s *FileStore) Save(_ context.Context, sess *core.Session) error {
	sess.Updated = time.Now().UTC()
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return &core.PersistenceError{SessionID: sess.ID, Err: err}
	}

	path := s.path(sess.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &core.PersistenceError{SessionID: sess.ID, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &core.PersistenceError{SessionID: sess.ID, Err: err}
	}
	return nil
}

// Delete removes the session file, reporting whether it existed.
func (s *FileStore) Delete(_ context.Context, sessionID string) (bool, error) {
	err := os.Remove(s.path(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &core.PersistenceError{SessionID: sessionID, Err: err}
	}
	return true, nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, sanitizeID(sessionID)+".json")
}

// sanitizeID keeps letters, digits, dashes and underscores; everything else
// becomes an underscore. Empty input maps to "_".
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
