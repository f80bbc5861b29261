package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"parking-status-monitor/internal/model"
)

const (
	tokenFileName = "token"
	userFileName  = "user.json"
)

// Store is the durable persistence port for the session. Load returns a nil
// session (and no error) when nothing usable is stored.
type Store interface {
	Load() (*model.Session, error)
	Save(sess *model.Session) error
	SaveUser(user *model.User) error
	Clear() error
}

// FileStore keeps the session under a state directory as two entries: a raw
// token file and a user JSON file. Both are written by Save, the user file
// alone is rewritten by SaveUser, and both are removed by Clear.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir. An empty dir
// resolves to ~/.parkmon.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to find home directory: %w", err)
		}
		dir = filepath.Join(home, ".parkmon")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load hydrates a session from disk. A missing token means no session. A
// corrupted user file is removed and treated as if it were absent, so a bad
// write never wedges startup.
func (s *FileStore) Load() (*model.Session, error) {
	tokenBytes, err := os.ReadFile(s.tokenPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return nil, nil
	}

	sess := &model.Session{Token: token}

	userBytes, err := os.ReadFile(s.userPath())
	switch {
	case os.IsNotExist(err):
		// Token without an identity record still hydrates; polling stays
		// blocked until the user is known.
	case err != nil:
		return nil, fmt.Errorf("failed to read user file: %w", err)
	default:
		var user model.User
		if err := json.Unmarshal(userBytes, &user); err != nil {
			log.Printf("Warning: stored user record is corrupted, discarding it: %v", err)
			if rmErr := os.Remove(s.userPath()); rmErr != nil {
				log.Printf("Warning: failed to remove corrupted user file: %v", rmErr)
			}
			return nil, nil
		}
		sess.User = &user
	}

	return sess, nil
}

// Save persists the full session.
func (s *FileStore) Save(sess *model.Session) error {
	if err := os.WriteFile(s.tokenPath(), []byte(sess.Token), 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if sess.User != nil {
		return s.SaveUser(sess.User)
	}
	return nil
}

// SaveUser rewrites the user record, leaving the token entry untouched.
func (s *FileStore) SaveUser(user *model.User) error {
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user record: %w", err)
	}
	if err := os.WriteFile(s.userPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write user file: %w", err)
	}
	return nil
}

// Clear removes both entries. Missing files are not an error.
func (s *FileStore) Clear() error {
	var firstErr error
	for _, p := range []string{s.tokenPath(), s.userPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove %s: %w", filepath.Base(p), err)
		}
	}
	return firstErr
}

func (s *FileStore) tokenPath() string { return filepath.Join(s.dir, tokenFileName) }
func (s *FileStore) userPath() string  { return filepath.Join(s.dir, userFileName) }
