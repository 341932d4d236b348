package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/natefinch/atomic"
)

// ErrNoCredentials is returned by Load when no token is persisted.
var ErrNoCredentials = errors.New("session: no stored credentials")

// TokenStore persists the identity/token pair across process restarts so a
// reload can attempt a silent session restore.
type TokenStore interface {
	Save(email, token string) error
	Load() (email, token string, err error)
	Clear() error
}

// MemoryStore keeps credentials for the lifetime of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	email string
	token string
	set   bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(email, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email, s.token, s.set = email, token, true
	return nil
}

func (s *MemoryStore) Load() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return "", "", ErrNoCredentials
	}
	return s.email, s.token, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email, s.token, s.set = "", "", false
	return nil
}

type storedCredentials struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// FileStore persists credentials as a small JSON file written atomically,
// so a crash mid-write never leaves a torn token behind.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Save(email, token string) error {
	data, err := json.Marshal(storedCredentials{Email: email, Token: token})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Load() (string, string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", "", ErrNoCredentials
	}
	if err != nil {
		return "", "", fmt.Errorf("read credentials: %w", err)
	}
	var creds storedCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("decode credentials: %w", err)
	}
	if creds.Email == "" || creds.Token == "" {
		return "", "", ErrNoCredentials
	}
	return creds.Email, creds.Token, nil
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
