package client

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/goliatone/go-errors"
)

// TokenPair is the client-side session state: the short-lived access token
// and the refresh token used to renew it.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (p TokenPair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// String keeps token material out of debug output.
func (p TokenPair) String() string {
	return fmt.Sprintf("TokenPair{access:%d bytes, refresh:%d bytes}", len(p.AccessToken), len(p.RefreshToken))
}

// TokenStore persists the token pair between runs. Implementations must be
// safe for concurrent use.
type TokenStore interface {
	Load() (TokenPair, error)
	Save(pair TokenPair) error
	Clear() error
}

// MemoryStore keeps the pair in process memory. Sessions die with the
// process; useful for tests and short-lived tools.
type MemoryStore struct {
	mu   sync.RWMutex
	pair TokenPair
}

var _ TokenStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, nil
}

func (s *MemoryStore) Save(pair TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = TokenPair{}
	return nil
}

// FileStore persists the pair as JSON on disk so sessions survive process
// restarts. The file is written owner-readable only.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ TokenStore = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return TokenPair{}, nil
		}
		return TokenPair{}, errors.Wrap(err, errors.CategoryInternal, "failed to read token store")
	}

	var pair TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return TokenPair{}, errors.Wrap(err, errors.CategoryInternal, "failed to decode token store")
	}

	return pair, nil
}

func (s *FileStore) Save(pair TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(pair)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode token store")
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to write token store")
	}

	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.CategoryInternal, "failed to clear token store")
	}

	return nil
}
