package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

const (
	KeyNotificationsEnabled = "notifications_enabled"
	KeyLanguage             = "language"
	KeyFirstLaunch          = "first_launch"
)

// Store is a small key-value preference store.
type Store interface {
	GetBool(key string) bool
	GetString(key string) string
	Set(key string, value interface{}) error
	Clear() error
}

// FileStore keeps preferences in a JSON file through viper. Every Set is
// written through to disk.
type FileStore struct {
	mu   sync.Mutex
	path string
	v    *viper.Viper
}

// NewFileStore opens the preference file at path, creating nothing until
// the first write. A missing file yields the defaults.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	v, err := s.load()
	if err != nil {
		return nil, err
	}
	s.v = v
	return s, nil
}

func (s *FileStore) load() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	v.SetDefault(KeyNotificationsEnabled, true)
	v.SetDefault(KeyLanguage, DefaultLanguage)
	v.SetDefault(KeyFirstLaunch, true)

	if _, err := os.Stat(s.path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read preferences %s: %w", s.path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat preferences %s: %w", s.path, err)
	}
	return v, nil
}

func (s *FileStore) GetBool(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetBool(key)
}

func (s *FileStore) GetString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString(key)
}

func (s *FileStore) Set(key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preferences dir: %w", err)
		}
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// Clear deletes the preference file and restores the defaults.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove preferences: %w", err)
	}
	v, err := s.load()
	if err != nil {
		return err
	}
	s.v = v
	return nil
}
