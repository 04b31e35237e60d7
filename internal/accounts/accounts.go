// Package accounts keeps the registry of monitored Telegram user accounts
// in a YAML file.
package accounts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry errors.
var (
	ErrExists   = errors.New("account already exists")
	ErrNotFound = errors.New("account not found")
)

// Account is one monitored user account.
type Account struct {
	ID           string `yaml:"id"`
	Phone        string `yaml:"phone"`
	Username     string `yaml:"username,omitempty"`
	SessionFile  string `yaml:"session_file"`
	NotifyChatID string `yaml:"notify_chat_id,omitempty"`
	Enabled      bool   `yaml:"enabled"`
}

type file struct {
	Accounts  []Account `yaml:"accounts"`
	CurrentID string    `yaml:"current_id,omitempty"`
}

// Store reads and writes the accounts file. The file is re-read on every
// call so edits made by cmd/session are picked up by a running bot.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store backed by path. The file need not exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// List returns all accounts in file order.
func (s *Store) List() ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return nil, err
	}
	return f.Accounts, nil
}

// Enabled returns the accounts that should be listening.
func (s *Store) Enabled() ([]Account, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Account
	for _, a := range all {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out, nil
}

// Get returns the account with id.
func (s *Store) Get(id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return Account{}, err
	}
	i := f.index(id)
	if i < 0 {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return f.Accounts[i], nil
}

// Add registers a new account. The first account becomes current.
func (s *Store) Add(acc Account) error {
	if acc.ID == "" {
		return errors.New("account id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}
	if f.index(acc.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrExists, acc.ID)
	}
	f.Accounts = append(f.Accounts, acc)
	if f.CurrentID == "" {
		f.CurrentID = acc.ID
	}
	return s.save(f)
}

// Remove deletes an account. If it was current, the first remaining
// account becomes current.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}
	i := f.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	f.Accounts = slices.Delete(f.Accounts, i, i+1)
	if f.CurrentID == id {
		f.CurrentID = ""
		if len(f.Accounts) > 0 {
			f.CurrentID = f.Accounts[0].ID
		}
	}
	return s.save(f)
}

// Update applies fn to the account with id and saves the result.
func (s *Store) Update(id string, fn func(*Account)) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return Account{}, err
	}
	i := f.index(id)
	if i < 0 {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(&f.Accounts[i])
	f.Accounts[i].ID = id
	if err := s.save(f); err != nil {
		return Account{}, err
	}
	return f.Accounts[i], nil
}

// Toggle flips the enabled flag and returns the new value.
func (s *Store) Toggle(id string) (bool, error) {
	acc, err := s.Update(id, func(a *Account) { a.Enabled = !a.Enabled })
	if err != nil {
		return false, err
	}
	return acc.Enabled, nil
}

// Current returns the id of the current account. With no current id set,
// the first account is chosen and saved.
func (s *Store) Current() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return "", err
	}
	if f.CurrentID == "" && len(f.Accounts) > 0 {
		f.CurrentID = f.Accounts[0].ID
		if err := s.save(f); err != nil {
			return "", err
		}
	}
	return f.CurrentID, nil
}

// SetCurrent makes id the current account.
func (s *Store) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}
	if f.index(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	f.CurrentID = id
	return s.save(f)
}

func (s *Store) load() (*file, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &file{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	return &f, nil
}

func (s *Store) save(f *file) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create accounts directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write accounts file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace accounts file: %w", err)
	}
	return nil
}

func (f *file) index(id string) int {
	return slices.IndexFunc(f.Accounts, func(a Account) bool { return a.ID == id })
}
