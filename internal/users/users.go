// Package users loads the koblas credential file.
//
// The file is INI formatted; its [users] section maps user names to bcrypt
// password hashes:
//
//	[users]
//	alice = $2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// Credentials are loaded and validated but not yet enforced during
// negotiation; only the number of users is reported.
package users

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/ini.v1"
)

// SectionName is the INI section holding user entries.
const SectionName = "users"

// Store is an in-memory set of users and their password hashes.
type Store struct {
	hashes map[string][]byte
}

// Empty returns a Store with no users.
func Empty() *Store {
	return &Store{hashes: map[string][]byte{}}
}

// Load reads and validates the credential file at path.
func Load(path string) (*Store, error) {
	f, err := ini.ShadowLoad(path)
	if err != nil {
		return nil, fmt.Errorf("load users %s: %w", path, err)
	}

	s := Empty()
	if !f.HasSection(SectionName) {
		return s, nil
	}
	sec, err := f.GetSection(SectionName)
	if err != nil {
		return nil, fmt.Errorf("load users %s: %w", path, err)
	}

	for _, k := range sec.Keys() {
		name := k.Name()
		if name == "" {
			return nil, errors.New("load users: empty user name")
		}
		values := k.ValueWithShadows()
		if len(values) > 1 {
			return nil, fmt.Errorf("load users: user %q listed %d times", name, len(values))
		}

		hash := []byte(k.Value())
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("load users: user %q: %w", name, err)
		}
		s.hashes[name] = hash
	}

	return s, nil
}

// Len returns the number of users.
func (s *Store) Len() int {
	return len(s.hashes)
}
