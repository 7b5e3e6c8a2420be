// Package credential stores IMAP passwords in the system keyring so they do
// not have to be passed on the command line.
package credential

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/99designs/keyring"

	"github.com/tbckr/imapdetect/internal/appdir"
)

const serviceName = appdir.Name

// Store reads and writes passwords keyed by email address.
type Store struct {
	ring keyring.Keyring
}

// Open opens the system keyring, falling back to an encrypted file store in
// fileDir when no OS keyring is available.
func Open(fileDir string) (*Store, error) {
	return OpenWith(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
}

// OpenWith opens a keyring with an explicit configuration.
func OpenWith(cfg keyring.Config) (*Store, error) {
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// Password returns the stored password for email. A missing entry is not an
// error and yields "".
func (s *Store) Password(email string) (string, error) {
	item, err := s.ring.Get(email)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting password for %q: %w", email, err)
	}
	return string(item.Data), nil
}

// SetPassword stores password for email, replacing any previous value.
func (s *Store) SetPassword(email, password string) error {
	err := s.ring.Set(keyring.Item{
		Key:         email,
		Data:        []byte(password),
		Label:       serviceName + " " + email,
		Description: "IMAP password",
	})
	if err != nil {
		return fmt.Errorf("setting password for %q: %w", email, err)
	}
	return nil
}

// Delete removes the stored password for email. Deleting a missing entry is
// not an error.
func (s *Store) Delete(email string) error {
	err := s.ring.Remove(email)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting password for %q: %w", email, err)
	}
	return nil
}
