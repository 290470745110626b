// Package credential keeps passwords and secret keys out of the config
// file by storing them in the system keyring.
package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "sitebook"

// Keys for the secrets sitebook needs.
const (
	KeyDatabasePassword = "database-password"
	KeyMailPassword     = "mail-password"
	KeyArchiveSecret    = "archive-secret-key"
)

// envOverrides lets CI and containers supply secrets without a keyring.
var envOverrides = map[string]string{
	KeyDatabasePassword: "SITEBOOK_DATABASE_PASSWORD",
	KeyMailPassword:     "SITEBOOK_MAIL_PASSWORD",
	KeyArchiveSecret:    "SITEBOOK_ARCHIVE_SECRET_KEY",
}

// Keys lists every known secret key.
func Keys() []string {
	return []string{KeyDatabasePassword, KeyMailPassword, KeyArchiveSecret}
}

// IsKnownKey reports whether key is one of the secret keys.
func IsKnownKey(key string) bool {
	_, ok := envOverrides[key]
	return ok
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/sitebook/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("sitebook-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Vault reads and writes secrets. The keyring is opened lazily so that
// environment overrides work on machines without one.
type Vault struct {
	open func() (keyring.Keyring, error)
}

// Default returns a Vault backed by the system keyring.
func Default() *Vault {
	return &Vault{open: openKeyring}
}

// NewVault wraps an already opened keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{open: func() (keyring.Keyring, error) { return ring, nil }}
}

// Get retrieves a credential value by key from the keyring.
func (v *Vault) Get(key string) (string, error) {
	ring, err := v.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Lookup returns the secret for key, preferring its environment
// override. A missing secret yields "" and no error.
func (v *Vault) Lookup(key string) (string, error) {
	if env, ok := envOverrides[key]; ok {
		if val, set := os.LookupEnv(env); set {
			return val, nil
		}
	}
	val, err := v.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	return val, err
}

// Set stores a credential value by key in the keyring.
func (v *Vault) Set(key string, value string) error {
	ring, err := v.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "sitebook " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the keyring.
func (v *Vault) Delete(key string) error {
	ring, err := v.open()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
