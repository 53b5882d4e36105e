package auth

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "civitdl"
	keyringPrefix  = "civitai_"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store
func NewKeyringStore() (*KeyringStore, error) {
	// Test if keyring is available
	testKey := "test_availability"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}

	// Serialize account to JSON
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	// Store in keyring
	key := keyringPrefix + account.Name
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return nil
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	key := keyringPrefix + name
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return &account, nil
}

// List returns all stored accounts from the keychain
func (k *KeyringStore) List() ([]*Account, error) {
	// go-keyring doesn't support listing keys, so other stores cover this
	return []*Account{}, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	key := keyringPrefix + name
	err := keyring.Delete(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return nil
}

// Exists checks if credentials exist in the keychain
func (k *KeyringStore) Exists(name string) bool {
	if name == "" {
		return false
	}

	key := keyringPrefix + name
	_, err := keyring.Get(keyringService, key)
	return err == nil
}

// IsKeyringAvailable checks if the keyring is available on this system
func IsKeyringAvailable() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		return true
	default:
		return false
	}
}
