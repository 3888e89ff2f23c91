package clientstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keychain service name items are stored under.
const DefaultKeyringService = "ai.osonify.session"

var _ Storage = (*KeyringStorage)(nil)

// KeyringStorage stores items in the OS keychain (macOS Keychain, Secret
// Service, Windows Credential Manager).
type KeyringStorage struct {
	service string
}

func NewKeyringStorage(service string) *KeyringStorage {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStorage{service: service}
}

func (k *KeyringStorage) GetItem(key string) (string, bool, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[KeyringStorage GetItem] %s: %w", key, err)
	}
	return v, true, nil
}

func (k *KeyringStorage) SetItem(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("[KeyringStorage SetItem] %s: %w", key, err)
	}
	return nil
}

func (k *KeyringStorage) RemoveItem(key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("[KeyringStorage RemoveItem] %s: %w", key, err)
	}
	return nil
}
