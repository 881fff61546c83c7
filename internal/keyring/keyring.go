// Package keyring provides access to the system keychain for storing the
// call analytics API token.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "callboard"
	tokenUser   = "api-token"
)

// ErrEmptyToken is returned when trying to store a blank token.
var ErrEmptyToken = errors.New("API token cannot be empty")

// GetToken retrieves the API token from the system keychain.
func GetToken() (string, error) {
	value, err := keyring.Get(serviceName, tokenUser)
	if err != nil {
		return "", fmt.Errorf("failed to get API token from keychain: %w", err)
	}

	return value, nil
}

// SetToken stores the API token in the system keychain.
func SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	if err := keyring.Set(serviceName, tokenUser, token); err != nil {
		return fmt.Errorf("failed to set API token in keychain: %w", err)
	}

	return nil
}

// DeleteToken removes the stored token. Deleting a missing token is not an error.
func DeleteToken() error {
	err := keyring.Delete(serviceName, tokenUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete API token from keychain: %w", err)
	}

	return nil
}

// HasToken checks if a token exists in the keychain.
func HasToken() bool {
	_, err := keyring.Get(serviceName, tokenUser)

	return err == nil
}

// ResolveToken returns explicit when set, otherwise the keychain token.
// A missing keychain entry yields an empty token and no error.
func ResolveToken(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	token, err := keyring.Get(serviceName, tokenUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get API token from keychain: %w", err)
	}

	return token, nil
}
