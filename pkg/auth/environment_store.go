package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment
// variables, for CI and container use.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	clientID := os.Getenv("REDGRAB_CLIENT_ID")
	clientSecret := os.Getenv("REDGRAB_CLIENT_SECRET")

	if clientID == "" || clientSecret == "" {
		return nil, ErrCredentialsNotFound
	}

	if username == "" {
		username = os.Getenv("REDGRAB_USERNAME")
	}
	if username == "" {
		username = "default"
	}

	return &Account{
		Username:     username,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Password:     os.Getenv("REDGRAB_PASSWORD"),
		UserAgent:    os.Getenv("REDGRAB_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	return os.Getenv("REDGRAB_CLIENT_ID") != "" && os.Getenv("REDGRAB_CLIENT_SECRET") != ""
}
