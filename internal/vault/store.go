package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-slack-bot/internal/domain"
	"github.com/tbourn/go-slack-bot/internal/repo"
)

// credentialKey is the property key of the sealed credential inside a
// user's partition.
const credentialKey = "user_credential"

var (
	// ErrEmptyUserID is returned for calls without a Slack user id.
	ErrEmptyUserID = errors.New("user id is empty")
	// ErrEmptyAPIKey is returned when storing a credential without a key.
	ErrEmptyAPIKey = errors.New("api key is empty")
)

// UserCredential is a user's completion-service API key.
type UserCredential struct {
	UserID string `json:"user_id"`
	APIKey string `json:"api_key"`
}

// Store keeps one sealed UserCredential per user in the user-scoped
// property partition.
type Store struct {
	DB           *gorm.DB
	ClientID     string
	ClientSecret string
	Cipher       Cipher
}

// NewStore returns a Store using the default scrypt cost.
func NewStore(db *gorm.DB, clientID, clientSecret string) *Store {
	return &Store{DB: db, ClientID: clientID, ClientSecret: clientSecret}
}

func (s *Store) passphrase(userID string) string {
	return Passphrase(s.ClientID, userID, s.ClientSecret)
}

// GetUserCredential returns the stored credential, or nil when the user has
// none. A value that fails authentication yields ErrCredentialDecryption.
func (s *Store) GetUserCredential(ctx context.Context, userID string) (*UserCredential, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	sealed, err := repo.GetProperty(ctx, s.DB, domain.ScopeUser, userID, credentialKey)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	plain, err := s.Cipher.Open(s.passphrase(userID), sealed)
	if err != nil {
		return nil, err
	}
	var cred UserCredential
	if err := json.Unmarshal(plain, &cred); err != nil {
		return nil, ErrCredentialDecryption
	}
	if cred.UserID == "" {
		cred.UserID = userID
	}
	return &cred, nil
}

// SetUserCredential seals cred under the user's passphrase, overwriting any
// previous value.
func (s *Store) SetUserCredential(ctx context.Context, userID string, cred UserCredential) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	if cred.APIKey == "" {
		return ErrEmptyAPIKey
	}
	cred.UserID = userID
	plain, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	sealed, err := s.Cipher.Seal(s.passphrase(userID), plain)
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	return repo.SetProperty(ctx, s.DB, domain.ScopeUser, userID, credentialKey, sealed)
}

// DeleteUserCredential removes the user's credential, if any.
func (s *Store) DeleteUserCredential(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	return repo.DeleteProperty(ctx, s.DB, domain.ScopeUser, userID, credentialKey)
}

// HasCredential reports whether a readable credential exists. An unreadable
// one is deleted and counts as absent so the user is prompted to enter the
// key again.
func (s *Store) HasCredential(ctx context.Context, userID string) (bool, error) {
	cred, err := s.GetUserCredential(ctx, userID)
	if errors.Is(err, ErrCredentialDecryption) {
		if err := s.DeleteUserCredential(ctx, userID); err != nil {
			return false, fmt.Errorf("clear unreadable credential: %w", err)
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cred != nil, nil
}
