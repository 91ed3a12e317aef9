package db

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// KeyPrefixLen is how much of the plaintext key is kept for display.
const KeyPrefixLen = 12

// ErrInvalidKey is the single error returned for every authentication
// failure: missing key, unknown key, inactive key or client, expired key,
// or a storage error. Callers must not be able to tell these apart.
var ErrInvalidKey = errors.New("invalid or expired API key")

// ErrKeyNotFound is returned when a key does not exist or is not owned by
// the acting client. The two cases are deliberately indistinguishable.
var ErrKeyNotFound = errors.New("API key not found")

// ClientIdentity is the result of a successful key authentication.
type ClientIdentity struct {
	KeyID       uint
	ClientID    uint
	Email       string
	BillingTier string
}

// Authenticator validates a raw API key and resolves the owning client.
// The production implementation is StoreAuthenticator; tests substitute
// their own.
type Authenticator interface {
	Authenticate(raw string) (*ClientIdentity, error)
}

// GenerateKey returns a new plaintext API key: "sk_" followed by 64 hex
// characters. The plaintext exists only in memory; callers store HashKey(k).
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "sk_" + hex.EncodeToString(b), nil
}

// HashKey returns the hex sha256 digest under which a key is stored.
// A deterministic digest is required so validation can look the key up;
// this mirrors the hashing scheme of the managed credential store.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// StoreAuthenticator authenticates keys against the relational store.
type StoreAuthenticator struct {
	db *gorm.DB
}

func NewStoreAuthenticator(db *gorm.DB) *StoreAuthenticator {
	return &StoreAuthenticator{db: db}
}

// Authenticate resolves a raw key to its owning client. Every failure mode
// collapses to ErrInvalidKey; the specific cause is only logged.
func (a *StoreAuthenticator) Authenticate(raw string) (*ClientIdentity, error) {
	if raw == "" || len(raw) < 3 || raw[:3] != "sk_" {
		return nil, ErrInvalidKey
	}

	var key APIKey
	err := a.db.
		Joins("JOIN api_clients ON api_clients.id = api_keys.client_id").
		Where("api_keys.key_hash = ?", HashKey(raw)).
		Where("api_keys.active = ?", true).
		Where("api_clients.active = ?", true).
		Where("api_keys.expires_at IS NULL OR api_keys.expires_at > ?", time.Now()).
		Preload("Client").
		First(&key).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithError(err).Error("api key validation query failed")
		}
		return nil, ErrInvalidKey
	}

	return &ClientIdentity{
		KeyID:       key.ID,
		ClientID:    key.ClientID,
		Email:       key.Client.Email,
		BillingTier: key.Client.BillingTier,
	}, nil
}

// CreateKey generates, hashes, and stores a new key for a client. The
// plaintext is returned exactly once, alongside the stored record.
func CreateKey(db *gorm.DB, clientID uint, name string, expiresAt *time.Time) (string, *APIKey, error) {
	plaintext, err := GenerateKey()
	if err != nil {
		return "", nil, err
	}

	key := &APIKey{
		ClientID:  clientID,
		Name:      name,
		KeyHash:   HashKey(plaintext),
		KeyPrefix: plaintext[:KeyPrefixLen],
		Active:    true,
		ExpiresAt: expiresAt,
	}
	if err := db.Create(key).Error; err != nil {
		return "", nil, err
	}
	return plaintext, key, nil
}

// DeactivateKey disables a key scoped to the owning client. Deactivating an
// already-inactive key succeeds (idempotent); a key owned by another client
// is reported as not found, never as forbidden.
func DeactivateKey(db *gorm.DB, clientID, keyID uint) error {
	res := db.Model(&APIKey{}).
		Where("id = ? AND client_id = ?", keyID, clientID).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// ListKeys returns the key metadata for a client, newest first. Hashes stay
// internal; only the display prefix leaves this package.
func ListKeys(db *gorm.DB, clientID uint) ([]APIKey, error) {
	var keys []APIKey
	err := db.Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

// TouchKey updates last_used_at, best effort.
func TouchKey(db *gorm.DB, keyID uint, now time.Time) error {
	return db.Model(&APIKey{}).Where("id = ?", keyID).Update("last_used_at", now).Error
}
