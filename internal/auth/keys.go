package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"golang.org/x/crypto/bcrypt"
)

const defaultCost = 12

// ErrInvalidKey covers every way an API key can fail to match: malformed,
// unknown client or wrong secret. Callers must not tell them apart.
var ErrInvalidKey = errors.New("auth: invalid API key")

// KeyService mints API keys and checks secrets against stored bcrypt hashes.
type KeyService struct {
	cost int
}

func NewKeyService() *KeyService {
	return &KeyService{cost: defaultCost}
}

// NewKeyServiceForTest uses a lower bcrypt cost; cost 12 takes ~250ms per hash.
func NewKeyServiceForTest(cost int) *KeyService {
	return &KeyService{cost: cost}
}

// Key is a freshly minted API key. Plaintext is shown to the operator once.
type Key struct {
	ClientID   string
	Secret     string
	SecretHash string
}

// Plaintext renders the key as the client presents it.
func (k Key) Plaintext() string {
	return k.ClientID + "." + k.Secret
}

// NewKey generates a client ID (xid) and a 128-bit random secret.
func (s *KeyService) NewKey() (Key, error) {
	secret := strings.ReplaceAll(uuid.NewString(), "-", "")
	hash, err := s.Hash(secret)
	if err != nil {
		return Key{}, err
	}
	return Key{ClientID: xid.New().String(), Secret: secret, SecretHash: hash}, nil
}

// Hash bcrypt-hashes a secret. bcrypt ignores input past 72 bytes, so longer
// secrets are refused rather than silently truncated.
func (s *KeyService) Hash(secret string) (string, error) {
	if len(secret) > 72 {
		return "", errors.New("auth: secret must be 72 bytes or fewer")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing secret: %w", err)
	}
	return string(hashed), nil
}

// Verify compares secret with hash. A mismatch is ErrInvalidKey.
func (s *KeyService) Verify(hash, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidKey
		}
		return fmt.Errorf("auth: comparing secret hash: %w", err)
	}
	return nil
}

// SplitKey separates "<clientID>.<secret>".
func SplitKey(key string) (clientID, secret string, err error) {
	clientID, secret, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || clientID == "" || secret == "" {
		return "", "", ErrInvalidKey
	}
	return clientID, secret, nil
}
