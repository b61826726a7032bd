package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeySet verifies back-office API keys against bcrypt hashes loaded from
// configuration (comma-separated). Plain keys never touch the environment of
// a running service.
type APIKeySet struct {
	hashes []string
}

func NewAPIKeySet(rawHashes string) *APIKeySet {
	var hashes []string
	for _, h := range strings.Split(rawHashes, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			hashes = append(hashes, h)
		}
	}
	return &APIKeySet{hashes: hashes}
}

func (s *APIKeySet) Empty() bool {
	return len(s.hashes) == 0
}

func (s *APIKeySet) Verify(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	for _, h := range s.hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(key)) == nil {
			return true
		}
	}
	return false
}

// HashAPIKey is used by provisioning tooling to mint hashes for APIKeySet.
func HashAPIKey(key string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
