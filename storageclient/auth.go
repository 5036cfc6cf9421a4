package storageclient

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminAuth guards the purge and table-delete endpoints with a single
// configured API key, hashed at startup so the comparison never touches the
// plaintext key stored in process memory the whole time the server runs.
type AdminAuth struct {
	hashedKey []byte
}

// NewAdminAuth hashes apiKey with bcrypt for later comparison.
func NewAdminAuth(apiKey string) (*AdminAuth, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &AdminAuth{hashedKey: hashed}, nil
}

// Check reports whether the "Bearer <key>" Authorization header value
// matches the configured admin API key.
func (a *AdminAuth) Check(authHeader string) bool {
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return false
	}
	key := strings.TrimPrefix(authHeader, prefix)
	return bcrypt.CompareHashAndPassword(a.hashedKey, []byte(key)) == nil
}
