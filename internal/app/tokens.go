package app

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/safedispatch/relay/internal/domain"
)

const (
	callIDBytes = 8
	tokenBytes  = 16
)

func randomURLSafe(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand is documented to never fail on supported platforms.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// NewCallID returns a fresh call identifier. Not a secret, only an
// identifier, so it carries less entropy than a role token.
func NewCallID() domain.CallID {
	return domain.CallID(randomURLSafe(callIDBytes))
}

// NewToken returns a fresh role token.
func NewToken() string {
	return randomURLSafe(tokenBytes)
}

// VerifyToken checks a presented token against the call's expected token for
// the role. The responder role is deliberately unauthenticated: anyone who
// knows the call ID may respond. The caller token is compared in constant
// time.
func VerifyToken(role domain.Role, presented string, call *domain.Call) bool {
	if role != domain.RoleCaller {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(call.CallerToken)) == 1
}
