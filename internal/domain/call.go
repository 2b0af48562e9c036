// Package domain contains entity without logic, just meta-data
package domain

import "time"

type CallID string

type Role string

const (
	RoleCaller    Role = "caller"
	RoleResponder Role = "responder"
)

// Call is one emergency-call coordination record. Two role tokens, one
// expiry. Mutated only through the call store; everyone else gets copies.
type Call struct {
	ID             CallID
	CallerToken    string
	ResponderToken string
	ExpiresAt      time.Time
	Active         bool
}

// Live reports whether the call still admits joins and relay at the given
// instant. Expiry is evaluated here, lazily, not by a timer.
func (c *Call) Live(now time.Time) bool {
	return c.Active && now.Before(c.ExpiresAt)
}
