package domain

import "errors"

// Join rejections. All of them are soft: the connection that triggered one
// stays open and may retry.
var (
	ErrCallNotFound = errors.New("call not found")
	ErrCallEnded    = errors.New("call ended")
	ErrCallExpired  = errors.New("call expired")
	ErrInvalidToken = errors.New("invalid token")
)
