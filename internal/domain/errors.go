package domain

import "errors"

var (
	// ErrMalformedInput indicates a signed request that cannot be split or
	// decoded into its signature and payload segments.
	ErrMalformedInput = errors.New("fandjango: signed request malformed")
	// ErrUnsupportedAlgorithm indicates a payload signed with anything other
	// than HMAC-SHA256.
	ErrUnsupportedAlgorithm = errors.New("fandjango: signed request is using an unknown algorithm")
	// ErrSignatureMismatch indicates the signature does not match the payload.
	ErrSignatureMismatch = errors.New("fandjango: signed request signature mismatch")
	// ErrUserNotFound signals a lookup miss in the user repository.
	ErrUserNotFound = errors.New("fandjango: user not found")
	// ErrTokenNotFound signals a lookup miss in the token repository.
	ErrTokenNotFound = errors.New("fandjango: oauth token not found")
)
