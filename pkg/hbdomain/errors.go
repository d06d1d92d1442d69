package hbdomain

import (
	"errors"
)

// rejected requests. the core never retries these.
var (
	ErrInvalidSlug     = errors.New("invalid slug")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("invalid or missing API key")
)

// transient. retried by the next scheduled scan or the next client ping.
var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDeliveryFailed   = errors.New("notification delivery failed")
)
