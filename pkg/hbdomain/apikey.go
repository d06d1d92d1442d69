package hbdomain

import (
	"github.com/function61/gokit/cryptorandombytes"
	"time"
)

func NewAPIKey(description string, now time.Time) APIKey {
	return APIKey{
		Key:         cryptorandombytes.Base64UrlWithoutLeadingDash(32),
		Description: description,
		CreatedAt:   Timestamp(now),
	}
}
