package hbdomain

import (
	"fmt"
	"strings"
)

const MaxSlugLength = 64

// lowercase alphanumerics and hyphens, 1-64 chars, no leading or trailing hyphen
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidSlug)
	}

	if len(slug) > MaxSlugLength {
		return fmt.Errorf("%w: length %d exceeds maximum of %d", ErrInvalidSlug, len(slug), MaxSlugLength)
	}

	for _, ch := range slug {
		if !(ch >= 'a' && ch <= 'z') && !(ch >= '0' && ch <= '9') && ch != '-' {
			return fmt.Errorf("%w: must contain only lowercase letters, digits and hyphens", ErrInvalidSlug)
		}
	}

	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return fmt.Errorf("%w: must not start or end with a hyphen", ErrInvalidSlug)
	}

	return nil
}
