package shortener

import (
	"fmt"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

const (
	MinLength = 3
	MaxLength = 20
)

var reserved = map[string]struct{}{
	"admin": {}, "api": {}, "www": {}, "mail": {}, "ftp": {},
	"root": {}, "system": {}, "test": {}, "dev": {}, "staging": {},
	"prod": {}, "null": {}, "undefined": {}, "health": {}, "metrics": {},
}

// IsReserved reports whether code is a reserved word
func IsReserved(code string) bool {
	_, ok := reserved[code]
	return ok
}

// ValidateShortcode checks the shortcode format rules
func ValidateShortcode(code string) error {
	if len(code) < MinLength || len(code) > MaxLength {
		return fmt.Errorf("%w: length must be between %d and %d", domain.ErrInvalidShortcode, MinLength, MaxLength)
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_':
			if i == 0 || i == len(code)-1 {
				return fmt.Errorf("%w: cannot start or end with %q", domain.ErrInvalidShortcode, c)
			}
		default:
			return fmt.Errorf("%w: invalid character %q", domain.ErrInvalidShortcode, c)
		}
	}
	if IsReserved(code) {
		return fmt.Errorf("%w: %q is reserved", domain.ErrInvalidShortcode, code)
	}
	return nil
}
