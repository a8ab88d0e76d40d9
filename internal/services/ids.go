package services

import (
	"strings"

	"github.com/google/uuid"
)

const maxExerciseIDLen = 64

// ParseID validates a record identifier and returns its canonical form.
func ParseID(field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid(field, "is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", invalid(field, "is not a valid identifier")
	}
	return id.String(), nil
}

// ParseExerciseID validates a catalog exercise identifier. Catalog ids are
// opaque, so only the character set and length are checked.
func ParseExerciseID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("exerciseId", "is required")
	}
	if len(raw) > maxExerciseIDLen {
		return "", invalid("exerciseId", "is too long")
	}
	for _, c := range raw {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return "", invalid("exerciseId", "contains invalid characters")
		}
	}
	return raw, nil
}
