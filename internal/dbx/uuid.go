package dbx

import "github.com/google/uuid"

// IsUUID reports whether s is a canonical UUID that can be bound to a UUID
// column. An id that is not one matches no row, and binding it would fail
// with invalid_text_representation instead.
func IsUUID(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}
