package auth

import (
	"fmt"
	"strings"

	"github.com/cameronmore/go-members/sessions"
	"github.com/oklog/ulid/v2"
)

// Store-assigned user ids are ULIDs so they sort by creation time.
func newUserId() string {
	return ulid.Make().String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(email)
}

// wraps an infrastructure failure so callers can match it with errors.Is
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", sessions.ErrStoreUnavailable, op, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
