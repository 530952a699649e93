package account

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// usernameBase derives a username candidate from the email's local part,
// keeping only characters safe for a login name.
func usernameBase(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}
	local = strings.ToLower(local)

	var b strings.Builder
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "subscriber"
	}
	return b.String()
}

const maxUsernameAttempts = 3

// claimUsername allocates a free username and runs insert with it. The
// check-then-insert window can race with a concurrent creation whose email
// shares the same local part, so a unique-index rejection re-derives a
// candidate against the now-visible winner instead of failing the request.
func claimUsername(base string, exists func(string) (bool, error), insert func(string) error) (string, error) {
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		candidate, err := uniqueUsername(base, exists)
		if err != nil {
			return "", err
		}
		err = insert(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to allocate a unique username from %q", base)
}

// uniqueUsername appends an increasing integer suffix until the candidate is
// free.
func uniqueUsername(base string, exists func(string) (bool, error)) (string, error) {
	taken, err := exists(base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%d", base, i)
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}
