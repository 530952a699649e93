package account

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUsernameBase(t *testing.T) {
	cases := []struct {
		email string
		want  string
	}{
		{"john.doe@example.com", "john.doe"},
		{"John.Doe@Example.com", "john.doe"},
		{"user+tag@example.com", "usertag"},
		{"weird!#$chars@example.com", "weirdchars"},
		{"under_score-dash@example.com", "under_score-dash"},
		{"@example.com", "subscriber"},
		{"+++@example.com", "subscriber"},
		{"noatsign", "noatsign"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, usernameBase(tc.email), "email %q", tc.email)
	}
}

func TestUniqueUsername(t *testing.T) {
	taken := map[string]bool{"john": true, "john1": true, "john2": true}
	exists := func(name string) (bool, error) { return taken[name], nil }

	got, err := uniqueUsername("jane", exists)
	require.NoError(t, err)
	require.Equal(t, "jane", got)

	got, err = uniqueUsername("john", exists)
	require.NoError(t, err)
	require.Equal(t, "john3", got)
}

func TestUniqueUsername_PropagatesError(t *testing.T) {
	boom := fmt.Errorf("db down")
	_, err := uniqueUsername("jane", func(string) (bool, error) { return false, boom })
	require.ErrorIs(t, err, boom)
}

func TestClaimUsername_RetriesOnUniqueViolation(t *testing.T) {
	taken := map[string]bool{}
	exists := func(name string) (bool, error) { return taken[name], nil }

	inserts := 0
	insert := func(name string) error {
		inserts++
		if inserts == 1 {
			// a concurrent creation for another email claimed the candidate
			// between the free check and the insert
			taken[name] = true
			return gorm.ErrDuplicatedKey
		}
		return nil
	}

	got, err := claimUsername("john", exists, insert)
	require.NoError(t, err)
	require.Equal(t, "john1", got)
	require.Equal(t, 2, inserts)
}

func TestClaimUsername_NonUniqueErrorsPropagate(t *testing.T) {
	boom := fmt.Errorf("db down")
	inserts := 0
	_, err := claimUsername("john",
		func(string) (bool, error) { return false, nil },
		func(string) error { inserts++; return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, inserts)
}

func TestClaimUsername_GivesUpAfterBoundedRetries(t *testing.T) {
	_, err := claimUsername("john",
		func(string) (bool, error) { return false, nil },
		func(string) error { return gorm.ErrDuplicatedKey })
	require.Error(t, err)
	require.NotErrorIs(t, err, gorm.ErrDuplicatedKey)
}
