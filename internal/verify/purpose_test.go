package verify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePurposeRoundTrip(t *testing.T) {
	for _, p := range Purposes() {
		parsed, err := ParsePurpose(p.String())
		require.NoError(t, err)
		require.Equal(t, p, parsed)
	}
	p, err := ParsePurpose(" Reset_Password ")
	require.NoError(t, err)
	require.Equal(t, PurposeResetPassword, p)

	_, err = ParsePurpose("sms")
	require.ErrorIs(t, err, ErrInvalidPurpose)
	require.False(t, Purpose(42).Valid())
}

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  User@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "user@example.com", email)

	for _, bad := range []string{"", "user", "user@", "Name <user@example.com>", "a b@example.com"} {
		_, err := NormalizeEmail(bad)
		require.ErrorIs(t, err, ErrInvalidEmail, "email %q", bad)
	}
}
