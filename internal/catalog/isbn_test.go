package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalISBN(t *testing.T) {
	got, err := CanonicalISBN("978-85-359-0277-8")
	require.NoError(t, err)
	assert.Equal(t, "9788535902778", got)

	got, err = CanonicalISBN("0-306-40615-2")
	require.NoError(t, err)
	assert.Equal(t, "0306406152", got)

	// X check digit is only valid in the last position of an ISBN-10.
	got, err = CanonicalISBN("080442957X")
	require.NoError(t, err)
	assert.Equal(t, "080442957X", got)
}

func TestCanonicalISBNRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"", "12345", "9788535902779", "0306406153", "X306406152"} {
		_, err := CanonicalISBN(raw)
		assert.ErrorIs(t, err, ErrInvalidISBN, raw)
	}
}

func TestEAN13(t *testing.T) {
	got, err := EAN13("0306406152")
	require.NoError(t, err)
	assert.Equal(t, "9780306406157", got)

	// A 13 digit form passes through untouched.
	got, err = EAN13("9788535902778")
	require.NoError(t, err)
	assert.Equal(t, "9788535902778", got)

	_, err = EAN13("080442957")
	assert.ErrorIs(t, err, ErrInvalidISBN)
}
