package dc05

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDefaults(t *testing.T) {
	got, err := Encode("1234", Params{})
	require.NoError(t, err)
	require.Equal(t, "#1234|1602 00 000]", got)
}

func TestEncodeExplicitFields(t *testing.T) {
	got, err := Encode("1234", Params{Code: "130", Area: "1", Zone: "7", Q: "3"})
	require.NoError(t, err)
	require.Equal(t, "#1234|3130 01 007]", got)
}

func TestEncodeUserClassCodeUsesUserNumber(t *testing.T) {
	got, err := Encode("1234", Params{Code: "401", User: "5"})
	require.NoError(t, err)
	require.Equal(t, "#1234|1401 00 005]", got)
}

func TestEncodeUserClassCodeFallsBackToZoneWithoutUser(t *testing.T) {
	got, err := Encode("1234", Params{Code: "401"})
	require.NoError(t, err)
	require.Equal(t, "#1234|1401 00 000]", got)
}

func TestEncodeMissingAccountFallsBackToZero(t *testing.T) {
	got, err := Encode("", Params{})
	require.NoError(t, err)
	require.Equal(t, "#0000|1602 00 000]", got)
}

func TestEncodeRejectsWrongLengthCode(t *testing.T) {
	_, err := Encode("1234", Params{Code: "12"})
	require.Error(t, err)
	var fe *ErrInvalidField
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "code", fe.Field)
}

func TestEncodeAcceptsAllValidQualifiers(t *testing.T) {
	for _, q := range []string{"1", "3", "6"} {
		_, err := Encode("1234", Params{Q: q})
		require.NoError(t, err, "qualifier %q should be valid", q)
	}
}

func TestEncodeRejectsInvalidQualifier(t *testing.T) {
	_, err := Encode("1234", Params{Q: "9"})
	require.Error(t, err)
	var fe *ErrInvalidField
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "q", fe.Field)
}

func TestEncodeRejectsNonNumericZone(t *testing.T) {
	_, err := Encode("1234", Params{Zone: "abc"})
	require.Error(t, err)
}

func TestIsUserLookup(t *testing.T) {
	require.True(t, IsUser("401"))
	require.False(t, IsUser("130"))
}
