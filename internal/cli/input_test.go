package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("alice\n"), "Username", &out)
	require.NoError(t, err)
	require.Equal(t, "alice", got)
	require.Contains(t, out.String(), "Username")
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Username", &out)
	require.NoError(t, err)
	require.Equal(t, "lastline", got)
}

func TestGetPassword_Error(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(int) ([]byte, error) {
		return nil, errors.New("boom")
	}
	var out bytes.Buffer
	_, err := GetPassword("Password", &out)
	require.Error(t, err)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"lowercase y", "y\n", true},
		{"uppercase Y", "Y\n", true},
		{"full yes", "yes\n", true},
		{"explicit no", "n\n", false},
		{"empty defaults to no", "\n", false},
		{"garbage is no", "maybe\n", false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := Confirm(rdr(tc.input), "Proceed?", &out)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}
