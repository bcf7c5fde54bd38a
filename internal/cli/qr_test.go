package cli

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteDataURL(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)
	path := filepath.Join(t.TempDir(), "qr.png")

	require.NoError(t, writeDataURL(path, url))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriteDataURL_BadFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qr.png")
	require.Error(t, writeDataURL(path, "not a data url"))
	require.Error(t, writeDataURL(path, "data:image/png;base64,@@@"))
}
