package store

import (
	"testing"

	"github.com/zalando/go-keyring"
)

// keyringMockInit swaps the real system keyring for the library's
// in-memory mock so tests never touch the host secret service.
func keyringMockInit(t *testing.T) {
	t.Helper()
	keyring.MockInit()
}
