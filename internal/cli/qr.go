package cli

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// writeDataURL decodes a base64 data URL as returned by the service
// (data:image/png;base64,...) and writes the raw bytes to path.
func writeDataURL(path, dataURL string) error {
	_, encoded, found := strings.Cut(dataURL, ";base64,")
	if !found {
		return fmt.Errorf("unsupported QR data URL format")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode QR data URL: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write QR image: %w", err)
	}
	return nil
}
