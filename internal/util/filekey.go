package util

import (
	"bytes"
	"crypto/sha1"
	"fmt"

	"github.com/spf13/afero"
)

// ContentHash creates a SHA1 hash of a migration file's content with
// surrounding whitespace trimmed, which is what gets registered. It matches
// HashBytes of the registered content.
func ContentHash(fs afero.Fs, path string) (string, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return HashBytes(bytes.TrimSpace(raw)), nil
}

// HashBytes is the SHA1 hex digest of content
func HashBytes(content []byte) string {
	return fmt.Sprintf("%x", sha1.Sum(content))
}
