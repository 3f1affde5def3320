package migration

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// filenamePattern matches "<digits>-<kebab-case-description>.<js|ts>"
var filenamePattern = regexp.MustCompile(`(?i)^[0-9]+-[a-z0-9-]+\.[jt]s$`)

// IsValidFilename reports whether name is a migration filename such as
// "100-add-field.ts". Names that fail this check are ignored everywhere.
func IsValidFilename(name string) bool {
	return filenamePattern.MatchString(name)
}

// Basename returns the filename without its extension
func Basename(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ID parses the leading digit run of a migration filename.
// Only meaningful for names that pass IsValidFilename; anything else yields 0.
func ID(name string) int {
	end := strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' })
	if end == -1 {
		end = len(name)
	}
	id, err := strconv.Atoi(name[:end])
	if err != nil {
		return 0
	}
	return id
}
