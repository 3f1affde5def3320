package registry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// MaxEntries is the most registered migrations a single fetch may return.
	// The ledger is never paged; more than this is an error.
	MaxEntries = 1000

	// DefaultEnvironmentID is used when no environment is configured
	DefaultEnvironmentID = "master"

	// DefaultContentTypeID is the content type that holds registered migrations
	DefaultContentTypeID = "contentfulMigration"

	// DefaultContentTypeName is the display name of that content type
	DefaultContentTypeName = "Contentful Migration"

	// AppliedAtLayout formats apply times, e.g. "Wed, 25 May 2022, 11:18:46 AEST"
	AppliedAtLayout = "Mon, 02 Jan 2006, 15:04:05 MST"

	// NamePattern is the validation put on the content type's name field
	NamePattern = "^[0-9]+-[a-zA-Z0-9-]+.[jt]s"
)

var (
	// ErrContentTypeNotFound means the ledger has no migration content type
	// yet. CreateContentType recovers from it.
	ErrContentTypeNotFound = errors.New("could not find the migration content type")

	// ErrTooManyEntries means more than MaxEntries migrations are registered
	ErrTooManyEntries = fmt.Errorf("there are more than %d migrations registered, that is more than this tool can manage", MaxEntries)

	// ErrNoDefaultLocale means the space has no default locale to read fields in
	ErrNoDefaultLocale = errors.New("could not retrieve the default locale")

	// ErrNotConnected means Connect has not been called successfully
	ErrNotConnected = errors.New("the ledger client is not connected")
)

// Entry is one registered (applied) migration
type Entry struct {
	Name      string
	Content   string
	AppliedAt string // raw timestamp as stored by the ledger
	CreatedAt time.Time
}

// Formatted renders the apply time for humans in loc
func (e Entry) Formatted(loc *time.Location) string {
	if e.CreatedAt.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return e.CreatedAt.In(loc).Format(AppliedAtLayout)
}

// Ledger records which migrations have been applied to a target
type Ledger interface {
	// Connect prepares the ledger for use
	Connect(ctx context.Context) error

	// CheckContentType returns ErrContentTypeNotFound if the ledger has not
	// been initialised
	CheckContentType(ctx context.Context) error

	// CreateContentType initialises the ledger
	CreateContentType(ctx context.Context) error

	// Entries returns every registered migration, oldest first
	Entries(ctx context.Context) ([]Entry, error)

	// Register records that the migration name with content was applied
	Register(ctx context.Context, name, content string) error
}

// Checksummer is implemented by ledgers that keep a checksum of the content
// each migration was registered with
type Checksummer interface {
	Checksum(ctx context.Context, name string) (string, error)
}

// CheckTotal fails with ErrTooManyEntries when total exceeds MaxEntries
func CheckTotal(total int) error {
	if total > MaxEntries {
		return fmt.Errorf("%w (%d registered)", ErrTooManyEntries, total)
	}
	return nil
}

// ParseAppliedAt parses a ledger timestamp, accepting RFC3339 with or without
// fractional seconds
func ParseAppliedAt(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid applied timestamp %q: %w", raw, err)
	}
	return t, nil
}
