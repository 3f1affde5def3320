package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/franz/camo/internal/registry"
	"github.com/franz/camo/internal/util"
)

// Connect checks the database is reachable
func (s *Store) Connect(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach ledger database: %w", err)
	}
	return nil
}

// CheckContentType returns registry.ErrContentTypeNotFound until
// CreateContentType has run
func (s *Store) CheckContentType(ctx context.Context) error {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM content_types WHERE id = ?", s.typeID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", registry.ErrContentTypeNotFound, s.typeID)
	}
	if err != nil {
		return fmt.Errorf("failed to query content type: %w", err)
	}
	return nil
}

// CreateContentType records the migration content type
func (s *Store) CreateContentType(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_types (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, s.typeID, s.typeName, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("failed to create content type %s: %w", s.typeID, err)
	}
	util.DebugLog("Ledger: created content type %s (%s)", s.typeID, s.typeName)
	return nil
}

// Entries returns every registered migration, oldest first
func (s *Store) Entries(ctx context.Context) ([]registry.Entry, error) {
	if err := s.CheckContentType(ctx); err != nil {
		return nil, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE content_type_id = ?", s.typeID,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	if err := registry.CheckTotal(total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, content, created_at FROM entries
		WHERE content_type_id = ?
		ORDER BY created_at, rowid
		LIMIT ?
	`, s.typeID, registry.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]registry.Entry, 0, total)
	for rows.Next() {
		var e registry.Entry
		if err := rows.Scan(&e.Name, &e.Content, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if t, err := registry.ParseAppliedAt(e.AppliedAt); err == nil {
			e.CreatedAt = t.In(s.loc)
		} else {
			util.WarnLog("Ledger: %v", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}

	return entries, nil
}

// Register records an applied migration. Applying the same migration again
// replaces its content and apply time.
func (s *Store) Register(ctx context.Context, name, content string) error {
	if err := s.CheckContentType(ctx); err != nil {
		return err
	}

	return s.transaction(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries (id, content_type_id, name, content, checksum, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(content_type_id, name) DO UPDATE SET
				content = excluded.content,
				checksum = excluded.checksum,
				created_at = excluded.created_at
		`, uuid.NewString(), s.typeID, name, content, util.HashBytes([]byte(content)), formatTime(s.now()))
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
		util.DebugLog("Ledger: registered %s", name)
		return nil
	})
}

// Checksum returns the checksum of the content recorded for name, or
// util.ErrNotFound
func (s *Store) Checksum(ctx context.Context, name string) (string, error) {
	var sum string
	err := s.db.QueryRowContext(ctx,
		"SELECT checksum FROM entries WHERE content_type_id = ? AND name = ?", s.typeID, name,
	).Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", util.ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query checksum: %w", err)
	}
	return sum, nil
}

// storedLayout is fixed width so timestamps sort as text
const storedLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedLayout)
}
