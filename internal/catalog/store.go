package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"
)

// SQLStore persists recovery points to Postgres so the catalog
// survives process restarts.
type SQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLStore connects to Postgres and ensures the schema exists.
func OpenSQLStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	store := &SQLStore{db: db, logger: logger}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an existing database handle (used by tests).
func NewSQLStore(db *sql.DB, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, logger: logger}
}

func (s *SQLStore) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS recovery_points (
			id           TEXT PRIMARY KEY,
			created_at   TIMESTAMPTZ NOT NULL,
			kind         TEXT NOT NULL,
			components   TEXT NOT NULL,
			size_bytes   BIGINT NOT NULL DEFAULT 0,
			checksum     TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			remote_key   TEXT NOT NULL DEFAULT '',
			local_path   TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT ''
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate catalog schema: %w", err)
	}
	return nil
}

// Save upserts a recovery point row.
func (s *SQLStore) Save(ctx context.Context, p *RecoveryPoint) error {
	query := `
		INSERT INTO recovery_points
		(id, created_at, kind, components, size_bytes, checksum, status, remote_key, local_path, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			size_bytes = EXCLUDED.size_bytes,
			checksum   = EXCLUDED.checksum,
			status     = EXCLUDED.status,
			remote_key = EXCLUDED.remote_key,
			local_path = EXCLUDED.local_path,
			error      = EXCLUDED.error
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Timestamp, p.Kind, strings.Join(p.Components, ","),
		p.SizeBytes, p.Checksum, p.Status,
		p.Location.RemoteKey, p.Location.LocalPath, p.Error)
	if err != nil {
		return fmt.Errorf("save recovery point %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes a recovery point row.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM recovery_points WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete recovery point %s: %w", id, err)
	}
	return nil
}

// LoadAll returns every persisted recovery point.
func (s *SQLStore) LoadAll(ctx context.Context) ([]*RecoveryPoint, error) {
	query := `
		SELECT id, created_at, kind, components, size_bytes, checksum,
		       status, remote_key, local_path, error
		FROM recovery_points
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load recovery points: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []*RecoveryPoint
	for rows.Next() {
		var p RecoveryPoint
		var created time.Time
		var components string

		err := rows.Scan(&p.ID, &created, &p.Kind, &components,
			&p.SizeBytes, &p.Checksum, &p.Status,
			&p.Location.RemoteKey, &p.Location.LocalPath, &p.Error)
		if err != nil {
			s.logger.Warn("skipping unreadable catalog row", zap.Error(err))
			continue
		}

		p.Timestamp = created
		if components != "" {
			p.Components = strings.Split(components, ",")
		}
		points = append(points, &p)
	}
	return points, rows.Err()
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
