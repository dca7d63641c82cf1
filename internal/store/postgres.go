package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertNovel ensures the parent row exists; an existing row keeps its
// manuscript and pointer fields.
func (s *PostgresStore) UpsertNovel(ctx context.Context, item Novel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO novels (id, final_manuscript)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.FinalManuscript)
	if err != nil {
		return fmt.Errorf("upsert novel: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNovel(ctx context.Context, novelID string) (Novel, error) {
	var item Novel
	err := s.db.QueryRowContext(ctx, `
		SELECT id, final_manuscript, current_version_id, created_at
		FROM novels
		WHERE id=$1
	`, novelID).Scan(&item.ID, &item.FinalManuscript, &item.CurrentVersionID, &item.CreatedAt)
	if err != nil {
		return Novel{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, novelID string) ([]NovelVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, novel_id, content, plain_text, word_count, is_auto_save, version_number, description, created_at
		FROM novel_versions
		WHERE novel_id=$1
		ORDER BY created_at DESC
	`, novelID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	items := make([]NovelVersion, 0)
	for rows.Next() {
		var item NovelVersion
		if err := rows.Scan(
			&item.ID,
			&item.NovelID,
			&item.Content,
			&item.PlainText,
			&item.WordCount,
			&item.IsAutoSave,
			&item.VersionNumber,
			&item.Description,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return items, nil
}

// LatestVersionNumber returns 0 when the novel has no versions yet.
func (s *PostgresStore) LatestVersionNumber(ctx context.Context, novelID string) (int, error) {
	var latest int
	err := s.db.QueryRowContext(ctx, `
		SELECT version_number
		FROM novel_versions
		WHERE novel_id=$1
		ORDER BY version_number DESC
		LIMIT 1
	`, novelID).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("latest version number: %w", err)
	}
	return latest, nil
}

func (s *PostgresStore) InsertVersion(ctx context.Context, item NovelVersion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO novel_versions (id, novel_id, content, plain_text, word_count, is_auto_save, version_number, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.NovelID, item.Content, item.PlainText, item.WordCount, item.IsAutoSave, item.VersionNumber, item.Description)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// SetCurrentVersion moves the novel's current-version pointer and refreshes
// its plain-text projection.
func (s *PostgresStore) SetCurrentVersion(ctx context.Context, novelID, versionID, manuscript string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE novels
		SET final_manuscript=$2, current_version_id=$3
		WHERE id=$1
	`, novelID, manuscript, versionID)
	if err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	return nil
}
