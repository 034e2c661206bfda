package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/exexexll/figwork-knowledge/internal/config"
	"github.com/exexexll/figwork-knowledge/internal/core"
	"github.com/exexexll/figwork-knowledge/internal/models"
)

// DatabaseClient implements core.DbClient on Postgres with pgvector.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, tenant_id, collection_id, file_name, storage_url, format, status, status_reason, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), COALESCE($10, now()))
		ON CONFLICT (id) DO UPDATE
			SET storage_url = EXCLUDED.storage_url,
			    format      = EXCLUDED.format,
			    file_name   = EXCLUDED.file_name,
			    updated_at  = now()
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.TenantID, doc.CollectionID, doc.FileName, doc.StorageURL,
		doc.Format, doc.Status, doc.StatusReason, doc.CreatedAt, doc.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, tenant_id, collection_id, file_name, storage_url, format, status, status_reason, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.TenantID, &d.CollectionID, &d.FileName, &d.StorageURL,
		&d.Format, &d.Status, &d.StatusReason, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ClaimDocument takes the processing lease via compare-and-set on status. Two
// concurrent jobs for the same document can both be enqueued; only one update
// matches, so only one worker proceeds.
func (c *DatabaseClient) ClaimDocument(ctx context.Context, id string) (bool, error) {
	const q = `
		UPDATE documents
		SET status = $2, status_reason = '', updated_at = now()
		WHERE id = $1 AND status IN ($3, $4, $5)
	`
	res, err := c.db.ExecContext(ctx, q, id,
		models.StatusProcessing, models.StatusPending, models.StatusReady, models.StatusError)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, core.ErrDocumentNotFound
	}
	return false, nil
}

func (c *DatabaseClient) SetDocumentStatus(ctx context.Context, id, status, reason string) error {
	const q = `
		UPDATE documents
		SET status = $2, status_reason = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status, reason)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrDocumentNotFound
	}
	return nil
}

// ReplaceDocumentChunks swaps the document's chunk set in one transaction:
// readers see the old set or the new set, never a partial mix, and retries
// never leave duplicate rows.
func (c *DatabaseClient) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []models.DocumentChunk) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		_ = tx.Rollback()
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, tenant_id, collection_id, position, content, token_count, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.TenantID, ch.CollectionID, ch.Position,
			ch.Content, ch.TokenCount, vec, ch.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, tenant_id, collection_id, position, content, token_count, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY position ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var ch models.DocumentChunk
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.TenantID, &ch.CollectionID,
			&ch.Position, &ch.Content, &ch.TokenCount, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// SearchChunks finds the top-limit chunks nearest to the query embedding by
// cosine distance, scoped to one tenant and collection.
func (c *DatabaseClient) SearchChunks(ctx context.Context, tenantID, collectionID string, queryVec []float32, limit int) ([]models.ScoredChunk, error) {
	const q = `
		SELECT id, document_id, tenant_id, collection_id, position, content, token_count, created_at,
		       1 - (embedding <=> $3) AS similarity
		FROM document_chunks
		WHERE tenant_id = $1 AND collection_id = $2
		ORDER BY embedding <=> $3
		LIMIT $4
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, tenantID, collectionID, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		if err := rows.Scan(
			&sc.ID, &sc.DocumentID, &sc.TenantID, &sc.CollectionID,
			&sc.Position, &sc.Content, &sc.TokenCount, &sc.CreatedAt, &sc.Similarity,
		); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListStuckDocuments returns documents sitting in processing (worker crash
// mid-pipeline) or pending (lost enqueue) longer than olderThan.
func (c *DatabaseClient) ListStuckDocuments(ctx context.Context, olderThan time.Duration, limit int) ([]models.Document, error) {
	const q = `
		SELECT id, tenant_id, collection_id, file_name, storage_url, format, status, status_reason, created_at, updated_at
		FROM documents
		WHERE status IN ($1, $2) AND updated_at < now() - ($3 * interval '1 second')
		ORDER BY updated_at ASC
		LIMIT $4
	`
	rows, err := c.db.QueryContext(ctx, q, models.StatusProcessing, models.StatusPending, int64(olderThan.Seconds()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.CollectionID, &d.FileName, &d.StorageURL,
			&d.Format, &d.Status, &d.StatusReason, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
