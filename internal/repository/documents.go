package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperhold/docvault/internal/common"
	"github.com/paperhold/docvault/internal/entity"
)

type DocumentRepository interface {
	Create(ctx context.Context, rec *entity.DocumentRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.DocumentRecord, error)
	UpdateMetadata(ctx context.Context, id uuid.UUID, meta entity.DocumentMetadata) error
	SetThumbnail(ctx context.Context, id uuid.UUID, png []byte) error
	GetThumbnail(ctx context.Context, id uuid.UUID) ([]byte, error)
	Delete(ctx context.Context, id uuid.UUID) (*entity.DocumentRecord, error)
	ListBetween(ctx context.Context, fromDate, toDate *time.Time) ([]*entity.DocumentRecord, error)
}

type documentRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDocumentRepository(pool *pgxpool.Pool, logger *slog.Logger) DocumentRepository {
	return &documentRepository{pool: pool, logger: logger}
}

const documentColumns = `id, filename, content_type, file_size, storage_path, resized_path,
	extracted_text, extraction_method, extraction_confidence,
	document_type, owner_name, category, issue_date, expiry_date, country,
	amount_value, amount_currency, metadata, created_at, updated_at`

func (r *documentRepository) Create(ctx context.Context, rec *entity.DocumentRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (id, filename, content_type, file_size, storage_path, resized_path,
			extracted_text, extraction_method, extraction_confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Filename, rec.ContentType, rec.FileSize, rec.StoragePath, nullStr(rec.ResizedPath),
		rec.ExtractedText, string(rec.ExtractionMethod), rec.ExtractionConfidence,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to insert document", "document_id", rec.ID, "error", err)
		return err
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.DocumentRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	rec, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("DOCUMENT_NOT_FOUND", "document not found", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to load document", "document_id", id, "error", err)
		return nil, err
	}
	return rec, nil
}

// UpdateMetadata promotes typed columns and attaches the overflow bag. Only
// non-nil values are written, so a re-run can add fields but never blank one.
func (r *documentRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, meta entity.DocumentMetadata) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents SET
			document_type   = COALESCE($2, document_type),
			owner_name      = COALESCE($3, owner_name),
			category        = COALESCE($4, category),
			issue_date      = COALESCE($5, issue_date),
			expiry_date     = COALESCE($6, expiry_date),
			country         = COALESCE($7, country),
			amount_value    = COALESCE($8, amount_value),
			amount_currency = COALESCE($9, amount_currency),
			metadata        = COALESCE(metadata, '{}'::jsonb) || COALESCE($10, '{}'::jsonb),
			updated_at      = now()
		WHERE id = $1`,
		id, meta.DocumentType, meta.OwnerName, meta.Category, meta.IssueDate, meta.ExpiryDate,
		meta.Country, meta.AmountValue, meta.AmountCurrency, meta.Overflow)
	if err != nil {
		r.logger.Error("failed to update document metadata", "document_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError("DOCUMENT_NOT_FOUND", "document not found", common.ErrNotFound)
	}
	return nil
}

func (r *documentRepository) SetThumbnail(ctx context.Context, id uuid.UUID, png []byte) error {
	_, err := r.pool.Exec(ctx, `UPDATE documents SET thumbnail = $2, updated_at = now() WHERE id = $1`, id, png)
	if err != nil {
		r.logger.Error("failed to store thumbnail", "document_id", id, "error", err)
	}
	return err
}

func (r *documentRepository) GetThumbnail(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var png []byte
	err := r.pool.QueryRow(ctx, `SELECT thumbnail FROM documents WHERE id = $1`, id).Scan(&png)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && len(png) == 0) {
		return nil, common.NewAppError("THUMBNAIL_NOT_FOUND", "thumbnail not available", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to load thumbnail", "document_id", id, "error", err)
		return nil, err
	}
	return png, nil
}

// Delete removes the row and returns it so the caller can clean up the
// stored files.
func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) (*entity.DocumentRecord, error) {
	row := r.pool.QueryRow(ctx, `DELETE FROM documents WHERE id = $1 RETURNING `+documentColumns, id)
	rec, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("DOCUMENT_NOT_FOUND", "document not found", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to delete document", "document_id", id, "error", err)
		return nil, err
	}
	return rec, nil
}

func (r *documentRepository) ListBetween(ctx context.Context, fromDate, toDate *time.Time) ([]*entity.DocumentRecord, error) {
	q := `SELECT ` + documentColumns + ` FROM documents`
	args := make([]any, 0, 2)
	where := ""
	if fromDate != nil {
		args = append(args, *fromDate)
		where = ` WHERE created_at >= $1`
	}
	if toDate != nil {
		args = append(args, *toDate)
		if where == "" {
			where = ` WHERE created_at <= $1`
		} else {
			where += ` AND created_at <= $2`
		}
	}
	rows, err := r.pool.Query(ctx, q+where+` ORDER BY created_at`, args...)
	if err != nil {
		r.logger.Error("failed to list documents", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.DocumentRecord
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanDocument(row pgx.Row) (*entity.DocumentRecord, error) {
	var rec entity.DocumentRecord
	var resized *string
	var method *string
	err := row.Scan(&rec.ID, &rec.Filename, &rec.ContentType, &rec.FileSize, &rec.StoragePath, &resized,
		&rec.ExtractedText, &method, &rec.ExtractionConfidence,
		&rec.DocumentType, &rec.OwnerName, &rec.Category, &rec.IssueDate, &rec.ExpiryDate, &rec.Country,
		&rec.AmountValue, &rec.AmountCurrency, &rec.Metadata, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if resized != nil {
		rec.ResizedPath = *resized
	}
	if method != nil {
		rec.ExtractionMethod = entity.ExtractionMethod(*method)
	}
	return &rec, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
