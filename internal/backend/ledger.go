package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UploadRecord is one row of the completed-upload ledger.
type UploadRecord struct {
	Key         string    `json:"key"`
	BucketID    string    `json:"bucket_id"`
	Size        int64     `json:"size"`
	PartCount   int       `json:"part_count"`
	ContentType string    `json:"content_type"`
	CompletedAt time.Time `json:"completed_at"`
}

// UploadLedger records finalized uploads in MySQL. The ledger is an audit
// surface and a fast existence check for previews; the object store stays
// authoritative for the bytes.
type UploadLedger struct {
	db *sql.DB
}

// NewUploadLedger opens the MySQL connection and verifies it.
func NewUploadLedger(dsn string) (*UploadLedger, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &UploadLedger{db: db}, nil
}

// Close closes the database connection.
func (ul *UploadLedger) Close() error {
	return ul.db.Close()
}

// RecordUpload inserts one completed upload.
func (ul *UploadLedger) RecordUpload(ctx context.Context, rec *UploadRecord) error {
	ctx, span := tracer.Start(ctx, "mysql.record_upload",
		trace.WithAttributes(
			attribute.String("object_key", rec.Key),
			attribute.String("bucket_id", rec.BucketID),
			attribute.Int64("size", rec.Size),
		),
	)
	defer span.End()

	query := `INSERT INTO uploads (object_key, bucket_id, size, part_count, content_type, completed_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err := ul.db.ExecContext(ctx, query,
		rec.Key, rec.BucketID, rec.Size, rec.PartCount, rec.ContentType, rec.CompletedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert upload record: %w", err)
	}

	return nil
}

// GetUpload returns the record for key, or (nil, nil) if the key was never
// finalized.
func (ul *UploadLedger) GetUpload(ctx context.Context, key string) (*UploadRecord, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_upload",
		trace.WithAttributes(attribute.String("object_key", key)),
	)
	defer span.End()

	query := `SELECT object_key, bucket_id, size, part_count, content_type, completed_at
			  FROM uploads WHERE object_key = ?`

	var rec UploadRecord
	err := ul.db.QueryRowContext(ctx, query, key).Scan(
		&rec.Key,
		&rec.BucketID,
		&rec.Size,
		&rec.PartCount,
		&rec.ContentType,
		&rec.CompletedAt,
	)

	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, nil
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query upload record: %w", err)
	}

	return &rec, nil
}
