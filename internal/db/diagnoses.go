package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/ConfabulousDev/lovelog/internal/models"
)

const pgUniqueViolation = "23505"

// CreateDiagnosis inserts a diagnosis and fills in its ID and CreatedAt.
// Returns ErrDuplicateDiagnosis if the source message was already stored.
func (db *DB) CreateDiagnosis(ctx context.Context, d *models.Diagnosis) error {
	query := `INSERT INTO diagnoses
		(line_user_id, source_message_id, self_name, other_name, message_count,
		 overall_score, personality, common_words, report, log_object_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	commonWords := d.CommonWords
	if commonWords == nil {
		commonWords = []string{}
	}

	err := db.conn.QueryRowContext(ctx, query,
		d.LineUserID,
		d.SourceMessageID,
		d.SelfName,
		d.OtherName,
		d.MessageCount,
		d.OverallScore,
		d.Personality,
		pq.Array(commonWords),
		[]byte(d.Report),
		d.LogObjectKey,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateDiagnosis
		}
		return fmt.Errorf("failed to create diagnosis: %w", err)
	}
	d.CommonWords = commonWords
	return nil
}

// GetDiagnosis retrieves a diagnosis with its full report
func (db *DB) GetDiagnosis(ctx context.Context, id uuid.UUID) (*models.Diagnosis, error) {
	query := `SELECT id, line_user_id, source_message_id, self_name, other_name,
		message_count, overall_score, personality, common_words, report,
		log_object_key, created_at
		FROM diagnoses WHERE id = $1`

	var d models.Diagnosis
	var commonWords pq.StringArray
	var report []byte
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.LineUserID,
		&d.SourceMessageID,
		&d.SelfName,
		&d.OtherName,
		&d.MessageCount,
		&d.OverallScore,
		&d.Personality,
		&commonWords,
		&report,
		&d.LogObjectKey,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDiagnosisNotFound
		}
		return nil, fmt.Errorf("failed to get diagnosis: %w", err)
	}
	d.CommonWords = []string(commonWords)
	d.Report = report
	return &d, nil
}

// ListDiagnosesByUser returns a user's most recent diagnoses, newest first
func (db *DB) ListDiagnosesByUser(ctx context.Context, lineUserID string, limit int) ([]models.DiagnosisSummary, error) {
	query := `SELECT id, self_name, other_name, message_count, overall_score,
		personality, created_at
		FROM diagnoses
		WHERE line_user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`

	rows, err := db.conn.QueryContext(ctx, query, lineUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnoses: %w", err)
	}
	defer rows.Close()

	summaries := []models.DiagnosisSummary{}
	for rows.Next() {
		var s models.DiagnosisSummary
		if err := rows.Scan(&s.ID, &s.SelfName, &s.OtherName, &s.MessageCount,
			&s.OverallScore, &s.Personality, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan diagnosis: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diagnoses: %w", err)
	}
	return summaries, nil
}

// CountDiagnosesByUser returns how many diagnoses a user has stored
func (db *DB) CountDiagnosesByUser(ctx context.Context, lineUserID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM diagnoses WHERE line_user_id = $1`, lineUserID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count diagnoses: %w", err)
	}
	return count, nil
}

// DeleteDiagnosis removes a diagnosis and returns its archived log key so
// the caller can delete the object too.
func (db *DB) DeleteDiagnosis(ctx context.Context, id uuid.UUID) (*string, error) {
	var logKey *string
	err := db.conn.QueryRowContext(ctx,
		`DELETE FROM diagnoses WHERE id = $1 RETURNING log_object_key`, id).Scan(&logKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDiagnosisNotFound
		}
		return nil, fmt.Errorf("failed to delete diagnosis: %w", err)
	}
	return logKey, nil
}
