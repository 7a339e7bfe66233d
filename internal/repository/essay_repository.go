package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/haneul-lab/essay-feedback-api/internal/models"
	appErrors "github.com/haneul-lab/essay-feedback-api/pkg/errors"
)

const essayColumns = `process_id, status, current_step, essay_id, student_essay, prompt,
lesson_context, evaluation, ai_feedback, teacher_correction, lesson_feedback,
report_status, error_message, created_at, updated_at`

// EssayRepository persists essay lifecycle records.
type EssayRepository struct {
	db *sqlx.DB
}

// NewEssayRepository constructs the repository.
func NewEssayRepository(db *sqlx.DB) *EssayRepository {
	return &EssayRepository{db: db}
}

// List returns every record in insertion order.
func (r *EssayRepository) List(ctx context.Context) ([]models.EssayRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM essay_records ORDER BY created_at ASC, process_id ASC`, essayColumns)
	var records []models.EssayRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list essay records: %w", err)
	}
	return records, nil
}

// GetByProcessID returns a single record. sql.ErrNoRows is passed through for
// callers to map.
func (r *EssayRepository) GetByProcessID(ctx context.Context, processID string) (*models.EssayRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM essay_records WHERE process_id = $1`, essayColumns)
	var record models.EssayRecord
	if err := r.db.GetContext(ctx, &record, query, processID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get essay record: %w", err)
	}
	return &record, nil
}

// Insert creates a new record row. A duplicate process_id yields ErrDuplicateKey.
func (r *EssayRepository) Insert(ctx context.Context, record *models.EssayRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	if record.Status == "" {
		record.Status = models.StatusReceived
	}
	if record.CurrentStep == 0 {
		record.CurrentStep = record.Status.Step()
	}
	const query = `INSERT INTO essay_records (process_id, status, current_step, essay_id, student_essay, prompt,
lesson_context, evaluation, ai_feedback, teacher_correction, lesson_feedback,
report_status, error_message, created_at, updated_at)
VALUES (:process_id, :status, :current_step, :essay_id, :student_essay, :prompt,
:lesson_context, :evaluation, :ai_feedback, :teacher_correction, :lesson_feedback,
:report_status, :error_message, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return appErrors.Clone(appErrors.ErrDuplicateKey, fmt.Sprintf("process %s already exists", record.ProcessID))
		}
		return fmt.Errorf("insert essay record: %w", err)
	}
	return nil
}

// Mutator applies an in-place change to a locked record. Returning an error
// aborts the update and rolls the transaction back.
type Mutator func(*models.EssayRecord) error

// UpdateByProcessID applies the mutator under a row lock so that concurrent
// updates to the same key serialize while different keys proceed in parallel.
// The updated record is committed and returned; sql.ErrNoRows is passed
// through when the key is absent.
func (r *EssayRepository) UpdateByProcessID(ctx context.Context, processID string, mutate Mutator) (*models.EssayRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin essay update tx: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM essay_records WHERE process_id = $1 FOR UPDATE`, essayColumns)
	var record models.EssayRecord
	if err := tx.GetContext(ctx, &record, query, processID); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock essay record: %w", err)
	}

	if err := mutate(&record); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	record.UpdatedAt = time.Now().UTC()
	record.CurrentStep = record.Status.Step()

	const update = `UPDATE essay_records SET status = :status, current_step = :current_step,
evaluation = :evaluation, ai_feedback = :ai_feedback, teacher_correction = :teacher_correction,
lesson_feedback = :lesson_feedback, report_status = :report_status,
error_message = :error_message, updated_at = :updated_at
WHERE process_id = :process_id`
	if _, err := tx.NamedExecContext(ctx, update, &record); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("update essay record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit essay update tx: %w", err)
	}
	return &record, nil
}

// ListPendingDrafts fetches records still awaiting a draft, oldest first.
// Used for cold start recovery of interrupted drafting jobs.
func (r *EssayRepository) ListPendingDrafts(ctx context.Context, limit int) ([]models.EssayRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM essay_records
WHERE status = $1 AND error_message IS NULL ORDER BY created_at ASC LIMIT $2`, essayColumns)
	var records []models.EssayRecord
	if err := r.db.SelectContext(ctx, &records, query, models.StatusReceived, limit); err != nil {
		return nil, fmt.Errorf("list pending drafts: %w", err)
	}
	return records, nil
}
