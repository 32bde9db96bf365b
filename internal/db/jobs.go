package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/slidecast/slidecast/internal/models"
)

func (db *DB) CreateExportJob(ctx context.Context, job *models.ExportJob) error {
	query := `
		INSERT INTO export_jobs (id, project_id, status, progress)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.ProjectID, job.Status, job.Progress,
	).Scan(&job.CreatedAt)
}

func (db *DB) GetExportJob(ctx context.Context, id uuid.UUID) (*models.ExportJob, error) {
	query := `
		SELECT
			id, project_id, status, progress, output_path, error_message,
			skipped_scenes, started_at, finished_at, created_at
		FROM export_jobs
		WHERE id = $1
	`

	job := &models.ExportJob{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.ProjectID, &job.Status, &job.Progress,
		&job.OutputPath, &job.ErrorMessage, &job.SkippedScenes,
		&job.StartedAt, &job.FinishedAt, &job.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("export job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export job: %w", err)
	}

	return job, nil
}

func (db *DB) GetProjectExportJobs(ctx context.Context, projectID uuid.UUID) ([]models.ExportJob, error) {
	query := `
		SELECT
			id, project_id, status, progress, output_path, error_message,
			skipped_scenes, started_at, finished_at, created_at
		FROM export_jobs
		WHERE project_id = $1
		ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query export jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.ExportJob
	for rows.Next() {
		var job models.ExportJob
		if err := rows.Scan(
			&job.ID, &job.ProjectID, &job.Status, &job.Progress,
			&job.OutputPath, &job.ErrorMessage, &job.SkippedScenes,
			&job.StartedAt, &job.FinishedAt, &job.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// HasActiveExport reports whether the project already has a pending or
// running export job. Used to enforce one active export per project.
func (db *DB) HasActiveExport(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM export_jobs
		WHERE project_id = $1 AND status IN ($2, $3)
	`
	err := db.QueryRowContext(ctx, query, projectID,
		models.ExportStatusPending, models.ExportStatusRunning).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count active exports: %w", err)
	}
	return count > 0, nil
}

// MarkExportJobRunning transitions a pending job to running. Returns false
// when the job was cancelled (or otherwise settled) before the worker picked
// it up, in which case the worker must not run it.
func (db *DB) MarkExportJobRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE export_jobs SET status = $1, started_at = $2 WHERE id = $3 AND status = $4`
	res, err := db.ExecContext(ctx, query, models.ExportStatusRunning, time.Now(), id,
		models.ExportStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (db *DB) UpdateExportJobProgress(ctx context.Context, id uuid.UUID, progress float64) error {
	query := `UPDATE export_jobs SET progress = $1 WHERE id = $2`
	_, err := db.ExecContext(ctx, query, progress, id)
	return err
}

func (db *DB) CompleteExportJob(ctx context.Context, id uuid.UUID, outputPath string, skipped []int64) error {
	query := `
		UPDATE export_jobs
		SET status = $1, progress = 1.0, output_path = $2, skipped_scenes = $3, finished_at = $4
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, models.ExportStatusCompleted, outputPath,
		pq.Int64Array(skipped), time.Now(), id)
	return err
}

func (db *DB) FailExportJob(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE export_jobs
		SET status = $1, error_message = $2, finished_at = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.ExportStatusFailed, errorMessage, time.Now(), id)
	return err
}

func (db *DB) CancelExportJob(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE export_jobs
		SET status = $1, finished_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	_, err := db.ExecContext(ctx, query, models.ExportStatusCancelled, time.Now(), id,
		models.ExportStatusPending, models.ExportStatusRunning)
	return err
}
