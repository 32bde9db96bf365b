package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/slidecast/slidecast/internal/models"
)

// GetProjectScenes returns a project's scenes in ascending order index.
// The order index defines playback sequence and is unique per project;
// the pipeline treats this ordering as authoritative.
func (db *DB) GetProjectScenes(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error) {
	query := `
		SELECT
			id, project_id, order_index, narration_text, use_avatar,
			background_ref, audio_duration_ms, created_at, updated_at
		FROM scenes
		WHERE project_id = $1
		ORDER BY order_index
	`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []models.Scene
	for rows.Next() {
		var s models.Scene
		if err := rows.Scan(
			&s.ID, &s.ProjectID, &s.OrderIndex, &s.NarrationText, &s.UseAvatar,
			&s.BackgroundRef, &s.AudioDurationMs, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		scenes = append(scenes, s)
	}

	return scenes, nil
}

func (db *DB) GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	query := `
		SELECT
			id, project_id, order_index, narration_text, use_avatar,
			background_ref, audio_duration_ms, created_at, updated_at
		FROM scenes
		WHERE id = $1
	`

	scene := &models.Scene{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&scene.ID, &scene.ProjectID, &scene.OrderIndex, &scene.NarrationText,
		&scene.UseAvatar, &scene.BackgroundRef, &scene.AudioDurationMs,
		&scene.CreatedAt, &scene.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scene not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}

	return scene, nil
}

// UpdateSceneAudioDuration records the measured narration duration after
// synthesis. Duration is always an output of the pipeline, never an input.
func (db *DB) UpdateSceneAudioDuration(ctx context.Context, id uuid.UUID, durationMs int) error {
	query := `UPDATE scenes SET audio_duration_ms = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, durationMs, id)
	return err
}
