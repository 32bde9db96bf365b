package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/slidecast/slidecast/internal/models"
)

// GetSceneAssets returns a scene's assets in ascending layer order — the
// order in which the compositor stacks them.
func (db *DB) GetSceneAssets(ctx context.Context, sceneID uuid.UUID) ([]models.Asset, error) {
	query := `
		SELECT
			id, scene_id, type, file_path, url, layer,
			pos_x, pos_y, scale, opacity, meta, created_at
		FROM assets
		WHERE scene_id = $1
		ORDER BY layer
	`

	rows, err := db.QueryContext(ctx, query, sceneID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(
			&a.ID, &a.SceneID, &a.Type, &a.FilePath, &a.URL, &a.Layer,
			&a.PosX, &a.PosY, &a.Scale, &a.Opacity, &a.Meta, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}

	return assets, nil
}
