package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Enums

type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusExporting ProjectStatus = "exporting"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusFailed    ProjectStatus = "failed"
)

type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusCompleted ExportStatus = "completed"
	ExportStatusFailed    ExportStatus = "failed"
	ExportStatusCancelled ExportStatus = "cancelled"
)

// IsTerminal reports whether the export job can no longer change state.
func (s ExportStatus) IsTerminal() bool {
	return s == ExportStatusCompleted || s == ExportStatusFailed || s == ExportStatusCancelled
}

type AssetType string

const (
	AssetTypeImage   AssetType = "image"
	AssetTypeVideo   AssetType = "video"
	AssetTypeAudio   AssetType = "audio"
	AssetTypeText    AssetType = "text"
	AssetTypeOverlay AssetType = "overlay"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

type Project struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"`
	Status         ProjectStatus `json:"status"`
	FinalVideoPath *string       `json:"final_video_path,omitempty"`
	StorageObject  *string       `json:"storage_object,omitempty"` // Object name in MinIO when promoted
	ErrorCode      *string       `json:"error_code,omitempty"`
	ErrorMessage   *string       `json:"error_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Scene is one ordered segment of a project's output video.
// OrderIndex is unique within a project and defines playback sequence.
// AudioDurationMs is derived from the synthesized narration after an export
// runs — it is never an input to synthesis.
type Scene struct {
	ID              uuid.UUID `json:"id"`
	ProjectID       uuid.UUID `json:"project_id"`
	OrderIndex      int       `json:"order_index"`
	NarrationText   string    `json:"narration_text"`
	UseAvatar       bool      `json:"use_avatar"`
	BackgroundRef   *string   `json:"background_ref,omitempty"`
	AudioDurationMs *int      `json:"audio_duration_ms,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Asset is a positioned media element attached to a scene. Assets are
// composited in ascending Layer order; by convention the layer-0 image
// asset is the scene background. Type-specific fields (font, volume,
// animation) live in Meta.
type Asset struct {
	ID        uuid.UUID `json:"id"`
	SceneID   uuid.UUID `json:"scene_id"`
	Type      AssetType `json:"type"`
	FilePath  string    `json:"file_path"`
	URL       *string   `json:"url,omitempty"`
	Layer     int       `json:"layer"`
	PosX      float64   `json:"pos_x"`
	PosY      float64   `json:"pos_y"`
	Scale     float64   `json:"scale"`
	Opacity   float64   `json:"opacity"`
	Meta      JSONB     `json:"meta,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsBackground reports whether this asset is the scene's background by
// convention (layer 0, type image).
func (a *Asset) IsBackground() bool {
	return a.Type == AssetTypeImage && a.Layer == 0
}

// ExportJob is one asynchronous export run of a project.
// State machine: pending → running → (completed | failed | cancelled).
type ExportJob struct {
	ID            uuid.UUID     `json:"id"`
	ProjectID     uuid.UUID     `json:"project_id"`
	Status        ExportStatus  `json:"status"`
	Progress      float64       `json:"progress"` // 0..1
	OutputPath    *string       `json:"output_path,omitempty"`
	ErrorMessage  *string       `json:"error_message,omitempty"`
	SkippedScenes pq.Int64Array `json:"skipped_scenes,omitempty"` // Order indices skipped under the skip policy
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// DTOs for API requests and responses

type CreateProjectRequest struct {
	Name string `json:"name"`
}

type ProjectResponse struct {
	Project
	Scenes []SceneResponse `json:"scenes,omitempty"`
}

type SceneResponse struct {
	Scene
	Assets []Asset `json:"assets,omitempty"`
}

type StartExportResponse struct {
	JobID  uuid.UUID    `json:"job_id"`
	Status ExportStatus `json:"status"`
}

// ExportStatusResponse is the payload for GET /v1/exports/{id}.
// ErrorMessage is a human-readable string — never a stack trace.
type ExportStatusResponse struct {
	JobID         uuid.UUID    `json:"job_id"`
	ProjectID     uuid.UUID    `json:"project_id"`
	Status        ExportStatus `json:"status"`
	Progress      float64      `json:"progress"`
	OutputPath    *string      `json:"output_path,omitempty"`
	Error         *string      `json:"error,omitempty"`
	SkippedScenes []int64      `json:"skipped_scenes,omitempty"`
}

type ListProjectsResponse struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}
