package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/slidecast/slidecast/internal/db"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/queue"
	"github.com/slidecast/slidecast/internal/storage"
)

// Canceler requests cancellation of a running export. Implemented by the
// worker; reports false when the job is not running in this process.
type Canceler interface {
	Cancel(jobID uuid.UUID) bool
}

type Handler struct {
	db       *db.DB
	queue    *queue.Queue
	storage  *storage.Storage // nil = local file serving only
	canceler Canceler         // nil = worker disabled in this process
}

func NewHandler(database *db.DB, q *queue.Queue, stor *storage.Storage, canceler Canceler) *Handler {
	return &Handler{
		db:       database,
		queue:    q,
		storage:  stor,
		canceler: canceler,
	}
}

// CreateProject handles POST /v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	project := &models.Project{
		ID:     uuid.New(),
		Name:   req.Name,
		Status: models.ProjectStatusDraft,
	}

	if err := h.db.CreateProject(r.Context(), project); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

// ListProjects handles GET /v1/projects
// Query params:
//   - status: filter by project status (draft, exporting, completed, failed)
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" {
		switch models.ProjectStatus(statusFilter) {
		case models.ProjectStatusDraft, models.ProjectStatusExporting,
			models.ProjectStatusCompleted, models.ProjectStatusFailed:
			// valid
		default:
			respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: draft, exporting, completed, failed")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.db.CountProjects(r.Context(), statusFilter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count projects")
		return
	}

	projects, err := h.db.ListProjects(r.Context(), statusFilter, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	respondJSON(w, http.StatusOK, models.ListProjectsResponse{
		Projects: projects,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// GetProject handles GET /v1/projects/{id} — the full project tree with
// scenes in playback order and each scene's assets in layer order.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	scenes, err := h.db.GetProjectScenes(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get scenes")
		return
	}

	sceneResponses := make([]models.SceneResponse, 0, len(scenes))
	for _, scene := range scenes {
		assets, err := h.db.GetSceneAssets(r.Context(), scene.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to get scene assets")
			return
		}
		sceneResponses = append(sceneResponses, models.SceneResponse{
			Scene:  scene,
			Assets: assets,
		})
	}

	respondJSON(w, http.StatusOK, models.ProjectResponse{
		Project: *project,
		Scenes:  sceneResponses,
	})
}

// StartExport handles POST /v1/projects/{id}/export
// Creates a pending export job and enqueues it. Returns 409 when the
// project already has an active export.
func (h *Handler) StartExport(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	scenes, err := h.db.GetProjectScenes(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get scenes")
		return
	}
	if len(scenes) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "Project has no scenes to export")
		return
	}

	active, err := h.db.HasActiveExport(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to check active exports")
		return
	}
	if active {
		respondError(w, http.StatusConflict, "Project already has an active export")
		return
	}

	job := &models.ExportJob{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Status:    models.ExportStatusPending,
	}

	if err := h.db.CreateExportJob(r.Context(), job); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create export job")
		return
	}

	if err := h.queue.EnqueueExport(r.Context(), project.ID, job.ID); err != nil {
		h.db.FailExportJob(r.Context(), job.ID, "failed to enqueue export")
		respondError(w, http.StatusInternalServerError, "Failed to enqueue export")
		return
	}

	respondJSON(w, http.StatusAccepted, models.StartExportResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// GetExportStatus handles GET /v1/exports/{id}
func (h *Handler) GetExportStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid export job ID")
		return
	}

	job, err := h.db.GetExportJob(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Export job not found")
		return
	}

	respondJSON(w, http.StatusOK, models.ExportStatusResponse{
		JobID:         job.ID,
		ProjectID:     job.ProjectID,
		Status:        job.Status,
		Progress:      job.Progress,
		OutputPath:    job.OutputPath,
		Error:         job.ErrorMessage,
		SkippedScenes: job.SkippedScenes,
	})
}

// CancelExport handles POST /v1/exports/{id}/cancel
// Pending jobs are cancelled in the database before pickup; running jobs
// are cancelled through the worker's job context. Terminal jobs are final.
func (h *Handler) CancelExport(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid export job ID")
		return
	}

	job, err := h.db.GetExportJob(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Export job not found")
		return
	}

	if job.Status.IsTerminal() {
		respondError(w, http.StatusConflict, "Export job already finished")
		return
	}

	switch job.Status {
	case models.ExportStatusPending:
		if err := h.db.CancelExportJob(r.Context(), jobID); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to cancel export job")
			return
		}
	case models.ExportStatusRunning:
		if h.canceler == nil || !h.canceler.Cancel(jobID) {
			respondError(w, http.StatusConflict, "Export job is not running in this process")
			return
		}
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// GetProjectDownload handles GET /v1/projects/{id}/download
// Redirects to a presigned object URL when the final video was promoted to
// object storage; serves the local file otherwise.
func (h *Handler) GetProjectDownload(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	if h.storage != nil && project.StorageObject != nil {
		signedURL, err := h.storage.PresignedURL(r.Context(), *project.StorageObject)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
			return
		}
		http.Redirect(w, r, signedURL, http.StatusTemporaryRedirect)
		return
	}

	if project.FinalVideoPath == nil {
		respondError(w, http.StatusNotFound, "Video not ready")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, *project.FinalVideoPath)
}

// GetProjectJobs handles GET /v1/projects/{id}/debug/jobs
func (h *Handler) GetProjectJobs(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	jobs, err := h.db.GetProjectExportJobs(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get export jobs")
		return
	}
	if jobs == nil {
		jobs = []models.ExportJob{}
	}

	respondJSON(w, http.StatusOK, jobs)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
