package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/slidecast/slidecast/internal/db"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/pipeline"
	"github.com/slidecast/slidecast/internal/queue"
	"github.com/slidecast/slidecast/internal/storage"
)

// Worker is the export driver: it dequeues export jobs, runs the assembler,
// tracks job state transitions, and supports cancellation. One export runs
// as one logical task; the per-project lock keeps concurrent exports of
// the same project from colliding on temp and output paths.
type Worker struct {
	db        *db.DB
	queue     *queue.Queue
	storage   *storage.Storage // nil = no promotion, serve local files
	assembler *pipeline.Assembler

	mu             sync.Mutex
	activeProjects map[uuid.UUID]struct{}
	cancels        map[uuid.UUID]context.CancelFunc // job id → cancel
}

func New(database *db.DB, q *queue.Queue, stor *storage.Storage, assembler *pipeline.Assembler) *Worker {
	return &Worker{
		db:             database,
		queue:          q,
		storage:        stor,
		assembler:      assembler,
		activeProjects: make(map[uuid.UUID]struct{}),
		cancels:        make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start begins processing export jobs until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx)
	}

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queue.QueueExportProject, 5*time.Second)
			if err != nil {
				log.Printf("Error dequeuing export job: %v", err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("Processing export job %s (project: %s)", job.ID, job.ProjectID)

			if err := w.handleExport(ctx, job); err != nil {
				log.Printf("Export job %s failed: %v", job.ID, err)
			} else {
				log.Printf("Export job %s finished", job.ID)
			}
		}
	}
}

// Cancel requests cancellation of a running export. Returns false when the
// job is not currently running in this process.
func (w *Worker) Cancel(jobID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cancel, ok := w.cancels[jobID]; ok {
		cancel()
		return true
	}
	return false
}

// acquireProject claims the per-project export slot.
func (w *Worker) acquireProject(projectID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.activeProjects[projectID]; busy {
		return false
	}
	w.activeProjects[projectID] = struct{}{}
	return true
}

func (w *Worker) releaseProject(projectID, jobID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.activeProjects, projectID)
	delete(w.cancels, jobID)
}

// jobReporter persists assembler progress onto the export job row.
type jobReporter struct {
	db    *db.DB
	jobID uuid.UUID
}

func (r *jobReporter) OnProgress(completed, total int) {
	if total == 0 {
		return
	}
	progress := float64(completed) / float64(total)
	if err := r.db.UpdateExportJobProgress(context.Background(), r.jobID, progress); err != nil {
		log.Printf("[Export] Warning: failed to update progress for job %s: %v", r.jobID, err)
	}
}

func (r *jobReporter) OnComplete(outputPath string) {
	log.Printf("[Export] Job %s complete: %s", r.jobID, outputPath)
}

func (r *jobReporter) OnError(err error) {
	log.Printf("[Export] Job %s error: %v", r.jobID, err)
}

// handleExport runs one full export: load scenes and assets, assemble,
// promote the final video, and settle the job in a terminal state.
func (w *Worker) handleExport(ctx context.Context, job *queue.Job) error {
	if !w.acquireProject(job.ProjectID) {
		w.db.FailExportJob(ctx, job.ID, "another export for this project is already running")
		return fmt.Errorf("project %s already has an active export", job.ProjectID)
	}
	defer w.releaseProject(job.ProjectID, job.ID)

	started, err := w.db.MarkExportJobRunning(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	if !started {
		// Cancelled while still queued
		log.Printf("[Export] Job %s was settled before pickup, skipping", job.ID)
		return nil
	}
	w.db.UpdateProjectStatus(ctx, job.ProjectID, models.ProjectStatusExporting)

	project, err := w.db.GetProject(ctx, job.ProjectID)
	if err != nil {
		return w.failJob(ctx, job, "project_missing", fmt.Errorf("failed to load project: %w", err))
	}

	scenes, err := w.db.GetProjectScenes(ctx, job.ProjectID)
	if err != nil {
		return w.failJob(ctx, job, "scenes_load_failed", fmt.Errorf("failed to load scenes: %w", err))
	}

	assetsByScene := make(map[uuid.UUID][]models.Asset, len(scenes))
	for _, scene := range scenes {
		assets, err := w.db.GetSceneAssets(ctx, scene.ID)
		if err != nil {
			return w.failJob(ctx, job, "assets_load_failed", fmt.Errorf("failed to load assets for scene %s: %w", scene.ID, err))
		}
		assetsByScene[scene.ID] = assets
	}

	// Cancellable job context, registered so the API can cancel mid-run
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.mu.Lock()
	w.cancels[job.ID] = cancel
	w.mu.Unlock()

	rep := &jobReporter{db: w.db, jobID: job.ID}
	result, err := w.assembler.Assemble(jobCtx, *project, scenes, assetsByScene, rep)
	if err != nil {
		// Distinguish operator cancellation from real failures: the job
		// context was cancelled but the worker itself is still running.
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			log.Printf("[Export] Job %s cancelled", job.ID)
			w.db.CancelExportJob(context.Background(), job.ID)
			w.db.UpdateProjectStatus(context.Background(), job.ProjectID, models.ProjectStatusDraft)
			return nil
		}
		return w.failJob(ctx, job, "export_failed", err)
	}

	// Record the measured narration durations back onto the scenes
	for _, clip := range result.Clips {
		if err := w.db.UpdateSceneAudioDuration(ctx, clip.SceneID, clip.DurationMs); err != nil {
			log.Printf("[Export] Warning: failed to store duration for scene %s: %v", clip.SceneID, err)
		}
	}

	// Promote the final video to MinIO when configured; local serving
	// remains the fallback on promotion failure.
	var storageObject *string
	if w.storage != nil {
		object, err := w.storage.PromoteFinalVideo(ctx, job.ProjectID, result.OutputPath)
		if err != nil {
			log.Printf("[Export] Warning: failed to promote final video, serving locally: %v", err)
		} else {
			storageObject = &object
		}
	}

	if err := w.db.CompleteExportJob(ctx, job.ID, result.OutputPath, result.SkippedScenes); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if err := w.db.SetProjectFinalVideo(ctx, job.ProjectID, result.OutputPath, storageObject); err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rep.OnComplete(result.OutputPath)
	return nil
}

// failJob settles the job and project in their failed states. The stored
// message is the human-readable error string surfaced by get_status.
func (w *Worker) failJob(ctx context.Context, job *queue.Job, code string, err error) error {
	(&jobReporter{db: w.db, jobID: job.ID}).OnError(err)
	if dbErr := w.db.FailExportJob(ctx, job.ID, err.Error()); dbErr != nil {
		log.Printf("[Export] Warning: failed to record job failure: %v", dbErr)
	}
	if dbErr := w.db.UpdateProjectError(ctx, job.ProjectID, code, err.Error()); dbErr != nil {
		log.Printf("[Export] Warning: failed to record project failure: %v", dbErr)
	}
	return err
}
