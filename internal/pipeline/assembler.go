package pipeline

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/slidecast/slidecast/internal/models"
	"golang.org/x/sync/errgroup"
)

// FailurePolicy decides what a failed scene does to the rest of the export.
type FailurePolicy string

const (
	// PolicyAbort fails the whole export on the first scene error — no
	// partial exports. This is the default.
	PolicyAbort FailurePolicy = "abort"

	// PolicySkip drops failed scenes from the final video and records
	// their order indices on the export job.
	PolicySkip FailurePolicy = "skip"
)

// Reporter receives export lifecycle callbacks. The worker implements it
// on top of the export_jobs table; tests use fakes.
type Reporter interface {
	OnProgress(completed, total int)
	OnComplete(outputPath string)
	OnError(err error)
}

// NopReporter discards all callbacks.
type NopReporter struct{}

func (NopReporter) OnProgress(completed, total int) {}
func (NopReporter) OnComplete(outputPath string)    {}
func (NopReporter) OnError(err error)               {}

// Result describes a finished assembly. Clips are reported for duration
// bookkeeping; their paths are already cleaned up when Assemble returns.
type Result struct {
	OutputPath    string
	SkippedScenes []int64 // order indices dropped under PolicySkip
	Clips         []*SceneClip
}

// Assembler runs the compositor over every scene of a project in order,
// concatenates the clips, and removes the scene temp directories.
type Assembler struct {
	comp          *Compositor
	media         Media
	baseDir       string
	policy        FailurePolicy
	maxConcurrent int
}

func NewAssembler(comp *Compositor, media Media, baseDir string, policy FailurePolicy, maxConcurrent int) *Assembler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Assembler{
		comp:          comp,
		media:         media,
		baseDir:       baseDir,
		policy:        policy,
		maxConcurrent: maxConcurrent,
	}
}

// Assemble composes all scenes and stitches them into the project's final
// video. Scenes may compose concurrently, but the final order is always
// ascending order index — results are slotted by position, so completion
// order never matters. Every scene temp directory is removed before
// returning, on success and failure alike; cleanup problems are logged
// and never escalate.
func (a *Assembler) Assemble(ctx context.Context, project models.Project, scenes []models.Scene, assetsByScene map[uuid.UUID][]models.Asset, rep Reporter) (*Result, error) {
	if rep == nil {
		rep = NopReporter{}
	}

	total := len(scenes)
	results := make([]*SceneClip, total)
	sceneErrs := make([]error, total)
	var completed int64

	defer func() {
		for _, scene := range scenes {
			dir := SceneTempDir(a.baseDir, scene.ID)
			if err := os.RemoveAll(dir); err != nil {
				log.Printf("[Assemble] Warning: failed to remove temp dir %s: %v", dir, err)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrent)

	for i, scene := range scenes {
		i, scene := i, scene
		g.Go(func() error {
			// Don't start new compositions once the export is aborting
			// or cancelled; in-flight scenes finish or bail on their own.
			if gctx.Err() != nil {
				return gctx.Err()
			}

			clip, err := a.comp.Compose(gctx, scene, assetsByScene[scene.ID])
			if err != nil {
				if a.policy == PolicyAbort {
					return err
				}
				log.Printf("[Assemble] Scene %d failed, skipping per policy: %v", scene.OrderIndex, err)
				sceneErrs[i] = err
			} else {
				results[i] = clip
			}

			done := atomic.AddInt64(&completed, 1)
			rep.OnProgress(int(done), total)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		clipPaths []string
		skipped   []int64
		clips     []*SceneClip
	)
	for i, r := range results {
		if r == nil {
			skipped = append(skipped, int64(scenes[i].OrderIndex))
			continue
		}
		clipPaths = append(clipPaths, r.ClipPath)
		clips = append(clips, r)
	}

	if len(clipPaths) == 0 {
		return nil, &ConcatenationError{Reason: "no scene clips were composed"}
	}

	outDir := ProjectOutputDir(a.baseDir, project.ID)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, &ConcatenationError{Reason: "failed to create project output dir", Err: err}
	}

	outputPath := filepath.Join(outDir, "final_project_video.mp4")
	if err := a.media.ConcatenateClips(ctx, clipPaths, outputPath); err != nil {
		return nil, &ConcatenationError{Reason: "ffmpeg concat", Err: err}
	}

	return &Result{
		OutputPath:    outputPath,
		SkippedScenes: skipped,
		Clips:         clips,
	}, nil
}
