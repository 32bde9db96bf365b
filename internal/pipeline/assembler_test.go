package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/slidecast/slidecast/internal/models"
)

type recordingReporter struct {
	mu       sync.Mutex
	progress [][2]int
}

func (r *recordingReporter) OnProgress(completed, total int) {
	r.mu.Lock()
	r.progress = append(r.progress, [2]int{completed, total})
	r.mu.Unlock()
}
func (r *recordingReporter) OnComplete(outputPath string) {}
func (r *recordingReporter) OnError(err error)           {}

func makeScenes(texts ...string) []models.Scene {
	scenes := make([]models.Scene, len(texts))
	projectID := uuid.New()
	for i, text := range texts {
		scenes[i] = models.Scene{
			ID:            uuid.New(),
			ProjectID:     projectID,
			OrderIndex:    i,
			NarrationText: text,
		}
	}
	return scenes
}

func newTestAssembler(t *testing.T, tts *fakeTTS, media *fakeMedia, policy FailurePolicy, maxConcurrent int) (*Assembler, string) {
	t.Helper()
	base := t.TempDir()
	comp := NewCompositor(tts, nil, media, base, "bg.png", false)
	return NewAssembler(comp, media, base, policy, maxConcurrent), base
}

func TestAssembleOrderPreservedUnderConcurrency(t *testing.T) {
	scenes := makeScenes("one", "two", "three", "four")

	// Earlier scenes finish last: the final order must still follow the
	// order index, not completion time.
	tts := &fakeTTS{latency: func(text string) time.Duration {
		switch text {
		case "one":
			return 40 * time.Millisecond
		case "two":
			return 30 * time.Millisecond
		case "three":
			return 20 * time.Millisecond
		}
		return 0
	}}
	media := &fakeMedia{durationMs: 1000}
	asm, base := newTestAssembler(t, tts, media, PolicyAbort, 4)

	project := models.Project{ID: scenes[0].ProjectID}
	result, err := asm.Assemble(context.Background(), project, scenes, nil, nil)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if len(media.concatInputs) != len(scenes) {
		t.Fatalf("concatenated %d clips, want %d", len(media.concatInputs), len(scenes))
	}
	for i, scene := range scenes {
		wantDir := SceneTempDir(base, scene.ID)
		if filepath.Dir(media.concatInputs[i]) != wantDir {
			t.Errorf("clip %d came from %s, want scene %d (%s)", i, media.concatInputs[i], scene.OrderIndex, wantDir)
		}
	}

	wantOut := filepath.Join(ProjectOutputDir(base, project.ID), "final_project_video.mp4")
	if result.OutputPath != wantOut {
		t.Errorf("OutputPath = %q, want %q", result.OutputPath, wantOut)
	}
}

func TestAssembleAbortPolicy(t *testing.T) {
	scenes := makeScenes("ok-1", "bad", "ok-2")
	tts := &fakeTTS{failOn: "bad"}
	media := &fakeMedia{durationMs: 1000}
	asm, _ := newTestAssembler(t, tts, media, PolicyAbort, 1)

	_, err := asm.Assemble(context.Background(), models.Project{ID: scenes[0].ProjectID}, scenes, nil, nil)

	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if len(media.concatInputs) != 0 {
		t.Error("concatenation must not run after an aborted export")
	}
}

func TestAssembleSkipPolicy(t *testing.T) {
	scenes := makeScenes("ok-1", "bad", "ok-2")
	tts := &fakeTTS{failOn: "bad"}
	media := &fakeMedia{durationMs: 1000}
	asm, _ := newTestAssembler(t, tts, media, PolicySkip, 1)

	result, err := asm.Assemble(context.Background(), models.Project{ID: scenes[0].ProjectID}, scenes, nil, nil)
	if err != nil {
		t.Fatalf("skip policy must complete the export: %v", err)
	}

	if len(result.SkippedScenes) != 1 || result.SkippedScenes[0] != 1 {
		t.Errorf("SkippedScenes = %v, want [1]", result.SkippedScenes)
	}
	if len(media.concatInputs) != 2 {
		t.Errorf("concatenated %d clips, want 2", len(media.concatInputs))
	}
	if len(result.Clips) != 2 {
		t.Errorf("Clips = %d, want 2", len(result.Clips))
	}
}

func TestAssembleAllScenesFailUnderSkip(t *testing.T) {
	scenes := makeScenes("bad", "bad", "bad")
	tts := &fakeTTS{failOn: "bad"}
	asm, _ := newTestAssembler(t, tts, &fakeMedia{durationMs: 1000}, PolicySkip, 2)

	_, err := asm.Assemble(context.Background(), models.Project{ID: scenes[0].ProjectID}, scenes, nil, nil)

	var concatErr *ConcatenationError
	if !errors.As(err, &concatErr) {
		t.Fatalf("expected ConcatenationError when zero clips compose, got %v", err)
	}
}

func TestAssembleCleansUpTempDirs(t *testing.T) {
	scenes := makeScenes("a", "b")
	media := &fakeMedia{durationMs: 500}
	asm, base := newTestAssembler(t, &fakeTTS{}, media, PolicyAbort, 2)

	_, err := asm.Assemble(context.Background(), models.Project{ID: scenes[0].ProjectID}, scenes, nil, nil)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	for _, scene := range scenes {
		if _, err := os.Stat(SceneTempDir(base, scene.ID)); !os.IsNotExist(err) {
			t.Errorf("scene temp dir for scene %d not removed", scene.OrderIndex)
		}
	}

	// The final video itself survives cleanup
	out := filepath.Join(ProjectOutputDir(base, scenes[0].ProjectID), "final_project_video.mp4")
	if _, err := os.Stat(out); err != nil {
		t.Errorf("final video missing after cleanup: %v", err)
	}
}

func TestAssembleCleansUpAfterFailure(t *testing.T) {
	scenes := makeScenes("ok", "bad")
	tts := &fakeTTS{failOn: "bad"}
	asm, base := newTestAssembler(t, tts, &fakeMedia{durationMs: 500}, PolicyAbort, 1)

	_, err := asm.Assemble(context.Background(), models.Project{ID: scenes[0].ProjectID}, scenes, nil, nil)
	if err == nil {
		t.Fatal("expected failure")
	}

	// Temp dirs of scenes composed before the failure are removed too
	for _, scene := range scenes {
		if _, err := os.Stat(SceneTempDir(base, scene.ID)); !os.IsNotExist(err) {
			t.Errorf("scene temp dir for scene %d survived a failed export", scene.OrderIndex)
		}
	}
}

func TestAssembleReportsProgress(t *testing.T) {
	scenes := makeScenes("a", "b", "c")
	asm, _ := newTestAssembler(t, &fakeTTS{}, &fakeMedia{durationMs: 500}, PolicyAbort, 1)

	rep := &recordingReporter{}
	_, err := asm.Assemble(context.Background(), models.Project{ID: scenes[0].ProjectID}, scenes, nil, rep)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if len(rep.progress) != 3 {
		t.Fatalf("got %d progress callbacks, want 3", len(rep.progress))
	}
	last := rep.progress[len(rep.progress)-1]
	if last != [2]int{3, 3} {
		t.Errorf("final progress = %v, want [3 3]", last)
	}
}

func TestAssembleCancellation(t *testing.T) {
	scenes := makeScenes("slow-1", "slow-2", "slow-3")
	tts := &fakeTTS{latency: func(string) time.Duration { return 200 * time.Millisecond }}
	asm, _ := newTestAssembler(t, tts, &fakeMedia{durationMs: 500}, PolicyAbort, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := asm.Assemble(ctx, models.Project{ID: scenes[0].ProjectID}, scenes, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAssembleEmptyTextSceneContributes(t *testing.T) {
	scenes := makeScenes("spoken", "")
	media := &fakeMedia{durationMs: 700}
	asm, _ := newTestAssembler(t, &fakeTTS{}, media, PolicyAbort, 1)

	result, err := asm.Assemble(context.Background(), models.Project{ID: scenes[0].ProjectID}, scenes, nil, nil)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(result.Clips) != 2 {
		t.Fatalf("Clips = %d, want 2 (empty-text scene must still contribute)", len(result.Clips))
	}
	if len(media.silenceDurations) != 1 {
		t.Errorf("silence synthesized %d times, want 1", len(media.silenceDurations))
	}
}

func TestSceneTempDirLayout(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	got := SceneTempDir("/data", id)
	want := fmt.Sprintf("/data/videos/generated/scene_%s", id)
	if got != want {
		t.Errorf("SceneTempDir = %q, want %q", got, want)
	}

	got = ProjectOutputDir("/data", id)
	want = fmt.Sprintf("/data/videos/generated/project_%s", id)
	if got != want {
		t.Errorf("ProjectOutputDir = %q, want %q", got, want)
	}
}
