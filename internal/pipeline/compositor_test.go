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

// fakeTTS writes a marker file and records the texts it was asked to speak.
type fakeTTS struct {
	mu      sync.Mutex
	texts   []string
	failOn  string // text that triggers an error
	latency func(text string) time.Duration
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, outputPath string) error {
	if f.latency != nil {
		select {
		case <-time.After(f.latency(text)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.failOn != "" && text == f.failOn {
		return errors.New("synthesis backend unavailable")
	}
	return os.WriteFile(outputPath, []byte("mp3:"+text), 0644)
}

type fakeAvatar struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAvatar) Render(ctx context.Context, text, narrationPath, outputPath string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("avatar"), 0644)
}

// fakeMedia stands in for ffmpeg. It writes marker files where real
// encoding would produce media and records every call.
type fakeMedia struct {
	mu sync.Mutex

	durationMs  int
	durationErr error
	concatErr   error

	silenceDurations []int
	renderDurations  []int
	avatarRenders    int
	concatInputs     []string
}

func (f *fakeMedia) SynthesizeSilence(ctx context.Context, outputPath string, durationMs int) error {
	f.mu.Lock()
	f.silenceDurations = append(f.silenceDurations, durationMs)
	f.mu.Unlock()
	return os.WriteFile(outputPath, []byte("silence"), 0644)
}

func (f *fakeMedia) AudioDurationMs(ctx context.Context, audioPath string) (int, error) {
	if f.durationErr != nil {
		return 0, f.durationErr
	}
	return f.durationMs, nil
}

func (f *fakeMedia) RenderSceneClip(ctx context.Context, backgroundPath, audioPath, outputPath string, durationMs int) error {
	f.mu.Lock()
	f.renderDurations = append(f.renderDurations, durationMs)
	f.mu.Unlock()
	return os.WriteFile(outputPath, []byte("clip"), 0644)
}

func (f *fakeMedia) RenderSceneClipWithAvatar(ctx context.Context, backgroundPath, avatarPath, audioPath, outputPath string, durationMs int) error {
	f.mu.Lock()
	f.avatarRenders++
	f.renderDurations = append(f.renderDurations, durationMs)
	f.mu.Unlock()
	return os.WriteFile(outputPath, []byte("clip+avatar"), 0644)
}

func (f *fakeMedia) ConcatenateClips(ctx context.Context, clipPaths []string, outputPath string) error {
	f.mu.Lock()
	f.concatInputs = append([]string(nil), clipPaths...)
	f.mu.Unlock()
	if f.concatErr != nil {
		return f.concatErr
	}
	return os.WriteFile(outputPath, []byte("final"), 0644)
}

func testScene(order int, text string) models.Scene {
	return models.Scene{
		ID:            uuid.New(),
		ProjectID:     uuid.New(),
		OrderIndex:    order,
		NarrationText: text,
	}
}

func TestComposeDurationFollowsNarration(t *testing.T) {
	media := &fakeMedia{durationMs: 4321}
	comp := NewCompositor(&fakeTTS{}, nil, media, t.TempDir(), "bg.png", false)

	clip, err := comp.Compose(context.Background(), testScene(0, "welcome to the course"), nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if clip.DurationMs != 4321 {
		t.Errorf("DurationMs = %d, want the measured narration duration 4321", clip.DurationMs)
	}
	if len(media.renderDurations) != 1 || media.renderDurations[0] != 4321 {
		t.Errorf("render durations = %v, want [4321]", media.renderDurations)
	}
}

func TestComposeEmptyTextUsesSilence(t *testing.T) {
	tts := &fakeTTS{}
	media := &fakeMedia{durationMs: silenceFallbackMs}
	comp := NewCompositor(tts, nil, media, t.TempDir(), "bg.png", false)

	clip, err := comp.Compose(context.Background(), testScene(0, "   "), nil)
	if err != nil {
		t.Fatalf("Compose failed for empty-text scene: %v", err)
	}

	if len(tts.texts) != 0 {
		t.Errorf("TTS called %d times for empty text, want 0", len(tts.texts))
	}
	if len(media.silenceDurations) != 1 || media.silenceDurations[0] != silenceFallbackMs {
		t.Errorf("silence durations = %v", media.silenceDurations)
	}
	if clip.DurationMs != silenceFallbackMs {
		t.Errorf("DurationMs = %d", clip.DurationMs)
	}
}

func TestComposeSynthesisFailure(t *testing.T) {
	tts := &fakeTTS{failOn: "broken"}
	comp := NewCompositor(tts, nil, &fakeMedia{durationMs: 1000}, t.TempDir(), "bg.png", false)

	scene := testScene(2, "broken")
	_, err := comp.Compose(context.Background(), scene, nil)

	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if synthErr.SceneID != scene.ID {
		t.Errorf("SynthesisError.SceneID = %s, want %s", synthErr.SceneID, scene.ID)
	}
}

func TestComposeAvatarFailureLenient(t *testing.T) {
	avatar := &fakeAvatar{err: errors.New("render service down")}
	media := &fakeMedia{durationMs: 2000}
	comp := NewCompositor(&fakeTTS{}, avatar, media, t.TempDir(), "bg.png", false)

	scene := testScene(0, "with avatar")
	scene.UseAvatar = true

	clip, err := comp.Compose(context.Background(), scene, nil)
	if err != nil {
		t.Fatalf("lenient avatar failure must not fail the scene: %v", err)
	}
	if clip.AvatarPath != "" {
		t.Error("clip should have no avatar after a failed render")
	}
	if media.avatarRenders != 0 {
		t.Error("avatar overlay render used despite failed avatar")
	}
}

func TestComposeAvatarFailureStrict(t *testing.T) {
	avatar := &fakeAvatar{err: errors.New("render service down")}
	comp := NewCompositor(&fakeTTS{}, avatar, &fakeMedia{durationMs: 2000}, t.TempDir(), "bg.png", true)

	scene := testScene(0, "with avatar")
	scene.UseAvatar = true

	_, err := comp.Compose(context.Background(), scene, nil)
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError in strict mode, got %v", err)
	}
}

func TestComposeAvatarSuccessUsesOverlay(t *testing.T) {
	media := &fakeMedia{durationMs: 2000}
	comp := NewCompositor(&fakeTTS{}, &fakeAvatar{}, media, t.TempDir(), "bg.png", false)

	scene := testScene(0, "with avatar")
	scene.UseAvatar = true

	clip, err := comp.Compose(context.Background(), scene, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if clip.AvatarPath == "" {
		t.Error("clip is missing its avatar path")
	}
	if media.avatarRenders != 1 {
		t.Errorf("avatar overlay renders = %d, want 1", media.avatarRenders)
	}
}

func TestComposeBackgroundSelection(t *testing.T) {
	sceneID := uuid.New()
	bgAsset := models.Asset{
		ID:       uuid.New(),
		SceneID:  sceneID,
		Type:     models.AssetTypeImage,
		Layer:    0,
		FilePath: "/assets/slide1.png",
	}
	overlayAsset := models.Asset{
		ID:       uuid.New(),
		SceneID:  sceneID,
		Type:     models.AssetTypeImage,
		Layer:    2,
		FilePath: "/assets/logo.png",
	}

	ref := "/assets/ref.png"
	cases := []struct {
		name   string
		assets []models.Asset
		bgRef  *string
		deflt  string
		want   string
		wantOK bool
	}{
		{"layer zero image wins", []models.Asset{overlayAsset, bgAsset}, &ref, "/assets/default.png", "/assets/slide1.png", true},
		{"scene ref when no background asset", []models.Asset{overlayAsset}, &ref, "/assets/default.png", "/assets/ref.png", true},
		{"default when nothing else", nil, nil, "/assets/default.png", "/assets/default.png", true},
		{"error when nothing configured", nil, nil, "", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			comp := NewCompositor(&fakeTTS{}, nil, &fakeMedia{durationMs: 1000}, t.TempDir(), tc.deflt, false)
			scene := testScene(0, "text")
			scene.ID = sceneID
			scene.BackgroundRef = tc.bgRef

			got, err := comp.selectBackground(scene, tc.assets)
			if tc.wantOK {
				if err != nil {
					t.Fatalf("selectBackground failed: %v", err)
				}
				if got != tc.want {
					t.Errorf("background = %q, want %q", got, tc.want)
				}
				return
			}
			var compErr *CompositionError
			if !errors.As(err, &compErr) {
				t.Fatalf("expected CompositionError, got %v", err)
			}
		})
	}
}

func TestComposeArtifactsLiveInSceneTempDir(t *testing.T) {
	base := t.TempDir()
	comp := NewCompositor(&fakeTTS{}, nil, &fakeMedia{durationMs: 1500}, base, "bg.png", false)

	scene := testScene(3, "contained")
	clip, err := comp.Compose(context.Background(), scene, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	wantDir := filepath.Join(base, "videos", "generated", fmt.Sprintf("scene_%s", scene.ID))
	if clip.TempDir != wantDir {
		t.Errorf("TempDir = %q, want %q", clip.TempDir, wantDir)
	}
	for _, p := range []string{clip.NarrationPath, clip.ClipPath} {
		if filepath.Dir(p) != wantDir {
			t.Errorf("artifact %q escapes the scene temp dir", p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("artifact %q missing: %v", p, err)
		}
	}
}
