package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/services"
)

// silenceFallbackMs is the narration length for scenes with empty text —
// long enough to register as a visible segment, short enough to feel like
// a beat rather than a pause.
const silenceFallbackMs = 600

// Media is the subset of ffmpeg operations the pipeline needs. Implemented
// by services.FFmpegService; faked in tests.
type Media interface {
	SynthesizeSilence(ctx context.Context, outputPath string, durationMs int) error
	AudioDurationMs(ctx context.Context, audioPath string) (int, error)
	RenderSceneClip(ctx context.Context, backgroundPath, audioPath, outputPath string, durationMs int) error
	RenderSceneClipWithAvatar(ctx context.Context, backgroundPath, avatarPath, audioPath, outputPath string, durationMs int) error
	ConcatenateClips(ctx context.Context, clipPaths []string, outputPath string) error
}

// SceneTempDir returns the scene-scoped working directory. It is owned by
// the scene's composition step until the assembler takes over for cleanup.
func SceneTempDir(baseDir string, sceneID uuid.UUID) string {
	return filepath.Join(baseDir, "videos", "generated", fmt.Sprintf("scene_%s", sceneID))
}

// ProjectOutputDir returns the project-scoped directory for the final video.
func ProjectOutputDir(baseDir string, projectID uuid.UUID) string {
	return filepath.Join(baseDir, "videos", "generated", fmt.Sprintf("project_%s", projectID))
}

// SceneClip describes one composed scene. ClipPath and NarrationPath live
// inside TempDir and are only valid until the assembler's cleanup runs.
type SceneClip struct {
	SceneID       uuid.UUID
	OrderIndex    int
	TempDir       string
	ClipPath      string
	NarrationPath string
	AvatarPath    string // empty when the scene has no avatar
	DurationMs    int    // measured narration duration — the scene's actual length
}

// Compositor turns one scene plus its assets into a single encoded clip of
// exactly the narration's duration.
type Compositor struct {
	tts               services.TTSService
	avatar            services.AvatarService // nil = avatar stage disabled
	media             Media
	baseDir           string
	defaultBackground string
	strictAvatar      bool
}

func NewCompositor(tts services.TTSService, avatar services.AvatarService, media Media, baseDir, defaultBackground string, strictAvatar bool) *Compositor {
	return &Compositor{
		tts:               tts,
		avatar:            avatar,
		media:             media,
		baseDir:           baseDir,
		defaultBackground: defaultBackground,
		strictAvatar:      strictAvatar,
	}
}

// Compose runs the full per-scene sequence: temp dir, narration, optional
// avatar, background selection, render. Side effects are confined to the
// scene's temp directory. On error the temp dir may hold partial files;
// the assembler's cleanup removes it either way.
func (c *Compositor) Compose(ctx context.Context, scene models.Scene, assets []models.Asset) (*SceneClip, error) {
	dir := SceneTempDir(c.baseDir, scene.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &CompositionError{SceneID: scene.ID, Reason: "failed to create scene temp dir", Err: err}
	}

	// Narration fixes the scene's actual duration. Empty text gets a short
	// silence clip instead of a synthesis call — it must not crash.
	narrationPath := filepath.Join(dir, "narration.mp3")
	if strings.TrimSpace(scene.NarrationText) == "" {
		if err := c.media.SynthesizeSilence(ctx, narrationPath, silenceFallbackMs); err != nil {
			return nil, &SynthesisError{SceneID: scene.ID, Err: err}
		}
	} else {
		if err := c.tts.Synthesize(ctx, scene.NarrationText, narrationPath); err != nil {
			return nil, &SynthesisError{SceneID: scene.ID, Err: err}
		}
	}

	// Duration is read back from the produced file — never estimated.
	durationMs, err := c.media.AudioDurationMs(ctx, narrationPath)
	if err != nil {
		return nil, &SynthesisError{SceneID: scene.ID, Err: fmt.Errorf("failed to measure narration duration: %w", err)}
	}

	avatarPath := ""
	if scene.UseAvatar && c.avatar != nil {
		p := filepath.Join(dir, "avatar.mp4")
		if err := c.avatar.Render(ctx, scene.NarrationText, narrationPath, p); err != nil {
			if c.strictAvatar {
				return nil, &RenderError{SceneID: scene.ID, Err: err}
			}
			log.Printf("[Compose] Scene %d: avatar render failed, continuing without avatar: %v", scene.OrderIndex, err)
		} else {
			avatarPath = p
		}
	}

	background, err := c.selectBackground(scene, assets)
	if err != nil {
		return nil, err
	}

	clipPath := filepath.Join(dir, "scene_final.mp4")
	if avatarPath != "" {
		err = c.media.RenderSceneClipWithAvatar(ctx, background, avatarPath, narrationPath, clipPath, durationMs)
	} else {
		err = c.media.RenderSceneClip(ctx, background, narrationPath, clipPath, durationMs)
	}
	if err != nil {
		return nil, &CompositionError{SceneID: scene.ID, Reason: "failed to encode scene clip", Err: err}
	}

	return &SceneClip{
		SceneID:       scene.ID,
		OrderIndex:    scene.OrderIndex,
		TempDir:       dir,
		ClipPath:      clipPath,
		NarrationPath: narrationPath,
		AvatarPath:    avatarPath,
		DurationMs:    durationMs,
	}, nil
}

// selectBackground picks the scene's base visual: the layer-0 image asset,
// then the scene's own background reference, then the configured default.
func (c *Compositor) selectBackground(scene models.Scene, assets []models.Asset) (string, error) {
	for _, a := range assets {
		if a.IsBackground() && a.FilePath != "" {
			return a.FilePath, nil
		}
	}
	if scene.BackgroundRef != nil && *scene.BackgroundRef != "" {
		return *scene.BackgroundRef, nil
	}
	if c.defaultBackground != "" {
		return c.defaultBackground, nil
	}
	return "", &CompositionError{SceneID: scene.ID, Reason: "no background asset and no default background configured"}
}
