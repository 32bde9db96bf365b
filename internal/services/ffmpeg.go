package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpegService
// Wraps the ffmpeg/ffprobe binaries for scene clip rendering, narration
// probing, and final concatenation. Every scene clip is encoded with the
// same codec, resolution, and frame rate so the concat demuxer can join
// them with stream copy.
// ---------------------------------------------------------------------------

// Output / rendering constants — 720p landscape at 30fps for course videos
const (
	outputWidth  = 1280
	outputHeight = 720
	videoFPS     = 30
	audioBitrate = "192k"

	// Overlay width for the avatar clip, anchored bottom-right
	avatarOverlayWidth = 320
	avatarOverlayPad   = 24
)

type FFmpegService struct{}

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{}
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// SynthesizeSilence writes a silent MP3 of the given duration. Used for
// scenes with empty narration text so they still contribute a short
// segment instead of crashing synthesis.
func (s *FFmpegService) SynthesizeSilence(ctx context.Context, outputPath string, durationMs int) error {
	args := []string{
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", fmt.Sprintf("%.3f", float64(durationMs)/1000.0),
		"-c:a", "libmp3lame",
		"-q:a", "9",
		"-y",
		outputPath,
	}

	if err := runFFmpeg(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg silence generation failed: %w", err)
	}
	return nil
}

// baseVideoFilter scales and pads the background to the output frame.
func baseVideoFilter() string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,fps=%d",
		outputWidth, outputHeight, outputWidth, outputHeight, videoFPS,
	)
}

// RenderSceneClip builds one scene clip from a background image and the
// narration audio. The clip lasts exactly durationMs — the measured
// narration length, never an estimate.
func (s *FFmpegService) RenderSceneClip(ctx context.Context, backgroundPath, audioPath, outputPath string, durationMs int) error {
	args := []string{
		"-loop", "1",
		"-i", backgroundPath,
		"-i", audioPath,
		"-t", fmt.Sprintf("%.3f", float64(durationMs)/1000.0),
		"-vf", baseVideoFilter() + ",format=yuv420p",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:a", audioBitrate,
		"-shortest",
		"-y",
		outputPath,
	}

	if err := runFFmpeg(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg render scene clip failed: %w", err)
	}
	return nil
}

// RenderSceneClipWithAvatar builds a scene clip with the avatar video
// overlaid bottom-right on the background. The avatar's own audio track is
// discarded and replaced by the narration. If the avatar clip is shorter
// than the narration, its last frame is frozen with tpad.
func (s *FFmpegService) RenderSceneClipWithAvatar(ctx context.Context, backgroundPath, avatarPath, audioPath, outputPath string, durationMs int) error {
	filterComplex := fmt.Sprintf(
		"[0:v]%s[bg];[1:v]tpad=stop_mode=clone:stop_duration=60,scale=%d:-2[av];[bg][av]overlay=W-w-%d:H-h-%d,format=yuv420p[v]",
		baseVideoFilter(), avatarOverlayWidth, avatarOverlayPad, avatarOverlayPad,
	)

	args := []string{
		"-loop", "1",
		"-i", backgroundPath,
		"-i", avatarPath,
		"-i", audioPath,
		"-filter_complex", filterComplex,
		"-map", "[v]",
		"-map", "2:a", // Narration only — drop any avatar audio
		"-t", fmt.Sprintf("%.3f", float64(durationMs)/1000.0),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:a", audioBitrate,
		"-y",
		outputPath,
	}

	if err := runFFmpeg(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg render scene clip with avatar failed: %w", err)
	}
	return nil
}

// ConcatenateClips joins scene clips into one final video. All clips share
// the same codec/resolution/frame rate, so the concat demuxer copies
// streams without re-encoding.
func (s *FFmpegService) ConcatenateClips(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	// Concat list file lives next to the output so concurrent exports
	// of different projects never collide.
	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}

	for _, path := range clipPaths {
		fmt.Fprintf(f, "file '%s'\n", path)
	}
	f.Close()
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}

	if err := runFFmpeg(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}
	return nil
}

func probeDurationMs(ctx context.Context, path string) (int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return int(durationSec * 1000), nil
}

// AudioDurationMs returns the duration of an audio file in milliseconds.
// This measured value is authoritative for scene timing.
func (s *FFmpegService) AudioDurationMs(ctx context.Context, audioPath string) (int, error) {
	return probeDurationMs(ctx, audioPath)
}

// VideoDurationMs returns the duration of a video file in milliseconds.
func (s *FFmpegService) VideoDurationMs(ctx context.Context, videoPath string) (int, error) {
	return probeDurationMs(ctx, videoPath)
}
