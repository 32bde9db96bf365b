package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Veo Avatar Rendering Service
// Uses the Google Gen AI SDK to animate the character reference image into a
// presenter clip. The character image is passed as the first frame; the
// narration text drives the delivery description. The compositor muxes the
// real narration audio over the result and trims it to the narration length.
// ---------------------------------------------------------------------------

const (
	defaultVeoModel    = "veo-3.1-generate-preview"
	veoPollInterval    = 10 * time.Second
	veoMaxPollDuration = 5 * time.Minute // Max time to wait for a single clip
)

// VeoAvatarService renders talking-head clips via Google's Veo model.
type VeoAvatarService struct {
	apiKey    string
	model     string
	character string // Path to the character reference image
}

// Ensure VeoAvatarService implements AvatarService at compile time.
var _ AvatarService = (*VeoAvatarService)(nil)

func NewVeoAvatarService(apiKey, model, character string) *VeoAvatarService {
	if model == "" {
		model = defaultVeoModel
	}
	return &VeoAvatarService{
		apiKey:    apiKey,
		model:     model,
		character: character,
	}
}

// buildAvatarPrompt describes the presenter delivery for the narration.
// Veo clips are silent; the narration audio is muxed in afterwards, so the
// prompt only has to produce believable speaking motion.
func buildAvatarPrompt(text string) string {
	return fmt.Sprintf(`A presenter looks into the camera and speaks the following narration naturally: %q

Motion direction: natural head movement, believable lip motion matching spoken delivery, occasional blinks, calm and professional posture. Keep the framing and art style of the input image unchanged.

No generated audio or dialogue. Silent video only.`, text)
}

// Render animates the character image into a presenter clip and writes the
// MP4 to outputPath. narrationPath is unused here — lip sync to the exact
// audio is handled by dedicated engines; Veo produces the visual only.
func (s *VeoAvatarService) Render(ctx context.Context, text, narrationPath, outputPath string) error {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}

	imageData, err := os.ReadFile(s.character)
	if err != nil {
		return fmt.Errorf("failed to read character image: %w", err)
	}

	firstFrame := &genai.Image{
		ImageBytes: imageData,
		MIMEType:   "image/png",
	}

	config := &genai.GenerateVideosConfig{
		AspectRatio:      "16:9",
		PersonGeneration: "allow_adult",
		NumberOfVideos:   1,
	}

	prompt := buildAvatarPrompt(text)
	log.Printf("[Veo] Starting avatar render (model=%s, textLen=%d, imageSize=%d bytes)", s.model, len(text), len(imageData))

	operation, err := client.Models.GenerateVideos(ctx, s.model, prompt, firstFrame, config)
	if err != nil {
		return fmt.Errorf("failed to start avatar render: %w", err)
	}

	// Poll until done, cancelled, or timed out
	deadline := time.Now().Add(veoMaxPollDuration)
	pollCount := 0
	for !operation.Done {
		if time.Now().After(deadline) {
			return fmt.Errorf("avatar render timed out after %v (polled %d times)", veoMaxPollDuration, pollCount)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("avatar render cancelled: %w", ctx.Err())
		case <-time.After(veoPollInterval):
		}

		pollCount++
		operation, err = client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return fmt.Errorf("failed to poll operation (attempt %d): %w", pollCount, err)
		}

		log.Printf("[Veo] Poll %d: done=%v", pollCount, operation.Done)
	}

	if operation.Error != nil && len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return fmt.Errorf("avatar render operation failed: %s", string(errJSON))
	}

	if operation.Response == nil {
		return fmt.Errorf("no response in completed operation after %d polls", pollCount)
	}

	if operation.Response.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(operation.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")
		}
		return fmt.Errorf("avatar clip blocked by safety filters: %s", reasons)
	}

	if len(operation.Response.GeneratedVideos) == 0 {
		return fmt.Errorf("no videos in response")
	}

	video := operation.Response.GeneratedVideos[0]
	if video.Video == nil {
		return fmt.Errorf("generated video object is nil")
	}

	downloadURI := genai.NewDownloadURIFromVideo(video.Video)
	videoBytes, err := client.Files.Download(ctx, downloadURI, nil)
	if err != nil {
		return fmt.Errorf("failed to download avatar clip: %w", err)
	}
	if len(videoBytes) == 0 {
		return fmt.Errorf("downloaded avatar clip is empty (0 bytes)")
	}

	if err := writeFileAtomic(outputPath, videoBytes); err != nil {
		return err
	}

	log.Printf("[Veo] Avatar clip rendered (%d bytes, %d polls)", len(videoBytes), pollCount)
	return nil
}
