package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// ---------------------------------------------------------------------------
// SadTalker Avatar Rendering Service
// Talks to a self-hosted SadTalker-compatible HTTP service that lip-syncs a
// character image to narration audio.
// Follows a deferred request pattern: submit render → poll by request_id → download.
// ---------------------------------------------------------------------------

const (
	sadtalkerInitialDelay      = 10 * time.Second // Renders typically take 20-60s
	sadtalkerPollMinInterval   = 5 * time.Second
	sadtalkerPollMaxInterval   = 20 * time.Second
	sadtalkerPollBackoffFactor = 1.5
	sadtalkerMaxPollDuration   = 5 * time.Minute // Hard timeout per scene
)

// SadTalkerService renders talking-head clips via a SadTalker HTTP API.
type SadTalkerService struct {
	baseURL    string
	apiKey     string
	character  string // Path to the character reference image
	httpClient *http.Client
}

// Ensure SadTalkerService implements AvatarService at compile time.
var _ AvatarService = (*SadTalkerService)(nil)

func NewSadTalkerService(baseURL, apiKey, character string) *SadTalkerService {
	return &SadTalkerService{
		baseURL:   baseURL,
		apiKey:    apiKey,
		character: character,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Per HTTP call, not the full poll cycle
		},
	}
}

// sadtalkerRenderRequest is the body for POST /render
type sadtalkerRenderRequest struct {
	AudioBase64 string `json:"audio_base64"`
	ImageBase64 string `json:"image_base64"`
	Text        string `json:"text,omitempty"`
}

// sadtalkerRenderResponse is the response from POST /render
type sadtalkerRenderResponse struct {
	RequestID string `json:"request_id"`
}

// sadtalkerResult is the response from GET /render/{request_id}.
// Status is "pending", "completed", or "failed".
type sadtalkerResult struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Render lip-syncs the configured character image to the narration audio
// and writes the resulting MP4 to outputPath.
func (s *SadTalkerService) Render(ctx context.Context, text, narrationPath, outputPath string) error {
	audioData, err := os.ReadFile(narrationPath)
	if err != nil {
		return fmt.Errorf("failed to read narration audio: %w", err)
	}

	imageData, err := os.ReadFile(s.character)
	if err != nil {
		return fmt.Errorf("failed to read character image: %w", err)
	}

	requestID, err := s.submit(ctx, text, audioData, imageData)
	if err != nil {
		return err
	}

	log.Printf("[SadTalker] Render submitted (request=%s, audio=%d bytes)", requestID, len(audioData))

	videoURL, err := s.poll(ctx, requestID)
	if err != nil {
		return err
	}

	videoData, err := s.download(ctx, videoURL)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(outputPath, videoData); err != nil {
		return err
	}

	log.Printf("[SadTalker] Avatar clip rendered (%d bytes)", len(videoData))
	return nil
}

func (s *SadTalkerService) submit(ctx context.Context, text string, audioData, imageData []byte) (string, error) {
	reqBody := sadtalkerRenderRequest{
		AudioBase64: base64.StdEncoding.EncodeToString(audioData),
		ImageBase64: base64.StdEncoding.EncodeToString(imageData),
		Text:        text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/render", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("render submit failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("render submit returned status %d: %s", resp.StatusCode, string(body))
	}

	var submitResp sadtalkerRenderResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return "", fmt.Errorf("failed to decode render response: %w", err)
	}
	if submitResp.RequestID == "" {
		return "", fmt.Errorf("render submit returned no request id")
	}

	return submitResp.RequestID, nil
}

// poll waits for the render to finish, backing off between attempts.
func (s *SadTalkerService) poll(ctx context.Context, requestID string) (string, error) {
	deadline := time.Now().Add(sadtalkerMaxPollDuration)
	interval := sadtalkerPollMinInterval

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("avatar render cancelled: %w", ctx.Err())
	case <-time.After(sadtalkerInitialDelay):
	}

	for attempt := 1; ; attempt++ {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("avatar render timed out after %v (%d polls)", sadtalkerMaxPollDuration, attempt-1)
		}

		req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/render/"+requestID, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create poll request: %w", err)
		}
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("poll request failed (attempt %d): %w", attempt, err)
		}

		var result sadtalkerResult
		decodeErr := json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if decodeErr != nil {
			return "", fmt.Errorf("failed to decode poll response: %w", decodeErr)
		}

		switch result.Status {
		case "completed":
			if result.VideoURL == "" {
				return "", fmt.Errorf("completed render has no video url")
			}
			return result.VideoURL, nil
		case "failed":
			return "", fmt.Errorf("avatar render failed: %s", result.Error)
		}

		log.Printf("[SadTalker] Poll %d: status=%s", attempt, result.Status)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("avatar render cancelled: %w", ctx.Err())
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * sadtalkerPollBackoffFactor)
		if interval > sadtalkerPollMaxInterval {
			interval = sadtalkerPollMaxInterval
		}
	}
}

func (s *SadTalkerService) download(ctx context.Context, videoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download returned status %d", resp.StatusCode)
	}

	videoData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read video body: %w", err)
	}
	if len(videoData) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	return videoData, nil
}
