package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// Cartesia Text-to-Speech Service (legacy provider)
// Uses the Cartesia /tts/bytes endpoint: the response body is the raw audio.
// ---------------------------------------------------------------------------

const (
	cartesiaAPIVersion   = "2024-06-10"
	cartesiaDefaultVoice = "a0e99841-438c-4a64-b679-ae501e7d6091"
	cartesiaModelID      = "sonic-english"
)

// CartesiaService handles text-to-speech via the Cartesia API.
type CartesiaService struct {
	apiKey  string
	apiURL  string
	voiceID string
	client  *http.Client
}

// Ensure CartesiaService implements TTSService at compile time.
var _ TTSService = (*CartesiaService)(nil)

// NewCartesiaService creates a Cartesia TTS service. voiceID may be empty
// to use the default voice.
func NewCartesiaService(apiKey, apiURL, voiceID string) *CartesiaService {
	if voiceID == "" {
		voiceID = cartesiaDefaultVoice
	}
	return &CartesiaService{
		apiKey:  apiKey,
		apiURL:  apiURL,
		voiceID: voiceID,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type cartesiaRequest struct {
	ModelID      string                 `json:"model_id"`
	Transcript   string                 `json:"transcript"`
	Voice        cartesiaVoiceSpecifier `json:"voice"`
	OutputFormat cartesiaOutputFormat   `json:"output_format"`
}

type cartesiaVoiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

// Synthesize converts text to speech and writes the MP3 to outputPath.
func (s *CartesiaService) Synthesize(ctx context.Context, text, outputPath string) error {
	reqBody := cartesiaRequest{
		ModelID:    cartesiaModelID,
		Transcript: text,
		Voice: cartesiaVoiceSpecifier{
			Mode: "id",
			ID:   s.voiceID,
		},
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    128000,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal Cartesia request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL+"/tts/bytes", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create Cartesia request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaAPIVersion)

	log.Printf("[Cartesia] Generating speech (voiceID=%s, textLen=%d)", s.voiceID, len(text))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Cartesia request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Cartesia returned status %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Cartesia audio response: %w", err)
	}

	if len(audioData) == 0 {
		return fmt.Errorf("Cartesia returned empty audio")
	}

	if err := writeFileAtomic(outputPath, audioData); err != nil {
		return err
	}

	log.Printf("[Cartesia] Speech generated (%d bytes)", len(audioData))
	return nil
}
