package services

import (
	"context"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// ---------------------------------------------------------------------------
// OpenAI Text-to-Speech Service
// Uses the OpenAI speech endpoint (tts-1) via the official-style Go client.
// ---------------------------------------------------------------------------

const openaiDefaultVoice = openai.VoiceAlloy

// OpenAITTSService handles text-to-speech via the OpenAI API.
type OpenAITTSService struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

// Ensure OpenAITTSService implements TTSService at compile time.
var _ TTSService = (*OpenAITTSService)(nil)

// NewOpenAITTSService creates an OpenAI TTS service. voice may be empty to
// use the default.
func NewOpenAITTSService(apiKey, voice string) *OpenAITTSService {
	v := openaiDefaultVoice
	if voice != "" {
		v = openai.SpeechVoice(voice)
	}
	return &OpenAITTSService{
		client: openai.NewClient(apiKey),
		voice:  v,
	}
}

// Synthesize converts text to speech and writes the MP3 to outputPath.
func (s *OpenAITTSService) Synthesize(ctx context.Context, text, outputPath string) error {
	log.Printf("[OpenAI TTS] Generating speech (voice=%s, textLen=%d)", s.voice, len(text))

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return fmt.Errorf("failed to read openai audio response: %w", err)
	}

	if len(audioData) == 0 {
		return fmt.Errorf("openai returned empty audio")
	}

	if err := writeFileAtomic(outputPath, audioData); err != nil {
		return err
	}

	log.Printf("[OpenAI TTS] Speech generated (%d bytes)", len(audioData))
	return nil
}
