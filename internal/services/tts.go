package services

import (
	"context"
	"fmt"
	"os"
)

// ---------------------------------------------------------------------------
// TTSService — common interface for text-to-speech providers
// The engine set is closed: unknown engines are rejected when the service is
// constructed, never at synthesis time.
// ---------------------------------------------------------------------------

// TTSEngine identifies a supported text-to-speech backend.
type TTSEngine string

const (
	TTSEngineOpenAI     TTSEngine = "openai"
	TTSEngineElevenLabs TTSEngine = "elevenlabs"
	TTSEngineCartesia   TTSEngine = "cartesia"
)

// ParseTTSEngine validates an engine name from configuration.
func ParseTTSEngine(s string) (TTSEngine, error) {
	switch TTSEngine(s) {
	case TTSEngineOpenAI, TTSEngineElevenLabs, TTSEngineCartesia:
		return TTSEngine(s), nil
	}
	return "", &ConfigurationError{Option: "TTS engine", Value: s}
}

// ConfigurationError reports an unsupported engine or missing engine
// setting. It is raised before any synthesis or rendering work starts and
// is never retried.
type ConfigurationError struct {
	Option string
	Value  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unsupported %s %q", e.Option, e.Value)
}

// TTSService is the interface that any TTS provider must implement.
// Synthesize writes exactly one complete audio file at outputPath; on
// failure no file is left behind. Callers read the narration duration from
// the produced file — providers make no duration promises.
type TTSService interface {
	Synthesize(ctx context.Context, text, outputPath string) error
}

// TTSConfig carries the per-provider settings the factory needs.
type TTSConfig struct {
	Engine            TTSEngine
	OpenAIKey         string
	OpenAIVoice       string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	CartesiaKey       string
	CartesiaURL       string
	CartesiaVoiceID   string
}

// NewTTSService builds the configured provider. Unknown engines fail here,
// before any I/O.
func NewTTSService(cfg TTSConfig) (TTSService, error) {
	switch cfg.Engine {
	case TTSEngineOpenAI:
		return NewOpenAITTSService(cfg.OpenAIKey, cfg.OpenAIVoice), nil
	case TTSEngineElevenLabs:
		return NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID), nil
	case TTSEngineCartesia:
		return NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaURL, cfg.CartesiaVoiceID), nil
	}
	return nil, &ConfigurationError{Option: "TTS engine", Value: string(cfg.Engine)}
}

// writeFileAtomic writes data to path via a temp file and rename, so a
// failed write never leaves a partial artifact at path.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize file: %w", err)
	}
	return nil
}
