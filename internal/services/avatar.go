package services

import (
	"context"
)

// ---------------------------------------------------------------------------
// AvatarService — common interface for talking-head renderers
// The avatar stage is optional: a nil service disables it globally, and a
// per-scene flag selects it. Engines form a closed set like TTS.
// ---------------------------------------------------------------------------

// AvatarEngine identifies a supported avatar rendering backend.
type AvatarEngine string

const (
	AvatarEngineSadTalker AvatarEngine = "sadtalker"
	AvatarEngineVeo       AvatarEngine = "veo"
)

// ParseAvatarEngine validates an engine name from configuration. The empty
// string is valid and means "avatars disabled".
func ParseAvatarEngine(s string) (AvatarEngine, error) {
	switch AvatarEngine(s) {
	case "", AvatarEngineSadTalker, AvatarEngineVeo:
		return AvatarEngine(s), nil
	}
	return "", &ConfigurationError{Option: "avatar engine", Value: s}
}

// AvatarService renders a talking-head clip for a scene. The clip is driven
// by the narration audio at narrationPath; the compositor trims the result
// to the narration's exact duration, so engines only need to produce at
// least that much footage.
type AvatarService interface {
	Render(ctx context.Context, text, narrationPath, outputPath string) error
}

// AvatarConfig carries the per-engine settings the factory needs.
type AvatarConfig struct {
	Engine       AvatarEngine
	SadTalkerURL string
	SadTalkerKey string
	GeminiKey    string
	VeoModel     string
	Character    string // Path to the character reference image
}

// NewAvatarService builds the configured renderer, or nil when the engine
// is empty (avatars disabled). Unknown engines fail here, before any I/O.
func NewAvatarService(cfg AvatarConfig) (AvatarService, error) {
	switch cfg.Engine {
	case "":
		return nil, nil
	case AvatarEngineSadTalker:
		return NewSadTalkerService(cfg.SadTalkerURL, cfg.SadTalkerKey, cfg.Character), nil
	case AvatarEngineVeo:
		return NewVeoAvatarService(cfg.GeminiKey, cfg.VeoModel, cfg.Character), nil
	}
	return nil, &ConfigurationError{Option: "avatar engine", Value: string(cfg.Engine)}
}
