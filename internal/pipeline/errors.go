package pipeline

import (
	"fmt"

	"github.com/google/uuid"
)

// Error taxonomy for the export pipeline. Engine-selection failures are a
// services.ConfigurationError and happen at startup, before any of these
// can occur. Cleanup failures are logged warnings and never surface as
// errors at all.

// SynthesisError means narration generation failed for one scene. It is
// fatal to that scene; the assembler's failure policy decides whether the
// whole export aborts.
type SynthesisError struct {
	SceneID uuid.UUID
	Err     error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("narration synthesis failed for scene %s: %v", e.SceneID, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// RenderError means the avatar stage failed for one scene. By default the
// compositor degrades to no-avatar; strict mode escalates it to a
// scene-fatal error.
type RenderError struct {
	SceneID uuid.UUID
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("avatar render failed for scene %s: %v", e.SceneID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// CompositionError means the scene clip could not be assembled or encoded
// (missing background with no default, encoder failure). Fatal to the scene.
type CompositionError struct {
	SceneID uuid.UUID
	Reason  string
	Err     error
}

func (e *CompositionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scene %s composition failed: %s: %v", e.SceneID, e.Reason, e.Err)
	}
	return fmt.Sprintf("scene %s composition failed: %s", e.SceneID, e.Reason)
}

func (e *CompositionError) Unwrap() error { return e.Err }

// ConcatenationError means the final stitch failed — either zero scenes
// composed successfully or ffmpeg could not join the clips. Fatal to the
// whole export.
type ConcatenationError struct {
	Reason string
	Err    error
}

func (e *ConcatenationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("concatenation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("concatenation failed: %s", e.Reason)
}

func (e *ConcatenationError) Unwrap() error { return e.Err }
