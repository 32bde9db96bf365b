package config

import (
	"strings"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/slidecast_test")
	t.Setenv("TTS_ENGINE", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIPort != "8080" {
		t.Errorf("APIPort = %q", cfg.APIPort)
	}
	if cfg.SceneFailurePolicy != "abort" {
		t.Errorf("SceneFailurePolicy default = %q, want abort", cfg.SceneFailurePolicy)
	}
	if cfg.MaxConcurrentScenes < 1 {
		t.Errorf("MaxConcurrentScenes = %d", cfg.MaxConcurrentScenes)
	}
	if cfg.AvatarEngine != "" {
		t.Errorf("AvatarEngine default = %q, want disabled", cfg.AvatarEngine)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadRejectsUnknownTTSEngine(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TTS_ENGINE", "espeak")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for unknown TTS engine")
	}
	if !strings.Contains(err.Error(), "TTS_ENGINE") {
		t.Errorf("error should name the offending setting: %v", err)
	}
}

func TestLoadRequiresEngineKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TTS_ENGINE", "elevenlabs")
	t.Setenv("ELEVENLABS_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when the selected engine has no API key")
	}
}

func TestLoadRejectsUnknownAvatarEngine(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("AVATAR_ENGINE", "wav2lip")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown avatar engine")
	}
}

func TestLoadRejectsBadFailurePolicy(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SCENE_FAILURE_POLICY", "retry")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown scene failure policy")
	}
}
