package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// MinIO (final-artifact promotion — optional, empty endpoint = serve local files)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// TTS — engine is a closed set; unknown values are rejected at startup
	TTSEngine         string // "openai", "elevenlabs", "cartesia"
	OpenAIKey         string
	OpenAIVoice       string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	CartesiaKey       string
	CartesiaURL       string
	CartesiaVoiceID   string

	// Avatar — optional stage; empty engine disables avatars entirely
	AvatarEngine      string // "", "sadtalker", "veo"
	SadTalkerURL      string
	SadTalkerAPIKey   string
	GeminiKey         string // Used by the veo avatar engine
	VeoModel          string
	AvatarCharacter   string // Path to the default character image
	StrictAvatar      bool   // When true, a failed avatar render fails the scene

	// Media pipeline
	MediaBaseDir        string // Root for generated artifacts ({base}/videos/generated/...)
	DefaultBackground   string // Fallback background image when a scene has none
	SceneFailurePolicy  string // "abort" (default) or "skip"
	MaxConcurrentScenes int    // Scenes composed in parallel within one export

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "slidecast-exports"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		TTSEngine:         getEnv("TTS_ENGINE", "openai"),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIVoice:       getEnv("OPENAI_TTS_VOICE", "alloy"),
		ElevenLabsKey:     getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID: getEnv("ELEVENLABS_VOICE_ID", ""),
		CartesiaKey:       getEnv("CARTESIA_API_KEY", ""),
		CartesiaURL:       getEnv("CARTESIA_API_URL", "https://api.cartesia.ai"),
		CartesiaVoiceID:   getEnv("CARTESIA_VOICE_ID", ""),

		AvatarEngine:    getEnv("AVATAR_ENGINE", ""),
		SadTalkerURL:    getEnv("SADTALKER_URL", ""),
		SadTalkerAPIKey: getEnv("SADTALKER_API_KEY", ""),
		GeminiKey:       getEnv("GEMINI_API_KEY", ""),
		VeoModel:        getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		AvatarCharacter: getEnv("AVATAR_CHARACTER", "assets/avatar/default.png"),
		StrictAvatar:    getEnvBool("STRICT_AVATAR", false),

		MediaBaseDir:        getEnv("MEDIA_BASE_DIR", "/tmp/slidecast"),
		DefaultBackground:   getEnv("DEFAULT_BACKGROUND", "assets/backgrounds/default.png"),
		SceneFailurePolicy:  getEnv("SCENE_FAILURE_POLICY", "abort"),
		MaxConcurrentScenes: getEnvInt("MAX_CONCURRENT_SCENES", 1),

		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 2),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.TTSEngine {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for TTS_ENGINE=openai")
		}
	case "elevenlabs":
		if cfg.ElevenLabsKey == "" {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY is required for TTS_ENGINE=elevenlabs")
		}
	case "cartesia":
		if cfg.CartesiaKey == "" {
			return nil, fmt.Errorf("CARTESIA_API_KEY is required for TTS_ENGINE=cartesia")
		}
	default:
		return nil, fmt.Errorf("unsupported TTS_ENGINE %q (expected openai, elevenlabs, or cartesia)", cfg.TTSEngine)
	}

	switch cfg.AvatarEngine {
	case "":
		// Avatars disabled
	case "sadtalker":
		if cfg.SadTalkerURL == "" {
			return nil, fmt.Errorf("SADTALKER_URL is required for AVATAR_ENGINE=sadtalker")
		}
	case "veo":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for AVATAR_ENGINE=veo")
		}
	default:
		return nil, fmt.Errorf("unsupported AVATAR_ENGINE %q (expected sadtalker or veo)", cfg.AvatarEngine)
	}

	if cfg.SceneFailurePolicy != "abort" && cfg.SceneFailurePolicy != "skip" {
		return nil, fmt.Errorf("SCENE_FAILURE_POLICY must be abort or skip, got %q", cfg.SceneFailurePolicy)
	}

	if cfg.MaxConcurrentScenes < 1 {
		cfg.MaxConcurrentScenes = 1
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
