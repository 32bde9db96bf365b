package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseTTSEngine(t *testing.T) {
	for _, name := range []string{"openai", "elevenlabs", "cartesia"} {
		engine, err := ParseTTSEngine(name)
		if err != nil {
			t.Errorf("ParseTTSEngine(%q) returned error: %v", name, err)
		}
		if string(engine) != name {
			t.Errorf("ParseTTSEngine(%q) = %q", name, engine)
		}
	}

	_, err := ParseTTSEngine("espeak")
	if err == nil {
		t.Fatal("expected error for unknown engine")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
	if cfgErr.Value != "espeak" {
		t.Errorf("ConfigurationError.Value = %q, want espeak", cfgErr.Value)
	}
}

func TestNewTTSServiceRejectsUnknownEngine(t *testing.T) {
	_, err := NewTTSService(TTSConfig{Engine: TTSEngine("festival")})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestParseAvatarEngine(t *testing.T) {
	// Empty string is valid and means disabled
	engine, err := ParseAvatarEngine("")
	if err != nil {
		t.Fatalf("ParseAvatarEngine(\"\") returned error: %v", err)
	}
	if engine != "" {
		t.Errorf("ParseAvatarEngine(\"\") = %q", engine)
	}

	if _, err := ParseAvatarEngine("sadtalker"); err != nil {
		t.Errorf("sadtalker rejected: %v", err)
	}
	if _, err := ParseAvatarEngine("veo"); err != nil {
		t.Errorf("veo rejected: %v", err)
	}

	_, err = ParseAvatarEngine("wav2lip")
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for unknown avatar engine, got %v", err)
	}
}

func TestNewAvatarServiceDisabled(t *testing.T) {
	svc, err := NewAvatarService(AvatarConfig{Engine: ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc != nil {
		t.Fatal("expected nil service for empty engine")
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	audio := []byte("fake-mp3-bytes")

	var gotKey, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("xi-api-key")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		w.Write(audio)
	}))
	defer server.Close()

	svc := NewElevenLabsService("test-key", "voice123")
	svc.baseURL = server.URL

	outputPath := filepath.Join(t.TempDir(), "narration.mp3")
	if err := svc.Synthesize(context.Background(), "hello world", outputPath); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("xi-api-key = %q", gotKey)
	}
	if gotPath != "/v1/text-to-speech/voice123" {
		t.Errorf("request path = %q", gotPath)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if string(data) != string(audio) {
		t.Errorf("output file content = %q", data)
	}
}

func TestElevenLabsSynthesizeErrorLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := NewElevenLabsService("test-key", "")
	svc.baseURL = server.URL

	outputPath := filepath.Join(t.TempDir(), "narration.mp3")
	if err := svc.Synthesize(context.Background(), "hello", outputPath); err == nil {
		t.Fatal("expected error from non-200 response")
	}

	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Error("failed synthesis must not leave a file behind")
	}
}

func TestCartesiaSynthesize(t *testing.T) {
	audio := []byte("cartesia-mp3")

	var gotKey, gotVersion, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotVersion = r.Header.Get("Cartesia-Version")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		w.Write(audio)
	}))
	defer server.Close()

	svc := NewCartesiaService("cart-key", server.URL, "voice-a")

	outputPath := filepath.Join(t.TempDir(), "narration.mp3")
	if err := svc.Synthesize(context.Background(), "bonjour", outputPath); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if gotKey != "cart-key" {
		t.Errorf("X-API-Key = %q", gotKey)
	}
	if gotVersion == "" {
		t.Error("Cartesia-Version header missing")
	}
	if gotPath != "/tts/bytes" {
		t.Errorf("request path = %q", gotPath)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if string(data) != string(audio) {
		t.Errorf("output file content = %q", data)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	if err := writeFileAtomic(path, []byte("payload")); err != nil {
		t.Fatalf("writeFileAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after successful write")
	}
}
