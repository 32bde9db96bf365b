package models

import (
	"encoding/json"
	"testing"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"font":   "Inter",
		"volume": 0.8,
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["font"] != "Inter" {
		t.Errorf("expected font=Inter, got %v", result["font"])
	}
}

func TestJSONBScan(t *testing.T) {
	jsonData := []byte(`{"animation": "fade_in", "volume": 0.5}`)

	var j JSONB
	if err := j.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if j["animation"] != "fade_in" {
		t.Errorf("expected animation=fade_in, got %v", j["animation"])
	}

	if j["volume"].(float64) != 0.5 {
		t.Errorf("expected volume=0.5, got %v", j["volume"])
	}
}

func TestExportStatusTerminal(t *testing.T) {
	terminal := []ExportStatus{
		ExportStatusCompleted,
		ExportStatusFailed,
		ExportStatusCancelled,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	active := []ExportStatus{
		ExportStatusPending,
		ExportStatusRunning,
	}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestAssetIsBackground(t *testing.T) {
	bg := Asset{Type: AssetTypeImage, Layer: 0}
	if !bg.IsBackground() {
		t.Error("layer-0 image should be the background")
	}

	overlay := Asset{Type: AssetTypeImage, Layer: 2}
	if overlay.IsBackground() {
		t.Error("layer-2 image should not be the background")
	}

	audio := Asset{Type: AssetTypeAudio, Layer: 0}
	if audio.IsBackground() {
		t.Error("audio asset should not be the background")
	}
}
