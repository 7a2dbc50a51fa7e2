package openapi

import (
	"encoding/json"
	"testing"
)

func TestGenerateSpecCoversAPIRoutes(t *testing.T) {
	doc := GenerateSpec("http://localhost:8080", "1.0.0")

	wantPaths := []string{
		"/api/v1/schemas",
		"/api/v1/schemas/{schemaID}/upgrade",
		"/api/v1/schemas/history",
		"/api/v1/execute",
		"/api/v1/execute-all",
		"/api/v1/schema-detection/all",
		"/api/v1/schema-detection/detect-and-save",
		"/api/v1/history",
	}
	for _, p := range wantPaths {
		if doc.Paths.Value(p) == nil {
			t.Errorf("missing path %s", p)
		}
	}
	if doc.Paths.Len() != len(wantPaths) {
		t.Errorf("expected %d paths, got %d", len(wantPaths), doc.Paths.Len())
	}
}

func TestGenerateSpecMarshals(t *testing.T) {
	doc := GenerateSpec("http://localhost:8080", "dev")
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("round-trip: %v", err)
	}
	if decoded["openapi"] != "3.1.0" {
		t.Errorf("openapi version = %v", decoded["openapi"])
	}
	if _, ok := decoded["components"].(map[string]interface{})["schemas"]; !ok {
		t.Error("expected component schemas in document")
	}
}
