package llamacpp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionHandler(t *testing.T, content interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}

		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 1 {
			t.Errorf("Expected one message, got %d", len(req.Messages))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id": "cmpl-1",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.baseURL != DefaultURL {
		t.Errorf("Expected default URL, got %s", c.baseURL)
	}

	c, err = NewClient("http://example.com:9000/")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.baseURL != "http://example.com:9000" {
		t.Errorf("Expected trailing slash trimmed, got %s", c.baseURL)
	}

	if _, err := NewClient("ftp://example.com"); err == nil {
		t.Error("Expected error for non-http URL")
	}
}

func TestDetectObjects(t *testing.T) {
	srv := httptest.NewServer(completionHandler(t,
		"```json\n{\"objects\":[{\"label\":\"person\",\"confidence\":0.85,\"box\":{\"x\":0.5,\"y\":0.2,\"w\":0.2,\"h\":0.6}}]}\n```"))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := c.DetectObjects(context.Background(), "m", "find", "aGVsbG8=")
	if err != nil {
		t.Fatalf("DetectObjects failed: %v", err)
	}
	if len(result.Objects) != 1 || result.Objects[0].Confidence != 0.85 {
		t.Errorf("Unexpected objects %+v", result.Objects)
	}
}

func TestUserMessageImageMIME(t *testing.T) {
	pngHeader := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	jpegHeader := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})

	tests := []struct {
		name     string
		imgB64   string
		expected string
	}{
		{"png", pngHeader, "data:image/png;base64,"},
		{"jpeg", jpegHeader, "data:image/jpeg;base64,"},
		{"unknown", "aGVsbG8=", "data:image/jpeg;base64,"},
	}

	for _, tt := range tests {
		msgs := userMessage("find", tt.imgB64)
		parts, ok := msgs[0].Content.([]ContentPart)
		if !ok || len(parts) != 2 {
			t.Fatalf("%s: expected text and image parts, got %#v", tt.name, msgs[0].Content)
		}
		if !strings.HasPrefix(parts[1].ImageURL.URL, tt.expected) {
			t.Errorf("%s: expected prefix %q, got %q", tt.name, tt.expected, parts[1].ImageURL.URL[:30])
		}
	}
}

func TestSimpleQueryContentParts(t *testing.T) {
	srv := httptest.NewServer(completionHandler(t, []map[string]any{
		{"type": "text", "text": "a beach at sunset"},
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	got, err := c.SimpleQuery(context.Background(), "m", "describe", "")
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if got != "a beach at sunset" {
		t.Errorf("Unexpected response %q", got)
	}
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.DetectObjects(context.Background(), "m", "find", ""); err == nil {
		t.Error("Expected error on non-200 status")
	}
}

func TestEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.SimpleQuery(context.Background(), "m", "p", ""); err == nil {
		t.Error("Expected error when no choices are returned")
	}
}
