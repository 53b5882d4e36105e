package fetch

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"civitdl/pkg/civitai"
	"civitdl/pkg/logger"
	"civitdl/pkg/retry"
	"civitdl/pkg/storage"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		mime string
		url  string
		want string
	}{
		{"image/jpeg", "", ".jpg"},
		{"image/png", "", ".png"},
		{"video/mp4", "", ".mp4"},
		{"video/quicktime", "", ".mov"},
		{"", "https://cdn.example.com/path/file.webp", ".webp"},
		{"", "abc-def-key", ".jpg"},
		{"application/octet-stream", "", ".jpg"},
	}

	for _, test := range tests {
		if got := Extension(test.mime, test.url); got != test.want {
			t.Errorf("Extension(%q, %q) = %q, want %q", test.mime, test.url, got, test.want)
		}
	}
}

func TestFileName(t *testing.T) {
	img := &civitai.Image{ID: 1234, MimeType: "image/png"}
	if got := FileName(img); got != "1234.png" {
		t.Errorf("Expected 1234.png, got %s", got)
	}
	if got := Stem(img); got != "1234" {
		t.Errorf("Expected stem 1234, got %s", got)
	}
}

func newTestFetcher(t *testing.T, serverURL string) (*Fetcher, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 1
	client := civitai.NewClient("test-key", 5*time.Second, cfg, logger.NewTestLogger())
	client.SetDeliveryBaseURL(serverURL)

	return New(client, store, logger.NewTestLogger()), dir
}

func TestFetchDownloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image bytes"))
	}))
	defer server.Close()

	fetcher, dir := newTestFetcher(t, server.URL)

	img := &civitai.Image{ID: 55, URL: "cdn-key-55", MimeType: "image/jpeg"}
	result := fetcher.Fetch(img)

	if result.Outcome != OutcomeDownloaded {
		t.Fatalf("Expected downloaded, got %s (err: %v)", result.Outcome, result.Err)
	}
	if result.FileName != "55.jpg" {
		t.Errorf("Unexpected file name: %s", result.FileName)
	}

	data, err := os.ReadFile(filepath.Join(dir, "55.jpg"))
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if string(data) != "image bytes" {
		t.Error("Downloaded content does not match server response")
	}
}

func TestFetchSkipsExisting(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("image bytes"))
	}))
	defer server.Close()

	fetcher, dir := newTestFetcher(t, server.URL)

	if err := os.WriteFile(filepath.Join(dir, "55.jpg"), []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}

	img := &civitai.Image{ID: 55, URL: "cdn-key-55", MimeType: "image/jpeg"}
	result := fetcher.Fetch(img)

	if result.Outcome != OutcomeSkippedExisting {
		t.Fatalf("Expected skipped_existing, got %s", result.Outcome)
	}
	if requests != 0 {
		t.Errorf("Expected no network requests for an existing file, got %d", requests)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "55.jpg"))
	if string(data) != "already here" {
		t.Error("Existing file was modified")
	}
}

func TestFetchReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher, dir := newTestFetcher(t, server.URL)

	img := &civitai.Image{ID: 77, URL: "gone-key", MimeType: "image/png"}
	result := fetcher.Fetch(img)

	if result.Outcome != OutcomeFailed {
		t.Fatalf("Expected failed, got %s", result.Outcome)
	}
	if result.Err == nil {
		t.Error("Expected an error on failed fetch")
	}
	if _, err := os.Stat(filepath.Join(dir, "77.png")); !os.IsNotExist(err) {
		t.Error("Expected no file written on failed fetch")
	}
}

func TestFetchMissingURL(t *testing.T) {
	fetcher, _ := newTestFetcher(t, "http://127.0.0.1:0")

	img := &civitai.Image{ID: 9, MimeType: "image/jpeg"}
	result := fetcher.Fetch(img)

	if result.Outcome != OutcomeFailed {
		t.Fatalf("Expected failed for URL-less item, got %s", result.Outcome)
	}
}
