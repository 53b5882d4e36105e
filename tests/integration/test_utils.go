package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"civitdl/pkg/civitai"
	"civitdl/pkg/downloader"
	"civitdl/pkg/logger"
	"civitdl/pkg/retry"
)

// TestHelper wires a mock server, a client and a downloader together
// around a per-test temp directory.
type TestHelper struct {
	t      *testing.T
	Server *MockCivitaiServer
	Client *civitai.Client
	Root   string
}

// NewTestHelper creates a helper with a started mock server and a client
// pointed at it. The retry policy uses millisecond backoff to keep tests
// fast.
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()

	server := NewMockCivitaiServer()
	t.Cleanup(server.Close)

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	cfg.Logger = logger.NewTestLogger()

	client := civitai.NewClient("test-key", 5*time.Second, cfg, logger.NewTestLogger())
	client.SetBaseURL(server.URL())
	client.SetDeliveryBaseURL(server.URL())

	return &TestHelper{
		t:      t,
		Server: server,
		Client: client,
		Root:   t.TempDir(),
	}
}

// NewDownloader builds a downloader writing under the helper's root.
func (h *TestHelper) NewDownloader(opts downloader.Options) *downloader.Downloader {
	return downloader.New(h.Client, h.Root, opts, logger.NewTestLogger())
}

// TargetDir returns the expected directory for a target with the given
// sanitized title.
func (h *TestHelper) TargetDir(id int64, title string) string {
	if title == "" {
		return filepath.Join(h.Root, strconv.FormatInt(id, 10))
	}
	return filepath.Join(h.Root, strconv.FormatInt(id, 10)+"-"+title)
}

// AssertFileExists fails the test if the path does not exist.
func (h *TestHelper) AssertFileExists(path string) {
	h.t.Helper()
	if _, err := os.Stat(path); err != nil {
		h.t.Errorf("expected file %s to exist: %v", path, err)
	}
}

// AssertFileAbsent fails the test if the path exists.
func (h *TestHelper) AssertFileAbsent(path string) {
	h.t.Helper()
	if _, err := os.Stat(path); err == nil {
		h.t.Errorf("expected file %s to be absent", path)
	}
}

// ReadJSON decodes a JSON file into a generic map.
func (h *TestHelper) ReadJSON(path string) map[string]interface{} {
	h.t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		h.t.Fatalf("failed to read %s: %v", path, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		h.t.Fatalf("%s is not valid JSON: %v", path, err)
	}
	return doc
}
