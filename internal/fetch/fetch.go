// Package fetch handles the transfer of a single media item: deciding its
// local filename, skipping already-downloaded files and streaming new ones
// into storage.
package fetch

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"civitdl/pkg/civitai"
	"civitdl/pkg/logger"
	"civitdl/pkg/storage"
)

// Outcome classifies what happened to one item during a run.
type Outcome int

const (
	OutcomeDownloaded Outcome = iota
	OutcomeSkippedExisting
	OutcomeSkippedDryRun
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeSkippedExisting:
		return "skipped_existing"
	case OutcomeSkippedDryRun:
		return "skipped_dry_run"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result records the outcome of one item transfer.
type Result struct {
	ItemID   int64
	Outcome  Outcome
	FileName string
	Err      error
	Duration time.Duration
}

// mimeExtensions maps the MIME types the API serves to file extensions.
var mimeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

// Extension infers a file extension for an item, preferring the MIME type
// and falling back to the URL's suffix. Unknown types default to .jpg.
func Extension(mimeType, rawURL string) string {
	if ext, ok := mimeExtensions[strings.ToLower(mimeType)]; ok {
		return ext
	}
	if rawURL != "" {
		candidate := rawURL
		if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
			candidate = u.Path
		}
		if ext := strings.ToLower(path.Ext(candidate)); ext != "" {
			for _, known := range mimeExtensions {
				if ext == known {
					return ext
				}
			}
		}
	}
	return ".jpg"
}

// FileName returns the local name for an item: its remote ID plus the
// inferred extension. Remote IDs are unique within a target, so names
// never collide and re-runs always map an item to the same file.
func FileName(img *civitai.Image) string {
	return fmt.Sprintf("%d%s", img.ID, Extension(img.MimeType, img.URL))
}

// Stem returns the item's filename without its extension, used to derive
// sidecar metadata names.
func Stem(img *civitai.Image) string {
	name := FileName(img)
	return strings.TrimSuffix(name, path.Ext(name))
}

// Fetcher transfers media items for one target into its storage directory.
type Fetcher struct {
	client *civitai.Client
	store  *storage.Manager
	logger logger.Logger
}

// New creates a fetcher bound to a target's storage manager.
func New(client *civitai.Client, store *storage.Manager, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client: client,
		store:  store,
		logger: log,
	}
}

// Fetch transfers one item. Files already present are skipped; the caller
// decides separately whether to refresh sidecar metadata.
func (f *Fetcher) Fetch(img *civitai.Image) Result {
	start := time.Now()
	name := FileName(img)

	if f.store.HasFile(name) {
		f.logger.DebugWithFields("file exists, skipping download", map[string]interface{}{
			"image_id": img.ID,
			"file":     name,
		})
		return Result{ItemID: img.ID, Outcome: OutcomeSkippedExisting, FileName: name, Duration: time.Since(start)}
	}

	mediaURL := f.client.ResolveMediaURL(img, name)
	if mediaURL == "" {
		return Result{
			ItemID:   img.ID,
			Outcome:  OutcomeFailed,
			FileName: name,
			Err:      fmt.Errorf("image %d has no download URL", img.ID),
			Duration: time.Since(start),
		}
	}

	size, err := f.client.DownloadFile(mediaURL, func(r io.Reader) error {
		return f.store.SaveFile(name, r)
	})
	if err != nil {
		return Result{ItemID: img.ID, Outcome: OutcomeFailed, FileName: name, Err: err, Duration: time.Since(start)}
	}

	f.logger.InfoWithFields("downloaded media file", map[string]interface{}{
		"image_id": img.ID,
		"file":     name,
		"size":     size,
		"duration": time.Since(start),
	})
	return Result{ItemID: img.ID, Outcome: OutcomeDownloaded, FileName: name, Duration: time.Since(start)}
}
