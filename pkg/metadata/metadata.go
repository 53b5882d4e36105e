package metadata

import (
	"fmt"
	"time"

	"civitdl/pkg/civitai"
	"civitdl/pkg/storage"
)

// ItemDocument is the normalized per-item metadata written beside each
// downloaded file. Field presence depends on what the API returned;
// absent fields are omitted or keep zero values.
type ItemDocument struct {
	ID             int64                        `json:"id"`
	Name           string                       `json:"name,omitempty"`
	Width          int                          `json:"width,omitempty"`
	Height         int                          `json:"height,omitempty"`
	MimeType       string                       `json:"mime_type,omitempty"`
	Hash           string                       `json:"hash,omitempty"`
	NSFWLevel      int                          `json:"nsfw_level,omitempty"`
	CreatedAt      *time.Time                   `json:"created_at,omitempty"`
	PublishedAt    *time.Time                   `json:"published_at,omitempty"`
	URL            string                       `json:"url,omitempty"`
	User           *civitai.User                `json:"user,omitempty"`
	Stats          *civitai.ImageStats          `json:"stats,omitempty"`
	Prompt         string                       `json:"prompt,omitempty"`
	NegativePrompt string                       `json:"negative_prompt,omitempty"`
	Models         []civitai.GenerationResource `json:"models,omitempty"`
	Tags           []civitai.VotableTag         `json:"tags,omitempty"`
	DownloadedAt   time.Time                    `json:"downloaded_at"`
}

// TargetDocument is the aggregate metadata for one collection or post,
// embedding the per-item documents.
type TargetDocument struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty"`
	NSFW        bool            `json:"nsfw,omitempty"`
	NSFWLevel   int             `json:"nsfw_level,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	User        *civitai.User   `json:"user,omitempty"`
	MediaCount  int             `json:"media_count"`
	Media       []*ItemDocument `json:"media"`
	RunID       string          `json:"run_id,omitempty"`
}

// BuildItemDocument shapes an image plus its optional generation data and
// tags into a normalized metadata document. gen and tags may be nil when
// the supplementary fetches failed; the document still carries the core
// fields from the listing or detail response.
func BuildItemDocument(img *civitai.Image, gen *civitai.GenerationData, tags []civitai.VotableTag) *ItemDocument {
	doc := &ItemDocument{
		ID:           img.ID,
		Name:         img.Name,
		Width:        img.Width,
		Height:       img.Height,
		MimeType:     img.MimeType,
		Hash:         img.Hash,
		NSFWLevel:    img.NSFWLevel,
		CreatedAt:    img.CreatedAt,
		PublishedAt:  img.PublishedAt,
		URL:          img.URL,
		User:         img.User,
		Stats:        img.Stats,
		Tags:         tags,
		DownloadedAt: time.Now().UTC(),
	}

	if gen != nil {
		if gen.Meta != nil {
			doc.Prompt = gen.Meta.Prompt
			doc.NegativePrompt = gen.Meta.NegativePrompt
		}
		doc.Models = gen.Resources
	}

	return doc
}

// BuildCollectionDocument shapes collection info and the run's item
// documents into the aggregate document. col may be nil when the info
// fetch failed; the document then carries only the ID and a placeholder
// name, matching re-runs against renamed or inaccessible collections.
func BuildCollectionDocument(collectionID int64, col *civitai.Collection, items []*ItemDocument, runID string) *TargetDocument {
	doc := &TargetDocument{
		ID:         collectionID,
		Name:       fmt.Sprintf("Collection-%d", collectionID),
		MediaCount: len(items),
		Media:      items,
		RunID:      runID,
	}
	if items == nil {
		doc.Media = []*ItemDocument{}
	}

	if col != nil {
		doc.ID = col.ID
		if col.Name != "" {
			doc.Name = col.Name
		}
		doc.Description = col.Description
		doc.Type = col.Type
		doc.NSFW = col.NSFW
		doc.NSFWLevel = col.NSFWLevel
		doc.CreatedAt = col.CreatedAt
		doc.User = col.User
	}

	return doc
}

// BuildPostDocument shapes post info and the run's item documents into
// the aggregate document.
func BuildPostDocument(postID int64, post *civitai.Post, items []*ItemDocument, runID string) *TargetDocument {
	doc := &TargetDocument{
		ID:         postID,
		MediaCount: len(items),
		Media:      items,
		RunID:      runID,
	}
	if items == nil {
		doc.Media = []*ItemDocument{}
	}

	if post != nil {
		doc.ID = post.ID
		doc.Title = post.Title
		doc.Description = post.Detail
		doc.NSFWLevel = post.NSFWLevel
		doc.User = post.User
	}

	return doc
}

// Writer persists metadata documents through a storage manager. All writes
// are whole-file overwrites; re-running refreshes metadata unconditionally,
// independent of the media skip-existing rule.
type Writer struct {
	store *storage.Manager
}

// NewWriter creates a metadata writer over the target's storage manager.
func NewWriter(store *storage.Manager) *Writer {
	return &Writer{store: store}
}

// WriteItemDocument writes the sidecar document for one media file,
// named "{stem}_metadata.json" beside it. Returns the file name written.
func (w *Writer) WriteItemDocument(doc *ItemDocument, stem string) (string, error) {
	name := stem + "_metadata.json"
	if err := w.store.WriteJSON(name, doc); err != nil {
		return "", err
	}
	return name, nil
}

// WriteTargetDocument writes the aggregate document for the target,
// "collection_metadata.json" or "post_metadata.json". Returns the file
// name written.
func (w *Writer) WriteTargetDocument(doc *TargetDocument, targetType civitai.TargetType) (string, error) {
	name := string(targetType) + "_metadata.json"
	if err := w.store.WriteJSON(name, doc); err != nil {
		return "", err
	}
	return name, nil
}
