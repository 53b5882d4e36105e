package downloader

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"civitdl/internal/fetch"
	"civitdl/pkg/civitai"
	"civitdl/pkg/errors"
	"civitdl/pkg/logger"
	"civitdl/pkg/metadata"
	"civitdl/pkg/storage"
)

// Options controls a downloader run.
type Options struct {
	// SkipMetadata disables sidecar and aggregate metadata writes.
	SkipMetadata bool

	// DryRun enumerates and reports without touching the filesystem.
	DryRun bool
}

// Summary reports the outcome of one target.
type Summary struct {
	Target          civitai.Target
	Title           string
	Dir             string
	RunID           string
	TotalItems      int
	Downloaded      int
	SkippedExisting int
	SkippedDryRun   int
	Failed          int
	Results         []fetch.Result
	Duration        time.Duration

	// TargetDocErr records a failed aggregate document write. The item
	// counters above only ever count item outcomes.
	TargetDocErr error
}

// Downloader orchestrates complete target downloads: target info, listing
// pages, per-item transfers and metadata documents. Items are processed
// sequentially; per-item failures are counted and the run continues.
type Downloader struct {
	client     *civitai.Client
	outputRoot string
	opts       Options
	logger     logger.Logger
}

// New creates a downloader writing under outputRoot.
func New(client *civitai.Client, outputRoot string, opts Options, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{
		client:     client,
		outputRoot: outputRoot,
		opts:       opts,
		logger:     log,
	}
}

// Process downloads one target. Per-item failures are recorded in the
// summary and processing continues; a returned error means the target as a
// whole could not be processed (unknown ID, authentication failure, or a
// listing page that kept failing after retries).
func (d *Downloader) Process(target civitai.Target) (*Summary, error) {
	start := time.Now()
	runID := uuid.New().String()

	log := d.logger.WithFields(map[string]interface{}{
		"target": target.String(),
		"run_id": runID,
	})
	log.Info("processing target")

	summary := &Summary{Target: target, RunID: runID}

	title, collection, post, err := d.fetchTargetInfo(target, log)
	if err != nil {
		return nil, err
	}
	summary.Title = title

	items, err := d.listAllItems(target, log)
	if err != nil {
		return nil, err
	}
	summary.TotalItems = len(items)

	if d.opts.DryRun {
		for _, img := range items {
			summary.SkippedDryRun++
			summary.Results = append(summary.Results, fetch.Result{
				ItemID:   img.ID,
				Outcome:  fetch.OutcomeSkippedDryRun,
				FileName: fetch.FileName(&img),
			})
		}
		summary.Duration = time.Since(start)
		log.InfoWithFields("dry run complete", map[string]interface{}{
			"items": summary.TotalItems,
		})
		return summary, nil
	}

	dir := filepath.Join(d.outputRoot, storage.TargetDirName(target.ID, title))
	store, err := storage.NewManager(dir)
	if err != nil {
		return nil, err
	}
	summary.Dir = dir

	fetcher := fetch.New(d.client, store, d.logger)
	writer := metadata.NewWriter(store)

	var itemDocs []*metadata.ItemDocument
	for i := range items {
		img := &items[i]
		result, doc := d.processItem(fetcher, writer, img, log)
		summary.Results = append(summary.Results, result)
		switch result.Outcome {
		case fetch.OutcomeDownloaded:
			summary.Downloaded++
			logger.LogDownload(target.String(), img.ID, result.FileName, true, nil)
		case fetch.OutcomeSkippedExisting:
			summary.SkippedExisting++
		case fetch.OutcomeFailed:
			summary.Failed++
			logger.LogDownload(target.String(), img.ID, result.FileName, false, result.Err)
		}
		if doc != nil {
			itemDocs = append(itemDocs, doc)
		}
		logger.LogTargetProgress(target.String(), i+1, len(items))
	}

	if !d.opts.SkipMetadata {
		var doc *metadata.TargetDocument
		switch target.Type {
		case civitai.TargetTypeCollection:
			doc = metadata.BuildCollectionDocument(target.ID, collection, itemDocs, runID)
		case civitai.TargetTypePost:
			doc = metadata.BuildPostDocument(target.ID, post, itemDocs, runID)
		}
		if _, err := writer.WriteTargetDocument(doc, target.Type); err != nil {
			log.WithError(err).Error("failed to write target metadata document")
			summary.TargetDocErr = err
		}
	}

	summary.Duration = time.Since(start)
	log.InfoWithFields("target complete", map[string]interface{}{
		"items":            summary.TotalItems,
		"downloaded":       summary.Downloaded,
		"skipped_existing": summary.SkippedExisting,
		"failed":           summary.Failed,
		"duration":         summary.Duration,
	})
	return summary, nil
}

// fetchTargetInfo fetches the target-level object and derives the directory
// title. A failed collection info fetch is tolerated unless it is fatal for
// the run (auth) or the target (not found); the directory then falls back
// to the bare ID.
func (d *Downloader) fetchTargetInfo(target civitai.Target, log logger.Logger) (string, *civitai.Collection, *civitai.Post, error) {
	switch target.Type {
	case civitai.TargetTypeCollection:
		col, err := d.client.GetCollection(target.ID)
		if err != nil {
			if errors.IsNotFound(err) || errors.IsAuth(err) {
				return "", nil, nil, err
			}
			log.WithError(err).Warn("failed to fetch collection info, continuing without it")
			return "", nil, nil, nil
		}
		return col.Name, col, nil, nil
	case civitai.TargetTypePost:
		post, err := d.client.GetPost(target.ID)
		if err != nil {
			if errors.IsNotFound(err) || errors.IsAuth(err) {
				return "", nil, nil, err
			}
			log.WithError(err).Warn("failed to fetch post info, continuing without it")
			return "", nil, nil, nil
		}
		return post.Title, nil, post, nil
	default:
		return "", nil, nil, fmt.Errorf("unknown target type: %s", target.Type)
	}
}

// listAllItems walks every listing page for the target. Remote order is
// preserved; duplicate IDs across page boundaries are dropped.
func (d *Downloader) listAllItems(target civitai.Target, log logger.Logger) ([]civitai.Image, error) {
	var (
		items  []civitai.Image
		seen   = make(map[int64]bool)
		cursor json.RawMessage
		pages  int
	)

	for {
		page, err := d.client.ListImages(target, cursor)
		if err != nil {
			return nil, err
		}
		pages++

		for _, img := range page.Items {
			if seen[img.ID] {
				continue
			}
			seen[img.ID] = true
			items = append(items, img)
		}

		if !page.HasMore() {
			break
		}
		cursor = page.NextCursor
	}

	log.DebugWithFields("listing complete", map[string]interface{}{
		"pages": pages,
		"items": len(items),
	})
	return items, nil
}

// processItem handles one media item: enrich with detail and generation
// data, transfer the file and write the sidecar document. The sidecar is
// rewritten even when the media file already exists; a sidecar write
// failure marks the item failed.
func (d *Downloader) processItem(fetcher *fetch.Fetcher, writer *metadata.Writer, img *civitai.Image, log logger.Logger) (fetch.Result, *metadata.ItemDocument) {
	detailed := img
	if detail, err := d.client.GetImageDetail(img.ID); err == nil {
		detailed = detail
		if detailed.URL == "" {
			detailed.URL = img.URL
		}
	} else {
		log.WithError(err).WithField("image_id", img.ID).Debug("detail fetch failed, using listing data")
	}

	result := fetcher.Fetch(detailed)
	if result.Outcome == fetch.OutcomeFailed {
		log.WithError(result.Err).WithField("image_id", img.ID).Warn("failed to download item")
		return result, nil
	}

	if d.opts.SkipMetadata {
		return result, nil
	}

	var gen *civitai.GenerationData
	if g, err := d.client.GetGenerationData(img.ID); err == nil {
		gen = g
	} else {
		log.WithError(err).WithField("image_id", img.ID).Debug("generation data unavailable")
	}

	var tags []civitai.VotableTag
	if ts, err := d.client.GetImageTags(img.ID); err == nil {
		tags = ts
	} else {
		log.WithError(err).WithField("image_id", img.ID).Debug("tags unavailable")
	}

	doc := metadata.BuildItemDocument(detailed, gen, tags)
	if _, err := writer.WriteItemDocument(doc, fetch.Stem(detailed)); err != nil {
		log.WithError(err).WithField("image_id", img.ID).Error("failed to write item metadata")
		result.Outcome = fetch.OutcomeFailed
		result.Err = err
		return result, doc
	}

	return result, doc
}
