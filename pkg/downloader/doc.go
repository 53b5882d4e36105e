// Package downloader orchestrates complete target downloads from CivitAI.
//
// A Downloader takes one target (a collection or a post), fetches its
// info, walks every listing page, transfers each media item and writes
// metadata documents. Targets are processed one at a time and items
// sequentially within a target; a failed item is counted and the run
// moves on.
//
// Usage:
//
//	client := civitai.NewClient(apiKey, 30*time.Second, nil, log)
//	dl := downloader.New(client, outputRoot, downloader.Options{}, log)
//
//	summary, err := dl.Process(civitai.CollectionTarget(12345))
//	if err != nil {
//	    // the target as a whole failed (unknown ID, auth, listing)
//	}
//	fmt.Printf("downloaded %d of %d\n", summary.Downloaded, summary.TotalItems)
//
// Re-running against the same output root is idempotent for media files:
// existing files are skipped, while metadata documents are refreshed.
package downloader
