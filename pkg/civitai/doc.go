// Package civitai provides a client for CivitAI's TRPC API.
//
// This package includes:
//   - A configurable HTTP client with bearer authentication and retry logic
//   - Type-safe models for the TRPC response envelope and media items
//   - Helper functions for constructing TRPC endpoint URLs
//   - Error classification backed by the shared error taxonomy
//
// Example usage:
//
//	client := civitai.NewClient("api-key", 30*time.Second, retryCfg, log)
//
//	// Fetch a collection and page through its images
//	col, err := client.GetCollection(1234)
//	if err != nil {
//	    if errors.IsNotFound(err) {
//	        // collection does not exist
//	    }
//	}
//
//	var cursor json.RawMessage
//	for {
//	    page, err := client.ListImages(civitai.CollectionTarget(1234), cursor)
//	    if err != nil {
//	        break
//	    }
//	    // process page.Items
//	    if !page.HasMore() {
//	        break
//	    }
//	    cursor = page.NextCursor
//	}
package civitai
