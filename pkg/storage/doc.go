// Package storage provides destination-directory management for downloads.
//
// The storage package handles:
//   - Deterministic target directory naming ({id}-{sanitized name})
//   - Saving media files with atomic write operations
//   - Detecting already-downloaded files for idempotent re-runs
//   - Whole-file JSON metadata writes
//
// The Manager type is the primary interface. Media writes go through a
// temporary file and a rename on success, so an interrupted run never
// leaves a partial file under a final name; stray .tmp artifacts are
// ignored when scanning for completed downloads.
//
// Usage:
//
//	manager, err := storage.NewManager(filepath.Join(root, storage.TargetDirName(id, name)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !manager.HasFile("12345.jpg") {
//	    err = manager.SaveFile("12345.jpg", bodyReader)
//	}
package storage
