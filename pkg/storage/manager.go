package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"civitdl/pkg/errors"
)

// maxNameLength caps sanitized directory name segments to avoid
// filesystem limits.
const maxNameLength = 200

// SanitizeName makes a target name filesystem-safe: invalid characters
// and spaces become underscores, and over-long names are truncated.
func SanitizeName(name string) string {
	const invalid = `<>:"/\|?*`
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(invalid, r):
			b.WriteRune('_')
		case r == ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > maxNameLength {
		s = s[:maxNameLength]
	}
	return s
}

// TargetDirName returns the deterministic directory segment for a target:
// "{id}-{sanitized name}", or just "{id}" when the target has no name.
// Re-running against the same target reuses the same directory.
func TargetDirName(id int64, name string) string {
	if name == "" {
		return fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%d-%s", id, SanitizeName(name))
}

// Manager owns one target's destination directory. It tracks which media
// files already exist so re-runs skip completed downloads, and performs
// all writes through a temporary file plus rename so an interrupted run
// never leaves a partial file under a final name.
type Manager struct {
	dir   string
	files map[string]bool
}

// NewManager creates the destination directory if needed and scans it for
// existing files.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeWrite, "failed to create destination directory", err)
	}

	m := &Manager{
		dir:   dir,
		files: make(map[string]bool),
	}
	if err := m.scanExistingFiles(); err != nil {
		return nil, err
	}
	return m, nil
}

// scanExistingFiles records completed downloads already present in the
// directory. Temporary artifacts from interrupted runs are never counted
// as completed.
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeWrite, "failed to read destination directory", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".tmp") {
			continue
		}
		m.files[name] = true
	}
	return nil
}

// Dir returns the destination directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// HasFile reports whether a completed file of that name exists. The
// in-memory map is backed by a stat check so files added outside this
// process are also honored.
func (m *Manager) HasFile(name string) bool {
	if m.files[name] {
		return true
	}
	if _, err := os.Stat(filepath.Join(m.dir, name)); err == nil {
		m.files[name] = true
		return true
	}
	return false
}

// SaveFile writes the reader's content under name, going through a
// temporary file and renaming into place on success.
func (m *Manager) SaveFile(name string, r io.Reader) error {
	final := filepath.Join(m.dir, name)
	tmp := final + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeWrite, "failed to create temporary file", err)
	}

	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrorTypeWrite, "failed to write file data", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrorTypeWrite, "failed to close file", closeErr)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrorTypeWrite, "failed to rename temporary file", err)
	}

	m.files[name] = true
	return nil
}

// WriteJSON marshals v and writes it under name as a whole-file overwrite.
// Metadata documents are always rewritten, independent of the media
// skip-existing rule.
func (m *Manager) WriteJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrorTypeWrite, "failed to marshal JSON document", err)
	}
	return m.SaveFile(name, strings.NewReader(string(data)+"\n"))
}

// FileCount returns the number of known completed files.
func (m *Manager) FileCount() int {
	return len(m.files)
}
