package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/archivum/archivum/internal/types"
)

// Writer persists the scan output tree:
//
//	<outputRoot>/<sourceId>/
//	  source.json
//	  files/batch-0001.json ...
//	  code-projects.json        (optional)
//	  summary.json
//
// All JSON is indented; a flushed batch is durable and the tree stays
// readable even if the scan is interrupted afterwards.
type Writer struct {
	root string
}

// NewWriter creates the output directories for sourceID under outputRoot.
func NewWriter(outputRoot, sourceID string) (*Writer, error) {
	root := filepath.Join(outputRoot, sourceID)
	if err := os.MkdirAll(filepath.Join(root, "files"), 0o755); err != nil {
		return nil, fmt.Errorf("create output tree: %w", err)
	}
	return &Writer{root: root}, nil
}

// Root returns the source-specific output directory.
func (w *Writer) Root() string { return w.root }

// WriteSource writes (or rewrites) source.json.
func (w *Writer) WriteSource(source types.Source) error {
	return w.writeJSON(filepath.Join(w.root, "source.json"), source)
}

// WriteBatch writes one numbered batch file.
func (w *Writer) WriteBatch(batch types.FileBatch) error {
	name := fmt.Sprintf("batch-%04d.json", batch.BatchNumber)
	return w.writeJSON(filepath.Join(w.root, "files", name), batch)
}

// WriteProjects writes code-projects.json.
func (w *Writer) WriteProjects(projects []types.CodeProject) error {
	return w.writeJSON(filepath.Join(w.root, "code-projects.json"), projects)
}

// WriteSummary writes summary.json.
func (w *Writer) WriteSummary(summary types.ScanSummary) error {
	return w.writeJSON(filepath.Join(w.root, "summary.json"), summary)
}

func (w *Writer) writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
