// Package uploader replays a completed scan output tree to the catalog
// server.
//
// # Replay Order
//
//	create source → batch-0001 … batch-NNNN → code-projects (if any) → complete
//
// The server may assign the source a different id than the scanner chose;
// every payload is rewritten to the server id before it is sent. Ingest is
// idempotent at source granularity, so a failed upload can be re-run from
// the start. Any non-2xx response aborts the replay immediately, leaving
// the partial server-side state as-is.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/archivum/archivum/internal/types"
)

// DefaultTimeout is the per-request timeout.
const DefaultTimeout = 60 * time.Second

// Uploader replays one output tree.
//
// The uploader is designed for single-use: create with New(), call Run() once.
type Uploader struct {
	baseURL string
	client  *http.Client
	verbose bool
	logf    func(format string, args ...any)
}

// New creates an Uploader for the given server. A zero timeout falls back
// to DefaultTimeout.
func New(serverURL string, timeout time.Duration, verbose bool) *Uploader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Uploader{
		baseURL: strings.TrimRight(serverURL, "/"),
		client:  &http.Client{Timeout: timeout},
		verbose: verbose,
		logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
	}
}

// Run replays the output tree rooted at dir (the <outputRoot>/<sourceId>
// directory). It returns the server-side source id on success.
func (u *Uploader) Run(ctx context.Context, dir string) (string, error) {
	source, err := readJSON[types.Source](filepath.Join(dir, "source.json"))
	if err != nil {
		return "", fmt.Errorf("read source.json: %w", err)
	}

	// Re-uploads of an already registered source come back 200.
	created, err := postJSON[types.Source](ctx, u, "/api/sources", source, http.StatusCreated, http.StatusOK)
	if err != nil {
		return "", fmt.Errorf("create source: %w", err)
	}
	serverID := created.ID
	if u.verbose {
		u.logf("source %s registered as %s", source.ID, serverID)
	}

	batchPaths, err := batchFiles(filepath.Join(dir, "files"))
	if err != nil {
		return "", err
	}
	for _, path := range batchPaths {
		batch, readErr := readJSON[types.FileBatch](path)
		if readErr != nil {
			return "", fmt.Errorf("read %s: %w", filepath.Base(path), readErr)
		}
		// Remap to the server-assigned source id.
		batch.SourceID = serverID
		for i := range batch.Files {
			batch.Files[i].SourceID = serverID
		}
		if _, postErr := postJSON[struct{}](ctx, u, "/api/files/batch", batch, http.StatusCreated); postErr != nil {
			return "", fmt.Errorf("upload %s: %w", filepath.Base(path), postErr)
		}
		if u.verbose {
			u.logf("uploaded %s (%d files)", filepath.Base(path), len(batch.Files))
		}
	}

	projectsPath := filepath.Join(dir, "code-projects.json")
	if _, statErr := os.Stat(projectsPath); statErr == nil {
		projects, readErr := readJSON[[]types.CodeProject](projectsPath)
		if readErr != nil {
			return "", fmt.Errorf("read code-projects.json: %w", readErr)
		}
		if len(projects) > 0 {
			for i := range projects {
				projects[i].SourceID = serverID
			}
			if _, postErr := postJSON[struct{}](ctx, u, "/api/code-projects/bulk", projects, http.StatusCreated); postErr != nil {
				return "", fmt.Errorf("upload code projects: %w", postErr)
			}
			if u.verbose {
				u.logf("uploaded %d code projects", len(projects))
			}
		}
	}

	summary, err := readJSON[types.ScanSummary](filepath.Join(dir, "summary.json"))
	if err != nil {
		return "", fmt.Errorf("read summary.json: %w", err)
	}
	complete := types.CompleteScanRequest{
		TotalFiles: summary.TotalFiles,
		TotalSize:  summary.TotalSize,
		Success:    true,
	}
	if _, err := postJSON[struct{}](ctx, u, "/api/sources/"+serverID+"/complete", complete, http.StatusOK); err != nil {
		return "", fmt.Errorf("complete scan: %w", err)
	}
	if u.verbose {
		u.logf("scan %s completed (%d files)", serverID, summary.TotalFiles)
	}

	return serverID, nil
}

// batchFiles lists batch-NNNN.json files in ascending numeric order. The
// names are zero-padded to four digits, but a scan large enough to roll past
// batch-9999 sorts wrong lexically, so the number is parsed out.
func batchFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "batch-*.json"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return batchNumber(matches[i]) < batchNumber(matches[j])
	})
	return matches, nil
}

// batchNumber extracts N from a batch-N.json path; unparsable names sort
// last.
func batchNumber(path string) int {
	base := filepath.Base(path)
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, "batch-"), ".json"))
	if err != nil {
		return math.MaxInt
	}
	return n
}

func readJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// postJSON sends one request and decodes the response when one of the
// expected statuses arrives; anything else is an error carrying the
// response body.
func postJSON[T any](ctx context.Context, u *Uploader, path string, body any, wantStatus ...int) (T, error) {
	var out T

	payload, err := json.Marshal(body)
	if err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return out, err
	}
	defer func() { _ = resp.Body.Close() }()

	if !slices.Contains(wantStatus, resp.StatusCode) {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return out, fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return out, fmt.Errorf("%s: decode response: %w", path, err)
	}
	return out, nil
}
