// Package scanner orchestrates the scan pipeline: walk the tree, hash and
// extract metadata for every file, batch the records into a resumable
// output tree, and optionally detect code projects.
//
// # Pipeline
//
//	Run() starts
//	    │
//	    ├──► probe physical volume identity (bounded shell-outs)
//	    ├──► walk tree → files in encounter order + total size
//	    ├──► submit every file to the hash pool (fan-out)
//	    ├──► for each file IN ORDER:
//	    │        ├──► await its hash future (cache short-circuits unchanged files)
//	    │        ├──► extract metadata → ScannedFile record
//	    │        ├──► mark intra-scan duplicate hint (known-hash set)
//	    │        └──► append to batch; flush at batchSize
//	    ├──► flush remainder, write summary.json
//	    └──► run project detector chain over the tree (optional)
//
// The known-hash set is scan-scoped: it exists only for the lifetime of one
// Run and provides an intra-scan duplicate hint. Authoritative duplicate
// grouping happens server-side after ingest.
//
// Error policy: any per-file failure is recorded as {file, error} in the
// summary and the pipeline continues. Only an unusable root or an
// unwritable output tree is fatal.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/archivum/archivum/internal/config"
	"github.com/archivum/archivum/internal/hashcache"
	"github.com/archivum/archivum/internal/hashing"
	"github.com/archivum/archivum/internal/metadata"
	"github.com/archivum/archivum/internal/physical"
	"github.com/archivum/archivum/internal/progress"
	"github.com/archivum/archivum/internal/project"
	"github.com/archivum/archivum/internal/types"
	"github.com/archivum/archivum/internal/walker"
)

// Options configures one scan run.
type Options struct {
	RootPath   string
	SourceName string
	SourceType types.SourceType
	OutputDir  string

	Config    *config.Config
	CacheFile string

	ShowProgress   bool
	DetectProjects bool
	Version        string

	ErrCh chan error // non-fatal errors mirrored to the CLI (may be nil)
}

// stats tracks scan progress using atomic-free counters updated only by the
// orchestrator goroutine.
type stats struct {
	processedFiles int64
	processedBytes int64
	skippedFiles   int64
	totalFiles     int64
	startTime      time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Scanned %d/%d files (%s) in %.1fs",
		s.processedFiles, s.totalFiles, humanize.IBytes(uint64(s.processedBytes)),
		time.Since(s.startTime).Seconds())
}

// Scanner drives one scan from root path to output tree.
//
// The scanner is designed for single-use: create with New(), call Run() once.
type Scanner struct {
	opts Options

	source  types.Source
	writer  *Writer
	stats   *stats
	bar     *progress.Bar
	cache   *hashcache.Cache
	hashes  map[string]string // path → sha256, feeds project content hashes
	batches int
	errs    []types.ScanError
	errsMu  sync.Mutex
	summary types.ScanSummary
}

// New creates a Scanner for the given options.
func New(opts Options) *Scanner {
	if opts.SourceType == "" {
		opts.SourceType = types.SourceDisk
	}
	return &Scanner{opts: opts, hashes: make(map[string]string)}
}

// Source returns the source record built for this scan. Valid after Run.
func (s *Scanner) Source() types.Source { return s.source }

// Summary returns the scan summary. Valid after Run.
func (s *Scanner) Summary() types.ScanSummary { return s.summary }

// Run executes the scan. Per-file errors are recorded and skipped; the
// returned error is nil unless the scan as a whole failed.
func (s *Scanner) Run(ctx context.Context) error {
	info, err := os.Stat(s.opts.RootPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("root path %s is not an existing directory", s.opts.RootPath)
	}

	now := time.Now().UTC()
	s.source = types.Source{
		ID:        uuid.NewString(),
		Name:      s.opts.SourceName,
		Type:      s.opts.SourceType,
		RootPath:  s.opts.RootPath,
		Status:    types.SourceScanning,
		Physical:  physical.Probe(ctx, s.opts.RootPath),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.source.Name == "" {
		s.source.Name = s.opts.RootPath
	}

	s.writer, err = NewWriter(s.opts.OutputDir, s.source.ID)
	if err != nil {
		return err
	}
	if err := s.writer.WriteSource(s.source); err != nil {
		return err
	}

	s.cache, err = hashcache.Open(s.opts.CacheFile)
	if err != nil {
		return fmt.Errorf("open hash cache: %w", err)
	}
	defer func() { _ = s.cache.Close() }()

	cfg := s.opts.Config
	walkErrCh := make(chan error, 100)
	walkErrDone := make(chan struct{})
	go func() {
		defer close(walkErrDone)
		for walkErr := range walkErrCh {
			s.recordError(errorPath(walkErr), walkErr)
		}
	}()

	w := walker.New(cfg.SkipSystemDirs, cfg.FollowSymlinks, cfg.ExcludePatterns, walkErrCh)
	files, totalSize, err := w.Walk(s.opts.RootPath)
	close(walkErrCh)
	<-walkErrDone
	if err != nil {
		return fmt.Errorf("walk %s: %w", s.opts.RootPath, err)
	}

	s.stats = &stats{totalFiles: int64(len(files)), startTime: time.Now()}
	s.bar = progress.New(s.opts.ShowProgress, totalSize)
	s.bar.Describe(s.stats)

	startTime := time.Now().UTC()
	if err := s.processFiles(ctx, files); err != nil {
		return err
	}
	endTime := time.Now().UTC()

	// Rewrite source.json with final counters; status stays SCANNING until
	// the server acknowledges completion.
	s.source.TotalFiles = s.stats.totalFiles
	s.source.TotalSize = totalSize
	s.source.ProcessedFiles = s.stats.processedFiles
	s.source.ProcessedSize = s.stats.processedBytes
	s.source.UpdatedAt = endTime
	if err := s.writer.WriteSource(s.source); err != nil {
		return err
	}

	if s.opts.DetectProjects {
		projects := project.NewScanner(project.NewChain(), s.hashes).Scan(s.opts.RootPath, s.source.ID)
		if len(projects) > 0 {
			if err := s.writer.WriteProjects(projects); err != nil {
				return err
			}
		}
	}

	s.summary = types.ScanSummary{
		SourceID:       s.source.ID,
		TotalFiles:     s.stats.processedFiles,
		TotalSize:      s.stats.processedBytes,
		TotalBatches:   s.batches,
		SkippedFiles:   s.stats.skippedFiles,
		Errors:         s.errors(),
		Duration:       endTime.Sub(startTime).Truncate(time.Millisecond).String(),
		StartTime:      startTime,
		EndTime:        endTime,
		ScannerVersion: s.opts.Version,
		ScannerHost:    hostname(),
		ScannerUser:    username(),
	}
	if err := s.writer.WriteSummary(s.summary); err != nil {
		return err
	}

	s.bar.Finish(s.stats)
	return nil
}

// pending pairs one walked file with its in-flight hash computation.
type pending struct {
	file   walker.File
	future *hashing.Future // nil when served from cache
	cached string
}

// processFiles hashes and extracts every walked file in encounter order,
// flushing numbered batches as they fill.
func (s *Scanner) processFiles(ctx context.Context, files []walker.File) error {
	pool := hashing.NewPool(s.opts.Config.HashThreads)
	defer pool.Close()

	// Fan-out: submit in encounter order from a producer goroutine. The
	// pool's bounded job channel provides the backpressure; futures are
	// awaited in the same order, so batches preserve encounter order.
	queue := make(chan pending, s.opts.Config.HashThreads*4)
	go func() {
		defer close(queue)
		for _, f := range files {
			if ctx.Err() != nil {
				return
			}
			if hash := s.cache.Lookup(f.Path, f.Size, f.ModTime); hash != "" {
				queue <- pending{file: f, cached: hash}
				continue
			}
			queue <- pending{file: f, future: pool.Submit(f.Path, nil)}
		}
	}()
	// Unblock the producer if we bail out mid-stream.
	defer func() {
		go func() {
			for range queue {
			}
		}()
	}()

	var exif metadata.ExifExtractor
	if s.opts.Config.ExtractExif {
		exif = metadata.ImageExtractor{}
	}
	extractor := metadata.New(exif)
	seen := make(map[string]bool)
	batch := types.FileBatch{SourceID: s.source.ID, BatchNumber: 1}

	for p := range queue {
		if ctx.Err() != nil {
			// Interrupted: flush what we have so the tree stays resumable.
			if len(batch.Files) > 0 {
				_ = s.writer.WriteBatch(batch)
				s.batches = batch.BatchNumber
			}
			return ctx.Err()
		}

		hash := p.cached
		if p.future != nil {
			var hashErr error
			hash, hashErr = p.future.Wait()
			if hashErr != nil {
				s.recordError(p.file.Path, hashErr)
				s.stats.skippedFiles++
				continue
			}
			s.cache.Store(p.file.Path, p.file.Size, p.file.ModTime, hash)
		}

		rec, err := extractor.Extract(p.file.Path, s.source.ID, hash, s.opts.Config.ExtractExif)
		if err != nil {
			s.recordError(p.file.Path, err)
			s.stats.skippedFiles++
			continue
		}

		// Intra-scan duplicate hint only; the ingest side decides for real.
		if seen[hash] {
			rec.IsDuplicate = true
		}
		seen[hash] = true
		s.hashes[p.file.Path] = hash

		batch.Files = append(batch.Files, rec)
		s.stats.processedFiles++
		s.stats.processedBytes += rec.Size
		s.bar.Add(rec.Size)
		s.bar.Describe(s.stats)

		if len(batch.Files) >= s.opts.Config.BatchSize {
			if err := s.writer.WriteBatch(batch); err != nil {
				return err
			}
			s.batches = batch.BatchNumber
			batch = types.FileBatch{SourceID: s.source.ID, BatchNumber: batch.BatchNumber + 1}
		}
	}

	if len(batch.Files) > 0 {
		if err := s.writer.WriteBatch(batch); err != nil {
			return err
		}
		s.batches = batch.BatchNumber
	}
	return nil
}

// recordError stores a per-file error for the summary and mirrors it to the
// CLI error channel.
func (s *Scanner) recordError(file string, err error) {
	s.errsMu.Lock()
	s.errs = append(s.errs, types.ScanError{File: file, Error: err.Error()})
	s.errsMu.Unlock()
	if s.opts.ErrCh != nil {
		s.opts.ErrCh <- err
	}
}

func (s *Scanner) errors() []types.ScanError {
	s.errsMu.Lock()
	defer s.errsMu.Unlock()
	if s.errs == nil {
		return []types.ScanError{}
	}
	return s.errs
}

// errorPath extracts the offending path from filesystem errors, so summary
// entries name the file even for errors surfaced by the walker.
func errorPath(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Path
	}
	return ""
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

func username() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
