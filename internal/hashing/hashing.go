// Package hashing provides streaming SHA-256 content fingerprints and a
// fixed-size worker pool for hashing files in parallel.
//
// Files are streamed through the digester in fixed 8 KiB reads; a file is
// never materialized in memory. The pool is designed for single-use: create
// with NewPool(), Submit() any number of paths, Close() to drain.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	// readSize is the streaming read buffer size.
	readSize = 8 * 1024
	// progressThreshold is the minimum file size for progress reporting,
	// and the reporting granularity.
	progressThreshold = 100 << 20
)

// ProgressFunc receives hashing progress. Called at progressThreshold
// granularity, and only for files larger than progressThreshold.
type ProgressFunc func(bytesDone, totalBytes int64)

// File hashes the file at path, returning the lowercase hex SHA-256 digest.
func File(path string, progress ProgressFunc) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	total := info.Size()
	report := progress != nil && total > progressThreshold

	hasher := sha256.New()
	buf := make([]byte, readSize)
	var done, lastReported int64
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			done += int64(n)
			if report && done-lastReported >= progressThreshold {
				progress(done, total)
				lastReported = done
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read %s: %w", path, readErr)
		}
	}

	if report {
		progress(done, total)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify recomputes the digest of path and compares it to expected,
// case-insensitively.
func Verify(path, expected string) (bool, error) {
	actual, err := File(path, nil)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expected), nil
}

// Future is the pending result of a pool submission.
type Future struct {
	done chan struct{}
	hash string
	err  error
}

// Wait blocks until the hash is computed, returning the digest or the error.
func (f *Future) Wait() (string, error) {
	<-f.done
	return f.hash, f.err
}

type job struct {
	path     string
	progress ProgressFunc
	future   *Future
}

// Pool is a fixed-size worker pool computing file hashes asynchronously.
type Pool struct {
	jobCh     chan job
	workerWg  sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts a pool with the given number of workers.
func NewPool(workers int) *Pool {
	p := &Pool{jobCh: make(chan job, workers*2)}
	for i := 0; i < workers; i++ {
		p.workerWg.Add(1)
		go func() {
			defer p.workerWg.Done()
			for j := range p.jobCh {
				j.future.hash, j.future.err = File(j.path, j.progress)
				close(j.future.done)
			}
		}()
	}
	return p
}

// Submit queues path for hashing and returns a Future for its result.
// Submit after Close panics.
func (p *Pool) Submit(path string, progress ProgressFunc) *Future {
	f := &Future{done: make(chan struct{})}
	p.jobCh <- job{path: path, progress: progress, future: f}
	return f
}

// Close stops accepting work and blocks until all in-flight jobs complete.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.jobCh) })
	p.workerWg.Wait()
}
