// Package metadata captures per-file attributes for the scan pipeline:
// filesystem timestamps, normalized extension, MIME type, and an optional
// EXIF side-record for images.
package metadata

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archivum/archivum/internal/types"
)

// compoundTails are archive/compression suffixes that combine with the
// preceding segment into a compound extension (tar.gz, sql.gz, backup.xz).
var compoundTails = map[string]bool{
	"gz": true, "bz2": true, "xz": true, "zst": true,
	"z": true, "lz": true, "lzma": true,
}

// compoundHeads are the segments that may precede a compound tail.
var compoundHeads = map[string]bool{
	"tar": true, "backup": true, "sql": true,
}

// imageExtensions gate the EXIF sub-extractor.
var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "tiff": true,
	"tif": true, "heif": true, "heic": true, "webp": true,
}

// sniffSize is how many leading bytes are read for MIME detection.
const sniffSize = 512

// Extractor captures file attributes. The EXIF sub-extractor is pluggable;
// its absence or failure yields a nil side-record and is never an error.
type Extractor struct {
	exif ExifExtractor
}

// New creates an Extractor with the given EXIF sub-extractor.
// Pass nil to disable EXIF capture entirely.
func New(exif ExifExtractor) *Extractor {
	return &Extractor{exif: exif}
}

// Extract reads the attributes of path and produces a catalog record with
// status HASHED. Duplicate status is decided later, at the ingest boundary.
func (e *Extractor) Extract(path, sourceID, hash string, wantExif bool) (types.ScannedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.ScannedFile{}, fmt.Errorf("stat %s: %w", path, err)
	}

	name := filepath.Base(path)
	ext := Extension(name)

	rec := types.ScannedFile{
		ID:          uuid.NewString(),
		SourceID:    sourceID,
		Path:        path,
		Name:        name,
		Extension:   ext,
		Size:        info.Size(),
		SHA256:      strings.ToLower(hash),
		MimeType:    e.mimeType(path, ext),
		ModifiedAt:  info.ModTime(),
		ScannedAt:   time.Now().UTC(),
		Status:      types.FileHashed,
		IsDuplicate: false,
	}
	rec.CreatedAt, rec.AccessedAt = statTimes(info)

	if wantExif && e.exif != nil && imageExtensions[ext] {
		// EXIF failure is silently a missing side-record.
		if exif, exifErr := e.exif.Extract(path); exifErr == nil {
			rec.Exif = exif
		}
	}

	return rec, nil
}

// Extension returns the lowercase extension of name, preserving compound
// tails for known pairs: "db.sql.gz" yields "sql.gz".
func Extension(name string) string {
	lower := strings.ToLower(name)
	parts := strings.Split(lower, ".")
	if len(parts) < 2 || parts[len(parts)-1] == "" {
		return ""
	}
	tail := parts[len(parts)-1]
	if len(parts) >= 3 && compoundTails[tail] && compoundHeads[parts[len(parts)-2]] {
		return parts[len(parts)-2] + "." + tail
	}
	// A leading dot alone (".gitignore") is a name, not an extension.
	if len(parts) == 2 && parts[0] == "" {
		return ""
	}
	return tail
}

// extensionMIME maps well-known extensions directly, avoiding a content
// sniff for the common cases.
var extensionMIME = map[string]string{
	"txt": "text/plain", "md": "text/markdown", "html": "text/html",
	"css": "text/css", "csv": "text/csv", "xml": "application/xml",
	"json": "application/json", "yaml": "application/yaml", "yml": "application/yaml",
	"pdf": "application/pdf", "zip": "application/zip",
	"gz": "application/gzip", "tar.gz": "application/gzip",
	"sql.gz": "application/gzip", "backup.gz": "application/gzip",
	"tar": "application/x-tar", "7z": "application/x-7z-compressed",
	"jpg": "image/jpeg", "jpeg": "image/jpeg", "png": "image/png",
	"gif": "image/gif", "webp": "image/webp", "tiff": "image/tiff",
	"tif": "image/tiff", "heic": "image/heic", "heif": "image/heif",
	"mp3": "audio/mpeg", "flac": "audio/flac", "wav": "audio/wav",
	"mp4": "video/mp4", "mkv": "video/x-matroska", "avi": "video/x-msvideo",
	"mov": "video/quicktime", "doc": "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"epub": "application/epub+zip", "mobi": "application/x-mobipocket-ebook",
	"go": "text/x-go", "py": "text/x-python", "java": "text/x-java-source",
	"js": "text/javascript", "ts": "text/typescript", "sql": "application/sql",
}

// mimeType infers the MIME type from the extension, falling back to a
// magic-byte sniff and finally application/octet-stream.
func (e *Extractor) mimeType(path, ext string) string {
	if mime, ok := extensionMIME[ext]; ok {
		return mime
	}

	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sniffSize)
	n, _ := f.Read(buf)
	if n == 0 {
		return "application/octet-stream"
	}
	// DetectContentType appends charset parameters; the catalog stores the
	// bare media type.
	mime := http.DetectContentType(buf[:n])
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return mime
}
