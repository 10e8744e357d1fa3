package types

import "time"

// FileBatch is one numbered slice of a scan's files, written as
// files/batch-NNNN.json in the output tree and posted to /api/files/batch.
type FileBatch struct {
	SourceID    string        `json:"sourceId"`
	BatchNumber int           `json:"batchNumber"`
	Files       []ScannedFile `json:"files"`
}

// ScanError records one per-file failure that did not stop the scan.
type ScanError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// ScanSummary is the summary.json terminating an output tree.
type ScanSummary struct {
	SourceID       string      `json:"sourceId"`
	TotalFiles     int64       `json:"totalFiles"`
	TotalSize      int64       `json:"totalSize"`
	TotalBatches   int         `json:"totalBatches"`
	SkippedFiles   int64       `json:"skippedFiles"`
	Errors         []ScanError `json:"errors"`
	Duration       string      `json:"duration"`
	StartTime      time.Time   `json:"startTime"`
	EndTime        time.Time   `json:"endTime"`
	ScannerVersion string      `json:"scannerVersion"`
	ScannerHost    string      `json:"scannerHost"`
	ScannerUser    string      `json:"scannerUser"`
}

// CompleteScanRequest transitions a source out of SCANNING.
type CompleteScanRequest struct {
	TotalFiles int64 `json:"totalFiles"`
	TotalSize  int64 `json:"totalSize"`
	Success    bool  `json:"success"`
}

// SetZoneRequest assigns a zone to one folder of a source.
type SetZoneRequest struct {
	Zone Zone `json:"zone"`
}

// ResolveGroupRequest resolves a duplicate group, optionally recording which
// file was kept.
type ResolveGroupRequest struct {
	Status     GroupStatus `json:"status"`
	KeptFileID string      `json:"keptFileId,omitempty"`
}

// ZoneResult is the outcome of an effective-zone lookup: the resolved zone
// and whether it was inherited from an ancestor folder.
type ZoneResult struct {
	Zone        Zone `json:"zone"`
	IsInherited bool `json:"isInherited"`
}

// FolderNode is one node of the virtual folder tree built for a source.
// Folder nodes aggregate FileCount and TotalSize over their subtree; file
// nodes carry per-file detail. Children are sorted folders first, then
// files, each group alphabetically.
type FolderNode struct {
	Name        string        `json:"name"`
	Path        string        `json:"path"`
	IsFolder    bool          `json:"isFolder"`
	FileCount   int64         `json:"fileCount"`
	TotalSize   int64         `json:"totalSize"`
	FileID      string        `json:"fileId,omitempty"`
	Extension   string        `json:"extension,omitempty"`
	IsDuplicate bool          `json:"isDuplicate,omitempty"`
	Zone        Zone          `json:"zone,omitempty"`
	IsInherited bool          `json:"zoneInherited,omitempty"`
	Children    []*FolderNode `json:"children,omitempty"`
}

// Page wraps a page/size paginated listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"totalItems"`
}
