// Package types provides shared model types used across the archivum codebase.
//
// The catalog model is split between the Scanner side, whose Source,
// ScannedFile and ScanSummary are produced as JSON output trees, and the
// Server side, whose FileHash, DuplicateGroup, FolderZone and CodeProject
// are materialized in the catalog store. Both sides exchange the same JSON
// shapes, so the structs here carry the wire tags directly.
package types

import (
	"time"
)

// SourceType classifies what kind of media a Source was scanned from.
type SourceType string

// Source types.
const (
	SourceDisk      SourceType = "DISK"
	SourcePartition SourceType = "PARTITION"
	SourceCloud     SourceType = "CLOUD"
	SourceNetwork   SourceType = "NETWORK"
	SourceArchive   SourceType = "ARCHIVE"
)

// SourceStatus tracks the scan lifecycle of a Source.
type SourceStatus string

// Source statuses.
const (
	SourcePending   SourceStatus = "PENDING"
	SourceScanning  SourceStatus = "SCANNING"
	SourceCompleted SourceStatus = "COMPLETED"
	SourceFailed    SourceStatus = "FAILED"
	SourcePostponed SourceStatus = "POSTPONED"
)

// FileStatus tracks a ScannedFile through the catalog pipeline.
type FileStatus string

// File statuses.
const (
	FileDiscovered FileStatus = "DISCOVERED"
	FileHashed     FileStatus = "HASHED"
	FileAnalyzed   FileStatus = "ANALYZED"
	FileClassified FileStatus = "CLASSIFIED"
	FileStaged     FileStatus = "STAGED"
	FileMigrated   FileStatus = "MIGRATED"
	FileDuplicate  FileStatus = "DUPLICATE"
	FileSkipped    FileStatus = "SKIPPED"
	FileFailed     FileStatus = "FAILED"
)

// Zone is the coarse folder classification that drives dedup policy.
type Zone string

// Zones.
const (
	ZoneMedia     Zone = "MEDIA"
	ZoneDocuments Zone = "DOCUMENTS"
	ZoneBooks     Zone = "BOOKS"
	ZoneSoftware  Zone = "SOFTWARE"
	ZoneBackup    Zone = "BACKUP"
	ZoneCode      Zone = "CODE"
	ZoneUnknown   Zone = "UNKNOWN"
)

// ValidZone reports whether z is one of the known zones.
func ValidZone(z Zone) bool {
	switch z {
	case ZoneMedia, ZoneDocuments, ZoneBooks, ZoneSoftware, ZoneBackup, ZoneCode, ZoneUnknown:
		return true
	}
	return false
}

// GroupStatus tracks the review lifecycle of a duplicate group.
type GroupStatus string

// Duplicate group statuses.
const (
	GroupPending  GroupStatus = "PENDING"
	GroupReviewed GroupStatus = "REVIEWED"
	GroupResolved GroupStatus = "RESOLVED"
	GroupIgnored  GroupStatus = "IGNORED"
)

// ProjectType identifies the build system of a detected code project.
type ProjectType string

// Project types.
const (
	ProjectMaven   ProjectType = "MAVEN"
	ProjectGradle  ProjectType = "GRADLE"
	ProjectNPM     ProjectType = "NPM"
	ProjectGo      ProjectType = "GO"
	ProjectPython  ProjectType = "PYTHON"
	ProjectRust    ProjectType = "RUST"
	ProjectGeneric ProjectType = "GENERIC"
)

// DuplicateType classifies how two code projects relate.
type DuplicateType string

// Code project duplicate types.
const (
	DuplicateExact           DuplicateType = "EXACT"
	DuplicateSameProjectDiff DuplicateType = "SAME_PROJECT_DIFF_CONTENT"
	DuplicateDiffVersion     DuplicateType = "DIFFERENT_VERSION"
)

// DiffComplexity buckets how much two same-identifier projects diverge,
// by file-count delta: TRIVIAL <5%, SIMPLE <15%, MEDIUM <30%, COMPLEX >=30%.
type DiffComplexity string

// Diff complexity buckets.
const (
	DiffTrivial DiffComplexity = "TRIVIAL"
	DiffSimple  DiffComplexity = "SIMPLE"
	DiffMedium  DiffComplexity = "MEDIUM"
	DiffComplex DiffComplexity = "COMPLEX"
)

// PhysicalID bundles everything known about the physical volume a Source
// lives on. All probe-derived fields are best-effort and may be empty.
type PhysicalID struct {
	MountPoint    string `json:"mountPoint,omitempty"`
	Filesystem    string `json:"filesystem,omitempty"`
	CapacityBytes int64  `json:"capacityBytes,omitempty"`
	UsedBytes     int64  `json:"usedBytes,omitempty"`
	VolumeLabel   string `json:"volumeLabel,omitempty"`
	DiskUUID      string `json:"diskUuid,omitempty"`
	PartitionUUID string `json:"partitionUuid,omitempty"`
	SerialNumber  string `json:"serialNumber,omitempty"`
	PhysicalLabel string `json:"physicalLabel,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// Source is one logical scan unit: a disk, partition, cloud mount, or
// archive extraction. Sources form a forest via ParentSourceID
// (Disk → Partition → Archive). The parent link is immutable once set.
type Source struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Type           SourceType   `json:"type"`
	RootPath       string       `json:"rootPath"`
	ParentSourceID string       `json:"parentSourceId,omitempty"`
	Status         SourceStatus `json:"status"`
	TotalFiles     int64        `json:"totalFiles"`
	TotalSize      int64        `json:"totalSize"`
	ProcessedFiles int64        `json:"processedFiles"`
	ProcessedSize  int64        `json:"processedSize"`
	Physical       PhysicalID   `json:"physicalId"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// ExifData is the fixed record produced by the image metadata sub-extractor.
// Absence of EXIF data is represented by a nil pointer, never an error.
type ExifData struct {
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	CameraMake string    `json:"cameraMake,omitempty"`
	CameraModel string   `json:"cameraModel,omitempty"`
	TakenAt    time.Time `json:"takenAt,omitzero"`
}

// ScannedFile is one file observed under exactly one Source at a specific
// path. (SourceID, Path) is unique within the catalog.
type ScannedFile struct {
	ID          string     `json:"id"`
	SourceID    string     `json:"sourceId"`
	Path        string     `json:"path"`
	Name        string     `json:"name"`
	Extension   string     `json:"extension"`
	Size        int64      `json:"size"`
	SHA256      string     `json:"sha256"`
	MimeType    string     `json:"mimeType"`
	CreatedAt   time.Time  `json:"createdAt"`
	ModifiedAt  time.Time  `json:"modifiedAt"`
	AccessedAt  time.Time  `json:"accessedAt"`
	ScannedAt   time.Time  `json:"scannedAt"`
	Exif        *ExifData  `json:"exif,omitempty"`
	Status      FileStatus `json:"status"`
	IsDuplicate bool       `json:"isDuplicate"`
}

// FileHash is the content-addressed equivalence class shared by all
// ScannedFiles with the same digest.
type FileHash struct {
	SHA256      string    `json:"sha256"`
	Size        int64     `json:"size"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	Count       int64     `json:"count"`
}

// DuplicateGroup materializes a FileHash with more than one member.
// At most one group exists per hash.
type DuplicateGroup struct {
	ID         string      `json:"id"`
	SHA256     string      `json:"sha256"`
	Size       int64       `json:"size"`
	Count      int64       `json:"count"`
	WastedSize int64       `json:"wastedSize"`
	Status     GroupStatus `json:"status"`
	KeptFileID string      `json:"keptFileId,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// FolderZone maps one folder of one Source to a Zone. Folders without a row
// inherit their effective zone from the nearest zoned ancestor at read time.
type FolderZone struct {
	SourceID   string    `json:"sourceId"`
	FolderPath string    `json:"folderPath"`
	Zone       Zone      `json:"zone"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CodeProject is a detected code-project root. (SourceID, RootPath) is
// unique; projects never nest within a single source.
type CodeProject struct {
	ID              string      `json:"id"`
	SourceID        string      `json:"sourceId"`
	RootPath        string      `json:"rootPath"`
	Type            ProjectType `json:"projectType"`
	Name            string      `json:"name"`
	Version         string      `json:"version,omitempty"`
	GroupID         string      `json:"groupId,omitempty"`
	GitRemote       string      `json:"gitRemote,omitempty"`
	GitBranch       string      `json:"gitBranch,omitempty"`
	GitCommit       string      `json:"gitCommit,omitempty"`
	Identifier      string      `json:"identifier"`
	ContentHash     string      `json:"contentHash"`
	SourceFileCount int64       `json:"sourceFileCount"`
	TotalFileCount  int64       `json:"totalFileCount"`
	TotalSizeBytes  int64       `json:"totalSizeBytes"`
	ScannedAt       time.Time   `json:"scannedAt"`
}

// ManualVersion marks a CodeProject created by hand through the control API
// rather than detected on disk. Manual projects carry a UUID content hash
// and never participate in duplicate grouping.
const ManualVersion = "manual"

// CodeProjectDuplicateGroup groups code projects that share an identifier
// or a name.
type CodeProjectDuplicateGroup struct {
	ID                string                       `json:"id"`
	Identifier        string                       `json:"identifier"`
	Type              DuplicateType                `json:"duplicateType"`
	SimilarityPercent float64                      `json:"similarityPercent,omitempty"`
	DiffComplexity    DiffComplexity               `json:"diffComplexity,omitempty"`
	Status            GroupStatus                  `json:"status"`
	CreatedAt         time.Time                    `json:"createdAt"`
	Members           []CodeProjectDuplicateMember `json:"members,omitempty"`
}

// CodeProjectDuplicateMember links one CodeProject into a duplicate group.
// Exactly one member per group is primary.
type CodeProjectDuplicateMember struct {
	GroupID   string `json:"groupId"`
	ProjectID string `json:"projectId"`
	IsPrimary bool   `json:"isPrimary"`
}
