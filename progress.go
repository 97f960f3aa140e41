package archiver

import "github.com/meigma/archiver/internal/archivetype"

// Re-export progress types.
type (
	// ProgressEvent represents a progress update during archive or extract
	// operations.
	ProgressEvent = archivetype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = archivetype.ProgressStage

	// ProgressFunc receives progress updates.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = archivetype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageEnumerating indicates inputs are being resolved into entries.
	StageEnumerating = archivetype.StageEnumerating

	// StageArchiving indicates entries are being encoded.
	StageArchiving = archivetype.StageArchiving

	// StageExtracting indicates entries are being written to disk.
	StageExtracting = archivetype.StageExtracting
)
