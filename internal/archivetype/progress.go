package archivetype

// ProgressEvent represents a progress update during archive or extract operations.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry currently being processed, if applicable.
	Path string

	// BytesDone is the number of content bytes completed so far.
	BytesDone uint64

	// EntriesDone is the number of entries completed.
	EntriesDone int

	// EntriesTotal is the total number of entries.
	// Zero indicates the total is unknown (e.g. while streaming a tar).
	EntriesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageEnumerating indicates inputs are being resolved into entries.
	StageEnumerating ProgressStage = iota

	// StageArchiving indicates entries are being encoded.
	StageArchiving

	// StageExtracting indicates entries are being written to disk.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageArchiving:
		return "archiving"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
