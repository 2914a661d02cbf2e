package ingest

import "time"

// Status is the terminal outcome of one file's ingestion transaction.
type Status string

const (
	// StatusImported means the file now lives in the library and the index.
	StatusImported Status = "imported"
	// StatusDuplicate means identical bytes are already in the library.
	StatusDuplicate Status = "duplicate"
	// StatusRejected means the file could not be ingested; the source is
	// retained.
	StatusRejected Status = "rejected"
)

// Reason refines duplicate and rejected outcomes.
type Reason string

const (
	// ReasonDuplicatePreexisting means the pre-stage hash check matched an
	// existing record.
	ReasonDuplicatePreexisting Reason = "duplicate-preexisting"
	// ReasonDuplicatePostNormalization means normalization or metadata
	// writes converged the bytes onto an existing record.
	ReasonDuplicatePostNormalization Reason = "duplicate-post-normalization"
	// ReasonCorrupted means the file's contents are damaged or changed
	// underneath the transaction.
	ReasonCorrupted Reason = "corrupted"
	// ReasonUnsupportedFormat means no tool could make sense of the file.
	ReasonUnsupportedFormat Reason = "unsupported-format"
	// ReasonMissingTool means a required external tool is not installed.
	ReasonMissingTool Reason = "missing-tool"
	// ReasonTimeout means an external tool exceeded its deadline.
	ReasonTimeout Reason = "timeout"
	// ReasonPermission means the file could not be read or the destination
	// written.
	ReasonPermission Reason = "permission"
)

// Outcome is the full result of ingesting one file.
type Outcome struct {
	SourcePath  string `json:"sourcePath"`
	Status      Status `json:"status"`
	Reason      Reason `json:"reason,omitempty"`
	Detail      string `json:"detail,omitempty"`
	LibraryPath string `json:"libraryPath,omitempty"`
	PhotoID     int64  `json:"photoId,omitempty"`
	ContentHash string `json:"contentHash,omitempty"`
}

// Rejection is the per-file entry in a batch report.
type Rejection struct {
	SourcePath string `json:"sourcePath"`
	Reason     Reason `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

// GroupRejections orders a batch's rejections by reason for reports.
func GroupRejections(rejections []Rejection) map[Reason][]Rejection {
	grouped := make(map[Reason][]Rejection)
	for _, r := range rejections {
		grouped[r.Reason] = append(grouped[r.Reason], r)
	}
	return grouped
}

// BatchSummary aggregates a reconciliation batch for reports.
type BatchSummary struct {
	BatchID    string      `json:"batchId"`
	SourceRoot string      `json:"sourceRoot"`
	Started    time.Time   `json:"started"`
	Finished   time.Time   `json:"finished"`
	Total      int         `json:"total"`
	Processed  int         `json:"processed"`
	Imported   int         `json:"imported"`
	Duplicates int         `json:"duplicates"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections,omitempty"`
}

// Add folds one outcome into the summary.
func (s *BatchSummary) Add(o Outcome) {
	s.Processed++
	switch o.Status {
	case StatusImported:
		s.Imported++
	case StatusDuplicate:
		s.Duplicates++
	case StatusRejected:
		s.Rejected++
		s.Rejections = append(s.Rejections, Rejection{
			SourcePath: o.SourcePath,
			Reason:     o.Reason,
			Detail:     o.Detail,
		})
	}
}

// Progress is the per-file event emitted while a batch runs.
type Progress struct {
	BatchID    string  `json:"batchId"`
	Current    string  `json:"current"`
	Outcome    Outcome `json:"outcome"`
	Processed  int     `json:"processed"`
	Imported   int     `json:"imported"`
	Duplicates int     `json:"duplicates"`
	Rejected   int     `json:"rejected"`
	Total      int     `json:"total"`
}
