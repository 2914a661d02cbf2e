package index

import "time"

// Photo is a library record. CurrentPath is relative to the library root;
// ContentHash is the SHA-256 identity of the file bytes as stored.
type Photo struct {
	ID               int64     `json:"id"`
	OriginalFilename string    `json:"originalFilename"`
	CurrentPath      string    `json:"currentPath"`
	DateTaken        string    `json:"dateTaken"`
	DateSource       string    `json:"dateSource"`
	ContentHash      string    `json:"contentHash"`
	FileSize         int64     `json:"fileSize"`
	FileType         string    `json:"fileType"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	Rating           int       `json:"rating"`
	ImportedAt       time.Time `json:"importedAt"`
}

// DeletedPhoto is a soft-deleted record parked in the trash table. Snapshot
// holds the full Photo as JSON so restore can rebuild the row exactly.
type DeletedPhoto struct {
	ID            int64     `json:"id"`
	OriginalPath  string    `json:"originalPath"`
	TrashFilename string    `json:"trashFilename"`
	DeletedAt     time.Time `json:"deletedAt"`
	Snapshot      Photo     `json:"snapshot"`
}

// Stats summarizes the index for health and readiness reporting.
type Stats struct {
	Photos     int64 `json:"photos"`
	Videos     int64 `json:"videos"`
	Other      int64 `json:"other"`
	Trashed    int64 `json:"trashed"`
	TotalBytes int64 `json:"totalBytes"`
}

// ListOptions filters and pages List queries. Zero values mean "no filter";
// a zero Limit falls back to a server-side default.
type ListOptions struct {
	FileType string
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}
