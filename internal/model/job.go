package model

import "time"

// Job represents a single submitted download request
type Job struct {
	ID                  string     `json:"id"`
	SourceURL           string     `json:"source_url"`
	RequestedFormat     string     `json:"requested_format,omitempty"`
	AudioOnly           bool       `json:"audio_only"`
	Status              JobStatus  `json:"status"`
	AttemptIndex        int        `json:"attempt_index"`
	RawFilepath         string     `json:"raw_filepath,omitempty"`
	FinalFilepath       string     `json:"final_filepath,omitempty"`
	Error               string     `json:"error,omitempty"`
	LastProgressPercent float64    `json:"last_progress_percent"`
	CreatedAt           time.Time  `json:"created_at"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
}

// JobUpdate is a partial update applied to a stored Job. Nil fields leave
// the stored value untouched.
type JobUpdate struct {
	Status              *JobStatus
	AttemptIndex        *int
	RawFilepath         *string
	FinalFilepath       *string
	Error               *string
	LastProgressPercent *float64
	FinishedAt          *time.Time
}

// VideoInfo is the metadata record returned by a metadata-only inspection
type VideoInfo struct {
	Title   string   `json:"title"`
	Formats []Format `json:"formats"`
}

// Format describes one encoding offered by the extraction engine
type Format struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Format     string  `json:"format"`
	FormatNote string  `json:"format_note,omitempty"`
	ACodec     string  `json:"acodec,omitempty"`
	VCodec     string  `json:"vcodec,omitempty"`
	Height     int     `json:"height,omitempty"`
	Width      int     `json:"width,omitempty"`
	Filesize   int64   `json:"filesize,omitempty"`
	TBR        float64 `json:"tbr,omitempty"`
}

// Raw progress statuses emitted by the extraction engine
const (
	ProgressStatusDownloading = "downloading"
	ProgressStatusFinished    = "finished"
)

// RawProgress is one progress event as emitted by the extraction engine,
// before throttling and deduplication.
type RawProgress struct {
	Status          string
	DownloadedBytes int64
	TotalBytes      int64
}

// Percent computes the completion percentage, 0 when the total is unknown
func (p RawProgress) Percent() float64 {
	if p.TotalBytes <= 0 {
		return 0
	}
	return float64(p.DownloadedBytes) / float64(p.TotalBytes) * 100
}
