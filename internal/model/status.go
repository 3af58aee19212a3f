package model

// JobStatus represents the lifecycle state of a download job
type JobStatus string

const (
	// JobStatusQueued means the job has been accepted but not started
	JobStatusQueued JobStatus = "queued"

	// JobStatusDownloading means an extraction attempt is in progress
	JobStatusDownloading JobStatus = "downloading"

	// JobStatusDownloaded means the raw media file has been obtained
	JobStatusDownloaded JobStatus = "downloaded"

	// JobStatusProcessing means the raw file is being normalized
	JobStatusProcessing JobStatus = "processing"

	// JobStatusDone means the final artifact is ready
	JobStatusDone JobStatus = "done"

	// JobStatusError means the job failed and will not be retried
	JobStatusError JobStatus = "error"
)

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions can happen
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// IsActive returns true if the job is between submission and a terminal state
func (s JobStatus) IsActive() bool {
	return s == JobStatusQueued || s == JobStatusDownloading ||
		s == JobStatusDownloaded || s == JobStatusProcessing
}
