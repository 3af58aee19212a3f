// Package ytdlp wraps the yt-dlp executable: metadata-only inspection and
// downloads with a progress callback. Failures are classified so the retry
// engine can tell transient faults from permanent ones.
package ytdlp
