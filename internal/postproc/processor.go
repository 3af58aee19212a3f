// Package postproc maps a raw downloaded file to the normalized final
// artifact, driving ffmpeg by a container/codec decision table.
package postproc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FFmpeg invocation constants
const (
	FFmpegCommand = "ffmpeg"

	// Fixed normalization target for audio artifacts
	TargetAudioCodec   = "aac"
	TargetAudioBitrate = "192k"
	AudioExtension     = ".m4a"

	// SubprocessTimeout bounds one ffmpeg run
	SubprocessTimeout = 600 * time.Second
)

// Filename constants
const (
	// MaxTitleLength bounds the display name so filesystem and transport
	// header limits are respected.
	MaxTitleLength = 120

	// JobIDSuffixLength is how much of the job id goes into the final
	// name to keep same-titled jobs apart.
	JobIDSuffixLength = 8
)

// Operation is one row outcome of the decision table.
type Operation string

const (
	// OpRemuxAudio extracts or repackages the audio stream without
	// re-encoding.
	OpRemuxAudio Operation = "remux-audio"

	// OpTranscodeAudio re-encodes to the fixed target codec and bitrate.
	OpTranscodeAudio Operation = "transcode-audio"

	// OpPassthrough copies the file unchanged into the output directory.
	OpPassthrough Operation = "passthrough"
)

// Containers whose audio stream can be copied into the target audio
// container without re-encoding.
var remuxableVideoExts = map[string]bool{
	".mp4": true,
	".m4v": true,
	".mov": true,
	".flv": true,
	".avi": true,
}

// Video containers that typically carry codecs the target audio container
// cannot hold; their audio is re-encoded.
var transcodeVideoExts = map[string]bool{
	".webm": true,
	".mkv":  true,
	".ogv":  true,
}

// Audio files already in a compatible codec; remuxed as-is.
var compatibleAudioExts = map[string]bool{
	".m4a": true,
	".aac": true,
}

// Audio files requiring normalization to the target codec.
var transcodeAudioExts = map[string]bool{
	".mp3":  true,
	".opus": true,
	".ogg":  true,
	".oga":  true,
	".wav":  true,
	".flac": true,
	".weba": true,
}

// mediaIDSuffix matches the trailing "[id]" the raw download template
// appends to filenames.
var mediaIDSuffix = regexp.MustCompile(`\s*\[[^\[\]]*\]\s*$`)

// Options direct one normalization run.
type Options struct {
	// JobID disambiguates final artifacts of distinct jobs sharing a
	// truncated title.
	JobID string

	// AudioOnly requests an audio-only artifact from an a/v container.
	AudioOnly bool
}

// Processor normalizes raw downloads into final artifacts.
type Processor struct {
	timeout time.Duration
}

// New creates a processor with the default subprocess timeout
func New() *Processor {
	return &Processor{timeout: SubprocessTimeout}
}

// Normalize maps rawPath to the final artifact in outputDir and returns
// the final path. Re-running with the same inputs overwrites the same
// path; no duplicates accumulate. The raw file is never deleted.
func (p *Processor) Normalize(ctx context.Context, rawPath, outputDir string, opts Options) (string, error) {
	if _, err := os.Stat(rawPath); err != nil {
		return "", errors.Wrap(err, "raw file not readable")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}

	ext := strings.ToLower(filepath.Ext(rawPath))
	op, outExt := decide(ext, opts.AudioOnly)
	finalPath := filepath.Join(outputDir, outputName(displayTitle(rawPath), opts.JobID, outExt))

	switch op {
	case OpPassthrough:
		if err := copyFile(rawPath, finalPath); err != nil {
			return "", errors.Wrap(err, "copy artifact")
		}
	default:
		if err := p.runFFmpeg(ctx, ffmpegArgs(op, rawPath, finalPath)); err != nil {
			return "", err
		}
	}
	return finalPath, nil
}

// decide resolves the decision table row for a raw file extension
func decide(ext string, audioOnly bool) (Operation, string) {
	switch {
	case audioOnly && remuxableVideoExts[ext]:
		return OpRemuxAudio, AudioExtension
	case audioOnly && transcodeVideoExts[ext]:
		return OpTranscodeAudio, AudioExtension
	case compatibleAudioExts[ext]:
		return OpRemuxAudio, AudioExtension
	case transcodeAudioExts[ext]:
		return OpTranscodeAudio, AudioExtension
	default:
		return OpPassthrough, ext
	}
}

// ffmpegArgs builds the ffmpeg command line for one operation
func ffmpegArgs(op Operation, inputPath, outputPath string) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
	}
	switch op {
	case OpTranscodeAudio:
		args = append(args, "-acodec", TargetAudioCodec, "-b:a", TargetAudioBitrate)
	default:
		args = append(args, "-acodec", "copy")
	}
	return append(args, outputPath)
}

// runFFmpeg executes the transcoding tool with a bounded timeout. A
// non-zero exit carries the tool's stderr; a timeout is reported
// distinctly.
func (p *Processor) runFFmpeg(ctx context.Context, args []string) error {
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, FFmpegCommand, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if tctx.Err() == context.DeadlineExceeded {
		return errors.Errorf("%s timed out after %s", FFmpegCommand, p.timeout)
	}
	if err != nil {
		return errors.Wrapf(err, "%s failed: %s", FFmpegCommand, tailString(stderr.String()))
	}
	return nil
}

// displayTitle derives the human title from the raw filename, dropping
// the extension and the media-id suffix the download template added.
func displayTitle(rawPath string) string {
	base := filepath.Base(rawPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = mediaIDSuffix.ReplaceAllString(base, "")
	if base == "" {
		return "download"
	}
	return base
}

// outputName builds the deterministic final filename:
// "<truncated-title> [<job-id suffix>].<ext>". The job id keeps distinct
// jobs with identical truncated titles from colliding. The suffix is the
// trailing end of the id, which for time-ordered ids is the random part.
func outputName(title, jobID, ext string) string {
	truncated := truncateTitle(title, MaxTitleLength)
	short := jobID
	if len(short) > JobIDSuffixLength {
		short = short[len(short)-JobIDSuffixLength:]
	}
	if short == "" {
		return truncated + ext
	}
	return fmt.Sprintf("%s [%s]%s", truncated, short, ext)
}

// truncateTitle bounds a title by rune count, not bytes, so multi-byte
// titles are not cut mid-character.
func truncateTitle(title string, limit int) string {
	runes := []rune(title)
	if len(runes) <= limit {
		return title
	}
	return strings.TrimSpace(string(runes[:limit]))
}

// HeaderFilename percent-encodes an artifact's base name for safe use in
// transport headers.
func HeaderFilename(path string) string {
	return url.PathEscape(filepath.Base(path))
}

// copyFile writes src to dst, truncating any previous content
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func tailString(s string) string {
	s = strings.TrimSpace(s)
	const keep = 2048
	if len(s) > keep {
		return s[len(s)-keep:]
	}
	return s
}
