package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ytfetch/ytfetch/internal/model"
)

const (
	// DefaultBinary is the extraction engine executable looked up on PATH
	DefaultBinary = "yt-dlp"

	// SocketTimeoutSeconds hardens every engine call against stalled
	// connections.
	SocketTimeoutSeconds = 30

	// OutputTemplate names raw downloads after the media title, truncated
	// by the engine, with the source id appended to keep concurrent
	// downloads of same-titled media apart.
	OutputTemplate = "%(title).200B [%(id)s].%(ext)s"

	// maxKeepOutput bounds how much engine output is retained for
	// diagnostics.
	maxKeepOutput = 8192
)

// Progress-line shapes produced by the engine with --newline
var (
	// [download]  45.0% of 10.00MiB at 2.50MiB/s ETA 00:05
	progressRe = regexp.MustCompile(`\[download\]\s+([\d.]+)% of ~?\s*([\d.]+)(KiB|MiB|GiB|B)`)

	// [download] Destination: /path/to/file.mp4
	// [ExtractAudio] Destination: /path/to/file.m4a
	destinationRe = regexp.MustCompile(`Destination:\s+(.+)$`)

	// [Merger] Merging formats into "/path/to/file.mp4"
	mergerRe = regexp.MustCompile(`Merging formats into "(.+)"`)
)

// DownloadRequest describes one extraction attempt.
type DownloadRequest struct {
	URL            string
	OutputDir      string
	Selector       string
	MergeContainer string
	ExtractAudio   bool
	AudioFormat    string
	AudioQuality   string
}

// Client invokes the extraction engine as a subprocess.
type Client struct {
	binary     string
	cookieFile string
}

// NewClient creates a client. cookieFile may be empty when no credential
// material is configured.
func NewClient(cookieFile string) *Client {
	return &Client{
		binary:     DefaultBinary,
		cookieFile: cookieFile,
	}
}

// Inspect resolves a URL in metadata-only mode and returns the title and
// the list of available encodings. It never downloads media.
func (c *Client) Inspect(ctx context.Context, url string) (*model.VideoInfo, error) {
	args := c.inspectArgs(url)

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ExtractionError{
			URL:       url,
			Output:    tail(stderr.String()),
			Transient: classifyTransient(stderr.String()),
			Err:       fmt.Errorf("metadata fetch failed: %w", err),
		}
	}

	info, err := parseInfoJSON(stdout.Bytes())
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	return info, nil
}

// Download runs one extraction attempt and returns the path of the raw
// file written. Progress events are delivered through onProgress as the
// engine prints them; a final finished event is delivered on success.
func (c *Client) Download(ctx context.Context, req DownloadRequest, onProgress func(model.RawProgress)) (string, error) {
	if strings.TrimSpace(req.URL) == "" {
		return "", fmt.Errorf("download URL is required")
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return "", fmt.Errorf("output directory is required")
	}

	args := c.downloadArgs(req)
	cmd := exec.CommandContext(ctx, c.binary, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", c.binary, err)
	}

	var mu sync.Mutex
	var outBuf, errBuf strings.Builder
	var destination string
	var lastTotal int64

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, line)
			if path, ok := parseDestination(line); ok {
				destination = path
			}
			mu.Unlock()

			if ev, ok := parseProgressLine(line); ok {
				mu.Lock()
				lastTotal = ev.TotalBytes
				mu.Unlock()
				if onProgress != nil {
					onProgress(ev)
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			mu.Lock()
			appendLimited(&errBuf, scanner.Text())
			mu.Unlock()
		}
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	mu.Lock()
	combined := errBuf.String() + outBuf.String()
	dest := destination
	total := lastTotal
	mu.Unlock()

	if waitErr != nil {
		return "", &ExtractionError{
			URL:       req.URL,
			Output:    tail(combined),
			Transient: classifyTransient(combined),
			Err:       waitErr,
		}
	}

	if dest == "" {
		// The engine printed no destination line (e.g. the file already
		// existed); fall back to the newest file in the output directory.
		newest, err := newestFile(req.OutputDir)
		if err != nil {
			return "", &ExtractionError{URL: req.URL, Err: fmt.Errorf("locate downloaded file: %w", err)}
		}
		dest = newest
	}

	if onProgress != nil {
		onProgress(model.RawProgress{
			Status:          model.ProgressStatusFinished,
			DownloadedBytes: total,
			TotalBytes:      total,
		})
	}
	return dest, nil
}

// baseArgs are shared by every engine invocation
func (c *Client) baseArgs() []string {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--socket-timeout", strconv.Itoa(SocketTimeoutSeconds),
		"--no-check-certificates",
	}
	if c.cookieFile != "" {
		args = append(args, "--cookies", c.cookieFile)
	}
	return args
}

func (c *Client) inspectArgs(url string) []string {
	args := append(c.baseArgs(), "--dump-single-json")
	return append(args, url)
}

func (c *Client) downloadArgs(req DownloadRequest) []string {
	args := append(c.baseArgs(),
		"--newline",
		"--restrict-filenames",
		"-P", req.OutputDir,
		"-o", OutputTemplate,
		"-f", req.Selector,
	)
	if req.MergeContainer != "" {
		args = append(args, "--merge-output-format", req.MergeContainer)
	}
	if req.ExtractAudio {
		args = append(args, "-x", "--audio-format", req.AudioFormat)
		if req.AudioQuality != "" {
			args = append(args, "--audio-quality", req.AudioQuality)
		}
	}
	return append(args, req.URL)
}

// infoJSON mirrors the subset of the engine's metadata record we expose
type infoJSON struct {
	Title   string `json:"title"`
	Formats []struct {
		FormatID       string  `json:"format_id"`
		Ext            string  `json:"ext"`
		Format         string  `json:"format"`
		FormatNote     string  `json:"format_note"`
		ACodec         string  `json:"acodec"`
		VCodec         string  `json:"vcodec"`
		Height         int     `json:"height"`
		Width          int     `json:"width"`
		Filesize       int64   `json:"filesize"`
		FilesizeApprox int64   `json:"filesize_approx"`
		TBR            float64 `json:"tbr"`
	} `json:"formats"`
}

func parseInfoJSON(data []byte) (*model.VideoInfo, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("engine returned empty metadata")
	}

	var raw infoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	info := &model.VideoInfo{
		Title:   raw.Title,
		Formats: make([]model.Format, 0, len(raw.Formats)),
	}
	if info.Title == "" {
		info.Title = "download"
	}
	for _, f := range raw.Formats {
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		info.Formats = append(info.Formats, model.Format{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Format:     f.Format,
			FormatNote: f.FormatNote,
			ACodec:     f.ACodec,
			VCodec:     f.VCodec,
			Height:     f.Height,
			Width:      f.Width,
			Filesize:   size,
			TBR:        f.TBR,
		})
	}
	return info, nil
}

// parseProgressLine extracts a progress event from one engine output line
func parseProgressLine(line string) (model.RawProgress, bool) {
	matches := progressRe.FindStringSubmatch(line)
	if len(matches) != 4 {
		return model.RawProgress{}, false
	}

	percent, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return model.RawProgress{}, false
	}
	size, err := strconv.ParseFloat(matches[2], 64)
	if err != nil {
		return model.RawProgress{}, false
	}

	total := int64(size * float64(unitBytes(matches[3])))
	return model.RawProgress{
		Status:          model.ProgressStatusDownloading,
		DownloadedBytes: int64(percent / 100 * float64(total)),
		TotalBytes:      total,
	}, true
}

// parseDestination tracks the last file path the engine reports writing.
// Merge and audio-extract steps report after the plain download does, so
// the last match is the finalized raw artifact.
func parseDestination(line string) (string, bool) {
	if m := mergerRe.FindStringSubmatch(line); len(m) == 2 {
		return strings.TrimSpace(m[1]), true
	}
	if m := destinationRe.FindStringSubmatch(line); len(m) == 2 {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

func unitBytes(unit string) int64 {
	switch unit {
	case "KiB":
		return 1024
	case "MiB":
		return 1024 * 1024
	case "GiB":
		return 1024 * 1024 * 1024
	default:
		return 1
	}
}

// newestFile returns the most recently modified regular file in dir,
// skipping the engine's partial-download artifacts.
func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = name
			newestMod = mod
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no files in %s", dir)
	}
	return filepath.Join(dir, newest), nil
}

func appendLimited(b *strings.Builder, line string) {
	if b.Len() >= maxKeepOutput {
		return
	}
	toWrite := line + "\n"
	if remain := maxKeepOutput - b.Len(); len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxKeepOutput {
		return s[len(s)-maxKeepOutput:]
	}
	return s
}
