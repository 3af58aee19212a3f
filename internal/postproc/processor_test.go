package postproc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		ext       string
		audioOnly bool
		op        Operation
		outExt    string
	}{
		{".mp4", true, OpRemuxAudio, AudioExtension},
		{".mov", true, OpRemuxAudio, AudioExtension},
		{".webm", true, OpTranscodeAudio, AudioExtension},
		{".mkv", true, OpTranscodeAudio, AudioExtension},
		{".m4a", true, OpRemuxAudio, AudioExtension},
		{".m4a", false, OpRemuxAudio, AudioExtension},
		{".aac", false, OpRemuxAudio, AudioExtension},
		{".mp3", false, OpTranscodeAudio, AudioExtension},
		{".opus", true, OpTranscodeAudio, AudioExtension},
		{".wav", false, OpTranscodeAudio, AudioExtension},
		{".mp4", false, OpPassthrough, ".mp4"},
		{".mkv", false, OpPassthrough, ".mkv"},
		{".bin", false, OpPassthrough, ".bin"},
		{".bin", true, OpPassthrough, ".bin"},
	}

	for _, test := range tests {
		op, outExt := decide(test.ext, test.audioOnly)
		if op != test.op || outExt != test.outExt {
			t.Errorf("decide(%s, audioOnly=%v) = (%s, %s), expected (%s, %s)",
				test.ext, test.audioOnly, op, outExt, test.op, test.outExt)
		}
	}
}

func TestFFmpegArgs(t *testing.T) {
	remux := strings.Join(ffmpegArgs(OpRemuxAudio, "/in.mp4", "/out.m4a"), " ")
	for _, want := range []string{"-y", "-i /in.mp4", "-vn", "-acodec copy", "/out.m4a"} {
		if !strings.Contains(remux, want) {
			t.Errorf("Expected remux args to contain %q, got %q", want, remux)
		}
	}
	if strings.Contains(remux, TargetAudioBitrate) {
		t.Errorf("Expected no bitrate for remux, got %q", remux)
	}

	transcode := strings.Join(ffmpegArgs(OpTranscodeAudio, "/in.webm", "/out.m4a"), " ")
	for _, want := range []string{"-acodec " + TargetAudioCodec, "-b:a " + TargetAudioBitrate} {
		if !strings.Contains(transcode, want) {
			t.Errorf("Expected transcode args to contain %q, got %q", want, transcode)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/raw/Some_Video [dQw4w9WgXcQ].mp4", "Some_Video"},
		{"/raw/No_ID_Here.mp4", "No_ID_Here"},
		{"/raw/Trailing [x] [abc].webm", "Trailing [x]"},
		{"/raw/[onlyid].mp4", "download"},
	}

	for _, test := range tests {
		if got := displayTitle(test.path); got != test.expected {
			t.Errorf("displayTitle(%s) = %q, expected %q", test.path, got, test.expected)
		}
	}
}

func TestOutputName(t *testing.T) {
	name := outputName("My Title", "0190c3a8-aaaa-bbbb-cccc-0123456789ab", ".m4a")
	if name != "My Title [456789ab].m4a" {
		t.Errorf("Expected 'My Title [456789ab].m4a', got %q", name)
	}

	// Without a job id the name still resolves
	if got := outputName("My Title", "", ".mp4"); got != "My Title.mp4" {
		t.Errorf("Expected 'My Title.mp4', got %q", got)
	}
}

func TestOutputNameTruncation(t *testing.T) {
	long := strings.Repeat("a", MaxTitleLength+50)
	name := outputName(long, "abcdefgh", ".m4a")

	base := strings.TrimSuffix(name, " [abcdefgh].m4a")
	if len([]rune(base)) != MaxTitleLength {
		t.Errorf("Expected title truncated to %d runes, got %d", MaxTitleLength, len([]rune(base)))
	}
}

func TestTruncateTitleMultibyte(t *testing.T) {
	title := strings.Repeat("ü", MaxTitleLength+10)
	got := truncateTitle(title, MaxTitleLength)
	if len([]rune(got)) != MaxTitleLength {
		t.Errorf("Expected %d runes, got %d", MaxTitleLength, len([]rune(got)))
	}
	if !strings.HasPrefix(got, "ü") {
		t.Errorf("Expected multi-byte runes to survive truncation, got %q", got[:8])
	}
}

func TestHeaderFilename(t *testing.T) {
	got := HeaderFilename("/out/My Title [0190c3a8].m4a")
	if strings.ContainsAny(got, " \"") {
		t.Errorf("Expected header-safe name, got %q", got)
	}
	if !strings.Contains(got, "My%20Title") {
		t.Errorf("Expected percent-encoded spaces, got %q", got)
	}
}

func TestNormalizePassthrough(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()

	rawPath := filepath.Join(rawDir, "Clip [vid123].mp4")
	if err := os.WriteFile(rawPath, []byte("fake video payload"), 0o644); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	p := New()
	finalPath, err := p.Normalize(context.Background(), rawPath, outDir, Options{JobID: "0190c3a8-job", AudioOnly: false})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if filepath.Ext(finalPath) != ".mp4" {
		t.Errorf("Expected passthrough to keep the extension, got %q", finalPath)
	}
	data, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("Expected final file to exist, got %v", err)
	}
	if string(data) != "fake video payload" {
		t.Errorf("Expected content to survive passthrough, got %q", data)
	}

	// The raw file is left in place
	if _, err := os.Stat(rawPath); err != nil {
		t.Errorf("Expected raw file to be preserved, got %v", err)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()

	rawPath := filepath.Join(rawDir, "Clip [vid123].mp4")
	if err := os.WriteFile(rawPath, []byte("payload"), 0o644); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	p := New()
	opts := Options{JobID: "0190c3a8-job"}

	first, err := p.Normalize(context.Background(), rawPath, outDir, opts)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := p.Normalize(context.Background(), rawPath, outDir, opts)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if first != second {
		t.Errorf("Expected deterministic final path, got %q then %q", first, second)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected a single output file after re-run, got %d", len(entries))
	}
}

func TestNormalizeMissingRawFile(t *testing.T) {
	p := New()
	if _, err := p.Normalize(context.Background(), "/nope/missing.mp4", t.TempDir(), Options{}); err == nil {
		t.Error("Expected error for missing raw file, got nil")
	}
}

func TestDistinctJobsDistinctNames(t *testing.T) {
	a := outputName("Same Title", "aaaaaaaa-1111", ".m4a")
	b := outputName("Same Title", "bbbbbbbb-2222", ".m4a")
	if a == b {
		t.Errorf("Expected distinct jobs to produce distinct names, both %q", a)
	}
}
