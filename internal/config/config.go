// Package config resolves the server's runtime settings from flags and
// environment variables.
package config

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Default values
const (
	DefaultServerAddr  = ":8080"
	DefaultDownloadDir = "downloads"
	DefaultOutputDir   = "output"
	DefaultRetries     = 3
	DefaultBaseDelay   = 5 * time.Second
	DefaultCleanupTTL  = time.Hour
)

// Environment variable names. Flags win over the environment.
const (
	EnvServerAddr  = "YTFETCH_ADDR"
	EnvDownloadDir = "YTFETCH_DOWNLOAD_DIR"
	EnvOutputDir   = "YTFETCH_OUTPUT_DIR"
	EnvCookieFile  = "YTFETCH_COOKIE_FILE"
	EnvCookie      = "COOKIE"
)

// Config holds the resolved runtime settings.
type Config struct {
	// ServerAddr is the HTTP listen address
	ServerAddr string

	// DownloadDir receives raw extraction output
	DownloadDir string

	// OutputDir receives normalized final artifacts
	OutputDir string

	// CookieFile is a Netscape-format cookie jar passed to the
	// extraction engine. Empty means no cookies.
	CookieFile string

	// MaxTransientRetries and BaseDelay tune the retry engine
	MaxTransientRetries int
	BaseDelay           time.Duration

	// CleanupTTL is how long finished artifacts are kept before the
	// sweeper removes them
	CleanupTTL time.Duration
}

// Load parses args (without the program name) over environment defaults.
func Load(args []string) (Config, error) {
	cfg := Config{
		ServerAddr:          envOr(EnvServerAddr, DefaultServerAddr),
		DownloadDir:         envOr(EnvDownloadDir, DefaultDownloadDir),
		OutputDir:           envOr(EnvOutputDir, DefaultOutputDir),
		CookieFile:          os.Getenv(EnvCookieFile),
		MaxTransientRetries: DefaultRetries,
		BaseDelay:           DefaultBaseDelay,
		CleanupTTL:          DefaultCleanupTTL,
	}

	fs := flag.NewFlagSet("ytfetch", flag.ContinueOnError)
	fs.StringVar(&cfg.ServerAddr, "addr", cfg.ServerAddr, "HTTP listen address")
	fs.StringVar(&cfg.DownloadDir, "download-dir", cfg.DownloadDir, "directory for raw downloads")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for processed files")
	fs.StringVar(&cfg.CookieFile, "cookie-file", cfg.CookieFile, "cookie jar passed to yt-dlp")
	fs.IntVar(&cfg.MaxTransientRetries, "retries", cfg.MaxTransientRetries, "transient retries per format attempt")
	fs.DurationVar(&cfg.BaseDelay, "retry-delay", cfg.BaseDelay, "linear backoff base between retries")
	fs.DurationVar(&cfg.CleanupTTL, "cleanup-ttl", cfg.CleanupTTL, "age after which processed files are removed")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.MaxTransientRetries < 1 {
		return Config{}, errors.Errorf("retries must be at least 1, got %d", cfg.MaxTransientRetries)
	}
	if cfg.BaseDelay < 0 {
		return Config{}, errors.Errorf("retry-delay must not be negative, got %s", cfg.BaseDelay)
	}

	// Inline cookie content takes effect only when no jar was named.
	if cfg.CookieFile == "" {
		path, err := provisionCookieFile(os.Getenv(EnvCookie))
		if err != nil {
			return Config{}, err
		}
		cfg.CookieFile = path
	}

	return cfg, nil
}

// EnsureDirs creates the working directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.DownloadDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return nil
}

// provisionCookieFile writes inline cookie content to a private temp
// file and returns its path. Empty content yields an empty path.
func provisionCookieFile(content string) (string, error) {
	if content == "" {
		return "", nil
	}

	f, err := os.CreateTemp("", "ytfetch-cookies-*.txt")
	if err != nil {
		return "", errors.Wrap(err, "create cookie file")
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.Wrap(err, "write cookie file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", errors.Wrap(err, "close cookie file")
	}
	if err := os.Chmod(f.Name(), 0o600); err != nil {
		os.Remove(f.Name())
		return "", errors.Wrap(err, "restrict cookie file")
	}
	return f.Name(), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// AbsDownloadDir returns the raw download directory as an absolute path.
func (c Config) AbsDownloadDir() string {
	return mustAbs(c.DownloadDir)
}

// AbsOutputDir returns the output directory as an absolute path.
func (c Config) AbsOutputDir() string {
	return mustAbs(c.OutputDir)
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
