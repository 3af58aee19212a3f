package download

import (
	"context"

	"github.com/ytfetch/ytfetch/internal/model"
	"github.com/ytfetch/ytfetch/internal/postproc"
	"github.com/ytfetch/ytfetch/internal/ytdlp"
)

// Extractor is the external metadata/extraction engine.
type Extractor interface {
	// Inspect resolves a URL in metadata-only mode.
	Inspect(ctx context.Context, url string) (*model.VideoInfo, error)

	// Download runs one extraction attempt, reporting raw progress
	// through onProgress, and returns the path of the file written.
	Download(ctx context.Context, req ytdlp.DownloadRequest, onProgress func(model.RawProgress)) (string, error)
}

// Processor maps a raw downloaded file to the normalized final artifact.
type Processor interface {
	Normalize(ctx context.Context, rawPath, outputDir string, opts postproc.Options) (string, error)
}
