// Package planner turns a download request into the ordered list of
// extraction strategies the engine will try.
package planner

// Selector expressions understood by the extraction engine
const (
	// SelectorKnownAudio is a specific m4a audio stream that most sources
	// offer; using it avoids a re-encode when available.
	SelectorKnownAudio = "140"

	// SelectorBestAudio is the generic audio fallback. It can resolve to
	// any codec, so the attempt carries a forced re-encode.
	SelectorBestAudio = "bestaudio/best"

	// SelectorBestMerged asks for the best video and audio streams,
	// merged when they are delivered separately.
	SelectorBestMerged = "bestvideo+bestaudio/best"

	// SelectorBestSingle is the always-available single-stream safety net.
	SelectorBestSingle = "best"
)

// Fixed target for the generic audio fallback re-encode
const (
	FallbackAudioFormat  = "aac"
	FallbackAudioQuality = "192K"
)

// MergeContainer is the widely-compatible container used when streams
// have to be merged.
const MergeContainer = "mp4"

// AttemptSpec is one candidate strategy for obtaining media.
type AttemptSpec struct {
	// Selector is the encoding-selection expression passed verbatim to
	// the extraction engine.
	Selector string

	// MergeContainer, when set, is the target container for merging
	// separate video and audio streams.
	MergeContainer string

	// ExtractAudio instructs the engine to finalize the download as an
	// audio file using AudioFormat/AudioQuality.
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string

	// Description is used in logs and diagnostics.
	Description string
}

// Plan produces the ordered attempt sequence for a request. The sequence
// is never empty and runs from most-specific to most-likely-to-succeed;
// the engine stops at the first success.
func Plan(requestedFormat string, audioOnly bool) []AttemptSpec {
	// An explicit user choice is honored verbatim with no fallback, so a
	// failure is reported against the format the user picked rather than
	// silently substituting another one.
	if requestedFormat != "" {
		return []AttemptSpec{
			{
				Selector:    requestedFormat,
				Description: "requested format " + requestedFormat,
			},
		}
	}

	if audioOnly {
		return []AttemptSpec{
			{
				Selector:    SelectorKnownAudio,
				Description: "known m4a audio stream",
			},
			{
				Selector:     SelectorBestAudio,
				ExtractAudio: true,
				AudioFormat:  FallbackAudioFormat,
				AudioQuality: FallbackAudioQuality,
				Description:  "best audio with " + FallbackAudioFormat + " re-encode",
			},
		}
	}

	return []AttemptSpec{
		{
			Selector:       SelectorBestMerged,
			MergeContainer: MergeContainer,
			Description:    "best merged video+audio",
		},
		{
			Selector:    SelectorBestSingle,
			Description: "best single stream",
		},
	}
}
