package planner

import "testing"

func TestPlanExplicitFormat(t *testing.T) {
	attempts := Plan("137+140", false)

	if len(attempts) != 1 {
		t.Fatalf("Expected exactly 1 attempt for explicit format, got %d", len(attempts))
	}
	if attempts[0].Selector != "137+140" {
		t.Errorf("Expected selector to be used verbatim, got %q", attempts[0].Selector)
	}
	if attempts[0].ExtractAudio {
		t.Error("Expected no extract-audio step for explicit format")
	}

	// audio_only must not change an explicit choice
	attempts = Plan("140", true)
	if len(attempts) != 1 || attempts[0].Selector != "140" {
		t.Errorf("Expected single verbatim attempt, got %+v", attempts)
	}
}

func TestPlanAudioOnly(t *testing.T) {
	attempts := Plan("", true)

	if len(attempts) != 2 {
		t.Fatalf("Expected 2 attempts for audio-only, got %d", len(attempts))
	}

	// Most-specific first: the known stream identifier, no re-encode.
	if attempts[0].Selector != SelectorKnownAudio {
		t.Errorf("Expected first selector %q, got %q", SelectorKnownAudio, attempts[0].Selector)
	}
	if attempts[0].ExtractAudio {
		t.Error("Expected no re-encode for the specific stream attempt")
	}

	// The general fallback always carries the fixed-codec transcode.
	fallback := attempts[1]
	if fallback.Selector != SelectorBestAudio {
		t.Errorf("Expected fallback selector %q, got %q", SelectorBestAudio, fallback.Selector)
	}
	if !fallback.ExtractAudio {
		t.Error("Expected fallback to force audio extraction")
	}
	if fallback.AudioFormat != FallbackAudioFormat || fallback.AudioQuality != FallbackAudioQuality {
		t.Errorf("Expected fixed %s/%s target, got %s/%s",
			FallbackAudioFormat, FallbackAudioQuality, fallback.AudioFormat, fallback.AudioQuality)
	}
}

func TestPlanFullMedia(t *testing.T) {
	attempts := Plan("", false)

	if len(attempts) != 2 {
		t.Fatalf("Expected 2 attempts for full media, got %d", len(attempts))
	}

	if attempts[0].Selector != SelectorBestMerged {
		t.Errorf("Expected merged attempt first, got %q", attempts[0].Selector)
	}
	if attempts[0].MergeContainer != MergeContainer {
		t.Errorf("Expected merge container %q, got %q", MergeContainer, attempts[0].MergeContainer)
	}

	if attempts[1].Selector != SelectorBestSingle {
		t.Errorf("Expected single-stream safety net second, got %q", attempts[1].Selector)
	}
	if attempts[1].MergeContainer != "" {
		t.Errorf("Expected no merge requirement on fallback, got %q", attempts[1].MergeContainer)
	}
}

func TestPlanNeverEmpty(t *testing.T) {
	for _, audioOnly := range []bool{true, false} {
		if len(Plan("", audioOnly)) == 0 {
			t.Errorf("Expected non-empty plan for audioOnly=%v", audioOnly)
		}
	}
}
