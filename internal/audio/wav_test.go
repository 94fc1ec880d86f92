package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func sineish(frames, channels int) []int {
	samples := make([]int, frames*channels)
	for i := range samples {
		samples[i] = (i%64 - 32) * 100
	}
	return samples
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	in := &Clip{
		Samples:    sineish(2400, 1),
		SampleRate: 24000,
		Channels:   1,
		BitDepth:   16,
	}
	if err := EncodeWAV(path, in); err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := DecodeWAV(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SampleRate != 24000 || out.Channels != 1 {
		t.Fatalf("format lost: %+v", out)
	}
	if len(out.Samples) != len(in.Samples) {
		t.Fatalf("sample count changed: %d vs %d", len(out.Samples), len(in.Samples))
	}
	for i := range in.Samples {
		if out.Samples[i] != in.Samples[i] {
			t.Fatalf("sample %d changed: %d vs %d", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestSilenceDuration(t *testing.T) {
	clip := Silence(250, 24000, 1)
	if got := clip.DurationMs(); got != 250 {
		t.Fatalf("silence duration = %dms, want 250", got)
	}
	if len(clip.Samples) != 6000 {
		t.Fatalf("silence frames = %d, want 6000", len(clip.Samples))
	}
	for _, s := range clip.Samples {
		if s != 0 {
			t.Fatal("silence must be zeroed")
		}
	}
}

func TestConcatAddsDurations(t *testing.T) {
	a := Silence(100, 24000, 1)
	b := &Clip{Samples: sineish(2400, 1), SampleRate: 24000, Channels: 1, BitDepth: 16}

	joined, err := Concat(a, b)
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	if got := joined.DurationMs(); got != 200 {
		t.Fatalf("joined duration = %dms, want 200", got)
	}
}

func TestConcatRejectsFormatMismatch(t *testing.T) {
	a := Silence(100, 24000, 1)
	b := Silence(100, 44100, 1)
	if _, err := Concat(a, b); err == nil {
		t.Fatal("expected format mismatch error")
	}
}

func TestConcatSkipsNil(t *testing.T) {
	joined, err := Concat(nil, Silence(50, 24000, 1), nil)
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	if joined.DurationMs() != 50 {
		t.Fatalf("duration = %dms", joined.DurationMs())
	}
}

func TestPadTo(t *testing.T) {
	clip := Silence(100, 24000, 1)
	padded := PadTo(clip, 300)
	if padded.DurationMs() != 300 {
		t.Fatalf("padded duration = %dms, want 300", padded.DurationMs())
	}
	same := PadTo(clip, 50)
	if same.DurationMs() != 100 {
		t.Fatalf("over-length clip must not be trimmed: %dms", same.DurationMs())
	}
}

func TestConvertFallsBackToWAVCopy(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "src.wav")
	if err := EncodeWAV(wavPath, Silence(100, 24000, 1)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	mp3Path := filepath.Join(dir, "out.mp3")

	// A binary that always fails forces the fallback branch.
	got, err := ConvertToMP3(context.Background(), "false", wavPath, mp3Path)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got != filepath.Join(dir, "out.wav") {
		t.Fatalf("fallback path = %s", got)
	}
	src, _ := os.ReadFile(wavPath)
	dst, readErr := os.ReadFile(got)
	if readErr != nil {
		t.Fatalf("read fallback: %v", readErr)
	}
	if string(src) != string(dst) {
		t.Fatal("fallback copy differs from source wav")
	}
	if _, statErr := os.Stat(mp3Path); !os.IsNotExist(statErr) {
		t.Fatal("stub mp3 should have been removed")
	}
}
