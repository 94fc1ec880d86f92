// Package audio handles the PCM plumbing for assembly: decoding rendered
// voicelines, generating silence gaps, concatenating clips, and converting
// final output with ffmpeg.
package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is decoded PCM audio with its format.
type Clip struct {
	Samples    []int
	SampleRate int
	Channels   int
	BitDepth   int
}

// DurationMs is the clip length in whole milliseconds.
func (c *Clip) DurationMs() int {
	if c == nil || c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return frames * 1000 / c.SampleRate
}

// DurationSeconds is the clip length in seconds, for label timestamps.
func (c *Clip) DurationSeconds() float64 {
	if c == nil || c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return float64(frames) / float64(c.SampleRate)
}

// DecodeWAV reads a WAV file fully into memory.
func DecodeWAV(path string) (*Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav %s: %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav %s: %w", path, err)
	}
	if buffer.Format == nil {
		return nil, fmt.Errorf("decode wav %s: missing format chunk", path)
	}

	return &Clip{
		Samples:    buffer.Data,
		SampleRate: buffer.Format.SampleRate,
		Channels:   buffer.Format.NumChannels,
		BitDepth:   int(decoder.BitDepth),
	}, nil
}

// EncodeWAV writes a clip to path as PCM WAV.
func EncodeWAV(path string, clip *Clip) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav %s: %w", path, err)
	}
	defer file.Close()

	bitDepth := clip.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	buffer := &gaudio.IntBuffer{
		Format: &gaudio.Format{NumChannels: clip.Channels, SampleRate: clip.SampleRate},
		Data:   clip.Samples,
	}
	encoder := wav.NewEncoder(file, clip.SampleRate, bitDepth, clip.Channels, 1)
	if err := encoder.Write(buffer); err != nil {
		return fmt.Errorf("write wav %s: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close wav encoder %s: %w", path, err)
	}
	return nil
}

// Silence builds a clip of zeroed samples in the given format.
func Silence(durationMs, sampleRate, channels int) *Clip {
	if durationMs < 0 {
		durationMs = 0
	}
	frames := sampleRate * durationMs / 1000
	return &Clip{
		Samples:    make([]int, frames*channels),
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   16,
	}
}

// Concat joins clips into one. All clips must share sample rate and channel
// count; nil clips are skipped.
func Concat(clips ...*Clip) (*Clip, error) {
	var out *Clip
	for _, clip := range clips {
		if clip == nil {
			continue
		}
		if out == nil {
			out = &Clip{
				SampleRate: clip.SampleRate,
				Channels:   clip.Channels,
				BitDepth:   clip.BitDepth,
			}
		}
		if clip.SampleRate != out.SampleRate || clip.Channels != out.Channels {
			return nil, fmt.Errorf("concat: format mismatch: %dHz/%dch vs %dHz/%dch",
				clip.SampleRate, clip.Channels, out.SampleRate, out.Channels)
		}
		out.Samples = append(out.Samples, clip.Samples...)
		if out.BitDepth == 0 {
			out.BitDepth = clip.BitDepth
		}
	}
	if out == nil {
		return nil, fmt.Errorf("concat: no clips")
	}
	return out, nil
}

// PadTo extends a clip with trailing silence until it reaches durationMs.
// Clips already at or past the target are returned unchanged.
func PadTo(clip *Clip, durationMs int) *Clip {
	if clip == nil {
		return nil
	}
	gap := durationMs - clip.DurationMs()
	if gap <= 0 {
		return clip
	}
	padded, err := Concat(clip, Silence(gap, clip.SampleRate, clip.Channels))
	if err != nil {
		return clip
	}
	return padded
}
