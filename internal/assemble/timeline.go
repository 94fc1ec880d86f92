// Package assemble reconstructs the audiobook from rendered voicelines:
// merging them into one continuous file and exporting a multi-track editing
// bundle with aligned per-speaker tracks and labels.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"cinecast/internal/audio"
	"cinecast/internal/chunkstore"
)

// Default pause durations between consecutive voicelines.
const (
	DefaultSameSpeakerPauseMs   = 250
	DefaultSpeakerChangePauseMs = 500
)

// Assembler builds final audio artifacts from a chunk list.
type Assembler struct {
	ffmpegBinary         string
	samePauseMs          int
	speakerChangePauseMs int
	logger               *slog.Logger
}

// Params configures an assembler. Zero pause values fall back to defaults.
type Params struct {
	FFmpegBinary         string
	SameSpeakerPauseMs   int
	SpeakerChangePauseMs int
	Logger               *slog.Logger
}

// New builds an assembler.
func New(p Params) *Assembler {
	if p.FFmpegBinary == "" {
		p.FFmpegBinary = "ffmpeg"
	}
	if p.SameSpeakerPauseMs <= 0 {
		p.SameSpeakerPauseMs = DefaultSameSpeakerPauseMs
	}
	if p.SpeakerChangePauseMs <= 0 {
		p.SpeakerChangePauseMs = DefaultSpeakerChangePauseMs
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Assembler{
		ffmpegBinary:         p.FFmpegBinary,
		samePauseMs:          p.SameSpeakerPauseMs,
		speakerChangePauseMs: p.SpeakerChangePauseMs,
		logger:               p.Logger,
	}
}

// Segment is one voiceline placed on the global timeline.
type Segment struct {
	ChunkID  int
	Speaker  string
	Text     string
	StartSec float64
	EndSec   float64
	Clip     *audio.Clip
}

// pauseMs returns the gap inserted before a voiceline. The first voiceline
// starts at zero with no leading gap.
func (a *Assembler) pauseMs(prevSpeaker, speaker string, first bool) int {
	if first {
		return 0
	}
	if prevSpeaker == speaker {
		return a.samePauseMs
	}
	return a.speakerChangePauseMs
}

// buildTimeline decodes every usable voiceline and places it on a single
// global timeline with pause gaps. Chunks without finished audio are skipped
// and counted; a decoded clip whose format differs from the first one is
// skipped too, since it cannot share a track.
func (a *Assembler) buildTimeline(ctx context.Context, chunks []chunkstore.Chunk) ([]Segment, int, error) {
	var segments []Segment
	skipped := 0
	var sampleRate, channels int
	cursorMs := 0
	prevSpeaker := ""

	for _, chunk := range chunks {
		if chunk.Status != chunkstore.StatusDone || strings.TrimSpace(chunk.AudioPath) == "" {
			skipped++
			continue
		}
		if _, err := os.Stat(chunk.AudioPath); err != nil {
			a.logger.Warn("voiceline file missing, skipping",
				slog.Int("chunk", chunk.ID),
				slog.String("path", chunk.AudioPath))
			skipped++
			continue
		}

		clip, err := a.loadClip(ctx, chunk.AudioPath)
		if err != nil {
			a.logger.Warn("voiceline could not be decoded, skipping",
				slog.Int("chunk", chunk.ID),
				slog.Any("error", err))
			skipped++
			continue
		}
		if sampleRate == 0 {
			sampleRate = clip.SampleRate
			channels = clip.Channels
		} else if clip.SampleRate != sampleRate || clip.Channels != channels {
			a.logger.Warn("voiceline format differs, skipping",
				slog.Int("chunk", chunk.ID))
			skipped++
			continue
		}

		cursorMs += a.pauseMs(prevSpeaker, chunk.Speaker, len(segments) == 0)
		start := float64(cursorMs) / 1000
		cursorMs += clip.DurationMs()

		segments = append(segments, Segment{
			ChunkID:  chunk.ID,
			Speaker:  chunk.Speaker,
			Text:     chunk.Text,
			StartSec: start,
			EndSec:   float64(cursorMs) / 1000,
			Clip:     clip,
		})
		prevSpeaker = chunk.Speaker
	}

	if len(segments) == 0 {
		return nil, skipped, fmt.Errorf("assemble: no finished voicelines to place")
	}
	return segments, skipped, nil
}

// loadClip decodes a voiceline. MP3 files are bounced through ffmpeg into a
// temporary WAV first.
func (a *Assembler) loadClip(ctx context.Context, path string) (*audio.Clip, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return audio.DecodeWAV(path)
	}

	temp, err := os.CreateTemp("", "cinecast_decode_*.wav")
	if err != nil {
		return nil, fmt.Errorf("assemble: temp file: %w", err)
	}
	tempPath := temp.Name()
	temp.Close()
	defer os.Remove(tempPath)

	cmd := exec.CommandContext(ctx, a.ffmpegBinary, "-y", "-i", path, tempPath)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("assemble: decode %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return audio.DecodeWAV(tempPath)
}
