package assemble

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"cinecast/internal/audio"
	"cinecast/internal/chunkstore"
)

// MergeReport summarizes a merge.
type MergeReport struct {
	Segments    int
	Skipped     int
	DurationSec float64
	OutputPath  string
}

// Merge concatenates every finished voiceline, with pause gaps, into a single
// audiobook file at outPath. The ".mp3" extension is replaced by ".wav" when
// conversion has to fall back. Unusable chunks are skipped, not fatal.
func (a *Assembler) Merge(ctx context.Context, chunks []chunkstore.Chunk, outPath string) (MergeReport, error) {
	segments, skipped, err := a.buildTimeline(ctx, chunks)
	if err != nil {
		return MergeReport{Skipped: skipped}, err
	}

	first := segments[0].Clip
	parts := make([]*audio.Clip, 0, len(segments)*2)
	prevEndMs := 0
	for i, segment := range segments {
		if i > 0 {
			gapMs := msAt(segment.StartSec) - prevEndMs
			if gapMs > 0 {
				parts = append(parts, audio.Silence(gapMs, first.SampleRate, first.Channels))
			}
		}
		parts = append(parts, segment.Clip)
		prevEndMs = msAt(segment.EndSec)
	}

	combined, err := audio.Concat(parts...)
	if err != nil {
		return MergeReport{Skipped: skipped}, fmt.Errorf("assemble: merge: %w", err)
	}

	tempWAV := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".merge.wav"
	if err := audio.EncodeWAV(tempWAV, combined); err != nil {
		return MergeReport{Skipped: skipped}, err
	}

	finalPath := tempWAV
	if strings.EqualFold(filepath.Ext(outPath), ".mp3") {
		finalPath, err = audio.ConvertToMP3(ctx, a.ffmpegBinary, tempWAV, outPath)
		if err != nil {
			return MergeReport{Skipped: skipped}, err
		}
		if finalPath != tempWAV {
			os.Remove(tempWAV)
		}
	} else if tempWAV != outPath {
		if err := os.Rename(tempWAV, outPath); err != nil {
			return MergeReport{Skipped: skipped}, fmt.Errorf("assemble: place output: %w", err)
		}
		finalPath = outPath
	}

	return MergeReport{
		Segments:    len(segments),
		Skipped:     skipped,
		DurationSec: combined.DurationSeconds(),
		OutputPath:  finalPath,
	}, nil
}

func msAt(seconds float64) int {
	return int(math.Round(seconds * 1000))
}
