package assemble

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cinecast/internal/audio"
	"cinecast/internal/chunkstore"
	"cinecast/internal/textutil"
)

// labelPreviewChars bounds how much chunk text goes into a label.
const labelPreviewChars = 80

// ExportReport summarizes a multi-track export.
type ExportReport struct {
	Tracks      int
	Labels      int
	DurationSec float64
	OutputPath  string
}

// ExportMultiTrack writes an editing bundle to zipPath: one continuous WAV
// track per speaker, all aligned to the same global timeline and padded to
// equal length, plus a project.lof manifest and a labels.txt with one label
// per voiceline.
func (a *Assembler) ExportMultiTrack(ctx context.Context, chunks []chunkstore.Chunk, zipPath string) (ExportReport, error) {
	segments, _, err := a.buildTimeline(ctx, chunks)
	if err != nil {
		return ExportReport{}, err
	}

	first := segments[0].Clip
	totalMs := msAt(segments[len(segments)-1].EndSec)

	// Speakers in first-appearance order keep track ordering stable across
	// re-exports.
	var speakers []string
	bySpeaker := make(map[string][]Segment)
	for _, segment := range segments {
		if _, ok := bySpeaker[segment.Speaker]; !ok {
			speakers = append(speakers, segment.Speaker)
		}
		bySpeaker[segment.Speaker] = append(bySpeaker[segment.Speaker], segment)
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return ExportReport{}, fmt.Errorf("assemble: create bundle: %w", err)
	}
	defer out.Close()
	bundle := zip.NewWriter(out)

	tempDir, err := os.MkdirTemp("", "cinecast_export_")
	if err != nil {
		return ExportReport{}, fmt.Errorf("assemble: temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	var lofLines []string
	for _, speaker := range speakers {
		track, buildErr := buildSpeakerTrack(bySpeaker[speaker], first.SampleRate, first.Channels, totalMs)
		if buildErr != nil {
			return ExportReport{}, buildErr
		}

		trackName := fmt.Sprintf("tracks/%s.wav", textutil.SanitizeToken(speaker))
		tempPath := filepath.Join(tempDir, filepath.Base(trackName))
		if err := audio.EncodeWAV(tempPath, track); err != nil {
			return ExportReport{}, err
		}
		if err := copyIntoZip(bundle, trackName, tempPath); err != nil {
			return ExportReport{}, err
		}
		lofLines = append(lofLines, fmt.Sprintf("file %q", trackName))
	}

	if err := writeZipText(bundle, "project.lof", strings.Join(lofLines, "\n")+"\n"); err != nil {
		return ExportReport{}, err
	}

	var labels strings.Builder
	for _, segment := range segments {
		fmt.Fprintf(&labels, "%.6f\t%.6f\t[%s] %s\n",
			segment.StartSec, segment.EndSec, segment.Speaker,
			textutil.Preview(segment.Text, labelPreviewChars))
	}
	if err := writeZipText(bundle, "labels.txt", labels.String()); err != nil {
		return ExportReport{}, err
	}

	if err := bundle.Close(); err != nil {
		return ExportReport{}, fmt.Errorf("assemble: finalize bundle: %w", err)
	}
	return ExportReport{
		Tracks:      len(speakers),
		Labels:      len(segments),
		DurationSec: float64(totalMs) / 1000,
		OutputPath:  zipPath,
	}, nil
}

// buildSpeakerTrack lays one speaker's segments onto a silent canvas of the
// full timeline length.
func buildSpeakerTrack(segments []Segment, sampleRate, channels, totalMs int) (*audio.Clip, error) {
	parts := make([]*audio.Clip, 0, len(segments)*2)
	cursorMs := 0
	for _, segment := range segments {
		startMs := msAt(segment.StartSec)
		if gap := startMs - cursorMs; gap > 0 {
			parts = append(parts, audio.Silence(gap, sampleRate, channels))
		}
		parts = append(parts, segment.Clip)
		cursorMs = msAt(segment.EndSec)
	}
	track, err := audio.Concat(parts...)
	if err != nil {
		return nil, fmt.Errorf("assemble: speaker track: %w", err)
	}
	return audio.PadTo(track, totalMs), nil
}

func copyIntoZip(bundle *zip.Writer, name, srcPath string) error {
	writer, err := bundle.Create(name)
	if err != nil {
		return fmt.Errorf("assemble: bundle entry %s: %w", name, err)
	}
	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("assemble: open track: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("assemble: write track: %w", err)
	}
	return nil
}

func writeZipText(bundle *zip.Writer, name, content string) error {
	writer, err := bundle.Create(name)
	if err != nil {
		return fmt.Errorf("assemble: bundle entry %s: %w", name, err)
	}
	if _, err := io.WriteString(writer, content); err != nil {
		return fmt.Errorf("assemble: write %s: %w", name, err)
	}
	return nil
}
