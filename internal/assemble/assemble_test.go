package assemble

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cinecast/internal/audio"
	"cinecast/internal/chunkstore"
	"cinecast/internal/logging"
)

func writeVoiceline(t *testing.T, dir, name string, durationMs int) string {
	t.Helper()
	clip := audio.Silence(durationMs, 24000, 1)
	for i := range clip.Samples {
		clip.Samples[i] = (i%32 - 16) * 50
	}
	path := filepath.Join(dir, name)
	if err := audio.EncodeWAV(path, clip); err != nil {
		t.Fatalf("write voiceline: %v", err)
	}
	return path
}

func testAssembler() *Assembler {
	return New(Params{
		FFmpegBinary:         "false",
		SameSpeakerPauseMs:   250,
		SpeakerChangePauseMs: 500,
		Logger:               logging.NewNop(),
	})
}

func testChunks(t *testing.T, dir string) []chunkstore.Chunk {
	t.Helper()
	return []chunkstore.Chunk{
		{ID: 0, Speaker: "NARRATOR", Text: "It was a dark night.", Status: chunkstore.StatusDone,
			AudioPath: writeVoiceline(t, dir, "voiceline_0001_narrator.wav", 1000)},
		{ID: 1, Speaker: "NARRATOR", Text: "The wind howled.", Status: chunkstore.StatusDone,
			AudioPath: writeVoiceline(t, dir, "voiceline_0002_narrator.wav", 500)},
		{ID: 2, Speaker: "ANNA", Text: "Who goes there?", Status: chunkstore.StatusDone,
			AudioPath: writeVoiceline(t, dir, "voiceline_0003_anna.wav", 1000)},
	}
}

func TestMergeInsertsPausesByRule(t *testing.T) {
	dir := t.TempDir()
	chunks := testChunks(t, dir)
	out := filepath.Join(dir, "audiobook.wav")

	report, err := testAssembler().Merge(context.Background(), chunks, out)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if report.Segments != 3 || report.Skipped != 0 {
		t.Fatalf("report = %+v", report)
	}

	merged, err := audio.DecodeWAV(report.OutputPath)
	if err != nil {
		t.Fatalf("decode merged: %v", err)
	}
	// 1000 + 250 (same speaker) + 500 + 500 (speaker change) + 1000.
	if got := merged.DurationMs(); got != 3250 {
		t.Fatalf("merged duration = %dms, want 3250", got)
	}
}

func TestMergeSkipsUnfinishedAndMissing(t *testing.T) {
	dir := t.TempDir()
	chunks := testChunks(t, dir)
	chunks[1].Status = chunkstore.StatusPending
	os.Remove(chunks[2].AudioPath)

	report, err := testAssembler().Merge(context.Background(), chunks, filepath.Join(dir, "audiobook.wav"))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if report.Segments != 1 || report.Skipped != 2 {
		t.Fatalf("report = %+v", report)
	}
}

func TestMergeFailsWithNoUsableVoicelines(t *testing.T) {
	dir := t.TempDir()
	chunks := []chunkstore.Chunk{{ID: 0, Speaker: "N", Status: chunkstore.StatusPending}}
	if _, err := testAssembler().Merge(context.Background(), chunks, filepath.Join(dir, "out.wav")); err == nil {
		t.Fatal("expected error")
	}
}

func TestMergeMP3FallsBackToWAV(t *testing.T) {
	dir := t.TempDir()
	chunks := testChunks(t, dir)
	out := filepath.Join(dir, "audiobook.mp3")

	// ffmpeg binary "false" always fails, so conversion must fall back.
	report, err := testAssembler().Merge(context.Background(), chunks, out)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if filepath.Ext(report.OutputPath) != ".wav" {
		t.Fatalf("expected wav fallback, got %s", report.OutputPath)
	}
	if _, err := os.Stat(report.OutputPath); err != nil {
		t.Fatalf("fallback output missing: %v", err)
	}
}

func extractZipEntry(t *testing.T, reader *zip.ReadCloser, name, destDir string) string {
	t.Helper()
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		src, err := file.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer src.Close()
		dest := filepath.Join(destDir, filepath.Base(name))
		out, err := os.Create(dest)
		if err != nil {
			t.Fatalf("create %s: %v", dest, err)
		}
		defer out.Close()
		if _, err := io.Copy(out, src); err != nil {
			t.Fatalf("extract %s: %v", name, err)
		}
		return dest
	}
	t.Fatalf("bundle entry %s not found", name)
	return ""
}

func readZipEntry(t *testing.T, reader *zip.ReadCloser, name string) string {
	t.Helper()
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		src, err := file.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer src.Close()
		data, err := io.ReadAll(src)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("bundle entry %s not found", name)
	return ""
}

func TestExportMultiTrack(t *testing.T) {
	dir := t.TempDir()
	chunks := testChunks(t, dir)
	zipPath := filepath.Join(dir, "audacity_export.zip")

	report, err := testAssembler().ExportMultiTrack(context.Background(), chunks, zipPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if report.Tracks != 2 || report.Labels != 3 {
		t.Fatalf("report = %+v", report)
	}

	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer reader.Close()

	// Both tracks must span the full timeline so they align when imported.
	extractDir := t.TempDir()
	for _, name := range []string{"tracks/narrator.wav", "tracks/anna.wav"} {
		trackPath := extractZipEntry(t, reader, name, extractDir)
		clip, err := audio.DecodeWAV(trackPath)
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if got := clip.DurationMs(); got != 3250 {
			t.Errorf("%s duration = %dms, want 3250", name, got)
		}
	}

	lof := readZipEntry(t, reader, "project.lof")
	if !strings.Contains(lof, `file "tracks/narrator.wav"`) || !strings.Contains(lof, `file "tracks/anna.wav"`) {
		t.Fatalf("project.lof wrong:\n%s", lof)
	}

	labels := strings.Split(strings.TrimSpace(readZipEntry(t, reader, "labels.txt")), "\n")
	if len(labels) != 3 {
		t.Fatalf("expected 3 labels, got %d", len(labels))
	}
	if labels[0] != "0.000000\t1.000000\t[NARRATOR] It was a dark night." {
		t.Fatalf("first label = %q", labels[0])
	}
	// Third label starts after 1000 + 250 + 500 + 500 ms.
	if !strings.HasPrefix(labels[2], "2.250000\t3.250000\t[ANNA]") {
		t.Fatalf("third label = %q", labels[2])
	}
}
