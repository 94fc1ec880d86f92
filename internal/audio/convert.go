package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"cinecast/internal/services"
)

// minValidMP3Bytes guards against ffmpeg exiting zero while writing a header
// stub. Anything smaller than this is not a usable voiceline.
const minValidMP3Bytes = 1024

// ConvertToMP3 transcodes a rendered WAV into an MP3 beside the target path.
// When ffmpeg fails or produces a suspiciously small file, the WAV is copied
// to the fallback path instead and that path is returned. The caller always
// gets a usable audio file or an error, never a stub.
func ConvertToMP3(ctx context.Context, ffmpegBin, wavPath, mp3Path string) (string, error) {
	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-y",
		"-i", wavPath,
		"-codec:a", "libmp3lame",
		"-qscale:a", "2",
		mp3Path,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil {
		if info, err := os.Stat(mp3Path); err == nil && info.Size() >= minValidMP3Bytes {
			return mp3Path, nil
		}
		runErr = fmt.Errorf("output below %d bytes", minValidMP3Bytes)
	}

	// ffmpeg failed or wrote a stub: fall back to keeping the raw WAV.
	os.Remove(mp3Path)
	fallback := strings.TrimSuffix(mp3Path, ".mp3") + ".wav"
	if err := copyFile(wavPath, fallback); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "audio", "convert",
			fmt.Sprintf("mp3 conversion failed (%v: %s) and wav fallback failed", runErr, strings.TrimSpace(stderr.String())), err)
	}
	return fallback, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
