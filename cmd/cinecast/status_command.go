package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cinecast/internal/chunkstore"
	"cinecast/internal/deps"
	"cinecast/internal/script"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show project, chunk, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project: %s\n", cfg.Paths.ProjectDir)

			ffmpeg := deps.CheckFFmpeg(cfg.Render.FFmpegBinary)
			fmt.Fprintf(out, "FFmpeg:  %s\n", availability(ffmpeg))
			fmt.Fprintf(out, "LLM:     %s (%s)\n", cfg.LLM.BaseURL, cfg.LLM.Model)
			fmt.Fprintf(out, "Engine:  %s (%s)\n", cfg.TTS.BaseURL, engineReachability(cmd.Context(), ctx))

			entries, scriptErr := script.LoadEntries(cfg.ScriptPath())
			if scriptErr != nil {
				fmt.Fprintln(out, "Script:  not annotated yet")
			} else {
				fmt.Fprintf(out, "Script:  %d entries, %d speakers\n",
					len(entries), len(script.Speakers(entries)))
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			chunks, loadErr := store.Load()
			if loadErr != nil {
				fmt.Fprintln(out, "Chunks:  none (run `cinecast chunks build`)")
				return nil
			}

			counts := make(map[chunkstore.Status]int)
			for _, chunk := range chunks {
				counts[chunk.Status]++
			}
			rows := make([][]string, 0, len(chunkstore.AllStatuses()))
			for _, status := range chunkstore.AllStatuses() {
				rows = append(rows, []string{string(status), strconv.Itoa(counts[status])})
			}
			fmt.Fprintf(out, "Chunks:  %d total\n", len(chunks))
			fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows))
			return nil
		},
	}
}

func engineReachability(parent context.Context, ctx *commandContext) string {
	client, err := ctx.newTTSClient()
	if err != nil {
		return "unconfigured"
	}
	probeCtx, cancel := context.WithTimeout(parent, 3*time.Second)
	defer cancel()
	if err := client.HealthCheck(probeCtx); err != nil {
		return "unreachable"
	}
	return "reachable"
}

func availability(status deps.Status) string {
	if status.Available {
		return fmt.Sprintf("ok (%s)", status.Command)
	}
	return fmt.Sprintf("missing (%s)", status.Detail)
}
