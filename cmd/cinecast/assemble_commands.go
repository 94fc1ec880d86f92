package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cinecast/internal/assemble"
)

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	assembleCmd := &cobra.Command{
		Use:   "assemble",
		Short: "Build final audio from rendered voicelines",
	}
	assembleCmd.AddCommand(newAssembleMergeCommand(ctx))
	assembleCmd.AddCommand(newAssembleExportCommand(ctx))
	return assembleCmd
}

func (c *commandContext) newAssembler() (*assemble.Assembler, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return assemble.New(assemble.Params{
		FFmpegBinary:         cfg.FFmpegBinary(),
		SameSpeakerPauseMs:   cfg.Assembly.SameSpeakerPauseMs,
		SpeakerChangePauseMs: cfg.Assembly.SpeakerChangePauseMs,
		Logger:               c.ensureLogger(),
	}), nil
}

func newAssembleMergeCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge all voicelines into one audiobook file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			chunks, err := store.Load()
			if err != nil {
				return err
			}
			assembler, err := ctx.newAssembler()
			if err != nil {
				return err
			}

			out := strings.TrimSpace(output)
			if out == "" {
				out = filepath.Join(cfg.Paths.ProjectDir, "audiobook.mp3")
			}
			report, err := assembler.Merge(cmd.Context(), chunks, out)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Merged %d voicelines (%.1fs) into %s\n",
				report.Segments, report.DurationSec, report.OutputPath)
			if report.Skipped > 0 {
				fmt.Fprintf(w, "%d chunks had no finished audio and were skipped\n", report.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to <project>/audiobook.mp3)")
	return cmd
}

func newAssembleExportCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an editing bundle with per-speaker tracks and labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			chunks, err := store.Load()
			if err != nil {
				return err
			}
			assembler, err := ctx.newAssembler()
			if err != nil {
				return err
			}

			out := strings.TrimSpace(output)
			if out == "" {
				out = filepath.Join(cfg.Paths.ProjectDir, "audacity_export.zip")
			}
			report, err := assembler.ExportMultiTrack(cmd.Context(), chunks, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Exported %d tracks and %d labels (%.1fs timeline) to %s\n",
				report.Tracks, report.Labels, report.DurationSec, report.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output bundle (defaults to <project>/audacity_export.zip)")
	return cmd
}
