package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"cinecast/internal/history"
	"cinecast/internal/render"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		batchMode    bool
		workers      int
		batchSize    int
		seed         int64
		groupByVoice bool
	)

	cmd := &cobra.Command{
		Use:   "generate [id...]",
		Short: "Render voicelines for pending chunks",
		Long: `Render voicelines through the speech engine. With no arguments every chunk
that is not already done is rendered; explicit ids rerender just those chunks.
The default mode runs a bounded worker pool; --batch switches to the engine's
batch endpoint, which shares one seed and model state per batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var ids []int
			for _, arg := range args {
				id, parseErr := parseChunkID(arg)
				if parseErr != nil {
					return parseErr
				}
				ids = append(ids, id)
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			voices, err := ctx.loadVoices()
			if err != nil {
				return err
			}
			engine, err := ctx.newTTSClient()
			if err != nil {
				return err
			}

			if workers <= 0 {
				workers = cfg.Render.Workers
			}
			if batchSize <= 0 {
				batchSize = cfg.Render.BatchSize
			}
			if !cmd.Flags().Changed("group-by-voice") {
				groupByVoice = cfg.Render.GroupByVoice
			}

			opts := []render.Option{}
			journal, journalErr := history.Open(cfg.HistoryDBPath())
			if journalErr != nil {
				ctx.ensureLogger().Warn("render journal unavailable")
			} else {
				defer journal.Close()
				opts = append(opts, render.WithJournal(journal))
			}

			var bar *progressbar.ProgressBar
			if isatty.IsTerminal(os.Stdout.Fd()) {
				opts = append(opts, render.WithProgress(func(done, total int) {
					if bar == nil {
						bar = progressbar.NewOptions(total,
							progressbar.OptionSetDescription("rendering"),
							progressbar.OptionShowCount(),
						)
					}
					bar.Set(done)
				}))
			}

			orchestrator, err := render.New(render.Params{
				Store:        store,
				Voices:       voices,
				Engine:       engine,
				OutputDir:    cfg.VoicelinesDir(),
				FFmpegBinary: cfg.FFmpegBinary(),
				Workers:      workers,
				BatchSize:    batchSize,
				GroupByVoice: groupByVoice,
				Seed:         seed,
				Logger:       ctx.ensureLogger(),
			}, opts...)
			if err != nil {
				return err
			}

			if len(ids) == 1 && !batchMode {
				if err := orchestrator.GenerateOne(cmd.Context(), ids[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Chunk %d rendered\n", ids[0])
				return nil
			}

			var summary render.Summary
			if batchMode {
				summary, err = orchestrator.GenerateBatch(cmd.Context(), ids)
			} else {
				summary, err = orchestrator.GenerateParallel(cmd.Context(), ids)
			}
			if bar != nil {
				bar.Finish()
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}

			printSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&batchMode, "batch", false, "Use the engine's batch endpoint")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel worker count (defaults to config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Chunks per batch (defaults to config)")
	cmd.Flags().Int64Var(&seed, "seed", render.RandomSeed, "Generation seed (-1 picks one per run)")
	cmd.Flags().BoolVar(&groupByVoice, "group-by-voice", false, "Cluster batches by voice to reduce model reloads")
	return cmd
}

func printSummary(cmd *cobra.Command, summary render.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rendered %d chunks", len(summary.Completed))
	if summary.Skipped > 0 {
		fmt.Fprintf(out, ", skipped %d without text", summary.Skipped)
	}
	fmt.Fprintln(out)

	if len(summary.Failed) > 0 {
		fmt.Fprintf(out, "%d chunks failed:\n", len(summary.Failed))
		for _, failure := range summary.Failed {
			reason := failure.Reason
			if idx := strings.IndexByte(reason, '\n'); idx >= 0 {
				reason = reason[:idx]
			}
			fmt.Fprintf(out, "  %4d  %s\n", failure.ID, reason)
		}
	}
}
