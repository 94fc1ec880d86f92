package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cinecast/internal/annotate"
	"cinecast/internal/chunkstore"
	"cinecast/internal/review"
	"cinecast/internal/script"
)

func newScriptCommand(ctx *commandContext) *cobra.Command {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "Annotated script operations",
	}
	scriptCmd.AddCommand(newScriptAnnotateCommand(ctx))
	scriptCmd.AddCommand(newScriptRecoverCommand(ctx))
	scriptCmd.AddCommand(newScriptReviewCommand(ctx))
	scriptCmd.AddCommand(newScriptSpeakersCommand(ctx))
	return scriptCmd
}

func newScriptAnnotateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate <source-file>",
		Short: "Annotate a source text into a speaker-attributed script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}
			client, err := ctx.newLLMClient()
			if err != nil {
				return err
			}

			annotator := annotate.New(client, cfg.LLM.SourceChunkSize, ctx.ensureLogger())
			entries, err := annotator.Annotate(cmd.Context(), string(source))
			if err != nil {
				return err
			}
			if err := script.SaveEntries(cfg.ScriptPath(), entries); err != nil {
				return err
			}
			// A fresh script invalidates any previously built chunk list.
			if err := os.Remove(cfg.ChunksPath()); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove stale chunk list: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Annotated %d entries to %s\n", len(entries), cfg.ScriptPath())
			fmt.Fprintf(out, "Speakers: %s\n", strings.Join(script.Speakers(entries), ", "))
			fmt.Fprintln(out, "Run `cinecast chunks build` to prepare generation chunks.")
			return nil
		},
	}
	return cmd
}

func newScriptRecoverCommand(ctx *commandContext) *cobra.Command {
	var appendEntries bool

	cmd := &cobra.Command{
		Use:   "recover <raw-file>",
		Short: "Recover script entries from a saved raw model completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read raw completion: %w", err)
			}

			entries := script.Recover(string(raw))
			if len(entries) == 0 {
				return fmt.Errorf("no script entries could be recovered from %s", args[0])
			}
			if appendEntries {
				existing, loadErr := script.LoadEntries(cfg.ScriptPath())
				if loadErr == nil {
					entries = append(existing, entries...)
				}
			}
			if err := script.SaveEntries(cfg.ScriptPath(), entries); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recovered %d entries to %s\n", len(entries), cfg.ScriptPath())
			fmt.Fprintf(out, "Speakers: %s\n", strings.Join(script.Speakers(entries), ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&appendEntries, "append", false, "Append to the existing annotated script instead of replacing it")
	return cmd
}

func newScriptReviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Run a model-assisted correction pass over chunk text",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			chunks, err := store.Load()
			if err != nil {
				return err
			}
			client, err := ctx.newLLMClient()
			if err != nil {
				return err
			}

			reviewer := review.New(client, ctx.ensureLogger())
			result, err := reviewer.Correct(cmd.Context(), chunks)
			if err != nil {
				return err
			}

			for id, text := range result.Corrections {
				if _, err := store.EditContent(id, chunkstore.FieldPatch{
					Text: chunkstore.StringPtr(text),
				}); err != nil {
					return fmt.Errorf("apply correction to chunk %d: %w", id, err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Applied %d corrections, rejected %d, left %d unchanged\n",
				len(result.Corrections), result.Rejected, result.Unchanged)
			if len(result.Corrections) > 0 {
				fmt.Fprintln(out, "Corrected chunks were reset to pending; regenerate them before assembling.")
			}
			return nil
		},
	}
}

func newScriptSpeakersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "speakers",
		Short: "List script speakers and their voice configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := script.LoadEntries(cfg.ScriptPath())
			if err != nil {
				return err
			}
			speakers := script.Speakers(entries)

			voices, voicesErr := ctx.loadVoices()
			rows := make([][]string, 0, len(speakers))
			for _, speaker := range speakers {
				mode := "missing"
				if voicesErr == nil {
					if spec, ok := voices.Lookup(speaker); ok {
						mode = spec.Mode
					}
				}
				rows = append(rows, []string{speaker, mode})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Speaker", "Voice"}, rows))
			if voicesErr != nil {
				fmt.Fprintf(out, "Voice config could not be loaded: %v\n", voicesErr)
			} else if missing := voices.Missing(speakers); len(missing) > 0 {
				fmt.Fprintf(out, "Missing voices: %s\n", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
