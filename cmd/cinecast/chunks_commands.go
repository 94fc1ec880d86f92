package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cinecast/internal/chunkstore"
	"cinecast/internal/script"
	"cinecast/internal/textutil"
)

func newChunksCommand(ctx *commandContext) *cobra.Command {
	chunksCmd := &cobra.Command{
		Use:   "chunks",
		Short: "Chunk list operations",
	}
	chunksCmd.AddCommand(newChunksBuildCommand(ctx))
	chunksCmd.AddCommand(newChunksListCommand(ctx))
	chunksCmd.AddCommand(newChunksShowCommand(ctx))
	chunksCmd.AddCommand(newChunksEditCommand(ctx))
	chunksCmd.AddCommand(newChunksInsertCommand(ctx))
	chunksCmd.AddCommand(newChunksDeleteCommand(ctx))
	return chunksCmd
}

func parseChunkID(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid chunk id %q", arg)
	}
	return id, nil
}

func newChunksBuildCommand(ctx *commandContext) *cobra.Command {
	var maxChars int

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Pack the annotated script into generation chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := script.LoadEntries(cfg.ScriptPath())
			if err != nil {
				return err
			}
			limit := maxChars
			if limit <= 0 {
				limit = cfg.Render.MaxChunkChars
			}
			chunks := script.Chunk(entries, limit)

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			if err := store.SaveAll(chunks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Packed %d entries into %d chunks at %s\n",
				len(entries), len(chunks), cfg.ChunksPath())
			return nil
		},
	}

	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "Maximum characters per chunk (defaults to config)")
	return cmd
}

func newChunksListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chunks with status and audio",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			chunks, err := store.Load()
			if err != nil {
				return err
			}

			var filter chunkstore.Status
			if statusFilter != "" {
				parsed, ok := chunkstore.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				filter = parsed
			}

			rows := make([][]string, 0, len(chunks))
			for _, chunk := range chunks {
				if filter != "" && chunk.Status != filter {
					continue
				}
				rows = append(rows, []string{
					strconv.Itoa(chunk.ID),
					string(chunk.Status),
					chunk.Speaker,
					textutil.Preview(chunk.Text, 60),
					chunk.AudioPath,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(),
				renderTable([]string{"ID", "Status", "Speaker", "Text", "Audio"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show chunks with this status")
	return cmd
}

func newChunksShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one chunk in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChunkID(args[0])
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
			if id >= len(chunks) {
				return fmt.Errorf("chunk %d out of range (have %d)", id, len(chunks))
			}
			chunk := chunks[id]

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %d\n", chunk.ID)
			fmt.Fprintf(out, "Speaker:  %s\n", chunk.Speaker)
			fmt.Fprintf(out, "Status:   %s\n", chunk.Status)
			if chunk.Instruct != "" {
				fmt.Fprintf(out, "Instruct: %s\n", chunk.Instruct)
			}
			if chunk.AudioPath != "" {
				fmt.Fprintf(out, "Audio:    %s\n", chunk.AudioPath)
			}
			fmt.Fprintf(out, "Text:\n%s\n", chunk.Text)
			return nil
		},
	}
}

func newChunksEditCommand(ctx *commandContext) *cobra.Command {
	var textFlag, speakerFlag, instructFlag string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a chunk's content (resets it to pending)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChunkID(args[0])
			if err != nil {
				return err
			}

			patch := chunkstore.FieldPatch{}
			if cmd.Flags().Changed("text") {
				patch.Text = chunkstore.StringPtr(textFlag)
			}
			if cmd.Flags().Changed("speaker") {
				patch.Speaker = chunkstore.StringPtr(speakerFlag)
			}
			if cmd.Flags().Changed("instruct") {
				patch.Instruct = chunkstore.StringPtr(instructFlag)
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			updated, err := store.EditContent(id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chunk %d updated (status %s)\n", updated.ID, updated.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&textFlag, "text", "", "Replacement text")
	cmd.Flags().StringVar(&speakerFlag, "speaker", "", "Replacement speaker")
	cmd.Flags().StringVar(&instructFlag, "instruct", "", "Replacement delivery instruction")
	return cmd
}

func newChunksInsertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <after-id>",
		Short: "Insert an empty chunk after the given one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChunkID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			chunks, err := store.InsertAfter(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Inserted chunk %d (speaker %s); edit its text before generating. %d chunks total.\n",
				id+1, chunks[id+1].Speaker, len(chunks))
			return nil
		},
	}
}

func newChunksDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChunkID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			deleted, remaining, err := store.Delete(id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleted chunk %d [%s] %s\n",
				id, deleted.Speaker, textutil.Preview(deleted.Text, 60))
			fmt.Fprintf(out, "%d chunks remain.\n", len(remaining))
			return nil
		},
	}
}
