package script

import (
	"strings"
	"unicode/utf8"

	"cinecast/internal/chunkstore"
)

// DefaultMaxChunkChars bounds the combined text length of a merged chunk.
const DefaultMaxChunkChars = 500

// structuralThreshold is the length under which punctuation-free text is
// treated as a title or heading rather than narration.
const structuralThreshold = 80

// IsStructural reports whether text is a title, chapter heading, dedication,
// or other structural fragment. Structural text must never be merged with
// adjacent narration.
func IsStructural(text string) bool {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return true
	}
	runes := []rune(stripped)
	if len(runes) >= structuralThreshold {
		return false
	}
	switch runes[len(runes)-1] {
	case '.', '!', '?':
		return false
	}
	return true
}

// Chunk packs entries into bounded speaker-homogeneous render units.
// Consecutive entries merge while speaker and instruct match, neither side is
// structural text, and the combined length stays within maxChars. Output
// chunks carry dense ids 0..N-1 and pending status.
func Chunk(entries []Entry, maxChars int) []chunkstore.Chunk {
	if len(entries) == 0 {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	var chunks []chunkstore.Chunk
	current := chunkstore.Chunk{
		Speaker:  entries[0].Speaker,
		Text:     entries[0].Text,
		Instruct: entries[0].Instruct,
	}

	flush := func() {
		current.ID = len(chunks)
		current.Status = chunkstore.StatusPending
		chunks = append(chunks, current)
	}

	for _, entry := range entries[1:] {
		mergeable := entry.Speaker == current.Speaker &&
			entry.Instruct == current.Instruct &&
			!IsStructural(current.Text) &&
			!IsStructural(entry.Text)

		if mergeable {
			combined := current.Text + " " + entry.Text
			// maxChars bounds characters, not bytes, so multibyte scripts
			// merge the same way ASCII does.
			if utf8.RuneCountInString(combined) <= maxChars {
				current.Text = combined
				continue
			}
			flush()
			current = chunkstore.Chunk{
				Speaker:  current.Speaker,
				Text:     entry.Text,
				Instruct: entry.Instruct,
			}
			continue
		}

		flush()
		current = chunkstore.Chunk{
			Speaker:  entry.Speaker,
			Text:     entry.Text,
			Instruct: entry.Instruct,
		}
	}
	flush()

	return chunks
}
