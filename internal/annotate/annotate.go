// Package annotate drives the completion model over a source text, turning
// prose into an annotated script of speaker-attributed entries.
package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"cinecast/internal/script"
	"cinecast/internal/services"
	"cinecast/internal/services/llm"
	"cinecast/internal/textutil"
)

const systemPrompt = `You convert book text into an annotated audiobook script.
Respond with a JSON array only. Each element has exactly these fields:
  "speaker": the character speaking, or "NARRATOR" for narration
  "text": the spoken text, verbatim from the source
  "instruct": a short delivery note ("angry", "whispering"), or ""
Reuse the speaker names you are given for characters that already appeared.
Do not summarize, skip, or reorder any text.`

// Completer is the slice of the llm client the annotator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (llm.Completion, error)
}

// Annotator converts source text into script entries segment by segment.
type Annotator struct {
	client    Completer
	chunkSize int
	logger    *slog.Logger
}

// New builds an annotator. chunkSize bounds how much source text goes into a
// single model request.
func New(client Completer, chunkSize int, logger *slog.Logger) *Annotator {
	if chunkSize <= 0 {
		chunkSize = 4000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{client: client, chunkSize: chunkSize, logger: logger}
}

// Annotate runs the full source through the model and returns the combined
// entry list. Known speakers accumulate across segments so the model keeps
// character names consistent.
func (a *Annotator) Annotate(ctx context.Context, source string) ([]script.Entry, error) {
	source = textutil.RepairMojibake(source)
	segments := SplitSource(source, a.chunkSize)
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "annotate", "run", "source text is empty", nil)
	}

	var entries []script.Entry
	for i, segment := range segments {
		a.logger.Info("annotating segment",
			slog.Int("segment", i+1),
			slog.Int("total", len(segments)),
			slog.Int("chars", len(segment)))

		completion, err := a.client.Complete(ctx, systemPrompt, buildPrompt(segment, entries))
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "annotate", "run",
				fmt.Sprintf("segment %d/%d", i+1, len(segments)), err)
		}
		if completion.Truncated() {
			a.logger.Warn("completion hit the token limit, recovering partial array",
				slog.Int("segment", i+1))
		}

		recovered := script.Recover(completion.Content)
		if len(recovered) == 0 {
			return nil, services.Wrap(services.ErrExternalTool, "annotate", "run",
				fmt.Sprintf("segment %d/%d produced no recoverable entries", i+1, len(segments)), nil)
		}
		entries = append(entries, recovered...)
	}
	return entries, nil
}

// contextEntries is how many trailing entries are echoed back to the model so
// it can pick up mid-scene without re-attributing speakers.
const contextEntries = 3

func buildPrompt(segment string, prior []script.Entry) string {
	var b strings.Builder
	if speakers := script.Speakers(prior); len(speakers) > 0 {
		b.WriteString("Speakers so far: ")
		b.WriteString(strings.Join(speakers, ", "))
		b.WriteString("\n\n")
	}
	if len(prior) > 0 {
		tail := prior
		if len(tail) > contextEntries {
			tail = tail[len(tail)-contextEntries:]
		}
		b.WriteString("Previous entries:\n")
		for _, entry := range tail {
			fmt.Fprintf(&b, "[%s] %s\n", entry.Speaker, entry.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("Source text:\n")
	b.WriteString(segment)
	return b.String()
}

// SplitSource breaks the source into segments of at most chunkSize runes,
// preferring paragraph boundaries. A single paragraph longer than chunkSize
// is split hard rather than dropped.
func SplitSource(source string, chunkSize int) []string {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil
	}

	var segments []string
	var current strings.Builder
	currentRunes := 0
	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
			currentRunes = 0
		}
	}

	for _, paragraph := range strings.Split(source, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		for utf8.RuneCountInString(paragraph) > chunkSize {
			flush()
			runes := []rune(paragraph)
			segments = append(segments, string(runes[:chunkSize]))
			paragraph = strings.TrimSpace(string(runes[chunkSize:]))
		}
		if paragraph == "" {
			continue
		}
		// chunkSize counts characters, matching the hard-split bound above.
		paragraphRunes := utf8.RuneCountInString(paragraph)
		if current.Len() > 0 && currentRunes+2+paragraphRunes > chunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
			currentRunes += 2
		}
		current.WriteString(paragraph)
		currentRunes += paragraphRunes
	}
	flush()
	return segments
}
