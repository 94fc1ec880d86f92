// Package review runs a model-assisted correction pass over chunk text and
// guards it with a word-coverage integrity gate so the model cannot silently
// rewrite or drop narration.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cinecast/internal/chunkstore"
	"cinecast/internal/services"
	"cinecast/internal/services/llm"
	"cinecast/internal/textutil"
)

// IntegrityThreshold is the minimum word-coverage ratio a correction must
// keep. Below it the correction is treated as a rewrite and rejected.
const IntegrityThreshold = 0.95

const correctionPrompt = `You fix scanning artifacts, typos, and encoding damage in audiobook text.
Correct only obvious errors. Never rephrase, summarize, or drop sentences.
Respond with the corrected text and nothing else.`

// Completer is the slice of the llm client the reviewer needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (llm.Completion, error)
}

// Reviewer corrects chunk text through the completion model.
type Reviewer struct {
	client Completer
	logger *slog.Logger
}

// New builds a reviewer.
func New(client Completer, logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{client: client, logger: logger}
}

// Result summarizes a correction pass. Corrections holds the accepted new
// text keyed by chunk id; rejected and unchanged chunks are absent.
type Result struct {
	Corrections map[int]string
	Unchanged   int
	Rejected    int
}

// Correct runs every non-empty chunk through the model and gates each
// correction on integrity. Rejected corrections leave the chunk untouched.
func (r *Reviewer) Correct(ctx context.Context, chunks []chunkstore.Chunk) (Result, error) {
	result := Result{Corrections: make(map[int]string)}
	for _, chunk := range chunks {
		if !chunk.HasText() {
			result.Unchanged++
			continue
		}

		completion, err := r.client.Complete(ctx, correctionPrompt, chunk.Text)
		if err != nil {
			return result, services.Wrap(services.ErrExternalTool, "review", "correct",
				fmt.Sprintf("chunk %d", chunk.ID), err)
		}
		corrected := textutil.RepairMojibake(strings.TrimSpace(completion.Content))
		if corrected == chunk.Text || corrected == "" {
			result.Unchanged++
			continue
		}

		ratio := Integrity(chunk.Text, corrected)
		if ratio < IntegrityThreshold {
			result.Rejected++
			r.logger.Warn("rejecting low-integrity correction",
				slog.Int("chunk", chunk.ID),
				slog.Float64("integrity", ratio))
			continue
		}
		result.Corrections[chunk.ID] = corrected
	}
	return result, nil
}

// Integrity measures how much of the original's word count survives in the
// corrected text. 1.0 means nothing was lost; values drop as the correction
// sheds words.
func Integrity(original, corrected string) float64 {
	origWords := len(strings.Fields(original))
	corrWords := len(strings.Fields(corrected))
	if origWords == 0 {
		if corrWords == 0 {
			return 1
		}
		return 0
	}
	return float64(corrWords) / float64(origWords)
}
