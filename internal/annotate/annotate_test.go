package annotate

import (
	"context"
	"strings"
	"testing"

	"cinecast/internal/logging"
	"cinecast/internal/services/llm"
)

type fakeCompleter struct {
	responses []llm.Completion
	prompts   []string
	err       error
}

func (f *fakeCompleter) Complete(_ context.Context, _, userPrompt string) (llm.Completion, error) {
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func TestAnnotateAccumulatesSpeakersAcrossSegments(t *testing.T) {
	completer := &fakeCompleter{responses: []llm.Completion{
		{Content: `[{"speaker": "ANNA", "text": "First segment line.", "instruct": ""}]`, FinishReason: "stop"},
		{Content: `[{"speaker": "BEN", "text": "Second segment line.", "instruct": ""}]`, FinishReason: "stop"},
	}}
	annotator := New(completer, 60, logging.NewNop())

	source := "A paragraph long enough to fill one segment.\n\nAnother paragraph for the next."
	entries, err := annotator.Annotate(context.Background(), source)
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if len(completer.prompts) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(completer.prompts))
	}
	if strings.Contains(completer.prompts[0], "Speakers so far") {
		t.Error("first segment should not list known speakers")
	}
	if !strings.Contains(completer.prompts[1], "ANNA") {
		t.Error("second segment should carry speakers from the first")
	}
	if !strings.Contains(completer.prompts[1], "First segment line.") {
		t.Error("second segment should echo trailing entries for context")
	}
}

func TestAnnotateRecoversFromNoisyCompletion(t *testing.T) {
	completer := &fakeCompleter{responses: []llm.Completion{
		{Content: "Sure! ```json\n[{\"speaker\": \"N\", \"text\": \"Line.\", \"instruct\": \"\"}]\n```", FinishReason: "stop"},
	}}
	annotator := New(completer, 1000, logging.NewNop())

	entries, err := annotator.Annotate(context.Background(), "Some text.")
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "Line." {
		t.Fatalf("recovery failed: %+v", entries)
	}
}

func TestAnnotateFailsWhenNothingRecoverable(t *testing.T) {
	completer := &fakeCompleter{responses: []llm.Completion{
		{Content: "I cannot help with that.", FinishReason: "stop"},
	}}
	annotator := New(completer, 1000, logging.NewNop())

	if _, err := annotator.Annotate(context.Background(), "Some text."); err == nil {
		t.Fatal("expected error for unrecoverable completion")
	}
}

func TestAnnotateEmptySource(t *testing.T) {
	annotator := New(&fakeCompleter{}, 1000, logging.NewNop())
	if _, err := annotator.Annotate(context.Background(), "   \n\n  "); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestSplitSourceParagraphBoundaries(t *testing.T) {
	source := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	segments := SplitSource(source, 48)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %q", len(segments), segments)
	}
	if !strings.Contains(segments[0], "First") || !strings.Contains(segments[0], "Second") {
		t.Fatalf("first segment should pack two paragraphs: %q", segments[0])
	}
	if !strings.Contains(segments[1], "Third") {
		t.Fatalf("second segment wrong: %q", segments[1])
	}
}

func TestSplitSourcePacksByRunesNotBytes(t *testing.T) {
	// Two 40-character CJK paragraphs are 240 bytes but only 82 characters
	// with the separator, so they pack into one 100-character segment.
	paragraph := strings.Repeat("話", 40)
	segments := SplitSource(paragraph+"\n\n"+paragraph, 100)
	if len(segments) != 1 {
		t.Fatalf("expected 1 packed segment, got %d: %q", len(segments), segments)
	}
	if got := len([]rune(segments[0])); got != 82 {
		t.Fatalf("segment rune count = %d, want 82", got)
	}
}

func TestSplitSourceHardSplitsOversizedParagraph(t *testing.T) {
	source := strings.Repeat("x", 250)
	segments := SplitSource(source, 100)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if len([]rune(seg)) > 100 {
			t.Errorf("segment %d exceeds limit: %d runes", i, len([]rune(seg)))
		}
	}
}
