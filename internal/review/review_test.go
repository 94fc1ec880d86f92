package review

import (
	"context"
	"errors"
	"testing"

	"cinecast/internal/chunkstore"
	"cinecast/internal/logging"
	"cinecast/internal/services/llm"
)

type scriptedCompleter struct {
	responses map[string]string
	err       error
}

func (s *scriptedCompleter) Complete(_ context.Context, _, userPrompt string) (llm.Completion, error) {
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	if resp, ok := s.responses[userPrompt]; ok {
		return llm.Completion{Content: resp, FinishReason: "stop"}, nil
	}
	return llm.Completion{Content: userPrompt, FinishReason: "stop"}, nil
}

func TestIntegrity(t *testing.T) {
	cases := []struct {
		original  string
		corrected string
		want      float64
	}{
		{"one two three four", "one two three four", 1},
		{"one two three four", "one two", 0.5},
		{"one two three four", "one two three four five", 1.25},
		{"", "", 1},
		{"", "something", 0},
		{"word", "", 0},
	}
	for _, tc := range cases {
		if got := Integrity(tc.original, tc.corrected); got != tc.want {
			t.Errorf("Integrity(%q, %q) = %v, want %v", tc.original, tc.corrected, got, tc.want)
		}
	}
}

func TestCorrectAcceptsHighIntegrityFix(t *testing.T) {
	original := "It was a dark and stromy night in the old huose."
	fixed := "It was a dark and stormy night in the old house."
	reviewer := New(&scriptedCompleter{responses: map[string]string{original: fixed}}, logging.NewNop())

	result, err := reviewer.Correct(context.Background(), []chunkstore.Chunk{
		{ID: 0, Speaker: "N", Text: original},
	})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if result.Corrections[0] != fixed {
		t.Fatalf("correction not applied: %+v", result)
	}
	if result.Rejected != 0 {
		t.Fatalf("nothing should be rejected: %+v", result)
	}
}

func TestCorrectRejectsRewrite(t *testing.T) {
	original := "The committee deliberated for three long hours before reaching any conclusion at all."
	rewrite := "They talked a while."
	reviewer := New(&scriptedCompleter{responses: map[string]string{original: rewrite}}, logging.NewNop())

	result, err := reviewer.Correct(context.Background(), []chunkstore.Chunk{
		{ID: 0, Speaker: "N", Text: original},
	})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if result.Rejected != 1 {
		t.Fatalf("rewrite should be rejected: %+v", result)
	}
	if len(result.Corrections) != 0 {
		t.Fatalf("rejected correction must not be applied: %+v", result)
	}
}

func TestCorrectSkipsUnchangedAndEmpty(t *testing.T) {
	reviewer := New(&scriptedCompleter{}, logging.NewNop())
	result, err := reviewer.Correct(context.Background(), []chunkstore.Chunk{
		{ID: 0, Speaker: "N", Text: "Already clean text stays the same."},
		{ID: 1, Speaker: "N", Text: "   "},
	})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if result.Unchanged != 2 || len(result.Corrections) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCorrectSurfacesModelFailure(t *testing.T) {
	reviewer := New(&scriptedCompleter{err: errors.New("down")}, logging.NewNop())
	_, err := reviewer.Correct(context.Background(), []chunkstore.Chunk{
		{ID: 0, Speaker: "N", Text: "Some text."},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
