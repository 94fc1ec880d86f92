package voice

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cinecast/internal/services"
)

func writeVoiceConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice_config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write voice config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeVoiceConfig(t, `{
  "NARRATOR": {"mode": "custom", "voice": "en_male_deep"},
  "ANNA": {"mode": "clone", "ref_audio": "refs/anna.wav", "ref_text": "Hello there."},
  "BEN": {"mode": "lora", "adapter_id": "ben-v2"},
  "GHOST": {"mode": "design", "description": "hollow, echoing whisper"}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Speakers) != 4 {
		t.Fatalf("expected 4 speakers, got %d", len(cfg.Speakers))
	}
	spec, ok := cfg.Lookup("ANNA")
	if !ok || spec.RefAudio != "refs/anna.wav" {
		t.Fatalf("clone spec wrong: %+v", spec)
	}
}

func TestLoadRejectsIncompleteSpecs(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"custom without voice", `{"N": {"mode": "custom"}}`},
		{"clone without ref_text", `{"N": {"mode": "clone", "ref_audio": "a.wav"}}`},
		{"lora without adapter", `{"N": {"mode": "lora"}}`},
		{"design without description", `{"N": {"mode": "design"}}`},
		{"unknown mode", `{"N": {"mode": "telepathy"}}`},
		{"missing mode", `{"N": {"voice": "x"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeVoiceConfig(t, tc.body))
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestMissing(t *testing.T) {
	cfg := &Config{Speakers: map[string]Spec{
		"NARRATOR": {Mode: ModeCustom, Voice: "v"},
	}}
	missing := cfg.Missing([]string{"ZOE", "NARRATOR", "ANNA"})
	if len(missing) != 2 || missing[0] != "ANNA" || missing[1] != "ZOE" {
		t.Fatalf("missing list wrong: %v", missing)
	}
}

func TestGroupKey(t *testing.T) {
	cfg := &Config{Speakers: map[string]Spec{
		"A": {Mode: ModeClone, RefAudio: "a.wav", RefText: "t"},
		"B": {Mode: ModeCustom, Voice: "preset1"},
		"C": {Mode: ModeCustom, Voice: "preset2"},
		"D": {Mode: ModeLora, AdapterID: "x"},
		"E": {Mode: ModeDesign, Description: "d"},
	}}
	cases := map[string]string{
		"A":       "clone:A",
		"B":       "custom",
		"C":       "custom",
		"D":       "lora:x",
		"E":       "design",
		"UNKNOWN": "custom",
	}
	for speaker, want := range cases {
		if got := cfg.GroupKey(speaker); got != want {
			t.Errorf("GroupKey(%s) = %q, want %q", speaker, got, want)
		}
	}
}

func TestGroupOrderStableClustering(t *testing.T) {
	keys := []string{"clone:a", "custom", "clone:a", "lora:x"}
	got := GroupOrder(keys)
	want := []int{0, 2, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("order length wrong: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestGroupOrderIdentityWhenAlreadyGrouped(t *testing.T) {
	keys := []string{"custom", "custom", "clone:a"}
	got := GroupOrder(keys)
	for i, idx := range got {
		if idx != i {
			t.Fatalf("already-grouped input should be identity: %v", got)
		}
	}
}
