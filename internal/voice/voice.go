// Package voice loads and validates the speaker-to-voice mapping that tells
// the rendering engine how each speaker should sound.
package voice

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"cinecast/internal/services"
)

// Rendering modes. Each mode requires a different set of fields on Spec.
const (
	ModeCustom = "custom"
	ModeClone  = "clone"
	ModeLora   = "lora"
	ModeDesign = "design"
)

// Spec describes how one speaker's lines are voiced. Exactly one mode is
// active; the validated fields depend on it.
//
//	custom  a named engine preset (Voice)
//	clone   few-shot cloning from a reference recording (RefAudio, RefText)
//	lora    a fine-tuned adapter (AdapterID)
//	design  a voice synthesized from a prose description (Description)
type Spec struct {
	Mode        string `json:"mode"`
	Voice       string `json:"voice,omitempty"`
	RefAudio    string `json:"ref_audio,omitempty"`
	RefText     string `json:"ref_text,omitempty"`
	AdapterID   string `json:"adapter_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// Config maps speaker names to their voice specs.
type Config struct {
	Speakers map[string]Spec
}

// Load reads and validates a voice configuration file. Every spec is checked
// at load time so that rendering never discovers a malformed voice mid-run.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "voice", "load", "read voice config", err)
	}

	var speakers map[string]Spec
	if err := json.Unmarshal(data, &speakers); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "voice", "load", "parse voice config", err)
	}

	cfg := &Config{Speakers: make(map[string]Spec, len(speakers))}
	for name, spec := range speakers {
		normalized, err := validateSpec(name, spec)
		if err != nil {
			return nil, err
		}
		cfg.Speakers[strings.TrimSpace(name)] = normalized
	}
	return cfg, nil
}

func validateSpec(speaker string, spec Spec) (Spec, error) {
	spec.Mode = strings.ToLower(strings.TrimSpace(spec.Mode))
	fail := func(msg string) (Spec, error) {
		return Spec{}, services.Wrap(services.ErrValidation, "voice", "validate",
			fmt.Sprintf("speaker %q: %s", speaker, msg), nil)
	}

	switch spec.Mode {
	case ModeCustom:
		if strings.TrimSpace(spec.Voice) == "" {
			return fail("custom mode requires a voice preset name")
		}
	case ModeClone:
		if strings.TrimSpace(spec.RefAudio) == "" {
			return fail("clone mode requires ref_audio")
		}
		if strings.TrimSpace(spec.RefText) == "" {
			return fail("clone mode requires ref_text")
		}
	case ModeLora:
		if strings.TrimSpace(spec.AdapterID) == "" {
			return fail("lora mode requires adapter_id")
		}
	case ModeDesign:
		if strings.TrimSpace(spec.Description) == "" {
			return fail("design mode requires a description")
		}
	case "":
		return fail("missing mode")
	default:
		return fail(fmt.Sprintf("unknown mode %q", spec.Mode))
	}
	return spec, nil
}

// Lookup returns the spec for a speaker, if one is configured.
func (c *Config) Lookup(speaker string) (Spec, bool) {
	if c == nil {
		return Spec{}, false
	}
	spec, ok := c.Speakers[speaker]
	return spec, ok
}

// Missing returns the configured-speaker gaps for a script's speaker list,
// sorted for stable reporting.
func (c *Config) Missing(speakers []string) []string {
	var missing []string
	for _, s := range speakers {
		if _, ok := c.Lookup(s); !ok {
			missing = append(missing, s)
		}
	}
	sort.Strings(missing)
	return missing
}

// GroupKey identifies which chunks can share an engine model load. Custom
// presets all ride the same base model, clones are keyed per speaker since
// each carries its own reference audio, adapters are keyed per adapter.
func (c *Config) GroupKey(speaker string) string {
	spec, ok := c.Lookup(speaker)
	if !ok {
		return ModeCustom
	}
	switch spec.Mode {
	case ModeClone:
		return ModeClone + ":" + speaker
	case ModeLora:
		return ModeLora + ":" + spec.AdapterID
	case ModeDesign:
		return ModeDesign
	default:
		return ModeCustom
	}
}

// GroupOrder returns a permutation of indices that clusters equal keys
// together. Groups appear in first-occurrence order and indices within a
// group keep their relative order, so regrouping is a stable reorder rather
// than a shuffle.
func GroupOrder(keys []string) []int {
	order := make([]int, 0, len(keys))
	firstSeen := make(map[string]int, len(keys))
	var groups [][]int
	for i, key := range keys {
		gi, ok := firstSeen[key]
		if !ok {
			gi = len(groups)
			firstSeen[key] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], i)
	}
	for _, group := range groups {
		order = append(order, group...)
	}
	return order
}
