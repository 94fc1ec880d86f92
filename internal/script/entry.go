package script

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Entry is one annotated script line: who speaks, what they say, and how.
// Entries are immutable once chunked.
type Entry struct {
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
	Instruct string `json:"instruct"`
}

// entryJSON tolerates the two field spellings models produce: some emit
// "speaker", older prompt revisions emit "type".
type entryJSON struct {
	Speaker  string `json:"speaker"`
	Type     string `json:"type"`
	Text     string `json:"text"`
	Instruct string `json:"instruct"`
}

func (e entryJSON) toEntry() Entry {
	speaker := e.Speaker
	if speaker == "" {
		speaker = e.Type
	}
	return Entry{
		Speaker:  norm.NFC.String(strings.TrimSpace(speaker)),
		Text:     e.Text,
		Instruct: e.Instruct,
	}
}

func decodeEntries(data []byte) ([]Entry, bool) {
	var raw []entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false
	}
	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, r.toEntry())
	}
	return entries, true
}

// LoadEntries reads an annotated script file.
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	entries, ok := decodeEntries(data)
	if !ok {
		return nil, fmt.Errorf("parse script %s: not a JSON entry array", path)
	}
	return entries, nil
}

// SaveEntries writes an annotated script file.
func SaveEntries(path string, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode script: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

// Speakers returns the distinct speaker names in first-appearance order.
func Speakers(entries []Entry) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.Speaker == "" {
			continue
		}
		if _, ok := seen[e.Speaker]; ok {
			continue
		}
		seen[e.Speaker] = struct{}{}
		out = append(out, e.Speaker)
	}
	return out
}
