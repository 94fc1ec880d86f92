package script

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	closedReasoningRe = []*regexp.Regexp{
		regexp.MustCompile(`<think>[\s\S]*?</think>`),
		regexp.MustCompile(`<thinking>[\s\S]*?</thinking>`),
		regexp.MustCompile(`<reflection>[\s\S]*?</reflection>`),
		regexp.MustCompile(`<reasoning>[\s\S]*?</reasoning>`),
	}
	openReasoningRe = []*regexp.Regexp{
		regexp.MustCompile(`<think>[\s\S]*$`),
		regexp.MustCompile(`<thinking>[\s\S]*$`),
	}

	fencedBlockRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

	stringLiteralRe = regexp.MustCompile(`"[^"\\]*(?:\\.[^"\\]*)*"`)

	adjacentObjectsRe = regexp.MustCompile(`\}\s*\{`)
	trailingCommaRe   = regexp.MustCompile(`,\s*\]`)

	objectShapeRe = regexp.MustCompile(
		`\{\s*"speaker"\s*:\s*"[^"]*"\s*,\s*"text"\s*:\s*"(?:[^"\\]|\\.)*"\s*,\s*"instruct"\s*:\s*"(?:[^"\\]|\\.)*"\s*\}`)

	fieldSalvageRe = regexp.MustCompile(
		`\{\s*"speaker"\s*:\s*"([^"]*)"\s*,\s*"text"\s*:\s*"((?:[^"\\]|\\.)*)"\s*,\s*"instruct"\s*:\s*"((?:[^"\\]|\\.)*)"\s*\}`)
)

// Recover extracts a well-formed entry array from a raw model completion.
// Strategies are applied in order, stopping at the first success; nil is
// returned only when every strategy is exhausted.
func Recover(raw string) []Entry {
	candidate, ok := extractArrayText(raw)
	if ok {
		if entries := repairArray(candidate); len(entries) > 0 {
			return entries
		}
		if entries := salvageFields(candidate); len(entries) > 0 {
			return entries
		}
	}
	// Field-level pass over the full raw text: rescues entries that sit
	// outside a mangled array body.
	return salvageFields(raw)
}

// extractArrayText strips reasoning tags and markdown fences, then isolates
// the first bracket-balanced array span. Control characters inside string
// literals are normalized to their escaped forms.
func extractArrayText(text string) (string, bool) {
	text = stripReasoning(text)

	if strings.Contains(text, "```") {
		if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
			text = strings.TrimSpace(m[1])
		}
	}

	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}

	end := scanBalancedArray(text, start)
	if end < 0 {
		// No closing bracket: truncate at the last complete object and
		// close the array manually.
		lastComplete := strings.LastIndex(text, "},")
		if lastComplete > start {
			return fixControlChars(text[start:lastComplete+1] + "]"), true
		}
		return "", false
	}

	return fixControlChars(text[start:end]), true
}

// scanBalancedArray walks forward from the opening bracket tracking depth and
// quoted-string state (with a one-character escape lookahead so \" does not
// toggle). Returns the index one past the matching close bracket, or -1.
func scanBalancedArray(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '[':
			if !inString {
				depth++
			}
		case ']':
			if !inString {
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
	}
	return -1
}

func stripReasoning(text string) string {
	for _, re := range closedReasoningRe {
		text = re.ReplaceAllString(text, "")
	}
	for _, re := range openReasoningRe {
		text = re.ReplaceAllString(text, "")
	}
	return text
}

// fixControlChars escapes literal newlines, carriage returns, and tabs that
// appear inside string literals. Models routinely emit them raw, which breaks
// strict parsing.
func fixControlChars(jsonText string) string {
	return stringLiteralRe.ReplaceAllStringFunc(jsonText, func(s string) string {
		s = strings.ReplaceAll(s, "\n", `\n`)
		s = strings.ReplaceAll(s, "\r", `\r`)
		s = strings.ReplaceAll(s, "\t", `\t`)
		return s
	})
}

// repairArray parses the candidate array text, applying repair heuristics in
// sequence and accepting the first that yields a non-empty array.
func repairArray(jsonText string) []Entry {
	if jsonText == "" {
		return nil
	}

	if entries, ok := decodeEntries([]byte(jsonText)); ok {
		return entries
	}

	// Missing commas between adjacent objects.
	fixed := adjacentObjectsRe.ReplaceAllString(jsonText, "},\n{")
	if entries, ok := decodeEntries([]byte(fixed)); ok {
		return entries
	}

	// Trailing commas before the close bracket.
	fixed = trailingCommaRe.ReplaceAllString(fixed, "]")
	if entries, ok := decodeEntries([]byte(fixed)); ok {
		return entries
	}

	// Extract every object-shaped substring and parse each independently,
	// discarding the unparsable ones.
	var entries []Entry
	for _, match := range objectShapeRe.FindAllString(jsonText, -1) {
		var raw entryJSON
		if err := json.Unmarshal([]byte(match), &raw); err != nil {
			continue
		}
		entries = append(entries, raw.toEntry())
	}
	if len(entries) > 0 {
		return entries
	}

	// Truncate at the last complete object and close the array.
	lastComplete := strings.LastIndex(jsonText, "},")
	if lastComplete > 0 {
		truncated := jsonText[:lastComplete+1] + "]"
		if !strings.HasPrefix(strings.TrimSpace(truncated), "[") {
			truncated = "[" + truncated
		}
		if entries, ok := decodeEntries([]byte(truncated)); ok {
			return entries
		}
	}

	return nil
}

// salvageFields is the permissive last resort: match the required field shape
// anywhere in the text and unescape each capture manually.
func salvageFields(text string) []Entry {
	var entries []Entry
	for _, m := range fieldSalvageRe.FindAllStringSubmatch(text, -1) {
		entries = append(entries, entryJSON{
			Speaker:  m[1],
			Text:     unescapeSalvaged(m[2]),
			Instruct: unescapeSalvaged(m[3]),
		}.toEntry())
	}
	return entries
}

func unescapeSalvaged(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	return s
}
