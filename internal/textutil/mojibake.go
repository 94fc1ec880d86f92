package textutil

import "strings"

// mojibakeReplacer maps the common artifacts of UTF-8 text decoded as
// Windows-1252, which ebook sources carry depressingly often.
var mojibakeReplacer = strings.NewReplacer(
	"â€™", "'",
	"â€˜", "'",
	"â€œ", "“",
	"â€", "”",
	"â€”", "—",
	"â€“", "–",
	"â€¦", "…",
	"Â ", " ",
	"Ã©", "é",
	"Ã¨", "è",
	"Ã¡", "á",
	"Ã³", "ó",
	"Ã±", "ñ",
	"Ã¼", "ü",
	"Ã¶", "ö",
	"Ã¤", "ä",
	"Ã§", "ç",
)

// RepairMojibake undoes the usual UTF-8-as-1252 decoding damage. Text without
// artifacts passes through unchanged.
func RepairMojibake(text string) string {
	if !strings.ContainsAny(text, "âÃÂ") {
		return text
	}
	return mojibakeReplacer.Replace(text)
}
