// Package script models annotated script entries, recovers them from raw
// language-model completions, and packs them into bounded speaker-homogeneous
// chunks.
//
// Model completions are unreliable: they may open with reasoning tags, wrap
// the payload in markdown fences, truncate mid-array at the token limit, or
// leak raw control characters into string literals. Recover applies a layered
// sequence of extraction and repair strategies and gives up only when every
// strategy fails.
package script
