// Package textutil provides small text helpers shared across the pipeline:
// filesystem-safe tokens for rendered voiceline names and rune-safe previews
// for timeline labels.
package textutil
