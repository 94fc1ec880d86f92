// Package chunkstore owns the persisted chunk list, the single source of
// truth for the audiobook pipeline. Every mutation is a single critical
// section covering the whole read-modify-write-persist sequence, so
// concurrent callers can never lose each other's updates. Writes go to a
// temporary file followed by an atomic rename, retried with bounded backoff
// when another process transiently holds the target open. A lock file guards
// against mutation from other processes.
package chunkstore
