// Package config loads, normalizes, and validates cinecast's TOML
// configuration. Loading always starts from repository defaults so a missing
// file yields a fully usable configuration pointed at the current directory.
package config
