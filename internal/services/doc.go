// Package services defines the error taxonomy shared by external service
// clients (completion, rendering) and the orchestrator. Subpackages hold the
// concrete clients.
package services
