package chunkstore

import "strings"

// Status represents the lifecycle of a chunk.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

var allStatuses = []Status{StatusPending, StatusGenerating, StatusDone, StatusError}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Chunk is one renderable unit of audiobook script: one speaker, one text
// span, one style instruction, with a lifecycle status. Ids are a dense,
// zero-based, order-preserving sequence at all times; AudioPath is set if and
// only if the chunk rendered successfully (it may go stale while a re-render
// of edited content is pending).
type Chunk struct {
	ID        int    `json:"id"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Instruct  string `json:"instruct"`
	Status    Status `json:"status"`
	AudioPath string `json:"audio_path,omitempty"`
}

// Clone returns a copy of the chunk.
func (c Chunk) Clone() Chunk { return c }

// HasText reports whether the chunk has renderable text.
func (c Chunk) HasText() bool { return strings.TrimSpace(c.Text) != "" }

// FieldPatch describes a partial chunk update. Nil fields are left untouched.
type FieldPatch struct {
	Speaker   *string
	Text      *string
	Instruct  *string
	Status    *Status
	AudioPath *string
}

func (p FieldPatch) apply(chunk *Chunk) {
	if p.Speaker != nil {
		chunk.Speaker = *p.Speaker
	}
	if p.Text != nil {
		chunk.Text = *p.Text
	}
	if p.Instruct != nil {
		chunk.Instruct = *p.Instruct
	}
	if p.Status != nil {
		chunk.Status = *p.Status
	}
	if p.AudioPath != nil {
		chunk.AudioPath = *p.AudioPath
	}
}

// touchesContent reports whether the patch edits speaker, text, or instruct.
func (p FieldPatch) touchesContent() bool {
	return p.Speaker != nil || p.Text != nil || p.Instruct != nil
}

func renumber(chunks []Chunk) {
	for i := range chunks {
		chunks[i].ID = i
	}
}

// StatusPtr is a convenience for building FieldPatch values.
func StatusPtr(status Status) *Status { return &status }

// StringPtr is a convenience for building FieldPatch values.
func StringPtr(value string) *string { return &value }
