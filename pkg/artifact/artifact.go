package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Artifact is an immutable record of one model output produced by a
// pipeline stage. The hash covers content and provenance so two runs
// producing the same text through the same adapter hash identically.
type Artifact struct {
	ID        string            `json:"id"`
	Stage     string            `json:"stage,omitempty"`
	Content   string            `json:"content"`
	Adapter   string            `json:"adapter"`
	Model     string            `json:"model"`
	Prompt    string            `json:"prompt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Hash      string            `json:"hash"`
}

// New creates an Artifact with a computed hash.
func New(content, adapter, model, prompt string) *Artifact {
	a := &Artifact{
		ID:        uuid.NewString(),
		Content:   content,
		Adapter:   adapter,
		Model:     model,
		Prompt:    prompt,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}
	a.Hash = a.computeHash()
	return a
}

// ForStage returns a copy attributed to the named pipeline stage.
func (a *Artifact) ForStage(stage string) *Artifact {
	copied := *a
	copied.Stage = stage
	copied.Metadata = copyMetadata(a.Metadata)
	return &copied
}

// WithMetadata returns a copy with an additional metadata entry.
func (a *Artifact) WithMetadata(key, value string) *Artifact {
	copied := *a
	copied.Metadata = copyMetadata(a.Metadata)
	copied.Metadata[key] = value
	return &copied
}

func (a *Artifact) computeHash() string {
	h := sha256.New()
	h.Write([]byte(a.Content))
	h.Write([]byte(a.Adapter))
	h.Write([]byte(a.Model))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
