package models

import (
	"fmt"
	"time"
)

// Memory scopes
const (
	MemoryScopeLocal  = "local"
	MemoryScopeGlobal = "global"
)

// Reconciliation events produced when new facts are merged into a namespace.
const (
	MemoryEventAdd    = "ADD"
	MemoryEventUpdate = "UPDATE"
	MemoryEventDelete = "DELETE"
	MemoryEventNone   = "NONE"
)

// Memory is one extracted fact stored in a namespace of the memory store.
type Memory struct {
	ID        string         `json:"id"`
	Namespace string         `json:"-"`
	Content   string         `json:"memory"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Score     float64        `json:"score,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func NewMemory(id, namespace, content string, metadata map[string]any) *Memory {
	now := time.Now().UTC()
	return &Memory{
		ID:        id,
		Namespace: namespace,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Relation is one knowledge-graph edge derived from memory text.
type Relation struct {
	Source       string `json:"source"`
	Relationship string `json:"relationship"`
	Destination  string `json:"destination"`
}

// Render formats the edge the way it is presented to the LLM.
func (r Relation) Render() string {
	return fmt.Sprintf("%s --[%s]--> %s", r.Source, r.Relationship, r.Destination)
}

// MemoryEvent records what the reconciliation pass did with one fact.
type MemoryEvent struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Event string `json:"event"`
}

// MemoryAddResult is the outcome of ingesting content into a namespace.
type MemoryAddResult struct {
	Results   []MemoryEvent `json:"results"`
	Relations []Relation    `json:"relations"`
}

// MemorySearchResult carries vector hits together with graph edges. Callers
// must never discard the relations; the agent reasons over both.
type MemorySearchResult struct {
	Results   []*Memory  `json:"results"`
	Relations []Relation `json:"relations"`
}
