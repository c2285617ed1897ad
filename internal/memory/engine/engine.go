// Package engine implements the vector plus graph memory store. Facts are
// extracted from conversation turns by an LLM, reconciled against their
// nearest neighbours in the namespace, and mirrored into a knowledge graph
// whose edges are keyed on (namespace, source, relationship) so that newer
// statements about the same attribute replace older ones.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/llm"
	"github.com/mnemos/mnemos/internal/ports"
)

const (
	reconcileNeighbours = 5
	relationLimit       = 15
)

// ChatClient is the slice of the LLM client the engine needs.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.ChatMessage) (*llm.ChatCompletionResponse, error)
}

// Engine implements ports.MemoryStore on Postgres with pgvector.
type Engine struct {
	memories  ports.MemoryRepository
	relations ports.RelationRepository
	embedder  ports.EmbeddingService
	chat      ChatClient
	ids       ports.IDGenerator
}

func New(memories ports.MemoryRepository, relations ports.RelationRepository, embedder ports.EmbeddingService, chat ChatClient, ids ports.IDGenerator) *Engine {
	return &Engine{
		memories:  memories,
		relations: relations,
		embedder:  embedder,
		chat:      chat,
		ids:       ids,
	}
}

// Add extracts facts from the messages, reconciles them against the
// namespace, and updates the knowledge graph. The returned result lists
// every ADD, UPDATE and DELETE that was applied.
func (e *Engine) Add(ctx context.Context, messages []ports.StoreMessage, namespace string, metadata map[string]any) (*models.MemoryAddResult, error) {
	facts, err := e.extractFacts(ctx, messages)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return &models.MemoryAddResult{Results: []models.MemoryEvent{}}, nil
	}

	decisions, err := e.reconcile(ctx, namespace, facts)
	if err != nil {
		return nil, err
	}

	result := &models.MemoryAddResult{Results: []models.MemoryEvent{}}
	for _, d := range decisions {
		switch d.Event {
		case models.MemoryEventAdd:
			id, err := e.addMemory(ctx, namespace, d.Text, metadata)
			if err != nil {
				return nil, err
			}
			result.Results = append(result.Results, models.MemoryEvent{ID: id, Text: d.Text, Event: models.MemoryEventAdd})
			rels, err := e.syncRelations(ctx, namespace, id, d.Text)
			if err != nil {
				log.Printf("[memory] relation sync failed: namespace=%s, error=%v", namespace, err)
			}
			result.Relations = append(result.Relations, rels...)

		case models.MemoryEventUpdate:
			if err := e.Update(ctx, d.ID, d.Text); err != nil {
				if err == domain.ErrMemoryNotFound {
					continue
				}
				return nil, err
			}
			result.Results = append(result.Results, models.MemoryEvent{ID: d.ID, Text: d.Text, Event: models.MemoryEventUpdate})
			rels, err := e.syncRelations(ctx, namespace, d.ID, d.Text)
			if err != nil {
				log.Printf("[memory] relation sync failed: namespace=%s, error=%v", namespace, err)
			}
			result.Relations = append(result.Relations, rels...)

		case models.MemoryEventDelete:
			if err := e.Delete(ctx, d.ID); err != nil && err != domain.ErrMemoryNotFound {
				return nil, err
			}
			result.Results = append(result.Results, models.MemoryEvent{ID: d.ID, Text: d.Text, Event: models.MemoryEventDelete})
		}
	}

	return result, nil
}

// Search returns the nearest memories by cosine similarity together with
// graph edges touching the entities named in the query. When no entities
// match, the most recently updated edges of the namespace are returned so
// the graph context is never empty while edges exist.
func (e *Engine) Search(ctx context.Context, query, namespace string, limit int) (*models.MemorySearchResult, error) {
	emb, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingsFailed, err)
	}

	hits, err := e.memories.SearchByEmbedding(ctx, namespace, emb.Embedding, limit)
	if err != nil {
		return nil, err
	}

	relations, err := e.searchRelations(ctx, query, namespace)
	if err != nil {
		log.Printf("[memory] graph search failed: namespace=%s, error=%v", namespace, err)
		relations = []models.Relation{}
	}

	return &models.MemorySearchResult{Results: hits, Relations: relations}, nil
}

func (e *Engine) GetAll(ctx context.Context, namespace string, limit int) (*models.MemorySearchResult, error) {
	memories, err := e.memories.ListByNamespace(ctx, namespace, limit)
	if err != nil {
		return nil, err
	}
	relations, err := e.relations.ListByNamespace(ctx, namespace, relationLimit)
	if err != nil {
		return nil, err
	}
	return &models.MemorySearchResult{Results: memories, Relations: relations}, nil
}

func (e *Engine) Update(ctx context.Context, id, content string) error {
	emb, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingsFailed, err)
	}
	return e.memories.Update(ctx, id, content, emb.Embedding)
}

// Delete removes the memory and the graph edges it produced. Edges written
// by other memories stay behind, which is why callers surface graph
// residue separately.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.relations.DeleteByMemoryID(ctx, id); err != nil {
		return err
	}
	return e.memories.Delete(ctx, id)
}

func (e *Engine) DeleteAll(ctx context.Context, namespace string) error {
	if err := e.relations.DeleteByNamespace(ctx, namespace); err != nil {
		return err
	}
	return e.memories.DeleteByNamespace(ctx, namespace)
}

func (e *Engine) extractFacts(ctx context.Context, messages []ports.StoreMessage) ([]string, error) {
	var transcript strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	resp, err := e.chat.Chat(ctx, []llm.ChatMessage{
		{Role: "system", Content: factExtractionPrompt},
		{Role: "user", Content: transcript.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLLMRequestFailed, err)
	}

	return parseFacts(resp.Content()), nil
}

func (e *Engine) reconcile(ctx context.Context, namespace string, facts []string) ([]memoryDecision, error) {
	seen := make(map[string]bool)
	var existing []*models.Memory

	for _, fact := range facts {
		emb, err := e.embedder.Embed(ctx, fact)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingsFailed, err)
		}
		neighbours, err := e.memories.SearchByEmbedding(ctx, namespace, emb.Embedding, reconcileNeighbours)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbours {
			if !seen[n.ID] {
				seen[n.ID] = true
				existing = append(existing, n)
			}
		}
	}

	// Nothing stored yet, every fact is an ADD without asking the LLM.
	if len(existing) == 0 {
		decisions := make([]memoryDecision, 0, len(facts))
		for _, f := range facts {
			decisions = append(decisions, memoryDecision{Text: f, Event: models.MemoryEventAdd})
		}
		return decisions, nil
	}

	resp, err := e.chat.Chat(ctx, []llm.ChatMessage{
		{Role: "user", Content: fmt.Sprintf(updateMemoryPrompt, renderExisting(existing), renderFacts(facts))},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLLMRequestFailed, err)
	}

	decisions := parseMemoryDecisions(resp.Content())
	valid := decisions[:0]
	for _, d := range decisions {
		switch d.Event {
		case models.MemoryEventAdd:
			valid = append(valid, d)
		case models.MemoryEventUpdate, models.MemoryEventDelete:
			if seen[d.ID] {
				valid = append(valid, d)
			}
		}
	}
	return valid, nil
}

func (e *Engine) addMemory(ctx context.Context, namespace, content string, metadata map[string]any) (string, error) {
	emb, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEmbeddingsFailed, err)
	}
	mem := models.NewMemory(e.ids.GenerateMemoryID(), namespace, content, metadata)
	if err := e.memories.Create(ctx, mem, emb.Embedding); err != nil {
		return "", err
	}
	return mem.ID, nil
}

// syncRelations extracts graph triples from a memory text and upserts
// them, replacing stale destinations for the same attribute.
func (e *Engine) syncRelations(ctx context.Context, namespace, memoryID, text string) ([]models.Relation, error) {
	resp, err := e.chat.Chat(ctx, []llm.ChatMessage{
		{Role: "user", Content: fmt.Sprintf(relationExtractionPrompt, text)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLLMRequestFailed, err)
	}

	parsed := parseRelations(resp.Content())
	relations := make([]models.Relation, 0, len(parsed))
	for _, p := range parsed {
		rel := models.Relation{Source: p.Source, Relationship: p.Relationship, Destination: p.Destination}
		if err := e.relations.Upsert(ctx, namespace, rel, memoryID); err != nil {
			return relations, err
		}
		relations = append(relations, rel)
	}
	return relations, nil
}

func (e *Engine) searchRelations(ctx context.Context, query, namespace string) ([]models.Relation, error) {
	resp, err := e.chat.Chat(ctx, []llm.ChatMessage{
		{Role: "user", Content: fmt.Sprintf(entityExtractionPrompt, query)},
	})
	if err != nil {
		return nil, err
	}

	entities := parseEntities(resp.Content())
	if len(entities) > 0 {
		relations, err := e.relations.ListByEntities(ctx, namespace, entities, relationLimit)
		if err != nil {
			return nil, err
		}
		if len(relations) > 0 {
			return relations, nil
		}
	}
	return e.relations.ListByNamespace(ctx, namespace, relationLimit)
}

func renderExisting(memories []*models.Memory) string {
	type entry struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	entries := make([]entry, 0, len(memories))
	for _, m := range memories {
		entries = append(entries, entry{ID: m.ID, Text: m.Content})
	}
	data, _ := json.MarshalIndent(entries, "", "  ")
	return string(data)
}

func renderFacts(facts []string) string {
	data, _ := json.Marshal(facts)
	return string(data)
}
