package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/llm"
	"github.com/mnemos/mnemos/internal/ports"
)

type fakeMemoryRepo struct {
	mu       sync.Mutex
	memories map[string]*models.Memory
	deleted  []string
}

func newFakeMemoryRepo() *fakeMemoryRepo {
	return &fakeMemoryRepo{memories: make(map[string]*models.Memory)}
}

func (f *fakeMemoryRepo) Create(ctx context.Context, mem *models.Memory, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memories[mem.ID] = mem
	return nil
}

func (f *fakeMemoryRepo) GetByID(ctx context.Context, id string) (*models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memories[id]; ok {
		return m, nil
	}
	return nil, domain.ErrMemoryNotFound
}

func (f *fakeMemoryRepo) ListByNamespace(ctx context.Context, namespace string, limit int) ([]*models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Memory, 0)
	for _, m := range f.memories {
		if m.Namespace == namespace {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMemoryRepo) SearchByEmbedding(ctx context.Context, namespace string, embedding []float32, limit int) ([]*models.Memory, error) {
	return f.ListByNamespace(ctx, namespace, limit)
}

func (f *fakeMemoryRepo) Update(ctx context.Context, id, content string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return domain.ErrMemoryNotFound
	}
	m.Content = content
	return nil
}

func (f *fakeMemoryRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.memories[id]; !ok {
		return domain.ErrMemoryNotFound
	}
	delete(f.memories, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeMemoryRepo) DeleteByNamespace(ctx context.Context, namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.memories {
		if m.Namespace == namespace {
			delete(f.memories, id)
		}
	}
	return nil
}

type fakeRelationRepo struct {
	mu    sync.Mutex
	edges map[string]models.Relation // key namespace|source|relationship
	byMem map[string][]string
}

func newFakeRelationRepo() *fakeRelationRepo {
	return &fakeRelationRepo{edges: make(map[string]models.Relation), byMem: make(map[string][]string)}
}

func edgeKey(namespace string, rel models.Relation) string {
	return namespace + "|" + rel.Source + "|" + rel.Relationship
}

func (f *fakeRelationRepo) Upsert(ctx context.Context, namespace string, rel models.Relation, memoryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := edgeKey(namespace, rel)
	f.edges[key] = rel
	f.byMem[memoryID] = append(f.byMem[memoryID], key)
	return nil
}

func (f *fakeRelationRepo) ListByNamespace(ctx context.Context, namespace string, limit int) ([]models.Relation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Relation, 0)
	for key, rel := range f.edges {
		if len(key) >= len(namespace) && key[:len(namespace)] == namespace {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (f *fakeRelationRepo) ListByEntities(ctx context.Context, namespace string, entities []string, limit int) ([]models.Relation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Relation, 0)
	for key, rel := range f.edges {
		if len(key) < len(namespace) || key[:len(namespace)] != namespace {
			continue
		}
		for _, e := range entities {
			if rel.Source == e || rel.Destination == e {
				out = append(out, rel)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRelationRepo) DeleteByMemoryID(ctx context.Context, memoryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range f.byMem[memoryID] {
		delete(f.edges, key)
	}
	delete(f.byMem, memoryID)
	return nil
}

func (f *fakeRelationRepo) DeleteByNamespace(ctx context.Context, namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.edges {
		if len(key) >= len(namespace) && key[:len(namespace)] == namespace {
			delete(f.edges, key)
		}
	}
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) (*ports.EmbeddingResult, error) {
	return &ports.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, Dimensions: 3}, nil
}

func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]*ports.EmbeddingResult, error) {
	out := make([]*ports.EmbeddingResult, len(texts))
	for i := range texts {
		out[i] = &ports.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, Dimensions: 3}
	}
	return out, nil
}

func (fakeEmbedder) GetDimensions() int { return 3 }

// scriptedChat returns canned responses in order.
type scriptedChat struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
}

func (s *scriptedChat) Chat(ctx context.Context, messages []llm.ChatMessage) (*llm.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, messages[len(messages)-1].Content)
	if len(s.responses) == 0 {
		return nil, fmt.Errorf("no scripted response left")
	}
	content := s.responses[0]
	s.responses = s.responses[1:]

	data, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	var resp llm.ChatCompletionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type seqIDs struct{ n int }

func (s *seqIDs) next(prefix string) string {
	s.n++
	return fmt.Sprintf("%s_%d", prefix, s.n)
}
func (s *seqIDs) GenerateUserID() string         { return s.next("usr") }
func (s *seqIDs) GenerateConversationID() string { return s.next("cv") }
func (s *seqIDs) GenerateMessageID() string      { return s.next("msg") }
func (s *seqIDs) GenerateMemoryID() string       { return s.next("mem") }
func (s *seqIDs) GenerateModelConfigID() string  { return s.next("mc") }

func TestAddExtractsFactsIntoEmptyNamespace(t *testing.T) {
	memRepo := newFakeMemoryRepo()
	relRepo := newFakeRelationRepo()
	chat := &scriptedChat{responses: []string{
		`{"facts": ["用户的名字是张三"]}`,
		`{"relations": [{"source": "用户", "relationship": "名字", "destination": "张三"}]}`,
	}}
	e := New(memRepo, relRepo, fakeEmbedder{}, chat, &seqIDs{})

	result, err := e.Add(context.Background(), []ports.StoreMessage{{Role: "user", Content: "我叫张三"}}, "usr_1", nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if len(result.Results) != 1 || result.Results[0].Event != models.MemoryEventAdd {
		t.Fatalf("expected one ADD event, got %+v", result.Results)
	}
	if len(result.Relations) != 1 || result.Relations[0].Destination != "张三" {
		t.Fatalf("expected one relation to 张三, got %+v", result.Relations)
	}
	if len(memRepo.memories) != 1 {
		t.Fatalf("expected one stored memory, got %d", len(memRepo.memories))
	}
}

func TestAddUpdatesExistingMemoryAndReplacesEdge(t *testing.T) {
	memRepo := newFakeMemoryRepo()
	relRepo := newFakeRelationRepo()

	existing := models.NewMemory("mem_old", "usr_1", "用户的名字是张三", nil)
	memRepo.memories[existing.ID] = existing
	relRepo.Upsert(context.Background(), "usr_1",
		models.Relation{Source: "用户", Relationship: "名字", Destination: "张三"}, "mem_old")

	chat := &scriptedChat{responses: []string{
		`{"facts": ["用户的名字是李四"]}`,
		`{"memory": [{"id": "mem_old", "text": "用户的名字是李四", "event": "UPDATE", "old_memory": "用户的名字是张三"}]}`,
		`{"relations": [{"source": "用户", "relationship": "名字", "destination": "李四"}]}`,
	}}
	e := New(memRepo, relRepo, fakeEmbedder{}, chat, &seqIDs{})

	result, err := e.Add(context.Background(), []ports.StoreMessage{{Role: "user", Content: "我改名叫李四了"}}, "usr_1", nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if len(result.Results) != 1 || result.Results[0].Event != models.MemoryEventUpdate {
		t.Fatalf("expected one UPDATE event, got %+v", result.Results)
	}
	if memRepo.memories["mem_old"].Content != "用户的名字是李四" {
		t.Fatalf("memory content not updated: %q", memRepo.memories["mem_old"].Content)
	}

	edges, _ := relRepo.ListByNamespace(context.Background(), "usr_1", 10)
	if len(edges) != 1 || edges[0].Destination != "李四" {
		t.Fatalf("edge not replaced, got %+v", edges)
	}
}

func TestAddIgnoresDecisionsWithUnknownIDs(t *testing.T) {
	memRepo := newFakeMemoryRepo()
	relRepo := newFakeRelationRepo()

	existing := models.NewMemory("mem_old", "usr_1", "用户喜欢咖啡", nil)
	memRepo.memories[existing.ID] = existing

	chat := &scriptedChat{responses: []string{
		`{"facts": ["用户喜欢茶"]}`,
		`{"memory": [{"id": "mem_invented", "text": "用户喜欢茶", "event": "UPDATE"}]}`,
	}}
	e := New(memRepo, relRepo, fakeEmbedder{}, chat, &seqIDs{})

	result, err := e.Add(context.Background(), []ports.StoreMessage{{Role: "user", Content: "我喜欢茶"}}, "usr_1", nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(result.Results) != 0 {
		t.Fatalf("hallucinated id should be dropped, got %+v", result.Results)
	}
}

func TestAddWithNoFactsIsNoop(t *testing.T) {
	chat := &scriptedChat{responses: []string{`{"facts": []}`}}
	e := New(newFakeMemoryRepo(), newFakeRelationRepo(), fakeEmbedder{}, chat, &seqIDs{})

	result, err := e.Add(context.Background(), []ports.StoreMessage{{Role: "user", Content: "你好"}}, "usr_1", nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(result.Results) != 0 {
		t.Fatalf("expected no events, got %+v", result.Results)
	}
}

func TestSearchReturnsVectorHitsAndEntityEdges(t *testing.T) {
	memRepo := newFakeMemoryRepo()
	relRepo := newFakeRelationRepo()

	mem := models.NewMemory("mem_1", "usr_1", "用户住在北京", nil)
	memRepo.memories[mem.ID] = mem
	relRepo.Upsert(context.Background(), "usr_1",
		models.Relation{Source: "用户", Relationship: "居住地", Destination: "北京"}, "mem_1")

	chat := &scriptedChat{responses: []string{`{"entities": ["用户", "北京"]}`}}
	e := New(memRepo, relRepo, fakeEmbedder{}, chat, &seqIDs{})

	result, err := e.Search(context.Background(), "用户住在哪里", "usr_1", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Results) != 1 {
		t.Fatalf("expected one vector hit, got %d", len(result.Results))
	}
	if len(result.Relations) != 1 || result.Relations[0].Render() != "用户 --[居住地]--> 北京" {
		t.Fatalf("expected rendered edge, got %+v", result.Relations)
	}
}

func TestSearchFallsBackToRecentEdges(t *testing.T) {
	memRepo := newFakeMemoryRepo()
	relRepo := newFakeRelationRepo()
	relRepo.Upsert(context.Background(), "usr_1",
		models.Relation{Source: "用户", Relationship: "职业", Destination: "教师"}, "mem_1")

	chat := &scriptedChat{responses: []string{`{"entities": []}`}}
	e := New(memRepo, relRepo, fakeEmbedder{}, chat, &seqIDs{})

	result, err := e.Search(context.Background(), "随便聊聊", "usr_1", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Relations) != 1 {
		t.Fatalf("expected fallback to recent edges, got %+v", result.Relations)
	}
}

func TestDeleteRemovesOwnEdgesOnly(t *testing.T) {
	memRepo := newFakeMemoryRepo()
	relRepo := newFakeRelationRepo()

	a := models.NewMemory("mem_a", "usr_1", "用户的名字是张三", nil)
	b := models.NewMemory("mem_b", "usr_1", "用户住在北京", nil)
	memRepo.memories[a.ID] = a
	memRepo.memories[b.ID] = b
	relRepo.Upsert(context.Background(), "usr_1",
		models.Relation{Source: "用户", Relationship: "名字", Destination: "张三"}, "mem_a")
	relRepo.Upsert(context.Background(), "usr_1",
		models.Relation{Source: "用户", Relationship: "居住地", Destination: "北京"}, "mem_b")

	e := New(memRepo, relRepo, fakeEmbedder{}, &scriptedChat{}, &seqIDs{})

	if err := e.Delete(context.Background(), "mem_a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	edges, _ := relRepo.ListByNamespace(context.Background(), "usr_1", 10)
	if len(edges) != 1 || edges[0].Relationship != "居住地" {
		t.Fatalf("expected only the other memory's edge to survive, got %+v", edges)
	}
	if _, ok := memRepo.memories["mem_a"]; ok {
		t.Fatal("memory not deleted")
	}
}

func TestExtractJSONHandlesFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"facts\": []}\n```":  `{"facts": []}`,
		"{\"facts\": []}":                `{"facts": []}`,
		"Here you go: {\"facts\": []}":   `{"facts": []}`,
		"```\n[{\"id\": \"x\"}]\n```":    `[{"id": "x"}]`,
	}
	for in, want := range cases {
		if got := extractJSON(in); got != want {
			t.Errorf("extractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
