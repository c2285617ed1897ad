package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/mnemos/mnemos/internal/adapters/metrics"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/llm"
	"github.com/mnemos/mnemos/internal/ports"
)

// LLMClient is the slice of the LLM client the agent needs. Review and
// neutralize prompts run at temperature 0 on the same model the user chats
// with.
type LLMClient interface {
	ChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.Tool) (*llm.ChatCompletionResponse, error)
	ChatWithTemperature(ctx context.Context, messages []llm.ChatMessage, temperature float64) (*llm.ChatCompletionResponse, error)
}

// Executor runs memory tools on behalf of one chat request. Tool failures
// are reported back to the model as strings, never as errors, so the loop
// can continue and the model can explain what went wrong.
type Executor struct {
	memories       ports.MemoryService
	llm            LLMClient
	userID         string
	conversationID string
	settings       *models.LLMSettings
}

func NewExecutor(memories ports.MemoryService, llmClient LLMClient, userID, conversationID string, settings *models.LLMSettings) *Executor {
	return &Executor{
		memories:       memories,
		llm:            llmClient,
		userID:         userID,
		conversationID: conversationID,
		settings:       settings,
	}
}

func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) string {
	log.Printf("[agent] executing tool: %s | args: %v", name, args)
	if e.memories == nil {
		return "错误：记忆模块未初始化。"
	}

	start := time.Now()
	result, err := e.dispatch(ctx, name, args)
	metrics.ToolExecutionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ToolExecutionsTotal.WithLabelValues(name, "error").Inc()
		log.Printf("[agent] tool failed: %s, error: %v", name, err)
		return fmt.Sprintf("工具执行出错: %s", err)
	}
	metrics.ToolExecutionsTotal.WithLabelValues(name, "ok").Inc()
	return result
}

func (e *Executor) dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "add_local_memory":
		return e.addMemory(ctx, models.MemoryScopeLocal, stringArg(args, "content"))
	case "add_global_memory":
		return e.addMemory(ctx, models.MemoryScopeGlobal, stringArg(args, "content"))
	case "search_local_memories":
		return e.searchMemories(ctx, models.MemoryScopeLocal, stringArg(args, "query"))
	case "search_global_memories":
		return e.searchMemories(ctx, models.MemoryScopeGlobal, stringArg(args, "query"))
	case "delete_memory":
		return e.deleteMemory(ctx, stringArg(args, "content"))
	default:
		return fmt.Sprintf("未知工具: %s", name), nil
	}
}

func (e *Executor) addMemory(ctx context.Context, scope, content string) (string, error) {
	var metadata map[string]any
	if scope == models.MemoryScopeGlobal {
		metadata = map[string]any{"source_conversation_id": e.conversationID}
	}

	if _, err := e.memories.AddMemory(ctx, content, e.userID, e.conversationID, scope, metadata, e.settings); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s记忆已添加。", scopeLabel(scope)), nil
}

// searchOutput is the JSON blob handed back to the model. Graph edges are
// listed separately so the model can reason over connections the vector
// hits miss, and spot residue after a delete.
type searchOutput struct {
	RelevantMemories          []string `json:"relevant_memories"`
	KnowledgeGraphConnections []string `json:"knowledge_graph_connections"`
}

func (e *Executor) searchMemories(ctx context.Context, scope, query string) (string, error) {
	res, err := e.memories.SearchMemories(ctx, query, e.userID, e.conversationID, scope, 5, e.settings)
	if err != nil {
		return "", err
	}

	output := searchOutput{
		RelevantMemories:          make([]string, 0, len(res.Results)),
		KnowledgeGraphConnections: make([]string, 0, len(res.Relations)),
	}
	for _, m := range res.Results {
		output.RelevantMemories = append(output.RelevantMemories, m.Content)
	}
	for _, rel := range res.Relations {
		output.KnowledgeGraphConnections = append(output.KnowledgeGraphConnections, rel.Render())
	}

	data, err := json.Marshal(output)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s搜索结果: %s", scopeLabel(scope), data), nil
}

type deleteCandidate struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Scope   string `json:"scope"`
}

const reviewPromptTemplate = `用户指令：删除 "%s"
候选记忆：
%s

请判断哪些条目必须删除？（仅删除事实匹配的）。
返回ID列表 JSON，如 ["id1"]。
注意：如果是 [图谱残留] 条目，不需要返回ID（因为它没法直接删），但这意味着我们需要执行重置操作。`

const neutralizePromptTemplate = `你是一个知识图谱修复专家。用户刚刚删除了关于 "%s" 的信息。

为了切断图谱中的旧连接，你需要生成一条“重置声明”。

【绝对规则】
1. **主语必须是“用户”**：严禁在声明中再次提及被删除的具体名字或实体！
2. **仅重置被删属性**：只重置被删除的那一项属性。

示例：删除了“我叫张三” -> 输出：“用户的名字未知”
示例：删除了“我住在北京” -> 输出：“用户的居住地未知”

请生成这句重置声明，不要任何其他废话。`

// deleteMemory removes matching facts from both scopes and repairs the
// knowledge graph. Physically deleting a vector record leaves its graph
// edges behind; a neutralizing statement ingested through the normal add
// pipeline overwrites those edges with an unknown value.
func (e *Executor) deleteMemory(ctx context.Context, query string) (string, error) {
	candidates := make([]deleteCandidate, 0)

	localRes, err := e.memories.SearchMemories(ctx, query, e.userID, e.conversationID, models.MemoryScopeLocal, 10, e.settings)
	if err != nil {
		return "", err
	}
	candidates = append(candidates, collectCandidates(localRes, "局部")...)

	globalRes, err := e.memories.SearchMemories(ctx, query, e.userID, e.conversationID, models.MemoryScopeGlobal, 10, e.settings)
	if err != nil {
		return "", err
	}
	candidates = append(candidates, collectCandidates(globalRes, "全局")...)

	if len(candidates) == 0 {
		return fmt.Sprintf("未找到与 '%s' 相关的记忆。", query), nil
	}

	idsToDelete := e.reviewCandidates(ctx, query, candidates)

	deleted := make([]string, 0)
	for _, id := range idsToDelete {
		if id == "graph_only" {
			continue
		}
		target := findCandidate(candidates, id)
		if target == nil {
			continue
		}
		if err := e.memories.DeleteMemory(ctx, id, e.settings); err != nil {
			log.Printf("[agent] delete failed: id=%s, error: %v", id, err)
			continue
		}
		deleted = append(deleted, target.Content)
	}

	// Repair the graph when facts were removed, or when only residue
	// matched and nothing could be physically deleted.
	if len(deleted) > 0 || len(idsToDelete) == 0 {
		e.resetGraph(ctx, query)
	}

	return fmt.Sprintf("已删除 %d 条记忆，并同步更新了知识图谱状态。", len(deleted)), nil
}

var jsonArrayFence = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")

func (e *Executor) reviewCandidates(ctx context.Context, query string, candidates []deleteCandidate) []string {
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil
	}

	resp, err := e.llm.ChatWithTemperature(ctx, []llm.ChatMessage{
		{Role: "user", Content: fmt.Sprintf(reviewPromptTemplate, query, data)},
	}, 0)
	if err != nil {
		log.Printf("[agent] delete review failed: %v", err)
		return nil
	}

	content := resp.Content()
	if strings.Contains(content, "```") {
		m := jsonArrayFence.FindStringSubmatch(content)
		if m == nil {
			return nil
		}
		content = m[1]
	}

	var ids []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &ids); err != nil {
		return nil
	}
	return ids
}

func (e *Executor) resetGraph(ctx context.Context, query string) {
	resp, err := e.llm.ChatWithTemperature(ctx, []llm.ChatMessage{
		{Role: "user", Content: fmt.Sprintf(neutralizePromptTemplate, query)},
	}, 0)
	if err != nil {
		log.Printf("[agent] graph reset failed: %v", err)
		return
	}

	statement := strings.TrimSpace(resp.Content())
	if statement == "" {
		return
	}

	metadata := map[string]any{"type": "graph_reset", "source": "delete_tool"}

	if _, err := e.memories.AddMemory(ctx, statement, e.userID, e.conversationID, models.MemoryScopeGlobal, metadata, e.settings); err != nil {
		log.Printf("[agent] graph reset (global) failed: %v", err)
	} else {
		log.Printf("[agent] graph reset (global): %s", statement)
	}

	if e.conversationID != "" {
		if _, err := e.memories.AddMemory(ctx, statement, e.userID, e.conversationID, models.MemoryScopeLocal, metadata, e.settings); err != nil {
			log.Printf("[agent] graph reset (local) failed: %v", err)
		} else {
			log.Printf("[agent] graph reset (local): %s", statement)
		}
	}
}

func collectCandidates(res *models.MemorySearchResult, scope string) []deleteCandidate {
	out := make([]deleteCandidate, 0, len(res.Results)+len(res.Relations))
	for _, m := range res.Results {
		out = append(out, deleteCandidate{ID: m.ID, Content: m.Content, Scope: scope})
	}
	for _, rel := range res.Relations {
		out = append(out, deleteCandidate{
			ID:      "graph_only",
			Content: fmt.Sprintf("[%s图谱残留] %s", scope, rel.Render()),
			Scope:   scope,
		})
	}
	return out
}

func findCandidate(candidates []deleteCandidate, id string) *deleteCandidate {
	for i := range candidates {
		if candidates[i].ID == id {
			return &candidates[i]
		}
	}
	return nil
}

func scopeLabel(scope string) string {
	if scope == models.MemoryScopeLocal {
		return "局部"
	}
	return "全局"
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
