// Package agent runs the tool-calling loop of the memory assistant. The
// orchestrator is stateless across requests; conversation state lives in
// the message list assembled fresh for every call.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mnemos/mnemos/internal/adapters/metrics"
	"github.com/mnemos/mnemos/internal/llm"
)

const DefaultMaxTurns = 5

const systemPrompt = `你是一个拥有双层记忆系统的智能助手。

**记忆架构：**
1. **局部记忆**：当前对话上下文。
2. **全局记忆**：用户长期画像。

**能力说明：**
- 你的搜索结果包含 **文本 (Vector)** 和 **图谱 (Graph)**。请结合两者回答。
- **图谱优先**：如果文本记录被删了，但图谱里还有关系，说明记忆可能未清除干净，请以图谱信息为辅助参考，但如果图谱显示"Unknown"则表示确实不知道。

**操作策略：**
1. **存储 (Add)**：全量存储。
2. **修正 (Correction)**：信息变更时，直接用 ` + "`add`" + ` 覆盖。
3. **删除 (Delete)**：用户明确要求删除时调用。
4. **搜索 (Search)**：先搜局部，再搜全局。
`

// Orchestrator drives the model through up to maxTurns rounds of tool
// calls before forcing a final answer.
type Orchestrator struct {
	llm      LLMClient
	maxTurns int
}

func NewOrchestrator(llmClient LLMClient, maxTurns int) *Orchestrator {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Orchestrator{llm: llmClient, maxTurns: maxTurns}
}

// Run executes the agent loop and returns the final assistant text. It
// never returns an error; failures become user-visible messages so a
// reply is always produced.
func (o *Orchestrator) Run(ctx context.Context, executor *Executor, history []llm.ChatMessage, userMessage string) string {
	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.ChatMessage{Role: "user", Content: userMessage})

	tools := Tools()

	for turn := 0; turn < o.maxTurns; turn++ {
		resp, err := o.llm.ChatWithTools(ctx, messages, tools)
		if err != nil {
			metrics.AgentTurnsTotal.WithLabelValues("error").Inc()
			return fmt.Sprintf("处理错误: %s", err)
		}

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			metrics.AgentTurnsTotal.WithLabelValues("final").Inc()
			return resp.Content()
		}
		metrics.AgentTurnsTotal.WithLabelValues("tool_calls").Inc()

		messages = append(messages, resp.Choices[0].Message)

		// Tools run concurrently, but results are appended in the order
		// of the model's tool_calls so call and result stay paired.
		results := make([]string, len(calls))
		var wg sync.WaitGroup
		for i, call := range calls {
			wg.Add(1)
			go func(i int, call llm.ToolCall) {
				defer wg.Done()
				var args map[string]any
				if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
					args = map[string]any{}
				}
				results[i] = executor.Execute(ctx, call.Function.Name, args)
			}(i, call)
		}
		wg.Wait()

		for i, call := range calls {
			messages = append(messages, llm.ChatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    results[i],
			})
		}
	}

	metrics.AgentTurnsTotal.WithLabelValues("exhausted").Inc()
	return "思考超时。"
}
