package agent

import "github.com/mnemos/mnemos/internal/llm"

func contentParam(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "description": description},
		},
		"required": []string{"content"},
	}
}

func queryParam() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "搜索关键词"},
		},
		"required": []string{"query"},
	}
}

// Tools returns the five memory tools exposed to the model.
func Tools() []llm.Tool {
	return []llm.Tool{
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        "add_local_memory",
				Description: "【存局部】保存仅与当前对话相关的细节。",
				Parameters:  contentParam("记忆内容"),
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        "add_global_memory",
				Description: "【存全局】保存用户的永久性事实。系统会自动更新知识图谱。",
				Parameters:  contentParam("记忆内容"),
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        "search_local_memories",
				Description: "【搜局部】同时返回文本记忆和图谱关系。",
				Parameters:  queryParam(),
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        "search_global_memories",
				Description: "【搜全局】同时返回文本记忆和图谱关系。",
				Parameters:  queryParam(),
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        "delete_memory",
				Description: "【删除记忆】用户要求'忘记'或'删除'时使用。会同时清理向量和图谱。",
				Parameters:  contentParam("要删除的具体事实描述"),
			},
		},
	}
}
