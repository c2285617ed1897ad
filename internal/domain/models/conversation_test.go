package models

import (
	"strings"
	"testing"
)

func TestNewConversationDefaultsTitle(t *testing.T) {
	conv := NewConversation("cv_1", "usr_1", "")
	if conv.Title != DefaultConversationTitle {
		t.Errorf("title = %q, want %q", conv.Title, DefaultConversationTitle)
	}
	if !conv.NeedsTitle() {
		t.Error("placeholder title should report NeedsTitle")
	}

	named := NewConversation("cv_2", "usr_1", "旅行计划")
	if named.NeedsTitle() {
		t.Error("explicit title should not report NeedsTitle")
	}
}

func TestRecordExchange(t *testing.T) {
	conv := NewConversation("cv_1", "usr_1", "")

	conv.RecordExchange()
	conv.RecordExchange()

	if conv.MessageCount != 4 {
		t.Errorf("message_count = %d, want 4", conv.MessageCount)
	}
	if conv.LastMessageAt == nil {
		t.Error("last_message_at should be set")
	}
}

func TestDeriveTitle(t *testing.T) {
	conv := NewConversation("cv_1", "usr_1", "")

	conv.DeriveTitle("帮我规划一下去日本的行程")
	if conv.Title != "帮我规划一下去日本的行程" {
		t.Errorf("title = %q", conv.Title)
	}

	// A second derivation must not overwrite the existing title
	conv.DeriveTitle("换个话题")
	if conv.Title != "帮我规划一下去日本的行程" {
		t.Errorf("title overwritten: %q", conv.Title)
	}
}

func TestDeriveTitleTruncatesLongMessages(t *testing.T) {
	conv := NewConversation("cv_1", "usr_1", "")
	long := strings.Repeat("长", 50)

	conv.DeriveTitle(long)
	if got := len([]rune(conv.Title)); got != 30 {
		t.Errorf("title length = %d runes, want 30", got)
	}
}

func TestRenameClearsPlaceholder(t *testing.T) {
	conv := NewConversation("cv_1", "usr_1", "")
	conv.Rename("正式标题")
	if conv.Title != "正式标题" || conv.NeedsTitle() {
		t.Errorf("unexpected state after rename: %q", conv.Title)
	}
}

func TestMessageEditRules(t *testing.T) {
	user := NewMessage("msg_1", "cv_1", MessageRoleUser, "原始内容")
	if err := user.Edit("修改后"); err != nil {
		t.Fatalf("user message edit failed: %v", err)
	}
	if user.Content != "修改后" {
		t.Errorf("content = %q", user.Content)
	}

	assistant := NewMessage("msg_2", "cv_1", MessageRoleAssistant, "助手回复")
	if err := assistant.Edit("篡改"); err == nil {
		t.Error("assistant message edit should fail")
	}
	if err := user.Edit(""); err == nil {
		t.Error("empty content edit should fail")
	}
}

func TestDropMessageStopsAtZero(t *testing.T) {
	conv := NewConversation("cv_1", "usr_1", "")
	conv.RecordExchange()

	conv.DropMessage()
	if conv.MessageCount != 1 {
		t.Errorf("count = %d, want 1", conv.MessageCount)
	}

	conv.DropMessage()
	conv.DropMessage()
	if conv.MessageCount != 0 {
		t.Errorf("count = %d, want 0", conv.MessageCount)
	}
}
