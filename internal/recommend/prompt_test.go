package recommend

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/designdrill/designdrill/internal/storage"
)

func TestBuildPrompt(t *testing.T) {
	msgs := []storage.Message{
		{Role: storage.RoleAssistant, Content: "Hello! Let's design a feed."},
		{Role: storage.RoleUser, Content: "How many users?"},
	}

	prompt := BuildPrompt("Design a news feed", msgs)
	if !strings.Contains(prompt, "Interview Question: Design a news feed") {
		t.Errorf("question missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Conversation: Hello! Let's design a feed. How many users?") {
		t.Errorf("conversation missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, `"key_highlights"`) {
		t.Errorf("JSON format instructions missing:\n%s", prompt)
	}
}

func TestBuildPromptTruncatesConversation(t *testing.T) {
	long := strings.Repeat("a", maxConversationChars+500)
	prompt := BuildPrompt("Q", []storage.Message{{Content: long}})

	if strings.Contains(prompt, long) {
		t.Error("conversation was not truncated")
	}
	if !strings.Contains(prompt, strings.Repeat("a", maxConversationChars)) {
		t.Error("truncated conversation shorter than the limit")
	}
}

func TestTruncateRespectsRuneBoundary(t *testing.T) {
	// "日" is 3 bytes; a limit of 4 falls inside the second rune.
	s := "日本語"
	got := truncate(s, 4)
	if !utf8.ValidString(got) {
		t.Errorf("truncate split a rune: %q", got)
	}
	if got != "日" {
		t.Errorf("expected %q, got %q", "日", got)
	}
}
