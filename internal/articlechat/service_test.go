package articlechat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/designdrill/designdrill/internal/openai"
	"github.com/designdrill/designdrill/internal/storage"
)

type fakeCompleter struct {
	reply   string
	err     error
	lastReq openai.Request
}

func (f *fakeCompleter) ChatCompletion(ctx context.Context, req openai.Request) (string, error) {
	f.lastReq = req
	return f.reply, f.err
}

func newTestService(t *testing.T, llm Completer) (*Service, *storage.Store, storage.Interview, storage.Article) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	iv := storage.Interview{ID: "iv1", CreatedAt: now, UpdatedAt: now, IsActive: false, Question: "Design a feed"}
	if err := store.CreateInterview(iv); err != nil {
		t.Fatalf("creating interview: %v", err)
	}
	article, err := store.UpsertArticleByURL(storage.Article{
		ID:            "a1",
		Title:         "Pinterest's Recommendation Engine",
		URL:           "https://medium.com/pinterest-engineering/recommendation-engine",
		Source:        "pinterest",
		Summary:       "How Pinterest personalizes content.",
		KeyHighlights: []string{"ML algorithms"},
		CreatedAt:     now,
	})
	if err != nil {
		t.Fatalf("creating article: %v", err)
	}

	return NewService(store, llm, "gpt-4"), store, iv, article
}

func deactivateChat(t *testing.T, store *storage.Store, chatID string) {
	t.Helper()
	if err := store.EndArticleChat(chatID); err != nil {
		t.Fatalf("EndArticleChat: %v", err)
	}
}

func TestStartCreatesChatWithGreeting(t *testing.T) {
	svc, _, iv, article := newTestService(t, &fakeCompleter{})

	view, err := svc.Start(context.Background(), iv.ID, article.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !view.IsActive {
		t.Error("new chat should be active")
	}
	if view.Article.ID != article.ID {
		t.Errorf("article not attached: %+v", view.Article)
	}
	if len(view.Messages) != 1 {
		t.Fatalf("expected 1 greeting, got %d", len(view.Messages))
	}
	greeting := view.Messages[0]
	if greeting.Role != storage.RoleAssistant {
		t.Errorf("greeting role %q", greeting.Role)
	}
	if !strings.Contains(greeting.Content, article.Title) {
		t.Errorf("greeting does not name the article: %q", greeting.Content)
	}
}

func TestStartIsGetOrCreate(t *testing.T) {
	svc, _, iv, article := newTestService(t, &fakeCompleter{})

	first, err := svc.Start(context.Background(), iv.ID, article.ID)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := svc.Start(context.Background(), iv.ID, article.ID)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same chat, got %s and %s", first.ID, second.ID)
	}
	// The greeting is seeded exactly once.
	if len(second.Messages) != 1 {
		t.Errorf("expected 1 greeting after repeat Start, got %d", len(second.Messages))
	}
}

func TestStartMissingInterviewOrArticle(t *testing.T) {
	svc, _, iv, article := newTestService(t, &fakeCompleter{})

	if _, err := svc.Start(context.Background(), "missing", article.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing interview: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Start(context.Background(), iv.ID, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing article: expected ErrNotFound, got %v", err)
	}
}

func TestSendExchange(t *testing.T) {
	llm := &fakeCompleter{reply: "Sharding splits data across nodes."}
	svc, store, iv, article := newTestService(t, llm)

	view, err := svc.Start(context.Background(), iv.ID, article.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	result, err := svc.Send(context.Background(), view.ID, "What is sharding?")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.UserMessage.Content != "What is sharding?" {
		t.Errorf("user message wrong: %+v", result.UserMessage)
	}
	if result.AIMessage.Content != "Sharding splits data across nodes." {
		t.Errorf("assistant message wrong: %+v", result.AIMessage)
	}

	// System turn carries the article context.
	sys := llm.lastReq.Messages[0]
	if sys.Role != "system" {
		t.Fatalf("first turn should be system, got %q", sys.Role)
	}
	if text, ok := sys.Content.(string); !ok || !strings.Contains(text, article.Title) {
		t.Errorf("system turn missing article context: %v", sys.Content)
	}
	if llm.lastReq.Model != "gpt-4" {
		t.Errorf("expected article model, got %q", llm.lastReq.Model)
	}

	msgs, err := store.ListArticleMessages(view.ID)
	if err != nil {
		t.Fatalf("ListArticleMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Errorf("expected greeting + 2 turns persisted, got %d", len(msgs))
	}
}

func TestSendInactiveChat(t *testing.T) {
	svc, store, iv, article := newTestService(t, &fakeCompleter{reply: "ok"})

	view, err := svc.Start(context.Background(), iv.ID, article.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	deactivateChat(t, store, view.ID)

	if _, err := svc.Send(context.Background(), view.ID, "hello"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Send on inactive chat: expected ErrNotFound, got %v", err)
	}
}

func TestSendCompletionFailureKeepsUserMessage(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("upstream down")}
	svc, store, iv, article := newTestService(t, llm)

	view, err := svc.Start(context.Background(), iv.ID, article.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := svc.Send(context.Background(), view.ID, "hello?"); err == nil {
		t.Fatal("expected completion error")
	}

	msgs, err := store.ListArticleMessages(view.ID)
	if err != nil {
		t.Fatalf("ListArticleMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected greeting + user message, got %d", len(msgs))
	}
	if msgs[1].Content != "hello?" {
		t.Errorf("user message not persisted: %+v", msgs[1])
	}
}

func TestEndChatIdempotent(t *testing.T) {
	svc, _, iv, article := newTestService(t, &fakeCompleter{})

	view, err := svc.Start(context.Background(), iv.ID, article.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	ended, err := svc.End(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if ended.IsActive {
		t.Error("ended chat still active")
	}
	if _, err := svc.End(context.Background(), view.ID); err != nil {
		t.Errorf("second End should succeed: %v", err)
	}
	if _, err := svc.End(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("End(missing): expected ErrNotFound, got %v", err)
	}
}

func TestGetInactiveChatStillReadable(t *testing.T) {
	svc, store, iv, article := newTestService(t, &fakeCompleter{})

	view, err := svc.Start(context.Background(), iv.ID, article.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	deactivateChat(t, store, view.ID)

	got, err := svc.Get(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.IsActive {
		t.Error("chat should report inactive")
	}
	if len(got.Messages) != 1 {
		t.Errorf("history lost: %d messages", len(got.Messages))
	}
}
