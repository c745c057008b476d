// Package articlechat runs per-article discussion sessions spawned from an
// interview's recommendations. Each (interview, article) pair gets at most
// one chat; chats reuse the same assemble-and-complete cycle as interviews,
// scoped to a single article's context and without images.
package articlechat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/designdrill/designdrill/internal/composer"
	"github.com/designdrill/designdrill/internal/openai"
	"github.com/designdrill/designdrill/internal/storage"
)

const (
	replyMaxTokens   = 500
	replyTemperature = 0.7
)

// Completer is the completion capability the chat talks to.
type Completer interface {
	ChatCompletion(ctx context.Context, req openai.Request) (string, error)
}

// Service manages article chats and their message exchange.
type Service struct {
	store *storage.Store
	llm   Completer
	model string
	now   func() time.Time
}

// NewService wires the article chat service with the given completion model.
func NewService(store *storage.Store, llm Completer, model string) *Service {
	return &Service{store: store, llm: llm, model: model, now: time.Now}
}

// View is a chat with its article and message list, as serialized to clients.
type View struct {
	storage.ArticleChat
	Article  storage.Article          `json:"article"`
	Messages []storage.ArticleMessage `json:"messages"`
}

// SendResult carries the pair of messages produced by one exchange.
type SendResult struct {
	UserMessage storage.ArticleMessage `json:"user_message"`
	AIMessage   storage.ArticleMessage `json:"ai_response"`
}

// Start get-or-creates the chat for the (interview, article) pair. Both the
// interview and the article must exist. The assistant greeting naming the
// article is seeded exactly once, on first creation.
func (s *Service) Start(ctx context.Context, interviewID, articleID string) (View, error) {
	if _, err := s.store.GetInterview(interviewID); err != nil {
		return View{}, err
	}
	article, err := s.store.GetArticle(articleID)
	if err != nil {
		return View{}, err
	}

	chat, created, err := s.store.GetOrCreateArticleChat(storage.ArticleChat{
		ID:          uuid.New().String(),
		InterviewID: interviewID,
		ArticleID:   articleID,
		CreatedAt:   s.now(),
		IsActive:    true,
	})
	if err != nil {
		return View{}, fmt.Errorf("creating article chat: %w", err)
	}

	if created {
		greeting := storage.ArticleMessage{
			ID:     uuid.New().String(),
			ChatID: chat.ID,
			Role:   storage.RoleAssistant,
			Content: fmt.Sprintf(
				"Hello! I'm here to help you discuss the article '%s'. What would you like to know about it?",
				article.Title,
			),
			Timestamp: s.now(),
		}
		if err := s.store.CreateArticleMessage(greeting); err != nil {
			return View{}, fmt.Errorf("creating greeting message: %w", err)
		}
	}

	return s.view(chat, article)
}

// Send appends a user turn to an active chat, completes against the article's
// context, and persists the assistant reply. As with interviews, a failed
// completion leaves the user message committed.
func (s *Service) Send(ctx context.Context, chatID, content string) (SendResult, error) {
	chat, err := s.store.GetActiveArticleChat(chatID)
	if err != nil {
		return SendResult{}, err
	}
	article, err := s.store.GetArticle(chat.ArticleID)
	if err != nil {
		return SendResult{}, err
	}

	userMsg := storage.ArticleMessage{
		ID:        uuid.New().String(),
		ChatID:    chat.ID,
		Role:      storage.RoleUser,
		Content:   content,
		Timestamp: s.now(),
	}
	if err := s.store.CreateArticleMessage(userMsg); err != nil {
		return SendResult{}, fmt.Errorf("creating user message: %w", err)
	}

	history, err := s.store.ListArticleMessages(chat.ID)
	if err != nil {
		return SendResult{}, fmt.Errorf("loading history: %w", err)
	}

	conversation := composer.AssembleArticle(composer.ArticleSystemPrompt(article), history)

	reply, err := s.llm.ChatCompletion(ctx, openai.Request{
		Model:       s.model,
		Messages:    conversation,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("completion: %w", err)
	}

	aiMsg := storage.ArticleMessage{
		ID:        uuid.New().String(),
		ChatID:    chat.ID,
		Role:      storage.RoleAssistant,
		Content:   reply,
		Timestamp: s.now(),
	}
	if err := s.store.CreateArticleMessage(aiMsg); err != nil {
		return SendResult{}, fmt.Errorf("creating assistant message: %w", err)
	}

	return SendResult{UserMessage: userMsg, AIMessage: aiMsg}, nil
}

// End marks the chat inactive. Ending twice is idempotent; the transcript
// stays readable through Get.
func (s *Service) End(ctx context.Context, chatID string) (View, error) {
	if err := s.store.EndArticleChat(chatID); err != nil {
		return View{}, err
	}
	return s.Get(ctx, chatID)
}

// Get returns one chat with its article and messages.
func (s *Service) Get(ctx context.Context, chatID string) (View, error) {
	chat, err := s.store.GetArticleChat(chatID)
	if err != nil {
		return View{}, err
	}
	article, err := s.store.GetArticle(chat.ArticleID)
	if err != nil {
		return View{}, err
	}
	return s.view(chat, article)
}

func (s *Service) view(chat storage.ArticleChat, article storage.Article) (View, error) {
	messages, err := s.store.ListArticleMessages(chat.ID)
	if err != nil {
		return View{}, fmt.Errorf("loading messages: %w", err)
	}
	return View{ArticleChat: chat, Article: article, Messages: messages}, nil
}
