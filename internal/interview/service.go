// Package interview implements the interview lifecycle: starting sessions,
// exchanging turns with the completion API, and ending sessions with
// best-effort article recommendation.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/designdrill/designdrill/internal/composer"
	"github.com/designdrill/designdrill/internal/openai"
	"github.com/designdrill/designdrill/internal/storage"
)

const (
	// FallbackQuestion is used when a session is started without a question.
	FallbackQuestion = "Design a URL shortener"

	replyMaxTokens   = 500
	replyTemperature = 0.7
)

// Completer is the completion capability the service talks to.
type Completer interface {
	ChatCompletion(ctx context.Context, req openai.Request) (string, error)
}

// MediaStore persists uploaded images and reads them back at assembly time.
type MediaStore interface {
	Save(data []byte, ext string) (string, error)
	Load(locator string) ([]byte, error)
}

// Recommender generates article recommendations for an ended interview.
// Failures are reported through the returned error but never fail the caller.
type Recommender interface {
	Generate(ctx context.Context, iv storage.Interview) error
}

// Service owns interview state transitions and the conversational exchange.
type Service struct {
	store       *storage.Store
	llm         Completer
	media       MediaStore
	recommender Recommender
	model       string
	now         func() time.Time
}

// NewService wires the interview service. model is the completion model used
// for interview replies; it must accept image content.
func NewService(store *storage.Store, llm Completer, media MediaStore, recommender Recommender, model string) *Service {
	return &Service{
		store:       store,
		llm:         llm,
		media:       media,
		recommender: recommender,
		model:       model,
		now:         time.Now,
	}
}

// View is an interview with its nested representations, as serialized to
// clients.
type View struct {
	storage.Interview
	Messages            []storage.Message          `json:"messages"`
	RecommendedArticles []storage.InterviewArticle `json:"recommended_articles"`
}

// Upload is one image attached to an outgoing message.
type Upload struct {
	Data []byte
	Ext  string
}

// SendResult carries the pair of messages produced by one exchange.
type SendResult struct {
	UserMessage storage.Message `json:"user_message"`
	AIMessage   storage.Message `json:"ai_response"`
}

// Start creates a new active interview and seeds the assistant greeting. An
// empty question falls back to the fixed default.
func (s *Service) Start(ctx context.Context, question string) (View, error) {
	if question == "" {
		question = FallbackQuestion
	}

	now := s.now()
	iv := storage.Interview{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
		Question:  question,
	}
	if err := s.store.CreateInterview(iv); err != nil {
		return View{}, fmt.Errorf("creating interview: %w", err)
	}

	greeting := storage.Message{
		ID:          uuid.New().String(),
		InterviewID: iv.ID,
		Role:        storage.RoleAssistant,
		Content: fmt.Sprintf(
			"Hello! I'm your System Design interviewer. Let's begin with today's question: %s. Please start by asking any clarifying questions you have about the requirements.",
			iv.Question,
		),
		Timestamp: s.now(),
	}
	if err := s.store.CreateMessage(greeting); err != nil {
		return View{}, fmt.Errorf("creating greeting message: %w", err)
	}

	slog.Info("interview started", "interview_id", iv.ID, "question", iv.Question)
	return s.view(iv)
}

// Send appends a user turn (with any uploaded images) to an active interview,
// runs the assembled conversation through the completion API, and persists the
// assistant reply. If the completion call fails the user message stays
// committed and the error is surfaced; the caller retries by sending again.
func (s *Service) Send(ctx context.Context, interviewID, content string, images []Upload) (SendResult, error) {
	iv, err := s.store.GetActiveInterview(interviewID)
	if err != nil {
		return SendResult{}, err
	}

	userMsg := storage.Message{
		ID:          uuid.New().String(),
		InterviewID: iv.ID,
		Role:        storage.RoleUser,
		Content:     content,
		Timestamp:   s.now(),
	}
	if err := s.store.CreateMessage(userMsg); err != nil {
		return SendResult{}, fmt.Errorf("creating user message: %w", err)
	}

	for _, img := range images {
		locator, err := s.media.Save(img.Data, img.Ext)
		if err != nil {
			return SendResult{}, fmt.Errorf("storing image: %w", err)
		}
		upload := storage.ImageUpload{
			ID:         uuid.New().String(),
			MessageID:  userMsg.ID,
			Image:      locator,
			UploadedAt: s.now(),
		}
		if err := s.store.CreateImageUpload(upload); err != nil {
			return SendResult{}, fmt.Errorf("recording image upload: %w", err)
		}
		userMsg.Images = append(userMsg.Images, upload)
	}

	history, err := s.store.ListMessages(iv.ID)
	if err != nil {
		return SendResult{}, fmt.Errorf("loading history: %w", err)
	}

	conversation := composer.Assemble(composer.InterviewSystemPrompt, history, s.media)

	reply, err := s.llm.ChatCompletion(ctx, openai.Request{
		Model:       s.model,
		Messages:    conversation,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		// The user message is not rolled back; the record of what was asked
		// survives a failed completion.
		return SendResult{}, fmt.Errorf("completion: %w", err)
	}

	aiMsg := storage.Message{
		ID:          uuid.New().String(),
		InterviewID: iv.ID,
		Role:        storage.RoleAssistant,
		Content:     reply,
		Timestamp:   s.now(),
	}
	if err := s.store.CreateMessage(aiMsg); err != nil {
		return SendResult{}, fmt.Errorf("creating assistant message: %w", err)
	}
	aiMsg.Images = []storage.ImageUpload{}
	if userMsg.Images == nil {
		userMsg.Images = []storage.ImageUpload{}
	}

	return SendResult{UserMessage: userMsg, AIMessage: aiMsg}, nil
}

// End marks the interview ended and triggers recommendation generation.
// Ending twice is idempotent, and a recommendation failure never prevents the
// interview from ending.
func (s *Service) End(ctx context.Context, interviewID string) (View, error) {
	if err := s.store.EndInterview(interviewID, s.now()); err != nil {
		return View{}, err
	}

	iv, err := s.store.GetInterview(interviewID)
	if err != nil {
		return View{}, err
	}

	if err := s.recommender.Generate(ctx, iv); err != nil {
		slog.Error("article recommendation generation failed", "interview_id", iv.ID, "error", err)
	}

	return s.view(iv)
}

// Get returns one interview with messages and recommended articles.
func (s *Service) Get(ctx context.Context, interviewID string) (View, error) {
	iv, err := s.store.GetInterview(interviewID)
	if err != nil {
		return View{}, err
	}
	return s.view(iv)
}

// List returns all interviews, newest first, each with its nested
// representations.
func (s *Service) List(ctx context.Context) ([]View, error) {
	interviews, err := s.store.ListInterviews()
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(interviews))
	for _, iv := range interviews {
		v, err := s.view(iv)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) view(iv storage.Interview) (View, error) {
	messages, err := s.store.ListMessages(iv.ID)
	if err != nil {
		return View{}, fmt.Errorf("loading messages: %w", err)
	}
	if messages == nil {
		messages = []storage.Message{}
	}
	articles, err := s.store.ListInterviewArticles(iv.ID)
	if err != nil {
		return View{}, fmt.Errorf("loading recommended articles: %w", err)
	}
	return View{Interview: iv, Messages: messages, RecommendedArticles: articles}, nil
}
