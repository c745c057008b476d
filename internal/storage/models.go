package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist (or is not
// active, for lookups scoped to active records).
var ErrNotFound = errors.New("not found")

// Message roles. The schema enforces these via a CHECK constraint.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Interview is one simulated system-design interview session.
type Interview struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsActive  bool      `json:"is_active"`
	Question  string    `json:"question"`
}

// Message is a single turn in an interview conversation. Messages are
// immutable once created and ordered by Timestamp ascending; the conversation
// assembler depends on that ordering.
type Message struct {
	ID          string        `json:"id"`
	InterviewID string        `json:"-"`
	Role        string        `json:"role"`
	Content     string        `json:"content"`
	Timestamp   time.Time     `json:"timestamp"`
	Images      []ImageUpload `json:"images"`
}

// ImageUpload is an image attached to a message. Image holds the media store
// locator, not the bytes; bytes are re-read at assembly time.
type ImageUpload struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"-"`
	Image      string    `json:"image"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Article is a recommended engineering-blog article. Articles are shared
// across interviews and deduplicated by URL.
type Article struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Source        string    `json:"source"`
	Summary       string    `json:"summary"`
	KeyHighlights []string  `json:"key_highlights"`
	CreatedAt     time.Time `json:"created_at"`
}

// InterviewArticle links an interview to a recommended article. The
// (interview, article) pair is unique; repeated recommendation runs upsert.
type InterviewArticle struct {
	ID             string    `json:"id"`
	InterviewID    string    `json:"-"`
	ArticleID      string    `json:"-"`
	RelevanceScore float64   `json:"relevance_score"`
	CreatedAt      time.Time `json:"created_at"`
	Article        Article   `json:"article"`
}

// ArticleChat is a per-(interview, article) discussion session. At most one
// chat exists per pair; creation is get-or-create.
type ArticleChat struct {
	ID          string    `json:"id"`
	InterviewID string    `json:"-"`
	ArticleID   string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	IsActive    bool      `json:"is_active"`
}

// ArticleMessage is a single turn in an article chat. Same ordering invariant
// as Message; article chats never carry images.
type ArticleMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
