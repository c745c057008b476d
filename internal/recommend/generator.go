// Package recommend derives engineering-article recommendations from an
// interview transcript and links them to the interview. It runs as a
// non-critical side effect of ending an interview: failures are reported
// through the returned error and the caller logs them without failing.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/designdrill/designdrill/internal/openai"
	"github.com/designdrill/designdrill/internal/storage"
)

const (
	recommendMaxTokens   = 1000
	recommendTemperature = 0.7

	defaultRelevanceScore = 0.8
)

// allowedSources is the fixed set of engineering-blog sources recommendations
// may come from.
var allowedSources = map[string]bool{
	"shopify":   true,
	"robinhood": true,
	"pinterest": true,
}

// Completer is the completion capability used for recommendation prompts.
type Completer interface {
	ChatCompletion(ctx context.Context, req openai.Request) (string, error)
}

// Generator produces and persists article recommendations for an interview.
type Generator struct {
	store *storage.Store
	llm   Completer
	model string
	now   func() time.Time
}

// NewGenerator wires a Generator using the given completion model.
func NewGenerator(store *storage.Store, llm Completer, model string) *Generator {
	return &Generator{store: store, llm: llm, model: model, now: time.Now}
}

// candidate mirrors one article entry in the model's JSON response.
type candidate struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Source        string   `json:"source"`
	Summary       string   `json:"summary"`
	KeyHighlights []string `json:"key_highlights"`
}

type response struct {
	Articles []candidate `json:"articles"`
}

// Generate asks the model for 3-5 relevant articles and upserts each one plus
// its interview link. Running it twice for the same interview never duplicates
// articles or links. An upstream failure leaves the interview without
// recommendations; a response that fails to parse falls back to a fixed
// illustrative set so the interview still gets something to discuss.
func (g *Generator) Generate(ctx context.Context, iv storage.Interview) error {
	msgs, err := g.store.ListMessages(iv.ID)
	if err != nil {
		return fmt.Errorf("loading interview messages: %w", err)
	}

	prompt := BuildPrompt(iv.Question, msgs)
	raw, err := g.llm.ChatCompletion(ctx, openai.Request{
		Model:       g.model,
		Messages:    []openai.Message{openai.TextMessage(storage.RoleUser, prompt)},
		MaxTokens:   recommendMaxTokens,
		Temperature: recommendTemperature,
	})
	if err != nil {
		return fmt.Errorf("recommendation completion: %w", err)
	}

	articles := parseCandidates(raw)
	if len(articles) == 0 {
		slog.Warn("recommendation response did not parse, using fallback articles", "interview_id", iv.ID)
		articles = fallbackArticles()
	}

	for _, c := range articles {
		if err := g.link(iv, c); err != nil {
			return err
		}
	}
	return nil
}

// parseCandidates extracts article candidates from the model output.
// Responses are frequently wrapped in markdown code fences; those are
// stripped before unmarshaling. Invalid candidates (unknown source, malformed
// URL, missing title) are dropped.
func parseCandidates(raw string) []candidate {
	cleaned := stripCodeFence(raw)

	var resp response
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		slog.Warn("failed to parse recommendation response", "error", err)
		return nil
	}

	valid := make([]candidate, 0, len(resp.Articles))
	for _, c := range resp.Articles {
		if c.Title == "" || !allowedSources[c.Source] || !validURL(c.URL) {
			slog.Warn("dropping invalid article candidate", "title", c.Title, "url", c.URL, "source", c.Source)
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

func (g *Generator) link(iv storage.Interview, c candidate) error {
	now := g.now()
	article, err := g.store.UpsertArticleByURL(storage.Article{
		ID:            uuid.New().String(),
		Title:         c.Title,
		URL:           c.URL,
		Source:        c.Source,
		Summary:       c.Summary,
		KeyHighlights: c.KeyHighlights,
		CreatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("upserting article %q: %w", c.URL, err)
	}

	if err := g.store.UpsertInterviewArticle(storage.InterviewArticle{
		ID:             uuid.New().String(),
		InterviewID:    iv.ID,
		ArticleID:      article.ID,
		RelevanceScore: defaultRelevanceScore,
		CreatedAt:      now,
	}); err != nil {
		return fmt.Errorf("linking article %q: %w", c.URL, err)
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// fallbackArticles is the degraded path when the model response cannot be
// parsed: a fixed illustrative set covering each allowed source.
func fallbackArticles() []candidate {
	return []candidate{
		{
			Title:   "Building Scalable Systems at Shopify",
			URL:     "https://shopify.engineering/building-scalable-systems",
			Source:  "shopify",
			Summary: "Learn how Shopify engineers design and implement scalable systems that handle millions of requests daily.",
			KeyHighlights: []string{
				"Microservices architecture patterns",
				"Database sharding strategies",
				"Caching implementation",
				"Load balancing techniques",
				"Monitoring and observability",
			},
		},
		{
			Title:   "Robinhood's Real-Time Trading Infrastructure",
			URL:     "https://newsroom.aboutrobinhood.com/engineering/real-time-trading",
			Source:  "robinhood",
			Summary: "Explore how Robinhood built a real-time trading platform that processes millions of orders with low latency.",
			KeyHighlights: []string{
				"Real-time data processing",
				"Low-latency architecture",
				"Order matching algorithms",
				"High availability design",
				"Security considerations",
			},
		},
		{
			Title:   "Pinterest's Recommendation Engine",
			URL:     "https://medium.com/pinterest-engineering/recommendation-engine",
			Source:  "pinterest",
			Summary: "Discover how Pinterest's recommendation system personalizes content for millions of users.",
			KeyHighlights: []string{
				"Machine learning algorithms",
				"Personalization strategies",
				"A/B testing frameworks",
				"Data pipeline architecture",
				"Performance optimization",
			},
		},
	}
}
