// Package composer assembles stored conversation history into the ordered
// message list sent to the completion API. Output ordering always matches the
// stored ordering; the model sees turns exactly as they happened.
package composer

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/designdrill/designdrill/internal/openai"
	"github.com/designdrill/designdrill/internal/storage"
)

// InterviewSystemPrompt is the fixed interviewer persona prepended to every
// interview completion call.
const InterviewSystemPrompt = `You are an interviewer for a System Design loop. Your role is to simulate a real-world interview. Follow these instructions closely:
	1.	Introduction:
	•	Start by introducing yourself as the interviewer.
	•	Present a concise, ambiguous problem statement, e.g., "Design YouTube," "Build a URL shortener," or "Create a global code deployment system."
	2.	Interview Style:
	•	The candidate (user) will drive the conversation by asking clarifying questions.
	•	You should reply concisely, giving only the information specifically requested.
	•	Avoid over-explaining or volunteering details unless explicitly asked.
	3.	Active Interviewing:
	•	If the candidate overlooks a key area (e.g., scaling, data modeling, consistency trade-offs, APIs, caching, monitoring, etc.), you may jump in to ask about gaps in their design, just as a real interviewer would.
	•	Keep these interruptions natural and occasional.
	4.	Tone & Flow:
	•	Be professional but approachable.
	•	Keep the session structured, realistic, and time-aware.
	5.	Image Analysis:
	•	If the candidate shares images (diagrams, sketches, etc.), analyze them and provide feedback on their system design approach.
	•	Ask clarifying questions about the design elements shown in the images.

Goal: Simulate a realistic, back-and-forth system design interview where the candidate must drive the design, clarify assumptions, and think through trade-offs, while you keep them honest with follow-ups.

Do not volunteer feedback unless asked for it. If you see a gap in the design, ask about it. However, ask one question at a time.

When providing feedback and questions about the design, provide feedback that is specific. Only tackle ONE specific issue at a time.
Don't overwhelm the interviewee with too many questions or feedback at once. Address one issue at a time.`

// ImageLoader reads stored image bytes by their media locator.
type ImageLoader interface {
	Load(locator string) ([]byte, error)
}

// Assemble builds the completion message list for an interview: one system
// turn with the given prompt, then one turn per stored message in ascending
// timestamp order. Messages without images become plain-text turns; messages
// with images become composite turns whose images are re-encoded as base64
// data URIs at call time. An image that cannot be loaded is skipped with a
// log entry; assembly never fails on a single bad image.
func Assemble(systemPrompt string, msgs []storage.Message, images ImageLoader) []openai.Message {
	conversation := make([]openai.Message, 0, len(msgs)+1)
	conversation = append(conversation, openai.TextMessage("system", systemPrompt))

	for _, m := range msgs {
		if len(m.Images) == 0 {
			conversation = append(conversation, openai.TextMessage(m.Role, m.Content))
			continue
		}

		parts := []openai.ContentPart{openai.TextPart(m.Content)}
		for _, img := range m.Images {
			data, err := images.Load(img.Image)
			if err != nil {
				slog.Warn("skipping unreadable image", "message_id", m.ID, "image", img.Image, "error", err)
				continue
			}
			parts = append(parts, openai.ImagePart(dataURI(data)))
		}
		conversation = append(conversation, openai.Message{Role: m.Role, Content: parts})
	}

	return conversation
}

// ArticleSystemPrompt builds the system turn for an article chat from the
// article's stored fields.
func ArticleSystemPrompt(a storage.Article) string {
	context := fmt.Sprintf("Article: %s\nSummary: %s\nKey Highlights: %s\nURL: %s",
		a.Title, a.Summary, strings.Join(a.KeyHighlights, ", "), a.URL)
	return fmt.Sprintf("You are a helpful assistant discussing the article: %s. Use the following context to answer questions: %s",
		a.Title, context)
}

// AssembleArticle builds the completion message list for an article chat.
// Article chats carry no images, so every turn is plain text.
func AssembleArticle(systemPrompt string, msgs []storage.ArticleMessage) []openai.Message {
	conversation := make([]openai.Message, 0, len(msgs)+1)
	conversation = append(conversation, openai.TextMessage("system", systemPrompt))
	for _, m := range msgs {
		conversation = append(conversation, openai.TextMessage(m.Role, m.Content))
	}
	return conversation
}

func dataURI(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}
