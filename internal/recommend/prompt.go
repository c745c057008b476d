package recommend

import (
	"fmt"
	"strings"

	"github.com/designdrill/designdrill/internal/storage"
)

// maxConversationChars bounds how much interview transcript goes into the
// recommendation prompt.
const maxConversationChars = 2000

const promptTemplate = `Based on this system design interview conversation, recommend 3-5 relevant articles from engineering blogs.

Interview Question: %s
Conversation: %s

Please recommend articles that cover concepts discussed in this interview. For each article, provide:
1. Title
2. URL (from shopify.engineering, newsroom.aboutrobinhood.com/category/engineering/, or medium.com/pinterest-engineering)
3. Brief summary (2-3 sentences)
4. Key highlights (3-5 bullet points)

Format as JSON:
{
    "articles": [
        {
            "title": "Article Title",
            "url": "https://...",
            "source": "shopify|robinhood|pinterest",
            "summary": "Brief summary...",
            "key_highlights": ["Point 1", "Point 2", "Point 3"]
        }
    ]
}`

// BuildPrompt combines the interview question with a bounded prefix of the
// conversation (all message contents, role ignored) into the recommendation
// request.
func BuildPrompt(question string, msgs []storage.Message) string {
	contents := make([]string, 0, len(msgs))
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}
	conversation := truncate(strings.Join(contents, " "), maxConversationChars)
	return fmt.Sprintf(promptTemplate, question, conversation)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back off to a rune boundary so the cut never splits a character.
	cut := max
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
