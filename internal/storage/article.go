package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// --- Articles ---

func (a Article) highlightsJSON() (string, error) {
	highlights := a.KeyHighlights
	if highlights == nil {
		highlights = []string{}
	}
	b, err := json.Marshal(highlights)
	if err != nil {
		return "", fmt.Errorf("marshaling key highlights: %w", err)
	}
	return string(b), nil
}

// UpsertArticleByURL inserts the article unless one with the same URL already
// exists, and returns the stored row either way. The conditional insert keeps
// the operation safe when two interviews recommend the same article
// concurrently; no application-level locking is involved.
func (s *Store) UpsertArticleByURL(a Article) (Article, error) {
	highlights, err := a.highlightsJSON()
	if err != nil {
		return Article{}, err
	}

	_, err = s.db.Exec(`
		INSERT INTO articles (id, title, url, source, summary, key_highlights, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING`,
		a.ID, a.Title, a.URL, a.Source, a.Summary, highlights, formatTime(a.CreatedAt),
	)
	if err != nil {
		return Article{}, err
	}

	return s.getArticle(`SELECT id, title, url, source, summary, key_highlights, created_at FROM articles WHERE url = ?`, a.URL)
}

func (s *Store) GetArticle(id string) (Article, error) {
	return s.getArticle(`SELECT id, title, url, source, summary, key_highlights, created_at FROM articles WHERE id = ?`, id)
}

func (s *Store) getArticle(query string, args ...any) (Article, error) {
	var a Article
	var highlights, createdAt string
	err := s.db.QueryRow(query, args...).Scan(&a.ID, &a.Title, &a.URL, &a.Source, &a.Summary, &highlights, &createdAt)
	if err == sql.ErrNoRows {
		return Article{}, ErrNotFound
	}
	if err != nil {
		return Article{}, err
	}
	if err := json.Unmarshal([]byte(highlights), &a.KeyHighlights); err != nil {
		return Article{}, fmt.Errorf("parsing key highlights: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return Article{}, err
	}
	return a, nil
}

// --- Interview article links ---

// UpsertInterviewArticle links an article to an interview, updating the
// relevance score if the link already exists. Repeated recommendation runs
// never produce duplicate links.
func (s *Store) UpsertInterviewArticle(link InterviewArticle) error {
	_, err := s.db.Exec(`
		INSERT INTO interview_articles (id, interview_id, article_id, relevance_score, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(interview_id, article_id) DO UPDATE SET relevance_score = excluded.relevance_score`,
		link.ID, link.InterviewID, link.ArticleID, link.RelevanceScore, formatTime(link.CreatedAt),
	)
	return err
}

// ListInterviewArticles returns the interview's recommended articles with the
// article rows joined in, newest link first.
func (s *Store) ListInterviewArticles(interviewID string) ([]InterviewArticle, error) {
	rows, err := s.db.Query(`
		SELECT ia.id, ia.interview_id, ia.article_id, ia.relevance_score, ia.created_at,
			a.id, a.title, a.url, a.source, a.summary, a.key_highlights, a.created_at
		FROM interview_articles ia
		JOIN articles a ON a.id = ia.article_id
		WHERE ia.interview_id = ?
		ORDER BY ia.created_at DESC, a.title ASC`, interviewID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []InterviewArticle{}
	for rows.Next() {
		var link InterviewArticle
		var linkCreated, highlights, articleCreated string
		if err := rows.Scan(
			&link.ID, &link.InterviewID, &link.ArticleID, &link.RelevanceScore, &linkCreated,
			&link.Article.ID, &link.Article.Title, &link.Article.URL, &link.Article.Source,
			&link.Article.Summary, &highlights, &articleCreated,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(highlights), &link.Article.KeyHighlights); err != nil {
			return nil, fmt.Errorf("parsing key highlights: %w", err)
		}
		if link.CreatedAt, err = parseTime(linkCreated, "created_at"); err != nil {
			return nil, err
		}
		if link.Article.CreatedAt, err = parseTime(articleCreated, "created_at"); err != nil {
			return nil, err
		}
		results = append(results, link)
	}
	return results, rows.Err()
}

// --- Article chats ---

// GetOrCreateArticleChat returns the chat for the (interview, article) pair,
// creating it if absent. The boolean reports whether a new chat was created
// this call, so the caller can seed the greeting exactly once.
func (s *Store) GetOrCreateArticleChat(chat ArticleChat) (ArticleChat, bool, error) {
	existing, err := s.getArticleChat(
		`SELECT id, interview_id, article_id, created_at, is_active FROM article_chats WHERE interview_id = ? AND article_id = ?`,
		chat.InterviewID, chat.ArticleID,
	)
	if err == nil {
		return existing, false, nil
	}
	if err != ErrNotFound {
		return ArticleChat{}, false, err
	}

	res, err := s.db.Exec(`
		INSERT INTO article_chats (id, interview_id, article_id, created_at, is_active)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(interview_id, article_id) DO NOTHING`,
		chat.ID, chat.InterviewID, chat.ArticleID, formatTime(chat.CreatedAt),
	)
	if err != nil {
		return ArticleChat{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ArticleChat{}, false, err
	}

	// Reselect instead of trusting the input: a concurrent creator may have won.
	stored, err := s.getArticleChat(
		`SELECT id, interview_id, article_id, created_at, is_active FROM article_chats WHERE interview_id = ? AND article_id = ?`,
		chat.InterviewID, chat.ArticleID,
	)
	if err != nil {
		return ArticleChat{}, false, err
	}
	return stored, n == 1, nil
}

// EndArticleChat flips is_active to false. Like EndInterview, ending an
// already-ended chat is a no-op; ErrNotFound if the chat does not exist.
func (s *Store) EndArticleChat(id string) error {
	res, err := s.db.Exec(`UPDATE article_chats SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetArticleChat(id string) (ArticleChat, error) {
	return s.getArticleChat(`SELECT id, interview_id, article_id, created_at, is_active FROM article_chats WHERE id = ?`, id)
}

// GetActiveArticleChat returns the chat only if it is still active; inactive
// and missing chats both yield ErrNotFound.
func (s *Store) GetActiveArticleChat(id string) (ArticleChat, error) {
	return s.getArticleChat(`SELECT id, interview_id, article_id, created_at, is_active FROM article_chats WHERE id = ? AND is_active = 1`, id)
}

func (s *Store) getArticleChat(query string, args ...any) (ArticleChat, error) {
	var chat ArticleChat
	var createdAt string
	var active int
	err := s.db.QueryRow(query, args...).Scan(&chat.ID, &chat.InterviewID, &chat.ArticleID, &createdAt, &active)
	if err == sql.ErrNoRows {
		return ArticleChat{}, ErrNotFound
	}
	if err != nil {
		return ArticleChat{}, err
	}
	chat.IsActive = active != 0
	if chat.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return ArticleChat{}, err
	}
	return chat, nil
}

// --- Article messages ---

func (s *Store) CreateArticleMessage(m ArticleMessage) error {
	_, err := s.db.Exec(`
		INSERT INTO article_messages (id, chat_id, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.Role, m.Content, formatTime(m.Timestamp),
	)
	return err
}

func (s *Store) ListArticleMessages(chatID string) ([]ArticleMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_id, role, content, timestamp
		FROM article_messages WHERE chat_id = ? ORDER BY timestamp ASC`, chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []ArticleMessage{}
	for rows.Next() {
		var m ArticleMessage
		var ts string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		if m.Timestamp, err = parseTime(ts, "timestamp"); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
