package storage

import (
	"errors"
	"testing"
	"time"
)

func testArticle(id, url string, at time.Time) Article {
	return Article{
		ID:            id,
		Title:         "Building Scalable Systems at Shopify",
		URL:           url,
		Source:        "shopify",
		Summary:       "How Shopify scales.",
		KeyHighlights: []string{"Sharding", "Caching"},
		CreatedAt:     at,
	}
}

func TestUpsertArticleByURLKeepsFirstRow(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	first, err := s.UpsertArticleByURL(testArticle("a1", "https://shopify.engineering/scaling", now))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.ID != "a1" {
		t.Fatalf("expected stored id a1, got %s", first.ID)
	}

	// Same URL with a different candidate ID returns the existing row.
	second, err := s.UpsertArticleByURL(testArticle("a2", "https://shopify.engineering/scaling", now))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != "a1" {
		t.Errorf("expected existing row a1, got %s", second.ID)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&count); err != nil {
		t.Fatalf("count articles: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 article row, got %d", count)
	}
}

func TestArticleHighlightsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	stored, err := s.UpsertArticleByURL(testArticle("a1", "https://shopify.engineering/x", now))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(stored.KeyHighlights) != 2 || stored.KeyHighlights[0] != "Sharding" {
		t.Errorf("unexpected highlights: %v", stored.KeyHighlights)
	}

	// nil highlights round-trip as an empty list, not null.
	a := testArticle("a2", "https://shopify.engineering/y", now)
	a.KeyHighlights = nil
	stored, err = s.UpsertArticleByURL(a)
	if err != nil {
		t.Fatalf("upsert nil highlights: %v", err)
	}
	if stored.KeyHighlights == nil {
		t.Error("expected empty highlights slice, got nil")
	}
}

func TestUpsertInterviewArticleNoDuplicates(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	mustCreateInterview(t, s, testInterview("iv1", now))
	article, err := s.UpsertArticleByURL(testArticle("a1", "https://shopify.engineering/x", now))
	if err != nil {
		t.Fatalf("upsert article: %v", err)
	}

	link := InterviewArticle{ID: "link1", InterviewID: "iv1", ArticleID: article.ID, RelevanceScore: 0.8, CreatedAt: now}
	if err := s.UpsertInterviewArticle(link); err != nil {
		t.Fatalf("first link: %v", err)
	}
	link.ID = "link2"
	link.RelevanceScore = 0.9
	if err := s.UpsertInterviewArticle(link); err != nil {
		t.Fatalf("second link: %v", err)
	}

	links, err := s.ListInterviewArticles("iv1")
	if err != nil {
		t.Fatalf("ListInterviewArticles: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].RelevanceScore != 0.9 {
		t.Errorf("expected updated relevance 0.9, got %v", links[0].RelevanceScore)
	}
	if links[0].Article.URL != "https://shopify.engineering/x" {
		t.Errorf("article not joined: %+v", links[0].Article)
	}
}

func TestListInterviewArticlesEmptyNonNil(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	mustCreateInterview(t, s, testInterview("iv1", now))

	links, err := s.ListInterviewArticles("iv1")
	if err != nil {
		t.Fatalf("ListInterviewArticles: %v", err)
	}
	if links == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestGetOrCreateArticleChat(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	mustCreateInterview(t, s, testInterview("iv1", now))
	article, err := s.UpsertArticleByURL(testArticle("a1", "https://shopify.engineering/x", now))
	if err != nil {
		t.Fatalf("upsert article: %v", err)
	}

	chat, created, err := s.GetOrCreateArticleChat(ArticleChat{
		ID: "c1", InterviewID: "iv1", ArticleID: article.ID, CreatedAt: now, IsActive: true,
	})
	if err != nil {
		t.Fatalf("first GetOrCreateArticleChat: %v", err)
	}
	if !created {
		t.Error("first call should report created")
	}
	if chat.ID != "c1" {
		t.Errorf("expected chat c1, got %s", chat.ID)
	}

	again, created, err := s.GetOrCreateArticleChat(ArticleChat{
		ID: "c2", InterviewID: "iv1", ArticleID: article.ID, CreatedAt: now, IsActive: true,
	})
	if err != nil {
		t.Fatalf("second GetOrCreateArticleChat: %v", err)
	}
	if created {
		t.Error("second call must not report created")
	}
	if again.ID != "c1" {
		t.Errorf("expected existing chat c1, got %s", again.ID)
	}
}

func TestGetActiveArticleChatScoping(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	mustCreateInterview(t, s, testInterview("iv1", now))
	article, err := s.UpsertArticleByURL(testArticle("a1", "https://shopify.engineering/x", now))
	if err != nil {
		t.Fatalf("upsert article: %v", err)
	}
	if _, _, err := s.GetOrCreateArticleChat(ArticleChat{
		ID: "c1", InterviewID: "iv1", ArticleID: article.ID, CreatedAt: now, IsActive: true,
	}); err != nil {
		t.Fatalf("GetOrCreateArticleChat: %v", err)
	}

	if _, err := s.GetActiveArticleChat("c1"); err != nil {
		t.Errorf("GetActiveArticleChat(active): %v", err)
	}

	if err := s.EndArticleChat("c1"); err != nil {
		t.Fatalf("EndArticleChat: %v", err)
	}
	if _, err := s.GetActiveArticleChat("c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetActiveArticleChat(inactive): expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetArticleChat("c1"); err != nil {
		t.Errorf("GetArticleChat should still find inactive chat: %v", err)
	}
	if err := s.EndArticleChat("c1"); err != nil {
		t.Errorf("repeat EndArticleChat should be a no-op, got %v", err)
	}
	if err := s.EndArticleChat("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("EndArticleChat(missing): expected ErrNotFound, got %v", err)
	}
}

func TestListArticleMessagesOrdered(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	mustCreateInterview(t, s, testInterview("iv1", now))
	article, err := s.UpsertArticleByURL(testArticle("a1", "https://shopify.engineering/x", now))
	if err != nil {
		t.Fatalf("upsert article: %v", err)
	}
	chat, _, err := s.GetOrCreateArticleChat(ArticleChat{
		ID: "c1", InterviewID: "iv1", ArticleID: article.ID, CreatedAt: now, IsActive: true,
	})
	if err != nil {
		t.Fatalf("GetOrCreateArticleChat: %v", err)
	}

	for i, id := range []string{"am1", "am2"} {
		msg := ArticleMessage{ID: id, ChatID: chat.ID, Role: RoleUser, Content: id, Timestamp: now.Add(time.Duration(i) * time.Millisecond)}
		if err := s.CreateArticleMessage(msg); err != nil {
			t.Fatalf("CreateArticleMessage(%s): %v", id, err)
		}
	}

	msgs, err := s.ListArticleMessages(chat.ID)
	if err != nil {
		t.Fatalf("ListArticleMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "am1" || msgs[1].ID != "am2" {
		t.Errorf("unexpected ordering: %+v", msgs)
	}
}
