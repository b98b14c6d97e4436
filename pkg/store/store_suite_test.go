package store

import (
	"slices"
	"testing"
	"time"

	"blogsvc/pkg/domain"
)

// runStoreSuite exercises behaviour every Store implementation must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UserEmailLookups", func(t *testing.T) {
		s := newStore(t)
		base := time.Now().UTC().Add(-time.Hour)
		mustSaveUser(t, s, domain.User{ID: "u1", Name: "Ada", Email: "Ada@Example.com", PasswordHash: "h", Role: domain.RoleUser, CreatedAt: base})
		mustSaveUser(t, s, domain.User{ID: "u2", Name: "Ada Two", Email: "ada@example.com", PasswordHash: "h", Role: domain.RoleAdmin, CreatedAt: base.Add(time.Minute)})

		exists, err := s.HasUserEmail("ADA@EXAMPLE.COM")
		if err != nil {
			t.Fatalf("has email: %v", err)
		}
		if exists {
			t.Fatalf("exact lookup must be case-sensitive")
		}
		exists, err = s.HasUserEmail("Ada@Example.com")
		if err != nil || !exists {
			t.Fatalf("expected exact email to exist, exists=%v err=%v", exists, err)
		}

		u, ok, err := s.GetUserByEmailFold("ADA@example.COM")
		if err != nil || !ok {
			t.Fatalf("fold lookup: ok=%v err=%v", ok, err)
		}
		if u.ID != "u1" {
			t.Fatalf("expected oldest match u1, got %s", u.ID)
		}
		if _, ok, _ := s.GetUserByEmailFold("a.a@example.com"); ok {
			t.Fatalf("fold lookup must be an exact match")
		}

		users, err := s.GetUsersByIDs([]string{"u1", "u2", "missing"})
		if err != nil {
			t.Fatalf("get users: %v", err)
		}
		if len(users) != 2 || users["u2"].Role != domain.RoleAdmin {
			t.Fatalf("unexpected users: %+v", users)
		}
	})

	t.Run("ArticleLifecycle", func(t *testing.T) {
		s := newStore(t)
		mustSaveArticle(t, s, "a1", "First post", 0)
		mustSaveArticle(t, s, "a2", "Second post", time.Second)

		a, ok, err := s.GetArticle("a1")
		if err != nil || !ok {
			t.Fatalf("get article: ok=%v err=%v", ok, err)
		}
		if a.Title != "First post" || a.AuthorID != "owner" || len(a.Likes) != 0 || len(a.Comments) != 0 {
			t.Fatalf("unexpected article: %+v", a)
		}
		if a.Likes == nil || a.Comments == nil {
			t.Fatalf("likes and comments must be empty, not nil")
		}

		list, err := s.ListArticles()
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].ID != "a1" || list[1].ID != "a2" {
			t.Fatalf("unexpected list order: %+v", list)
		}

		deleted, err := s.DeleteArticle("a1")
		if err != nil || !deleted {
			t.Fatalf("delete: deleted=%v err=%v", deleted, err)
		}
		if _, ok, _ := s.GetArticle("a1"); ok {
			t.Fatalf("expected article to be gone")
		}
		deleted, err = s.DeleteArticle("a1")
		if err != nil || deleted {
			t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
		}
	})

	t.Run("ToggleLike", func(t *testing.T) {
		s := newStore(t)
		mustSaveArticle(t, s, "a1", "Post", 0)

		likes, found, err := s.ToggleLike("a1", "u1")
		if err != nil || !found {
			t.Fatalf("toggle: found=%v err=%v", found, err)
		}
		if !slices.Equal(likes, []string{"u1"}) {
			t.Fatalf("unexpected likes after add: %v", likes)
		}
		likes, _, _ = s.ToggleLike("a1", "u2")
		if len(likes) != 2 {
			t.Fatalf("expected two likes, got %v", likes)
		}
		likes, _, err = s.ToggleLike("a1", "u1")
		if err != nil {
			t.Fatalf("toggle back: %v", err)
		}
		if !slices.Equal(likes, []string{"u2"}) {
			t.Fatalf("toggle twice must restore the set, got %v", likes)
		}

		if _, found, err := s.ToggleLike("missing", "u1"); err != nil || found {
			t.Fatalf("toggle on missing article: found=%v err=%v", found, err)
		}
	})

	t.Run("RemoveLike", func(t *testing.T) {
		s := newStore(t)
		mustSaveArticle(t, s, "a1", "Post", 0)
		if _, _, err := s.ToggleLike("a1", "u1"); err != nil {
			t.Fatalf("toggle: %v", err)
		}
		likes, found, err := s.RemoveLike("a1", "u1")
		if err != nil || !found || len(likes) != 0 {
			t.Fatalf("remove: likes=%v found=%v err=%v", likes, found, err)
		}
		likes, found, err = s.RemoveLike("a1", "u1")
		if err != nil || !found || len(likes) != 0 {
			t.Fatalf("remove absent like must be a no-op: likes=%v found=%v err=%v", likes, found, err)
		}
		if _, found, _ := s.RemoveLike("missing", "u1"); found {
			t.Fatalf("expected missing article to report not found")
		}
	})

	t.Run("AppendComment", func(t *testing.T) {
		s := newStore(t)
		mustSaveArticle(t, s, "a1", "Post", 0)
		start := time.Now().UTC()
		texts := []string{"one", "two", "three"}
		var comments []domain.Comment
		for i, text := range texts {
			var err error
			var found bool
			comments, found, err = s.AppendComment("a1", domain.Comment{
				User: domain.UserRef{ID: "u1", Email: "dropped@example.com"},
				Text: text,
				Date: start.Add(time.Duration(i) * time.Millisecond),
			})
			if err != nil || !found {
				t.Fatalf("append %d: found=%v err=%v", i, found, err)
			}
		}
		if len(comments) != len(texts) {
			t.Fatalf("expected %d comments, got %d", len(texts), len(comments))
		}
		for i, c := range comments {
			if c.Text != texts[i] {
				t.Fatalf("comment %d out of order: %q", i, c.Text)
			}
			if c.User.ID != "u1" || c.User.Email != "" {
				t.Fatalf("stored comment must only reference the user id: %+v", c.User)
			}
			if i > 0 && c.Date.Before(comments[i-1].Date) {
				t.Fatalf("comment timestamps must not decrease")
			}
		}
		a, _, _ := s.GetArticle("a1")
		if len(a.Comments) != len(texts) {
			t.Fatalf("expected persisted comments, got %d", len(a.Comments))
		}
		if _, found, _ := s.AppendComment("missing", domain.Comment{Text: "x"}); found {
			t.Fatalf("expected missing article to report not found")
		}
	})

	t.Run("SearchIsLiteralAndCaseInsensitive", func(t *testing.T) {
		s := newStore(t)
		mustSaveArticle(t, s, "a1", "ABCDEF", 0)
		mustSaveArticle(t, s, "a2", "xxabcxx", time.Second)
		mustSaveArticle(t, s, "a3", "xyz", 2*time.Second)
		mustSaveArticle(t, s, "a4", "100% sure_thing", 3*time.Second)

		got, err := s.SearchArticles("abc")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a2" {
			t.Fatalf("unexpected search result: %+v", got)
		}

		got, err = s.SearchArticles("%")
		if err != nil {
			t.Fatalf("search wildcard: %v", err)
		}
		if len(got) != 1 || got[0].ID != "a4" {
			t.Fatalf("wildcards must match literally: %+v", got)
		}
		got, _ = s.SearchArticles("s_re")
		if len(got) != 0 {
			t.Fatalf("underscore must match literally: %+v", got)
		}
		got, _ = s.SearchArticles("x.z")
		if len(got) != 0 {
			t.Fatalf("regex metacharacters must match literally: %+v", got)
		}
	})
}

func mustSaveUser(t *testing.T, s Store, u domain.User) {
	t.Helper()
	if err := s.SaveUser(u); err != nil {
		t.Fatalf("save user %s: %v", u.ID, err)
	}
}

func mustSaveArticle(t *testing.T, s Store, id, title string, offset time.Duration) {
	t.Helper()
	err := s.SaveArticle(domain.Article{
		ID:          id,
		Title:       title,
		Description: "body",
		Author:      "Owner",
		AuthorID:    "owner",
		Date:        time.Now().UTC().Add(-time.Hour).Add(offset),
	})
	if err != nil {
		t.Fatalf("save article %s: %v", id, err)
	}
}
