package store

import (
	"fmt"
	"sync"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStoreConcurrentToggles(t *testing.T) {
	s := NewMemoryStore()
	mustSaveArticle(t, s, "a1", "Post", 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := s.ToggleLike("a1", fmt.Sprintf("u%d", i)); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}(i)
	}
	wg.Wait()

	a, _, _ := s.GetArticle("a1")
	if len(a.Likes) != 50 {
		t.Fatalf("expected 50 likes without lost updates, got %d", len(a.Likes))
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	mustSaveArticle(t, s, "a1", "Post", 0)
	if _, _, err := s.ToggleLike("a1", "u1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	a, _, _ := s.GetArticle("a1")
	a.Likes[0] = "mutated"

	again, _, _ := s.GetArticle("a1")
	if again.Likes[0] != "u1" {
		t.Fatalf("caller mutation leaked into the store: %v", again.Likes)
	}
}
