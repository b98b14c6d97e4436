package store

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"blogsvc/pkg/domain"
)

// MemoryStore keeps users and articles in-process. It backs tests and
// single-instance local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	userSeq  []string
	articles map[string]domain.Article
	order    []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		articles: make(map[string]domain.Article),
	}
}

func (m *MemoryStore) Close() error { return nil }

// SaveUser inserts or replaces a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		m.userSeq = append(m.userSeq, u.ID)
	}
	m.users[u.ID] = u
	return nil
}

// HasUserEmail checks for an exact, case-sensitive email match.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// GetUserByEmailFold returns the first registered user whose email matches ignoring case.
func (m *MemoryStore) GetUserByEmailFold(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.userSeq {
		if u := m.users[id]; strings.EqualFold(u.Email, email) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUsersByIDs returns the users that exist among ids.
func (m *MemoryStore) GetUsersByIDs(ids []string) (map[string]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// SaveArticle inserts or updates an article's own fields.
func (m *MemoryStore) SaveArticle(a domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.articles[a.ID]; ok {
		a.Likes = existing.Likes
		a.Comments = existing.Comments
		a.Date = existing.Date
	} else {
		m.order = append(m.order, a.ID)
		a.Likes = []string{}
		a.Comments = []domain.Comment{}
	}
	m.articles[a.ID] = a
	return nil
}

// GetArticle returns a copy of an article.
func (m *MemoryStore) GetArticle(id string) (domain.Article, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.articles[id]
	if !ok {
		return domain.Article{}, false, nil
	}
	return cloneArticle(a), true, nil
}

// ListArticles returns articles in insertion order.
func (m *MemoryStore) ListArticles() ([]domain.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Article, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneArticle(m.articles[id]))
	}
	return out, nil
}

// SearchArticles matches query as a literal, case-insensitive title substring.
func (m *MemoryStore) SearchArticles(query string) ([]domain.ArticleSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(query)
	out := []domain.ArticleSummary{}
	for _, id := range m.order {
		a := m.articles[id]
		if strings.Contains(strings.ToLower(a.Title), needle) {
			out = append(out, domain.ArticleSummary{ID: a.ID, Title: a.Title})
		}
	}
	return out, nil
}

// DeleteArticle removes an article.
func (m *MemoryStore) DeleteArticle(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[id]; !ok {
		return false, nil
	}
	delete(m.articles, id)
	m.order = slices.DeleteFunc(m.order, func(item string) bool { return item == id })
	return true, nil
}

// ToggleLike flips userID's membership in the article's likes.
func (m *MemoryStore) ToggleLike(articleID, userID string) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[articleID]
	if !ok {
		return nil, false, nil
	}
	if idx := slices.Index(a.Likes, userID); idx >= 0 {
		a.Likes = slices.Delete(slices.Clone(a.Likes), idx, idx+1)
	} else {
		a.Likes = append(slices.Clone(a.Likes), userID)
	}
	m.articles[articleID] = a
	return slices.Clone(a.Likes), true, nil
}

// RemoveLike drops userID from the article's likes.
func (m *MemoryStore) RemoveLike(articleID, userID string) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[articleID]
	if !ok {
		return nil, false, nil
	}
	a.Likes = slices.DeleteFunc(slices.Clone(a.Likes), func(id string) bool { return id == userID })
	m.articles[articleID] = a
	return slices.Clone(a.Likes), true, nil
}

// AppendComment appends c to the article's comments.
func (m *MemoryStore) AppendComment(articleID string, c domain.Comment) ([]domain.Comment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[articleID]
	if !ok {
		return nil, false, nil
	}
	c.User = domain.UserRef{ID: c.User.ID}
	a.Comments = append(slices.Clone(a.Comments), c)
	m.articles[articleID] = a
	return slices.Clone(a.Comments), true, nil
}

// UserEmails lists stored emails, sorted. Used by tests.
func (m *MemoryStore) UserEmails() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u.Email)
	}
	sort.Strings(out)
	return out
}

func cloneArticle(a domain.Article) domain.Article {
	a.Likes = slices.Clone(a.Likes)
	a.Comments = slices.Clone(a.Comments)
	if a.Likes == nil {
		a.Likes = []string{}
	}
	if a.Comments == nil {
		a.Comments = []domain.Comment{}
	}
	return a
}
