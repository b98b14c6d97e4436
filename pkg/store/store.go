package store

import (
	"errors"

	"blogsvc/pkg/domain"
)

// ErrInvalidToken is returned for tokens that fail signature, claim or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Store defines persistence operations for users and articles.
//
// Article mutations (likes, comments) are applied by the store as single
// atomic operations; callers never read-modify-write a whole article.
// Comments are returned with only User.ID populated.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmailFold(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	GetUsersByIDs(ids []string) (map[string]domain.User, error)

	// articles
	SaveArticle(domain.Article) error
	GetArticle(id string) (domain.Article, bool, error)
	ListArticles() ([]domain.Article, error)
	SearchArticles(query string) ([]domain.ArticleSummary, error)
	DeleteArticle(id string) (bool, error)

	// likes and comments; found is false when the article does not exist
	ToggleLike(articleID, userID string) (likes []string, found bool, err error)
	RemoveLike(articleID, userID string) (likes []string, found bool, err error)
	AppendComment(articleID string, c domain.Comment) (comments []domain.Comment, found bool, err error)

	Close() error
}

// SessionStore issues and validates session tokens.
type SessionStore interface {
	NewSession(domain.Claims) (string, error)
	ParseSession(token string) (domain.Claims, error)
}
