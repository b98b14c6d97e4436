package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserRef is the public projection of a user embedded in article payloads.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type Comment struct {
	User UserRef   `json:"user"`
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}

type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Date        time.Time `json:"date"`
	Author      string    `json:"author"`
	AuthorID    string    `json:"authorId,omitempty"`
	Likes       []string  `json:"likes"`
	Comments    []Comment `json:"comments"`
}

type ArticleSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Claims is the identity carried by a session token.
type Claims struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
	Name string   `json:"name"`
}
