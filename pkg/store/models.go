package store

import "time"

// GORM models used for persistence.
//
// Email carries a plain index: uniqueness is checked by the auth service,
// not enforced by the database.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"not null;index"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type ArticleModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Image       string
	Author      string
	AuthorID    string    `gorm:"index"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

type LikeModel struct {
	ArticleID string    `gorm:"primaryKey"`
	UserID    string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

// CommentModel rows are ordered by their auto-increment ID.
type CommentModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ArticleID string    `gorm:"not null;index"`
	UserID    string    `gorm:"not null"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (UserModel) TableName() string    { return "users" }
func (ArticleModel) TableName() string { return "articles" }
func (LikeModel) TableName() string    { return "article_likes" }
func (CommentModel) TableName() string { return "article_comments" }
