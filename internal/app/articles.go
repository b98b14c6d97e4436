package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"blogsvc/internal/util"
	"blogsvc/pkg/domain"
)

// ImageUpload is an image file received with a request.
type ImageUpload struct {
	Filename string
	Body     io.Reader
	Size     int64
}

// NewArticle carries the fields a client supplies when creating an article.
type NewArticle struct {
	Title       string
	Description string
	Author      string
	Image       *ImageUpload
}

// AddArticle relays the optional image and stores the article. requester is
// nil for anonymous submissions.
func (a *App) AddArticle(ctx context.Context, in NewArticle, requester *domain.Claims) (domain.Article, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Article{}, invalidInput("title required")
	}
	author := strings.TrimSpace(in.Author)
	authorID := ""
	if requester != nil {
		authorID = requester.ID
		if author == "" {
			author = requester.Name
		}
	}

	imageURL := ""
	if in.Image != nil {
		url, err := a.uploadImage(ctx, in.Image)
		if err != nil {
			return domain.Article{}, err
		}
		imageURL = url
	}

	article := domain.Article{
		ID:          util.NewID(),
		Title:       title,
		Description: in.Description,
		Image:       imageURL,
		Date:        a.timestamp(),
		Author:      author,
		AuthorID:    authorID,
		Likes:       []string{},
		Comments:    []domain.Comment{},
	}
	if err := a.store.SaveArticle(article); err != nil {
		if imageURL != "" {
			if rmErr := a.images.Remove(ctx, imageURL); rmErr != nil {
				util.LoggerFromContext(ctx).Warn("orphaned image cleanup failed", "url", imageURL, "err", rmErr)
			}
		}
		return domain.Article{}, fmt.Errorf("save article: %w", err)
	}
	return article, nil
}

// UploadImage relays a standalone image and returns its URL.
func (a *App) UploadImage(ctx context.Context, img *ImageUpload) (string, error) {
	if img == nil {
		return "", invalidInput("no file uploaded")
	}
	return a.uploadImage(ctx, img)
}

func (a *App) uploadImage(ctx context.Context, img *ImageUpload) (string, error) {
	url, err := a.images.Upload(ctx, img.Filename, img.Body, img.Size)
	if err != nil {
		if errors.Is(err, ErrUnsupportedImage) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return url, nil
}

// ListArticles returns every article with comment authors expanded to {id, email}.
func (a *App) ListArticles() ([]domain.Article, error) {
	articles, err := a.store.ListArticles()
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	var ids []string
	for _, art := range articles {
		ids = append(ids, commentUserIDs(art.Comments)...)
	}
	users, err := a.store.GetUsersByIDs(dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("load comment users: %w", err)
	}
	for i := range articles {
		articles[i].Comments = expandComments(articles[i].Comments, users)
	}
	return articles, nil
}

// GetArticle returns one article with comment authors expanded.
func (a *App) GetArticle(id string) (domain.Article, error) {
	article, ok, err := a.store.GetArticle(strings.TrimSpace(id))
	if err != nil {
		return domain.Article{}, fmt.Errorf("get article: %w", err)
	}
	if !ok {
		return domain.Article{}, ErrNotFound
	}
	users, err := a.store.GetUsersByIDs(dedupe(commentUserIDs(article.Comments)))
	if err != nil {
		return domain.Article{}, fmt.Errorf("load comment users: %w", err)
	}
	article.Comments = expandComments(article.Comments, users)
	return article, nil
}

// ToggleLike adds userID to the article's likes, or removes it if present.
func (a *App) ToggleLike(articleID, userID string) ([]domain.UserRef, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidInput("userId required")
	}
	likes, found, err := a.store.ToggleLike(strings.TrimSpace(articleID), userID)
	if err != nil {
		return nil, fmt.Errorf("toggle like: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return a.expandLikes(likes)
}

// Unlike removes userID from the article's likes. Removing an absent like is
// not an error.
func (a *App) Unlike(articleID, userID string) ([]domain.UserRef, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidInput("userId required")
	}
	likes, found, err := a.store.RemoveLike(strings.TrimSpace(articleID), userID)
	if err != nil {
		return nil, fmt.Errorf("remove like: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return a.expandLikes(likes)
}

// AddComment appends a comment and returns the article's full comment list.
func (a *App) AddComment(articleID, userID, text string) ([]domain.Comment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidInput("userId required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, invalidInput("text required")
	}
	comments, found, err := a.store.AppendComment(strings.TrimSpace(articleID), domain.Comment{
		User: domain.UserRef{ID: userID},
		Text: text,
		Date: a.timestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("append comment: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	users, err := a.store.GetUsersByIDs(dedupe(commentUserIDs(comments)))
	if err != nil {
		return nil, fmt.Errorf("load comment users: %w", err)
	}
	return expandComments(comments, users), nil
}

// Search matches query literally against titles, ignoring case.
func (a *App) Search(query string) ([]domain.ArticleSummary, error) {
	results, err := a.store.SearchArticles(query)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return results, nil
}

// DeleteArticle removes an article if requester is an admin or its owner.
// Ownership is the stored author id; rows without one fall back to the
// author name.
func (a *App) DeleteArticle(ctx context.Context, articleID string, requester domain.Claims) error {
	articleID = strings.TrimSpace(articleID)
	article, ok, err := a.store.GetArticle(articleID)
	if err != nil {
		return fmt.Errorf("get article: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if !canDelete(article, requester) {
		return fmt.Errorf("%w: not the author", ErrForbidden)
	}
	deleted, err := a.store.DeleteArticle(articleID)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	if article.Image != "" {
		if err := a.images.Remove(ctx, article.Image); err != nil {
			util.LoggerFromContext(ctx).Warn("article image cleanup failed", "article_id", articleID, "err", err)
		}
	}
	return nil
}

func canDelete(article domain.Article, requester domain.Claims) bool {
	if requester.Role == domain.RoleAdmin {
		return true
	}
	if article.AuthorID != "" {
		return article.AuthorID == requester.ID
	}
	return requester.Name != "" && article.Author == requester.Name
}

func (a *App) expandLikes(ids []string) ([]domain.UserRef, error) {
	users, err := a.store.GetUsersByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("load like users: %w", err)
	}
	out := make([]domain.UserRef, 0, len(ids))
	for _, id := range ids {
		ref := domain.UserRef{ID: id}
		if u, ok := users[id]; ok {
			ref.Name = u.Name
			ref.Email = u.Email
		}
		out = append(out, ref)
	}
	return out, nil
}

func expandComments(comments []domain.Comment, users map[string]domain.User) []domain.Comment {
	out := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		ref := domain.UserRef{ID: c.User.ID}
		if u, ok := users[c.User.ID]; ok {
			ref.Email = u.Email
		}
		c.User = ref
		out = append(out, c)
	}
	return out
}

func commentUserIDs(comments []domain.Comment) []string {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.User.ID)
	}
	return ids
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
