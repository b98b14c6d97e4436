package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"blogsvc/pkg/domain"
)

const migrateLockID int64 = 51730291

// GormStore implements Store using GORM. Postgres is the production dialect.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the Postgres DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database URL required")
	}
	return NewGormStoreWithDialector(postgres.Open(dsn))
}

// NewGormStoreWithDialector opens a store on any GORM dialector.
func NewGormStoreWithDialector(dialector gorm.Dialector) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &ArticleModel{}, &LikeModel{}, &CommentModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// withMigrationLock serializes migrations across replicas on Postgres.
func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	if db.Dialector.Name() != "postgres" {
		return fn(db)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveUser inserts or replaces a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role"}),
	}).Create(&model).Error
}

// HasUserEmail checks for an exact, case-sensitive email match.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmailFold looks up the oldest user whose email matches ignoring case.
func (s *GormStore) GetUserByEmailFold(email string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.Where("LOWER(email) = ?", strings.ToLower(email)).
		Order("created_at ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUsersByIDs returns the users that exist among ids, keyed by ID.
func (s *GormStore) GetUsersByIDs(ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var models []UserModel
	if err := s.db.Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		out[m.ID] = userFromModel(m)
	}
	return out, nil
}

// SaveArticle inserts or updates an article's own columns. Likes and comments
// are only changed through their dedicated operations.
func (s *GormStore) SaveArticle(a domain.Article) error {
	model := articleToModel(a)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "image", "author", "author_id"}),
	}).Create(&model).Error
}

// GetArticle loads one article with its likes and comments.
func (s *GormStore) GetArticle(id string) (domain.Article, bool, error) {
	var model ArticleModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Article{}, false, nil
		}
		return domain.Article{}, false, err
	}
	articles, err := s.hydrate([]ArticleModel{model})
	if err != nil {
		return domain.Article{}, false, err
	}
	return articles[0], true, nil
}

// ListArticles returns all articles ordered by creation time.
func (s *GormStore) ListArticles() ([]domain.Article, error) {
	var models []ArticleModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return s.hydrate(models)
}

// SearchArticles matches query as a literal, case-insensitive title substring.
func (s *GormStore) SearchArticles(query string) ([]domain.ArticleSummary, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var models []ArticleModel
	if err := s.db.Select("id", "title").
		Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ArticleSummary, 0, len(models))
	for _, m := range models {
		out = append(out, domain.ArticleSummary{ID: m.ID, Title: m.Title})
	}
	return out, nil
}

// DeleteArticle removes an article with its likes and comments.
func (s *GormStore) DeleteArticle(id string) (bool, error) {
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&LikeModel{}, "article_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&CommentModel{}, "article_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&ArticleModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		found = res.RowsAffected > 0
		return nil
	})
	return found, err
}

// ToggleLike removes userID from the article's likes if present, adds it otherwise.
func (s *GormStore) ToggleLike(articleID, userID string) ([]string, bool, error) {
	var likes []string
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := articleExists(tx, articleID)
		if err != nil || !ok {
			return err
		}
		found = true
		res := tx.Delete(&LikeModel{}, "article_id = ? AND user_id = ?", articleID, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			like := LikeModel{ArticleID: articleID, UserID: userID, CreatedAt: time.Now().UTC()}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return err
			}
		}
		likes, err = listLikes(tx, articleID)
		return err
	})
	return likes, found, err
}

// RemoveLike removes userID from the article's likes; absent users are a no-op.
func (s *GormStore) RemoveLike(articleID, userID string) ([]string, bool, error) {
	var likes []string
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := articleExists(tx, articleID)
		if err != nil || !ok {
			return err
		}
		found = true
		if err := tx.Delete(&LikeModel{}, "article_id = ? AND user_id = ?", articleID, userID).Error; err != nil {
			return err
		}
		likes, err = listLikes(tx, articleID)
		return err
	})
	return likes, found, err
}

// AppendComment inserts a comment row and returns the full ordered list.
func (s *GormStore) AppendComment(articleID string, c domain.Comment) ([]domain.Comment, bool, error) {
	var comments []domain.Comment
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := articleExists(tx, articleID)
		if err != nil || !ok {
			return err
		}
		found = true
		model := CommentModel{
			ArticleID: articleID,
			UserID:    c.User.ID,
			Text:      c.Text,
			CreatedAt: c.Date,
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		var models []CommentModel
		if err := tx.Where("article_id = ?", articleID).Order("id ASC").Find(&models).Error; err != nil {
			return err
		}
		comments = make([]domain.Comment, 0, len(models))
		for _, m := range models {
			comments = append(comments, commentFromModel(m))
		}
		return nil
	})
	return comments, found, err
}

// hydrate attaches likes and comments to article rows in two queries.
func (s *GormStore) hydrate(models []ArticleModel) ([]domain.Article, error) {
	out := make([]domain.Article, 0, len(models))
	if len(models) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	var likeModels []LikeModel
	if err := s.db.Where("article_id IN ?", ids).Order("created_at ASC").Find(&likeModels).Error; err != nil {
		return nil, fmt.Errorf("load likes: %w", err)
	}
	var commentModels []CommentModel
	if err := s.db.Where("article_id IN ?", ids).Order("id ASC").Find(&commentModels).Error; err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	likes := make(map[string][]string, len(models))
	for _, l := range likeModels {
		likes[l.ArticleID] = append(likes[l.ArticleID], l.UserID)
	}
	comments := make(map[string][]domain.Comment, len(models))
	for _, c := range commentModels {
		comments[c.ArticleID] = append(comments[c.ArticleID], commentFromModel(c))
	}
	for _, m := range models {
		a := articleFromModel(m)
		if l := likes[m.ID]; l != nil {
			a.Likes = l
		}
		if c := comments[m.ID]; c != nil {
			a.Comments = c
		}
		out = append(out, a)
	}
	return out, nil
}

func articleExists(tx *gorm.DB, id string) (bool, error) {
	var count int64
	if err := tx.Model(&ArticleModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func listLikes(tx *gorm.DB, articleID string) ([]string, error) {
	likes := []string{}
	if err := tx.Model(&LikeModel{}).
		Where("article_id = ?", articleID).
		Order("created_at ASC").
		Pluck("user_id", &likes).Error; err != nil {
		return nil, err
	}
	return likes, nil
}

// escapeLike makes LIKE wildcards in user input match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role := domain.UserRole(m.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         role,
		CreatedAt:    m.CreatedAt,
	}
}

func articleToModel(a domain.Article) ArticleModel {
	return ArticleModel{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Image:       a.Image,
		Author:      a.Author,
		AuthorID:    a.AuthorID,
		CreatedAt:   a.Date,
	}
}

func articleFromModel(m ArticleModel) domain.Article {
	return domain.Article{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Image:       m.Image,
		Date:        m.CreatedAt,
		Author:      m.Author,
		AuthorID:    m.AuthorID,
		Likes:       []string{},
		Comments:    []domain.Comment{},
	}
}

func commentFromModel(m CommentModel) domain.Comment {
	return domain.Comment{
		User: domain.UserRef{ID: m.UserID},
		Text: m.Text,
		Date: m.CreatedAt,
	}
}
