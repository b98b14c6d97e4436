package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"blogsvc/pkg/domain"
)

const mongoOpTimeout = 5 * time.Second

// MongoStore implements Store on MongoDB. Likes and comments live embedded in
// the article document and are changed with single-document updates.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	articles *mongo.Collection
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type commentDoc struct {
	User string    `bson:"user"`
	Text string    `bson:"text"`
	Date time.Time `bson:"date"`
}

type articleDoc struct {
	ID          string       `bson:"_id"`
	Title       string       `bson:"title"`
	Description string       `bson:"description"`
	Image       string       `bson:"image"`
	Date        time.Time    `bson:"date"`
	Author      string       `bson:"author"`
	AuthorID    string       `bson:"authorId,omitempty"`
	Likes       []string     `bson:"likes"`
	Comments    []commentDoc `bson:"comments"`
}

// NewMongoStore connects to uri and prepares collections and indexes in database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("mongo URI required")
	}
	if strings.TrimSpace(database) == "" {
		database = "blog"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		users:    db.Collection("users"),
		articles: db.Collection("articles"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	// Email stays non-unique: registration checks exact matches only.
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	if _, err := s.articles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "authorId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create articles indexes: %w", err)
	}
	return nil
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), mongoOpTimeout)
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := opContext()
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) SaveUser(u domain.User) error {
	ctx, cancel := opContext()
	defer cancel()
	doc := userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) HasUserEmail(email string) (bool, error) {
	ctx, cancel := opContext()
	defer cancel()
	n, err := s.users.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetUserByEmailFold returns the oldest user whose email equals email ignoring case.
func (s *MongoStore) GetUserByEmailFold(email string) (domain.User, bool, error) {
	ctx, cancel := opContext()
	defer cancel()
	filter := bson.M{"email": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(email) + "$", Options: "i"}}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	var doc userDoc
	if err := s.users.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromDoc(doc), true, nil
}

func (s *MongoStore) GetUserByID(id string) (domain.User, bool, error) {
	ctx, cancel := opContext()
	defer cancel()
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromDoc(doc), true, nil
}

func (s *MongoStore) GetUsersByIDs(ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, cancel := opContext()
	defer cancel()
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = userFromDoc(d)
	}
	return out, nil
}

// SaveArticle upserts the article's own fields, leaving likes and comments intact.
func (s *MongoStore) SaveArticle(a domain.Article) error {
	ctx, cancel := opContext()
	defer cancel()
	update := bson.M{
		"$set": bson.M{
			"title":       a.Title,
			"description": a.Description,
			"image":       a.Image,
			"author":      a.Author,
			"authorId":    a.AuthorID,
		},
		"$setOnInsert": bson.M{
			"date":     a.Date,
			"likes":    bson.A{},
			"comments": bson.A{},
		},
	}
	_, err := s.articles.UpdateOne(ctx, bson.M{"_id": a.ID}, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) GetArticle(id string) (domain.Article, bool, error) {
	ctx, cancel := opContext()
	defer cancel()
	var doc articleDoc
	if err := s.articles.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Article{}, false, nil
		}
		return domain.Article{}, false, err
	}
	return articleFromDoc(doc), true, nil
}

func (s *MongoStore) ListArticles() ([]domain.Article, error) {
	ctx, cancel := opContext()
	defer cancel()
	cur, err := s.articles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []articleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Article, 0, len(docs))
	for _, d := range docs {
		out = append(out, articleFromDoc(d))
	}
	return out, nil
}

// SearchArticles matches query literally against titles, ignoring case.
func (s *MongoStore) SearchArticles(query string) ([]domain.ArticleSummary, error) {
	ctx, cancel := opContext()
	defer cancel()
	filter := bson.M{"title": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "title": 1}).
		SetSort(bson.D{{Key: "date", Value: 1}})
	cur, err := s.articles.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []articleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.ArticleSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.ArticleSummary{ID: d.ID, Title: d.Title})
	}
	return out, nil
}

func (s *MongoStore) DeleteArticle(id string) (bool, error) {
	ctx, cancel := opContext()
	defer cancel()
	res, err := s.articles.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// ToggleLike flips membership with one pipeline update so concurrent toggles
// never lose each other's writes.
func (s *MongoStore) ToggleLike(articleID, userID string) ([]string, bool, error) {
	uid := bson.M{"$literal": userID}
	current := bson.M{"$ifNull": bson.A{"$likes", bson.A{}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"likes": bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{uid, current}},
				bson.M{"$filter": bson.M{
					"input": current,
					"cond":  bson.M{"$ne": bson.A{"$$this", uid}},
				}},
				bson.M{"$concatArrays": bson.A{current, bson.A{uid}}},
			}},
		}}},
	}
	doc, found, err := s.updateArticle(articleID, pipeline)
	if err != nil || !found {
		return nil, found, err
	}
	return nonNilLikes(doc.Likes), true, nil
}

func (s *MongoStore) RemoveLike(articleID, userID string) ([]string, bool, error) {
	doc, found, err := s.updateArticle(articleID, bson.M{"$pull": bson.M{"likes": userID}})
	if err != nil || !found {
		return nil, found, err
	}
	return nonNilLikes(doc.Likes), true, nil
}

func (s *MongoStore) AppendComment(articleID string, c domain.Comment) ([]domain.Comment, bool, error) {
	update := bson.M{"$push": bson.M{"comments": commentDoc{User: c.User.ID, Text: c.Text, Date: c.Date}}}
	doc, found, err := s.updateArticle(articleID, update)
	if err != nil || !found {
		return nil, found, err
	}
	return articleFromDoc(doc).Comments, true, nil
}

func (s *MongoStore) updateArticle(id string, update any) (articleDoc, bool, error) {
	ctx, cancel := opContext()
	defer cancel()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc articleDoc
	if err := s.articles.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return articleDoc{}, false, nil
		}
		return articleDoc{}, false, err
	}
	return doc, true, nil
}

func nonNilLikes(likes []string) []string {
	if likes == nil {
		return []string{}
	}
	return likes
}

func userFromDoc(d userDoc) domain.User {
	role := domain.UserRole(d.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         role,
		CreatedAt:    d.CreatedAt,
	}
}

func articleFromDoc(d articleDoc) domain.Article {
	comments := make([]domain.Comment, 0, len(d.Comments))
	for _, c := range d.Comments {
		comments = append(comments, domain.Comment{User: domain.UserRef{ID: c.User}, Text: c.Text, Date: c.Date})
	}
	return domain.Article{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Image:       d.Image,
		Date:        d.Date,
		Author:      d.Author,
		AuthorID:    d.AuthorID,
		Likes:       nonNilLikes(d.Likes),
		Comments:    comments,
	}
}
