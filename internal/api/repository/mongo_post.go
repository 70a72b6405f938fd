package repository

import (
	"context"
	"ctchen222/blog/internal/api/models"
	"ctchen222/blog/internal/db"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type postDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Summary   string             `bson:"summary"`
	Content   string             `bson:"content"`
	Cover     string             `bson:"cover"`
	Author    primitive.ObjectID `bson:"author"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// postView is a post document after the author lookup stage.
type postView struct {
	ID         primitive.ObjectID `bson:"_id"`
	Title      string             `bson:"title"`
	Summary    string             `bson:"summary"`
	Content    string             `bson:"content"`
	Cover      string             `bson:"cover"`
	Author     primitive.ObjectID `bson:"author"`
	AuthorView *models.Author     `bson:"authorView"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

func (v postView) toModel() models.Post {
	post := models.Post{
		ID:        v.ID.Hex(),
		Title:     v.Title,
		Summary:   v.Summary,
		Content:   v.Content,
		Cover:     v.Cover,
		AuthorID:  v.Author.Hex(),
		Author:    v.AuthorView,
		CreatedAt: v.CreatedAt.UTC(),
		UpdatedAt: v.UpdatedAt.UTC(),
	}
	if post.Author == nil {
		post.Author = &models.Author{}
	}
	return post
}

// authorLookup resolves the author reference to {username} only.
var authorLookup = mongo.Pipeline{
	{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: db.UsersCollection},
		{Key: "localField", Value: "author"},
		{Key: "foreignField", Value: "_id"},
		{Key: "pipeline", Value: bson.A{
			bson.D{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}, {Key: "username", Value: 1}}}},
		}},
		{Key: "as", Value: "authorView"},
	}}},
	{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$authorView"},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}},
}

type mongoPostRepository struct {
	posts *mongo.Collection
}

// NewMongoPostRepository creates a new MongoDB-based PostRepository.
func NewMongoPostRepository(mdb *mongo.Database) PostRepository {
	return &mongoPostRepository{posts: mdb.Collection(db.PostsCollection)}
}

func (r *mongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	ctx, span := tracer.Start(ctx, "PostRepository.CreatePost")
	defer span.End()

	authorID, err := primitive.ObjectIDFromHex(post.AuthorID)
	if err != nil {
		return fmt.Errorf("invalid author id %q: %w", post.AuthorID, err)
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}

	doc := postDocument{
		ID:        primitive.NewObjectID(),
		Title:     post.Title,
		Summary:   post.Summary,
		Content:   post.Content,
		Cover:     post.Cover,
		Author:    authorID,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
	if _, err := r.posts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	post.ID = doc.ID.Hex()
	return nil
}

func (r *mongoPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	ctx, span := tracer.Start(ctx, "PostRepository.UpdatePost")
	defer span.End()

	id, err := primitive.ObjectIDFromHex(post.ID)
	if err != nil {
		return ErrNotFound
	}

	res, err := r.posts.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"title":     post.Title,
		"summary":   post.Summary,
		"content":   post.Content,
		"cover":     post.Cover,
		"updatedAt": post.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoPostRepository) GetPost(ctx context.Context, id string) (*models.Post, error) {
	ctx, span := tracer.Start(ctx, "PostRepository.GetPost")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil // malformed ids cannot match any post
	}

	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: oid}}}},
	}, authorLookup...)

	views, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if len(views) == 0 {
		return nil, nil
	}
	post := views[0].toModel()
	return &post, nil
}

func (r *mongoPostRepository) ListPosts(ctx context.Context, limit int) ([]models.Post, error) {
	ctx, span := tracer.Start(ctx, "PostRepository.ListPosts")
	defer span.End()

	pipeline := append(mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}, authorLookup...)

	views, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	posts := make([]models.Post, 0, len(views))
	for _, v := range views {
		posts = append(posts, v.toModel())
	}
	return posts, nil
}

func (r *mongoPostRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]postView, error) {
	cursor, err := r.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var views []postView
	if err := cursor.All(ctx, &views); err != nil {
		return nil, err
	}
	return views, nil
}
