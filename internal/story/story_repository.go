package story

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"collegovibe/internal/dbmongo"
)

// StoryRepository stores story documents. Listing order is insertion order.
type StoryRepository interface {
	CreateStory(ctx context.Context, s *dbmongo.Story) error
	GetStoriesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.Story, error)
	ListStories(ctx context.Context) ([]*dbmongo.Story, error)
	ListStoriesByOwner(ctx context.Context, owner primitive.ObjectID) ([]*dbmongo.Story, error)
	// DeleteStory reports false when the story was already gone.
	DeleteStory(ctx context.Context, id primitive.ObjectID) (bool, error)
}

type storyRepository struct {
	coll *mongo.Collection
}

func NewStoryRepository(db *mongo.Database) StoryRepository {
	return &storyRepository{coll: db.Collection(dbmongo.StoriesCollection)}
}

var insertionOrder = options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

func (r *storyRepository) CreateStory(ctx context.Context, s *dbmongo.Story) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, s); err != nil {
		return dbmongo.MapError("create story", err)
	}
	return nil
}

func (r *storyRepository) GetStoriesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.Story, error) {
	if len(ids) == 0 {
		return []*dbmongo.Story{}, nil
	}
	found, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]*dbmongo.Story, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}
	out := make([]*dbmongo.Story, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *storyRepository) ListStories(ctx context.Context) ([]*dbmongo.Story, error) {
	return r.find(ctx, bson.M{})
}

func (r *storyRepository) ListStoriesByOwner(ctx context.Context, owner primitive.ObjectID) ([]*dbmongo.Story, error) {
	return r.find(ctx, bson.M{"owner": owner})
}

func (r *storyRepository) DeleteStory(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, dbmongo.MapError("delete story", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *storyRepository) find(ctx context.Context, filter bson.M) ([]*dbmongo.Story, error) {
	cur, err := r.coll.Find(ctx, filter, insertionOrder)
	if err != nil {
		return nil, dbmongo.MapError("list stories", err)
	}
	stories := []*dbmongo.Story{}
	if err := cur.All(ctx, &stories); err != nil {
		return nil, dbmongo.MapError("decode stories", err)
	}
	return stories, nil
}
