package feed

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
)

// toggleAttempts bounds the retries when a concurrent toggle wins both
// conditional updates in between.
const toggleAttempts = 3

// PostRepository stores post documents. ListPosts returns insertion order.
type PostRepository interface {
	CreatePost(ctx context.Context, p *dbmongo.Post) error
	GetPost(ctx context.Context, id primitive.ObjectID) (*dbmongo.Post, error)
	ListPosts(ctx context.Context) ([]*dbmongo.Post, error)
	GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.Post, error)
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	// ToggleLike adds userID to the likes set when absent and removes it when
	// present, as one conditional update. It returns the resulting state.
	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error)
	AddCommentRef(ctx context.Context, postID, commentID primitive.ObjectID) error
	RemoveCommentRef(ctx context.Context, postID, commentID primitive.ObjectID) error
}

type postRepository struct {
	coll *mongo.Collection
}

func NewPostRepository(db *mongo.Database) PostRepository {
	return &postRepository{coll: db.Collection(dbmongo.PostsCollection)}
}

func (r *postRepository) CreatePost(ctx context.Context, p *dbmongo.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Likes == nil {
		p.Likes = []primitive.ObjectID{}
	}
	if p.Comments == nil {
		p.Comments = []primitive.ObjectID{}
	}
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return dbmongo.MapError("create post", err)
	}
	return nil
}

func (r *postRepository) GetPost(ctx context.Context, id primitive.ObjectID) (*dbmongo.Post, error) {
	var p dbmongo.Post
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, dbmongo.MapError(fmt.Sprintf("get post %s", id.Hex()), err)
	}
	return &p, nil
}

func (r *postRepository) ListPosts(ctx context.Context) ([]*dbmongo.Post, error) {
	return r.find(ctx, bson.M{})
}

func (r *postRepository) GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.Post, error) {
	if len(ids) == 0 {
		return []*dbmongo.Post{}, nil
	}
	found, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]*dbmongo.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]*dbmongo.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *postRepository) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return dbmongo.MapError("delete post", err)
	}
	return nil
}

func (r *postRepository) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	for attempt := 0; attempt < toggleAttempts; attempt++ {
		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": postID, "likes": bson.M{"$ne": userID}},
			bson.M{"$push": bson.M{"likes": userID}})
		if err != nil {
			return false, dbmongo.MapError("like post", err)
		}
		if res.MatchedCount > 0 {
			return true, nil
		}

		res, err = r.coll.UpdateOne(ctx,
			bson.M{"_id": postID, "likes": userID},
			bson.M{"$pull": bson.M{"likes": userID}})
		if err != nil {
			return false, dbmongo.MapError("unlike post", err)
		}
		if res.MatchedCount > 0 {
			return false, nil
		}

		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": postID})
		if err != nil {
			return false, dbmongo.MapError("count post", err)
		}
		if n == 0 {
			return false, common.NotFoundf("post %s", postID.Hex())
		}
	}
	return false, common.Transient("toggle like", fmt.Errorf("post %s kept changing", postID.Hex()))
}

func (r *postRepository) AddCommentRef(ctx context.Context, postID, commentID primitive.ObjectID) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": postID},
		bson.M{"$addToSet": bson.M{"comments": commentID}})
	if err != nil {
		return dbmongo.MapError("link comment", err)
	}
	if res.MatchedCount == 0 {
		return common.NotFoundf("post %s", postID.Hex())
	}
	return nil
}

func (r *postRepository) RemoveCommentRef(ctx context.Context, postID, commentID primitive.ObjectID) error {
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": postID},
		bson.M{"$pull": bson.M{"comments": commentID}}); err != nil {
		return dbmongo.MapError("unlink comment", err)
	}
	return nil
}

func (r *postRepository) find(ctx context.Context, filter bson.M) ([]*dbmongo.Post, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, dbmongo.MapError("list posts", err)
	}
	posts := []*dbmongo.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, dbmongo.MapError("decode posts", err)
	}
	return posts, nil
}
