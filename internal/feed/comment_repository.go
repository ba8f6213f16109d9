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

// CommentRepository stores comments as an adjacency list keyed by post_id
// and parent_id.
type CommentRepository interface {
	CreateComment(ctx context.Context, c *dbmongo.Comment) error
	GetComment(ctx context.Context, id primitive.ObjectID) (*dbmongo.Comment, error)
	// ListComments returns every comment on the post, oldest first.
	ListComments(ctx context.Context, postID primitive.ObjectID) ([]*dbmongo.Comment, error)
	ToggleCommentLike(ctx context.Context, id primitive.ObjectID, handle string) (bool, error)
	DeleteComments(ctx context.Context, ids []primitive.ObjectID) error
}

type commentRepository struct {
	coll *mongo.Collection
}

func NewCommentRepository(db *mongo.Database) CommentRepository {
	return &commentRepository{coll: db.Collection(dbmongo.CommentsCollection)}
}

func (r *commentRepository) CreateComment(ctx context.Context, c *dbmongo.Comment) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.Likes == nil {
		c.Likes = []string{}
	}
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return dbmongo.MapError("create comment", err)
	}
	return nil
}

func (r *commentRepository) GetComment(ctx context.Context, id primitive.ObjectID) (*dbmongo.Comment, error) {
	var c dbmongo.Comment
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, dbmongo.MapError(fmt.Sprintf("get comment %s", id.Hex()), err)
	}
	return &c, nil
}

func (r *commentRepository) ListComments(ctx context.Context, postID primitive.ObjectID) ([]*dbmongo.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"post_id": postID}, opts)
	if err != nil {
		return nil, dbmongo.MapError("list comments", err)
	}
	comments := []*dbmongo.Comment{}
	if err := cur.All(ctx, &comments); err != nil {
		return nil, dbmongo.MapError("decode comments", err)
	}
	return comments, nil
}

func (r *commentRepository) ToggleCommentLike(ctx context.Context, id primitive.ObjectID, handle string) (bool, error) {
	for attempt := 0; attempt < toggleAttempts; attempt++ {
		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": id, "likes": bson.M{"$ne": handle}},
			bson.M{"$push": bson.M{"likes": handle}})
		if err != nil {
			return false, dbmongo.MapError("like comment", err)
		}
		if res.MatchedCount > 0 {
			return true, nil
		}

		res, err = r.coll.UpdateOne(ctx,
			bson.M{"_id": id, "likes": handle},
			bson.M{"$pull": bson.M{"likes": handle}})
		if err != nil {
			return false, dbmongo.MapError("unlike comment", err)
		}
		if res.MatchedCount > 0 {
			return false, nil
		}

		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return false, dbmongo.MapError("count comment", err)
		}
		if n == 0 {
			return false, common.NotFoundf("comment %s", id.Hex())
		}
	}
	return false, common.Transient("toggle comment like", fmt.Errorf("comment %s kept changing", id.Hex()))
}

func (r *commentRepository) DeleteComments(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return dbmongo.MapError("delete comments", err)
	}
	return nil
}
