package user

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
)

// UserRepository is the identity and follow-graph store. Every mutation is a
// single-document atomic update.
type UserRepository interface {
	CreateUser(ctx context.Context, user *dbmongo.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*dbmongo.User, error)
	GetUserByHandle(ctx context.Context, handle string) (*dbmongo.User, error)
	// GetUsersByIDs returns the users in the order of ids, skipping ids that no longer resolve.
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.User, error)
	SearchByHandlePrefix(ctx context.Context, prefix string, limit int64) ([]*dbmongo.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update dbmongo.ProfileUpdate, at time.Time) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string, at time.Time) error
	// AddRef adds ref to the set field. It reports whether the set changed and
	// fails with ErrNotFound when the user does not exist.
	AddRef(ctx context.Context, id primitive.ObjectID, field dbmongo.RefField, ref primitive.ObjectID) (bool, error)
	// RemoveRef removes ref from the set field. A missing user is not an error.
	RemoveRef(ctx context.Context, id primitive.ObjectID, field dbmongo.RefField, ref primitive.ObjectID) (bool, error)
}

type userRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{coll: db.Collection(dbmongo.UsersCollection)}
}

func (r *userRepository) CreateUser(ctx context.Context, user *dbmongo.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	normalizeRefs(user)
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return dbmongo.MapError("create user", err)
	}
	return nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*dbmongo.User, error) {
	var u dbmongo.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, dbmongo.MapError(fmt.Sprintf("get user %s", id.Hex()), err)
	}
	return &u, nil
}

func (r *userRepository) GetUserByHandle(ctx context.Context, handle string) (*dbmongo.User, error) {
	var u dbmongo.User
	if err := r.coll.FindOne(ctx, bson.M{"username": handle}).Decode(&u); err != nil {
		return nil, dbmongo.MapError(fmt.Sprintf("get user %q", handle), err)
	}
	return &u, nil
}

func (r *userRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.User, error) {
	if len(ids) == 0 {
		return []*dbmongo.User{}, nil
	}

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, dbmongo.MapError("list users", err)
	}
	var found []*dbmongo.User
	if err := cur.All(ctx, &found); err != nil {
		return nil, dbmongo.MapError("decode users", err)
	}

	byID := make(map[primitive.ObjectID]*dbmongo.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	out := make([]*dbmongo.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *userRepository) SearchByHandlePrefix(ctx context.Context, prefix string, limit int64) ([]*dbmongo.User, error) {
	filter := bson.M{"username": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	opts := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "username", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, dbmongo.MapError("search users", err)
	}
	users := []*dbmongo.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, dbmongo.MapError("decode users", err)
	}
	return users, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update dbmongo.ProfileUpdate, at time.Time) error {
	set := bson.M{"updated_at": at}
	if update.Username != nil {
		set["username"] = *update.Username
	}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}
	if update.ProfileImage != nil {
		set["profile_image"] = *update.ProfileImage
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return dbmongo.MapError("update profile", err)
	}
	if res.MatchedCount == 0 {
		return common.NotFoundf("user %s", id.Hex())
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"password_hash": hash, "updated_at": at}})
	if err != nil {
		return dbmongo.MapError("update password", err)
	}
	if res.MatchedCount == 0 {
		return common.NotFoundf("user %s", id.Hex())
	}
	return nil
}

func (r *userRepository) AddRef(ctx context.Context, id primitive.ObjectID, field dbmongo.RefField, ref primitive.ObjectID) (bool, error) {
	if !field.IsValid() {
		return false, common.Validationf("unknown reference field %q", field)
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{string(field): ref}})
	if err != nil {
		return false, dbmongo.MapError("add "+string(field), err)
	}
	if res.MatchedCount == 0 {
		return false, common.NotFoundf("user %s", id.Hex())
	}
	return res.ModifiedCount > 0, nil
}

func (r *userRepository) RemoveRef(ctx context.Context, id primitive.ObjectID, field dbmongo.RefField, ref primitive.ObjectID) (bool, error) {
	if !field.IsValid() {
		return false, common.Validationf("unknown reference field %q", field)
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$pull": bson.M{string(field): ref}})
	if err != nil {
		return false, dbmongo.MapError("remove "+string(field), err)
	}
	return res.ModifiedCount > 0, nil
}

// normalizeRefs replaces nil ref sets with empty arrays; $addToSet rejects null fields.
func normalizeRefs(u *dbmongo.User) {
	for _, p := range []*[]primitive.ObjectID{&u.Posts, &u.Saved, &u.Stories, &u.Followers, &u.Followings} {
		if *p == nil {
			*p = []primitive.ObjectID{}
		}
	}
}
