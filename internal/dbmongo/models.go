package dbmongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names.
const (
	UsersCollection    = "users"
	PostsCollection    = "posts"
	StoriesCollection  = "stories"
	CommentsCollection = "comments"
)

// User is an identity with its follow edges and content references.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username     string               `bson:"username" json:"username"`
	Name         string               `bson:"name" json:"name"`
	Email        string               `bson:"email,omitempty" json:"email,omitempty"`
	Bio          string               `bson:"bio" json:"bio"`
	ProfileImage string               `bson:"profile_image" json:"profile_image"`
	PasswordHash string               `bson:"password_hash" json:"-"`
	Posts        []primitive.ObjectID `bson:"posts" json:"posts"`
	Saved        []primitive.ObjectID `bson:"saved" json:"saved"`
	Stories      []primitive.ObjectID `bson:"stories" json:"stories"`
	Followers    []primitive.ObjectID `bson:"followers" json:"followers"`
	Followings   []primitive.ObjectID `bson:"followings" json:"followings"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updated_at"`
}

// RefField names one of the reference sets on a User.
type RefField string

const (
	RefPosts      RefField = "posts"
	RefSaved      RefField = "saved"
	RefStories    RefField = "stories"
	RefFollowers  RefField = "followers"
	RefFollowings RefField = "followings"
)

func (f RefField) IsValid() bool {
	switch f {
	case RefPosts, RefSaved, RefStories, RefFollowers, RefFollowings:
		return true
	}
	return false
}

// Refs returns the slice backing field f.
func (u *User) Refs(f RefField) []primitive.ObjectID {
	switch f {
	case RefPosts:
		return u.Posts
	case RefSaved:
		return u.Saved
	case RefStories:
		return u.Stories
	case RefFollowers:
		return u.Followers
	case RefFollowings:
		return u.Followings
	}
	return nil
}

// HasRef reports whether ref is in field f.
func (u *User) HasRef(f RefField, ref primitive.ObjectID) bool {
	for _, id := range u.Refs(f) {
		if id == ref {
			return true
		}
	}
	return false
}

// ProfileUpdate holds the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Username     *string
	Name         *string
	Bio          *string
	ProfileImage *string
}

type Post struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Owner      primitive.ObjectID   `bson:"owner" json:"owner"`
	Image      string               `bson:"image" json:"image"`
	MediaToken string               `bson:"media_token" json:"-"`
	Caption    string               `bson:"caption" json:"caption"`
	Likes      []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments   []primitive.ObjectID `bson:"comments" json:"comments"`
	CreatedAt  time.Time            `bson:"created_at" json:"created_at"`
}

type Story struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner      primitive.ObjectID `bson:"owner" json:"owner"`
	Image      string             `bson:"image" json:"image"`
	MediaToken string             `bson:"media_token" json:"-"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// Comment is one node of a post's reply tree. ParentID is nil for top-level
// comments; Depth is 0 at the top level.
type Comment struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	PostID     primitive.ObjectID  `bson:"post_id" json:"post_id"`
	ParentID   *primitive.ObjectID `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	Depth      int                 `bson:"depth" json:"depth"`
	Author     primitive.ObjectID  `bson:"author" json:"author"`
	AuthorName string              `bson:"author_name" json:"author_name"`
	Text       string              `bson:"text" json:"text"`
	Likes      []string            `bson:"likes" json:"likes"`
	CreatedAt  time.Time           `bson:"created_at" json:"created_at"`
}
