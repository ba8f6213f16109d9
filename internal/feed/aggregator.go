package feed

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
)

// UserSummary is the public face of a user inside feed responses.
type UserSummary struct {
	ID           primitive.ObjectID `json:"id"`
	Username     string             `json:"username"`
	Name         string             `json:"name"`
	ProfileImage string             `json:"profile_image"`
}

func summarize(u *dbmongo.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Username: u.Username, Name: u.Name, ProfileImage: u.ProfileImage}
}

// PostView is a post annotated with its author and age label. Author is nil
// when the owner no longer exists.
type PostView struct {
	*dbmongo.Post
	Author    *UserSummary `json:"author"`
	Age       string       `json:"age"`
	LikeCount int          `json:"like_count"`
}

func newPostView(p *dbmongo.Post, author *dbmongo.User, now time.Time) PostView {
	return PostView{
		Post:      p,
		Author:    summarize(author),
		Age:       common.FormatAge(p.CreatedAt, now),
		LikeCount: len(p.Likes),
	}
}

// RailEntry is one owner's slot in the story rail.
type RailEntry struct {
	*dbmongo.Story
	Owner *UserSummary `json:"owner_profile"`
	Age   string       `json:"age"`
}

// CommentNode is a comment with its replies nested beneath it.
type CommentNode struct {
	*dbmongo.Comment
	Age     string         `json:"age"`
	Replies []*CommentNode `json:"replies"`
}

// buildThread nests comments under their parents. Input order is preserved
// among siblings. Comments whose parent is gone are dropped.
func buildThread(comments []*dbmongo.Comment, now time.Time) []*CommentNode {
	nodes := make(map[primitive.ObjectID]*CommentNode, len(comments))
	for _, c := range comments {
		nodes[c.ID] = &CommentNode{Comment: c, Age: common.FormatAge(c.CreatedAt, now), Replies: []*CommentNode{}}
	}

	roots := []*CommentNode{}
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*c.ParentID]; ok {
			parent.Replies = append(parent.Replies, node)
		}
	}
	return roots
}

// FeedView is everything the home page shows a viewer.
type FeedView struct {
	Viewer    *UserSummary   `json:"viewer"`
	Posts     []PostView     `json:"posts"`
	StoryRail []RailEntry    `json:"story_rail"`
	Audience  []*UserSummary `json:"audience"`
}

// BuildFeed assembles the home page for viewerHandle: every post in insertion
// order, one story rail slot per other owner with a visible story, and the
// viewer's contacts. Expired stories met on the way are handed to the
// lifecycle for removal.
func (s *FeedService) BuildFeed(ctx context.Context, viewerHandle string) (*FeedView, error) {
	viewer, err := s.users.GetUserByHandle(ctx, viewerHandle)
	if err != nil {
		return nil, err
	}

	posts, err := s.posts.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	postViews, err := s.annotate(ctx, posts)
	if err != nil {
		return nil, err
	}

	rail, err := s.storyRail(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}

	contacts, err := s.BuildContacts(ctx, viewer)
	if err != nil {
		return nil, err
	}
	audience := make([]*UserSummary, 0, len(contacts))
	for _, u := range contacts {
		audience = append(audience, summarize(u))
	}

	return &FeedView{
		Viewer:    summarize(viewer),
		Posts:     postViews,
		StoryRail: rail,
		Audience:  audience,
	}, nil
}

func (s *FeedService) storyRail(ctx context.Context, viewerID primitive.ObjectID) ([]RailEntry, error) {
	all, err := s.stories.ListStories(ctx)
	if err != nil {
		return nil, err
	}
	visible := s.lifecycle.FilterVisible(all)

	picked := make([]*dbmongo.Story, 0, len(visible))
	ownerIDs := make([]primitive.ObjectID, 0, len(visible))
	seen := make(map[primitive.ObjectID]bool, len(visible))
	for _, st := range visible {
		if st.Owner == viewerID || seen[st.Owner] {
			continue
		}
		seen[st.Owner] = true
		picked = append(picked, st)
		ownerIDs = append(ownerIDs, st.Owner)
	}

	owners, err := s.users.GetUsersByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*dbmongo.User, len(owners))
	for _, u := range owners {
		byID[u.ID] = u
	}

	now := s.clock.Now()
	rail := make([]RailEntry, 0, len(picked))
	for _, st := range picked {
		owner, ok := byID[st.Owner]
		if !ok {
			continue
		}
		rail = append(rail, RailEntry{Story: st, Owner: summarize(owner), Age: common.FormatAge(st.CreatedAt, now)})
	}
	return rail, nil
}

// BuildContacts returns the viewer's followers followed by the followings,
// each identity at most once.
func (s *FeedService) BuildContacts(ctx context.Context, viewer *dbmongo.User) ([]*dbmongo.User, error) {
	ids := make([]primitive.ObjectID, 0, len(viewer.Followers)+len(viewer.Followings))
	seen := make(map[primitive.ObjectID]bool, cap(ids))
	for _, group := range [][]primitive.ObjectID{viewer.Followers, viewer.Followings} {
		for _, id := range group {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return s.users.GetUsersByIDs(ctx, ids)
}

// Contacts resolves the viewer by id and returns BuildContacts.
func (s *FeedService) Contacts(ctx context.Context, viewerID primitive.ObjectID) ([]*dbmongo.User, error) {
	viewer, err := s.users.GetUserByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.BuildContacts(ctx, viewer)
}
