// Package feed serves posts and comments and assembles the home feed, the
// story rail and the contact list.
package feed

import (
	"context"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
)

// MaxReplyDepth is the deepest a reply chain may go. Top-level comments have depth 0.
const MaxReplyDepth = 8

// Users is the slice of the identity store the feed needs.
type Users interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*dbmongo.User, error)
	GetUserByHandle(ctx context.Context, handle string) (*dbmongo.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.User, error)
	AddRef(ctx context.Context, id primitive.ObjectID, field dbmongo.RefField, ref primitive.ObjectID) (bool, error)
	RemoveRef(ctx context.Context, id primitive.ObjectID, field dbmongo.RefField, ref primitive.ObjectID) (bool, error)
}

// Media uploads images and removes them by deletion token.
type Media interface {
	UploadFile(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*dbmongo.MediaFile, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// Lifecycle publishes stories and filters out the expired ones.
type Lifecycle interface {
	Publish(ctx context.Context, owner primitive.ObjectID, image, mediaToken string) (*dbmongo.Story, error)
	FilterVisible(stories []*dbmongo.Story) []*dbmongo.Story
}

// StoryLister lists every stored story in insertion order.
type StoryLister interface {
	ListStories(ctx context.Context) ([]*dbmongo.Story, error)
}

// Upload is one incoming image with its category and caption.
type Upload struct {
	Category common.UploadCategory
	Filename string
	MimeType string
	Caption  string
	Content  io.Reader
}

// UploadResult holds whichever document the upload produced.
type UploadResult struct {
	Category string         `json:"category"`
	Post     *dbmongo.Post  `json:"post,omitempty"`
	Story    *dbmongo.Story `json:"story,omitempty"`
}

type FeedService struct {
	users     Users
	posts     PostRepository
	comments  CommentRepository
	media     Media
	lifecycle Lifecycle
	stories   StoryLister
	clock     clockwork.Clock
	log       zerolog.Logger
}

func NewFeedService(
	users Users,
	posts PostRepository,
	comments CommentRepository,
	media Media,
	lifecycle Lifecycle,
	stories StoryLister,
	clock clockwork.Clock,
	log zerolog.Logger,
) *FeedService {
	return &FeedService{
		users:     users,
		posts:     posts,
		comments:  comments,
		media:     media,
		lifecycle: lifecycle,
		stories:   stories,
		clock:     clock,
		log:       log,
	}
}

// --------- UPLOAD ---------

// Upload stores the image and turns it into a post or a story. Any failure
// after the image is stored removes the image and the partial documents.
func (s *FeedService) Upload(ctx context.Context, ownerID primitive.ObjectID, up Upload) (*UploadResult, error) {
	if up.Category != common.CategoryPost && up.Category != common.CategoryStory {
		return nil, common.Validationf("unknown upload category")
	}
	if utf8.RuneCountInString(up.Caption) > common.MaxCaptionLength {
		return nil, common.Validationf("caption exceeds %d characters", common.MaxCaptionLength)
	}
	if _, err := s.users.GetUserByID(ctx, ownerID); err != nil {
		return nil, err
	}

	file, err := s.media.UploadFile(ctx, up.Filename, up.MimeType, ownerID.Hex(), up.Content)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{Category: up.Category.String()}
	switch up.Category {
	case common.CategoryStory:
		result.Story, err = s.lifecycle.Publish(ctx, ownerID, file.URL, file.ID)
	default:
		result.Post, err = s.createPost(ctx, ownerID, file, up.Caption)
	}
	if err != nil {
		s.discardMedia(ctx, file.ID)
		return nil, err
	}
	return result, nil
}

func (s *FeedService) createPost(ctx context.Context, ownerID primitive.ObjectID, file *dbmongo.MediaFile, caption string) (*dbmongo.Post, error) {
	post := &dbmongo.Post{
		Owner:      ownerID,
		Image:      file.URL,
		MediaToken: file.ID,
		Caption:    caption,
		Likes:      []primitive.ObjectID{},
		Comments:   []primitive.ObjectID{},
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	if _, err := s.users.AddRef(ctx, ownerID, dbmongo.RefPosts, post.ID); err != nil {
		if rbErr := s.posts.DeletePost(ctx, post.ID); rbErr != nil {
			s.log.Error().Err(rbErr).Str("post", post.ID.Hex()).Msg("failed to roll back post")
		}
		return nil, err
	}
	s.log.Info().Str("post", post.ID.Hex()).Str("owner", ownerID.Hex()).Msg("post created")
	return post, nil
}

func (s *FeedService) discardMedia(ctx context.Context, fileID string) {
	if err := s.media.DeleteFile(ctx, fileID); err != nil {
		s.log.Warn().Err(err).Str("file", fileID).Msg("failed to discard uploaded media")
	}
}

// --------- POSTS ---------

// PostDetail is a single post with its author, comment thread and the
// viewer's own like and save state.
type PostDetail struct {
	PostView
	Thread []*CommentNode `json:"thread"`
	Liked  bool           `json:"liked"`
	Saved  bool           `json:"saved"`
}

func (s *FeedService) GetPost(ctx context.Context, viewerID, postID primitive.ObjectID) (*PostDetail, error) {
	viewer, err := s.users.GetUserByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	author, err := s.users.GetUserByID(ctx, post.Owner)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	comments, err := s.comments.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return &PostDetail{
		PostView: newPostView(post, author, now),
		Thread:   buildThread(comments, now),
		Liked:    containsID(post.Likes, viewerID),
		Saved:    viewer.HasRef(dbmongo.RefSaved, postID),
	}, nil
}

func (s *FeedService) ToggleLike(ctx context.Context, userID, postID primitive.ObjectID) (bool, error) {
	return s.posts.ToggleLike(ctx, postID, userID)
}

// ToggleSave adds the post to the user's saved set, or removes it when
// already saved. It returns the resulting state.
func (s *FeedService) ToggleSave(ctx context.Context, userID, postID primitive.ObjectID) (bool, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.HasRef(dbmongo.RefSaved, postID) {
		if _, err := s.users.RemoveRef(ctx, userID, dbmongo.RefSaved, postID); err != nil {
			return true, err
		}
		return false, nil
	}

	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return false, err
	}
	if _, err := s.users.AddRef(ctx, userID, dbmongo.RefSaved, postID); err != nil {
		return false, err
	}
	return true, nil
}

// ListSaved returns the user's saved posts, most recently saved last.
func (s *FeedService) ListSaved(ctx context.Context, userID primitive.ObjectID) ([]PostView, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.GetPostsByIDs(ctx, user.Saved)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, posts)
}

// annotate attaches authors and age labels to posts, keeping their order.
func (s *FeedService) annotate(ctx context.Context, posts []*dbmongo.Post) ([]PostView, error) {
	ownerIDs := make([]primitive.ObjectID, 0, len(posts))
	seen := make(map[primitive.ObjectID]bool, len(posts))
	for _, p := range posts {
		if !seen[p.Owner] {
			seen[p.Owner] = true
			ownerIDs = append(ownerIDs, p.Owner)
		}
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
	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, newPostView(p, byID[p.Owner], now))
	}
	return views, nil
}

// --------- COMMENTS ---------

func (s *FeedService) AddComment(ctx context.Context, authorID, postID primitive.ObjectID, text string) (*dbmongo.Comment, error) {
	if err := common.ValidateText("comment", text, common.MaxCommentLength); err != nil {
		return nil, err
	}
	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	c := s.newComment(author, postID, nil, 0, text)
	if err := s.comments.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	if err := s.posts.AddCommentRef(ctx, postID, c.ID); err != nil {
		if rbErr := s.comments.DeleteComments(ctx, []primitive.ObjectID{c.ID}); rbErr != nil {
			s.log.Error().Err(rbErr).Str("comment", c.ID.Hex()).Msg("failed to roll back comment")
		}
		return nil, err
	}
	return c, nil
}

// Reply answers an existing comment. Replies deeper than MaxReplyDepth are rejected.
func (s *FeedService) Reply(ctx context.Context, authorID, parentID primitive.ObjectID, text string) (*dbmongo.Comment, error) {
	if err := common.ValidateText("reply", text, common.MaxCommentLength); err != nil {
		return nil, err
	}
	parent, err := s.comments.GetComment(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Depth+1 > MaxReplyDepth {
		return nil, common.Validationf("replies cannot nest deeper than %d levels", MaxReplyDepth)
	}
	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, err
	}

	pid := parent.ID
	c := s.newComment(author, parent.PostID, &pid, parent.Depth+1, text)
	if err := s.comments.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *FeedService) newComment(author *dbmongo.User, postID primitive.ObjectID, parent *primitive.ObjectID, depth int, text string) *dbmongo.Comment {
	return &dbmongo.Comment{
		PostID:     postID,
		ParentID:   parent,
		Depth:      depth,
		Author:     author.ID,
		AuthorName: author.Username,
		Text:       text,
		Likes:      []string{},
		CreatedAt:  s.clock.Now().UTC(),
	}
}

// ToggleCommentLike likes or unlikes a comment. Comment likes are keyed by
// the user's current handle.
func (s *FeedService) ToggleCommentLike(ctx context.Context, userID, commentID primitive.ObjectID) (bool, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.comments.ToggleCommentLike(ctx, commentID, user.Username)
}

// DeleteComment removes a comment and every reply beneath it. Only the
// author may delete.
func (s *FeedService) DeleteComment(ctx context.Context, userID, commentID primitive.ObjectID) error {
	target, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if target.Author != userID {
		return common.Unauthorizedf("only the author can delete this comment")
	}

	all, err := s.comments.ListComments(ctx, target.PostID)
	if err != nil {
		return err
	}
	ids := subtree(all, target.ID)

	if err := s.comments.DeleteComments(ctx, ids); err != nil {
		return err
	}
	if target.ParentID == nil {
		if err := s.posts.RemoveCommentRef(ctx, target.PostID, target.ID); err != nil {
			return err
		}
	}
	s.log.Info().Str("comment", target.ID.Hex()).Int("removed", len(ids)).Msg("comment deleted")
	return nil
}

// subtree returns root and all of its descendants, breadth first.
func subtree(all []*dbmongo.Comment, root primitive.ObjectID) []primitive.ObjectID {
	children := make(map[primitive.ObjectID][]primitive.ObjectID)
	for _, c := range all {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	ids := []primitive.ObjectID{root}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, children[ids[i]]...)
	}
	return ids
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
