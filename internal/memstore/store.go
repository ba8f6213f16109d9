// Package memstore keeps users, posts, comments, stories, media and message
// history in process memory. It backs STORE_BACKEND=memory and doubles as the
// fake store in tests.
package memstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
	"collegovibe/internal/dbmysql"
)

// Store is safe for concurrent use. Every method copies documents in and out
// so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	users     map[primitive.ObjectID]*dbmongo.User
	userOrder []primitive.ObjectID

	posts     map[primitive.ObjectID]*dbmongo.Post
	postOrder []primitive.ObjectID

	comments map[primitive.ObjectID]*dbmongo.Comment

	stories    map[primitive.ObjectID]*dbmongo.Story
	storyOrder []primitive.ObjectID

	media   map[string]mediaBlob
	baseURL string

	messages []dbmysql.Message
}

type mediaBlob struct {
	file dbmongo.MediaFile
	data []byte
}

func New(mediaBaseURL string) *Store {
	return &Store{
		users:    make(map[primitive.ObjectID]*dbmongo.User),
		posts:    make(map[primitive.ObjectID]*dbmongo.Post),
		comments: make(map[primitive.ObjectID]*dbmongo.Comment),
		stories:  make(map[primitive.ObjectID]*dbmongo.Story),
		media:    make(map[string]mediaBlob),
		baseURL:  mediaBaseURL,
	}
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

func cloneUser(u *dbmongo.User) *dbmongo.User {
	c := *u
	c.Posts = cloneIDs(u.Posts)
	c.Saved = cloneIDs(u.Saved)
	c.Stories = cloneIDs(u.Stories)
	c.Followers = cloneIDs(u.Followers)
	c.Followings = cloneIDs(u.Followings)
	return &c
}

func clonePost(p *dbmongo.Post) *dbmongo.Post {
	c := *p
	c.Likes = cloneIDs(p.Likes)
	c.Comments = cloneIDs(p.Comments)
	return &c
}

func cloneComment(cm *dbmongo.Comment) *dbmongo.Comment {
	c := *cm
	c.Likes = append([]string{}, cm.Likes...)
	if cm.ParentID != nil {
		pid := *cm.ParentID
		c.ParentID = &pid
	}
	return &c
}

func cloneStory(s *dbmongo.Story) *dbmongo.Story {
	c := *s
	return &c
}

func indexOf(ids []primitive.ObjectID, id primitive.ObjectID) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// ---------- users ----------

func (s *Store) CreateUser(ctx context.Context, user *dbmongo.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return common.Conflictf("handle %q already exists", user.Username)
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = cloneUser(user)
	s.userOrder = append(s.userOrder, user.ID)
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id primitive.ObjectID) (*dbmongo.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, common.NotFoundf("user %s", id.Hex())
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByHandle(ctx context.Context, handle string) (*dbmongo.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == handle {
			return cloneUser(u), nil
		}
	}
	return nil, common.NotFoundf("user %q", handle)
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*dbmongo.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (s *Store) SearchByHandlePrefix(ctx context.Context, prefix string, limit int64) ([]*dbmongo.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*dbmongo.User{}
	for _, id := range s.userOrder {
		u, ok := s.users[id]
		if ok && strings.HasPrefix(u.Username, prefix) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, update dbmongo.ProfileUpdate, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return common.NotFoundf("user %s", id.Hex())
	}
	if update.Username != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Username == *update.Username {
				return common.Conflictf("handle %q already exists", *update.Username)
			}
		}
		u.Username = *update.Username
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Bio != nil {
		u.Bio = *update.Bio
	}
	if update.ProfileImage != nil {
		u.ProfileImage = *update.ProfileImage
	}
	u.UpdatedAt = at
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return common.NotFoundf("user %s", id.Hex())
	}
	u.PasswordHash = hash
	u.UpdatedAt = at
	return nil
}

func refSlot(u *dbmongo.User, field dbmongo.RefField) *[]primitive.ObjectID {
	switch field {
	case dbmongo.RefPosts:
		return &u.Posts
	case dbmongo.RefSaved:
		return &u.Saved
	case dbmongo.RefStories:
		return &u.Stories
	case dbmongo.RefFollowers:
		return &u.Followers
	case dbmongo.RefFollowings:
		return &u.Followings
	}
	return nil
}

func (s *Store) AddRef(ctx context.Context, id primitive.ObjectID, field dbmongo.RefField, ref primitive.ObjectID) (bool, error) {
	if !field.IsValid() {
		return false, common.Validationf("unknown reference field %q", field)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, common.NotFoundf("user %s", id.Hex())
	}
	slot := refSlot(u, field)
	if indexOf(*slot, ref) >= 0 {
		return false, nil
	}
	*slot = append(*slot, ref)
	return true, nil
}

func (s *Store) RemoveRef(ctx context.Context, id primitive.ObjectID, field dbmongo.RefField, ref primitive.ObjectID) (bool, error) {
	if !field.IsValid() {
		return false, common.Validationf("unknown reference field %q", field)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	slot := refSlot(u, field)
	if indexOf(*slot, ref) < 0 {
		return false, nil
	}
	*slot = without(*slot, ref)
	return true, nil
}

// ---------- posts ----------

func (s *Store) CreatePost(ctx context.Context, p *dbmongo.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.posts[p.ID] = clonePost(p)
	s.postOrder = append(s.postOrder, p.ID)
	return nil
}

func (s *Store) GetPost(ctx context.Context, id primitive.ObjectID) (*dbmongo.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, common.NotFoundf("post %s", id.Hex())
	}
	return clonePost(p), nil
}

func (s *Store) ListPosts(ctx context.Context) ([]*dbmongo.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*dbmongo.Post, 0, len(s.postOrder))
	for _, id := range s.postOrder {
		out = append(out, clonePost(s.posts[id]))
	}
	return out, nil
}

func (s *Store) GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*dbmongo.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (s *Store) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; ok {
		delete(s.posts, id)
		s.postOrder = without(s.postOrder, id)
	}
	return nil
}

func (s *Store) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return false, common.NotFoundf("post %s", postID.Hex())
	}
	if indexOf(p.Likes, userID) >= 0 {
		p.Likes = without(p.Likes, userID)
		return false, nil
	}
	p.Likes = append(p.Likes, userID)
	return true, nil
}

func (s *Store) AddCommentRef(ctx context.Context, postID, commentID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return common.NotFoundf("post %s", postID.Hex())
	}
	if indexOf(p.Comments, commentID) < 0 {
		p.Comments = append(p.Comments, commentID)
	}
	return nil
}

func (s *Store) RemoveCommentRef(ctx context.Context, postID, commentID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.posts[postID]; ok {
		p.Comments = without(p.Comments, commentID)
	}
	return nil
}

// ---------- comments ----------

func (s *Store) CreateComment(ctx context.Context, c *dbmongo.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.comments[c.ID] = cloneComment(c)
	return nil
}

func (s *Store) GetComment(ctx context.Context, id primitive.ObjectID) (*dbmongo.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, common.NotFoundf("comment %s", id.Hex())
	}
	return cloneComment(c), nil
}

func (s *Store) ListComments(ctx context.Context, postID primitive.ObjectID) ([]*dbmongo.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*dbmongo.Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, cloneComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ToggleCommentLike(ctx context.Context, id primitive.ObjectID, handle string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return false, common.NotFoundf("comment %s", id.Hex())
	}
	for i, h := range c.Likes {
		if h == handle {
			c.Likes = append(c.Likes[:i:i], c.Likes[i+1:]...)
			return false, nil
		}
	}
	c.Likes = append(c.Likes, handle)
	return true, nil
}

func (s *Store) DeleteComments(ctx context.Context, ids []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.comments, id)
	}
	return nil
}

// ---------- stories ----------

func (s *Store) CreateStory(ctx context.Context, st *dbmongo.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID.IsZero() {
		st.ID = primitive.NewObjectID()
	}
	s.stories[st.ID] = cloneStory(st)
	s.storyOrder = append(s.storyOrder, st.ID)
	return nil
}

func (s *Store) GetStoriesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*dbmongo.Story, 0, len(ids))
	for _, id := range ids {
		if st, ok := s.stories[id]; ok {
			out = append(out, cloneStory(st))
		}
	}
	return out, nil
}

func (s *Store) ListStories(ctx context.Context) ([]*dbmongo.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*dbmongo.Story, 0, len(s.storyOrder))
	for _, id := range s.storyOrder {
		out = append(out, cloneStory(s.stories[id]))
	}
	return out, nil
}

func (s *Store) ListStoriesByOwner(ctx context.Context, owner primitive.ObjectID) ([]*dbmongo.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*dbmongo.Story{}
	for _, id := range s.storyOrder {
		if st := s.stories[id]; st.Owner == owner {
			out = append(out, cloneStory(st))
		}
	}
	return out, nil
}

func (s *Store) DeleteStory(ctx context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stories[id]; !ok {
		return false, nil
	}
	delete(s.stories, id)
	s.storyOrder = without(s.storyOrder, id)
	return true, nil
}

// ---------- media ----------

func (s *Store) UploadFile(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*dbmongo.MediaFile, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}

	id := primitive.NewObjectID().Hex()
	file := dbmongo.MediaFile{
		ID:         id,
		URL:        dbmongo.MediaURL(s.baseURL, id),
		Filename:   filename,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		FileType:   common.DetectFileType(mimeType),
		UploadedBy: uploaderID,
		UploadedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.media[id] = mediaBlob{file: file, data: data}
	s.mu.Unlock()

	out := file
	return &out, nil
}

func (s *Store) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *dbmongo.MediaFile, error) {
	s.mu.RLock()
	blob, ok := s.media[fileID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, common.NotFoundf("media %s", fileID)
	}
	file := blob.file
	return io.NopCloser(bytes.NewReader(blob.data)), &file, nil
}

func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	delete(s.media, fileID)
	s.mu.Unlock()
	return nil
}

// MediaCount reports how many files are stored.
func (s *Store) MediaCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.media)
}

// ---------- messages ----------

func (s *Store) Save(ctx context.Context, msg *dbmysql.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = uint(len(s.messages) + 1)
	s.messages = append(s.messages, *msg)
	return nil
}

// FetchConversation returns messages in insertion order, which is also
// created_at then id order for a single process.
func (s *Store) FetchConversation(ctx context.Context, a, b string) ([]*dbmysql.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*dbmysql.Message{}
	for i := range s.messages {
		m := s.messages[i]
		if (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a) {
			out = append(out, &m)
		}
	}
	return out, nil
}
