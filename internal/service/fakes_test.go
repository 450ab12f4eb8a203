package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/model"
	"github.com/sakif/snapgram/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeStore is an in-memory implementation of all four repositories.
// It counts every mutating call in writes so tests can assert that rejected
// requests never reach the store.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	posts    map[string]*model.Post
	comments map[string]*model.Comment
	saves    map[string]*model.Saved
	follows  map[[2]string]bool
	nextID   int
	writes   int

	// set to a non-nil error to simulate a storage failure
	createUserErr  error
	deletePostsErr error
}

var (
	_ repository.UserRepository    = (*fakeStore)(nil)
	_ repository.PostRepository    = (*fakeStore)(nil)
	_ repository.CommentRepository = (*fakeStore)(nil)
	_ repository.SavedRepository   = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*model.User{},
		posts:    map[string]*model.Post{},
		comments: map[string]*model.Comment{},
		saves:    map[string]*model.Saved{},
		follows:  map[[2]string]bool{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return prefix + "-" + strconv.Itoa(f.nextID)
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- users ---

func (f *fakeStore) CreateUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createUserErr != nil {
		return f.createUserErr
	}
	for _, u := range f.users {
		if u.Email == user.Email || u.ExternalIdentityID == user.ExternalIdentityID {
			return apperror.Conflict("user", user.ExternalIdentityID)
		}
	}
	f.writes++
	user.ID = f.id("user")
	user.Following, user.Followers, user.Saved = []string{}, []string{}, []string{}
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeStore) hydrate(u model.User) *model.User {
	u.Following, u.Followers = []string{}, []string{}
	for edge := range f.follows {
		if edge[0] == u.ID {
			u.Following = append(u.Following, edge[1])
		}
		if edge[1] == u.ID {
			u.Followers = append(u.Followers, edge[0])
		}
	}
	return &u
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return f.hydrate(*u), nil
}

func (f *fakeStore) findUser(match func(*model.User) bool, key string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return f.hydrate(*u), nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeStore) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.ExternalIdentityID == externalID }, externalID)
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Email == email }, email)
}

func (f *fakeStore) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *f.hydrate(*u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	f.writes++
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.Username, patch.Username)
	set(&u.FirstName, patch.FirstName)
	set(&u.LastName, patch.LastName)
	set(&u.PhotoURL, patch.PhotoURL)
	return f.hydrate(*u), nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	f.writes++
	delete(f.users, id)
	for edge := range f.follows {
		if edge[0] == id || edge[1] == id {
			delete(f.follows, edge)
		}
	}
	return nil
}

func (f *fakeStore) Follow(ctx context.Context, followerID, followeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range []string{followerID, followeeID} {
		if _, ok := f.users[id]; !ok {
			return apperror.NotFound("user", id)
		}
	}
	f.writes++
	f.follows[[2]string{followerID, followeeID}] = true
	return nil
}

func (f *fakeStore) Unfollow(ctx context.Context, followerID, followeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range []string{followerID, followeeID} {
		if _, ok := f.users[id]; !ok {
			return apperror.NotFound("user", id)
		}
	}
	f.writes++
	delete(f.follows, [2]string{followerID, followeeID})
	return nil
}

// --- posts ---

func (f *fakeStore) CreatePost(ctx context.Context, post *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	post.ID = f.id("post")
	if post.Likes == nil {
		post.Likes = []string{}
	}
	post.Comments, post.Saved = []string{}, []string{}
	stored := *post
	f.posts[post.ID] = &stored
	return nil
}

func (f *fakeStore) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) listPosts(match func(*model.Post) bool, opts repository.ListOptions) []model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Post
	for _, p := range f.posts {
		if match(p) {
			all = append(all, *p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt > all[j].CreatedAt })
	if opts.Offset >= len(all) {
		return []model.Post{}
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all
}

func (f *fakeStore) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	return f.listPosts(func(*model.Post) bool { return true }, opts), nil
}

func (f *fakeStore) ListPostsByCreator(ctx context.Context, creatorID string, opts repository.ListOptions) ([]model.Post, error) {
	return f.listPosts(func(p *model.Post) bool { return p.Creator == creatorID }, opts), nil
}

func (f *fakeStore) UpdatePost(ctx context.Context, id string, edit model.PostEdit) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	f.writes++
	p.Caption, p.ImageURL, p.Location, p.Tags = edit.Caption, edit.ImageURL, edit.Location, edit.Tags
	cp := *p
	return &cp, nil
}

func (f *fakeStore) SetPostLike(ctx context.Context, postID, userID string, liked bool) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}
	f.writes++
	likes := []string{}
	for _, l := range p.Likes {
		if l != userID {
			likes = append(likes, l)
		}
	}
	if liked {
		likes = append(likes, userID)
	}
	p.Likes = likes
	cp := *p
	return &cp, nil
}

func (f *fakeStore) DeletePost(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	f.writes++
	delete(f.posts, id)
	return nil
}

func (f *fakeStore) DeletePostsByCreator(ctx context.Context, creatorID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deletePostsErr != nil {
		return nil, f.deletePostsErr
	}
	f.writes++
	removed := []string{}
	for id, p := range f.posts {
		if p.Creator == creatorID {
			removed = append(removed, id)
			delete(f.posts, id)
		}
	}
	return removed, nil
}

// --- comments ---

func (f *fakeStore) CreateComment(ctx context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	c.ID = f.id("comment")
	if c.Likes == nil {
		c.Likes = []string{}
	}
	stored := *c
	f.comments[c.ID] = &stored
	if p, ok := f.posts[c.PostID]; ok {
		p.Comments = append(p.Comments, c.ID)
	}
	return nil
}

func (f *fakeStore) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListCommentsByPost(ctx context.Context, postID string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Comment{}
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (f *fakeStore) AddCommentLikes(ctx context.Context, id string, userIDs []string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", id)
	}
	f.writes++
	seen := map[string]bool{}
	for _, l := range c.Likes {
		seen[l] = true
	}
	for _, u := range userIDs {
		if !seen[u] {
			seen[u] = true
			c.Likes = append(c.Likes, u)
		}
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) DeleteComment(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[id]; !ok {
		return apperror.NotFound("comment", id)
	}
	f.writes++
	delete(f.comments, id)
	return nil
}

// --- saves ---

func (f *fakeStore) CreateSaved(ctx context.Context, s *model.Saved) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	s.ID = f.id("saved")
	stored := *s
	f.saves[s.ID] = &stored
	if p, ok := f.posts[s.PostID]; ok {
		p.Saved = append(p.Saved, s.ID)
	}
	return nil
}

func (f *fakeStore) GetSavedByID(ctx context.Context, id string) (*model.Saved, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.saves[id]
	if !ok {
		return nil, apperror.NotFound("saved", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ListSavedByUser(ctx context.Context, userID string) ([]model.Saved, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Saved{}
	for _, s := range f.saves {
		if s.User == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (f *fakeStore) DeleteSaved(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.saves[id]; !ok {
		return apperror.NotFound("saved", id)
	}
	f.writes++
	delete(f.saves, id)
	return nil
}

// seedUser inserts a user directly, bypassing the write counter.
func (f *fakeStore) seedUser(externalID, email, first string) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &model.User{
		ID:                 f.id("user"),
		ExternalIdentityID: externalID,
		Email:              email,
		Username:           first,
		FirstName:          first,
		LastName:           first,
	}
	f.users[u.ID] = u
	cp := *u
	return &cp
}

// seedPost inserts a post directly, bypassing the write counter.
func (f *fakeStore) seedPost(creator string, createdAt int64) *model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &model.Post{
		ID:        f.id("post"),
		Creator:   creator,
		ImageURL:  "https://img.example.com/" + strconv.FormatInt(createdAt, 10) + ".png",
		Tags:      []string{},
		Likes:     []string{},
		Comments:  []string{},
		Saved:     []string{},
		CreatedAt: createdAt,
	}
	f.posts[p.ID] = p
	cp := *p
	return &cp
}

// --- collaborators ---

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return p.err
}

type recordingMetadata struct {
	mu    sync.Mutex
	calls map[string]map[string]any
	err   error
}

func (m *recordingMetadata) UpdatePublicMetadata(ctx context.Context, externalID string, md map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]map[string]any{}
	}
	m.calls[externalID] = md
	return m.err
}
