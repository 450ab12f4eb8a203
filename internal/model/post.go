package model

// Post is a photo published by a user. CreatedAt is unix milliseconds and is
// the feed sort key.
//
// Likes is a set of user ids. Comments and Saved are the ids of the comment
// and save records pointing at this post, oldest first.
type Post struct {
	ID        string   `json:"id"`
	Creator   string   `json:"creator"`
	Caption   string   `json:"caption"`
	ImageURL  string   `json:"imageUrl"`
	Location  string   `json:"location"`
	Tags      []string `json:"tags"`
	Likes     []string `json:"likes"`
	Saved     []string `json:"saved"`
	Comments  []string `json:"comments"`
	CreatedAt int64    `json:"createdAt"`
}

// PostEdit carries the client-editable fields of a post.
type PostEdit struct {
	Caption  string
	ImageURL string
	Location string
	Tags     []string
}

// PostWithCreator is a feed entry: the post with its creator resolved.
// Creator is nil when the creator record no longer exists.
type PostWithCreator struct {
	Post
	Creator *User `json:"creator"`
}

// PostDetail is a single post with every reference resolved. Unresolved
// comments and saves are skipped rather than failing the read.
type PostDetail struct {
	Post
	Creator  *User          `json:"creator"`
	Comments []*CommentView `json:"comments"`
	Saved    []*SavedView   `json:"saved"`
}

// CommentView is a comment with its author resolved (nil if gone).
type CommentView struct {
	Comment
	User *User `json:"user"`
}

// SavedView is a save with its post resolved (nil if gone) and its user
// resolved (nil if gone).
type SavedView struct {
	Saved
	User *User `json:"user"`
	Post *Post `json:"postId"`
}
