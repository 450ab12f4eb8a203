package model

// Saved is a bookmark edge between a user and a post.
type Saved struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	PostID    string `json:"postId"`
	CreatedAt int64  `json:"createdAt"`
}
