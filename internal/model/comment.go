package model

// Comment is stored independently of its post and refers to it by PostID.
type Comment struct {
	ID        string   `json:"id"`
	User      string   `json:"user"`
	PostID    string   `json:"postId"`
	Comment   string   `json:"comment"`
	Likes     []string `json:"likes"`
	CreatedAt int64    `json:"createdAt"`
}
