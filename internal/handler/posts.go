package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/service"
)

type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// createPostRequest is the body of POST /posts. Clients also send createdAt;
// it is accepted but the server clock is what gets stored.
type createPostRequest struct {
	Creator   string   `json:"creator"`
	Caption   string   `json:"caption"`
	ImageURL  string   `json:"imageUrl"`
	Location  string   `json:"location"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"createdAt,omitempty"`
}

// editPostRequest is the body of PATCH /posts/{id}. Omitted fields keep
// their value; "tags": [] clears the tags.
type editPostRequest struct {
	Caption  *string  `json:"caption"`
	ImageURL *string  `json:"imageUrl"`
	Location *string  `json:"location"`
	Tags     []string `json:"tags"`
}

type likePostRequest struct {
	UserID string `json:"userId"`
	Liked  *bool  `json:"liked"`
}

// HTTP: POST /posts → 201
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Create(r.Context(), service.CreatePostInput{
		Creator:  req.Creator,
		Caption:  req.Caption,
		ImageURL: req.ImageURL,
		Location: req.Location,
		Tags:     req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleFeed returns 10 posts, newest first, starting at ?cursor.
//
// HTTP: GET /posts?cursor=N
func (h *PostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	cursor, err := cursorParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	posts, err := h.posts.Feed(r.Context(), cursor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HTTP: GET /posts/user/{userId}?cursor=N
func (h *PostHandler) HandleListByCreator(w http.ResponseWriter, r *http.Request) {
	cursor, err := cursorParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	posts, err := h.posts.ListByCreator(r.Context(), chi.URLParam(r, "userId"), cursor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HTTP: GET /posts/post/{id}
func (h *PostHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.posts.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HTTP: PATCH /posts/{id}
func (h *PostHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req editPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Edit(r.Context(), chi.URLParam(r, "id"), service.EditPostInput{
		Caption:  req.Caption,
		ImageURL: req.ImageURL,
		Location: req.Location,
		Tags:     req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleLike likes or unlikes a post for one user.
//
// HTTP: PATCH /posts/likes/{id}
// REQUEST BODY: {"userId": "...", "liked": true}
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	var req likePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Liked == nil {
		writeError(w, apperror.ValidationFailed("liked", "liked is required"))
		return
	}

	post, err := h.posts.SetLike(r.Context(), chi.URLParam(r, "id"), req.UserID, *req.Liked)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HTTP: DELETE /posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted"})
}
