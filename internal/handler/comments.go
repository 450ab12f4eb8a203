package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snapgram/internal/service"
)

// CommentHandler serves /comments and /saves.
type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

type createCommentRequest struct {
	User      string `json:"user"`
	PostID    string `json:"postId"`
	Comment   string `json:"comment"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

type likeCommentRequest struct {
	Likes []string `json:"likes"`
}

type createSaveRequest struct {
	User      string `json:"user"`
	PostID    string `json:"postId"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// HTTP: POST /comments → 201
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.comments.Create(r.Context(), service.CreateCommentInput{
		User:    req.User,
		PostID:  req.PostID,
		Comment: req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HTTP: GET /comments?postId=...
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.ListByPost(r.Context(), r.URL.Query().Get("postId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleLike adds users to a comment's likes.
//
// HTTP: PATCH /comments/{commentId}
// REQUEST BODY: {"likes": ["<userId>", ...]}
func (h *CommentHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	var req likeCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.comments.AddLikes(r.Context(), chi.URLParam(r, "commentId"), req.Likes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: DELETE /comments/{commentId}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Delete(r.Context(), chi.URLParam(r, "commentId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Comment deleted"})
}

// HTTP: POST /saves → 201
func (h *CommentHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req createSaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	saved, err := h.comments.Save(r.Context(), req.User, req.PostID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// HTTP: DELETE /saves/{id}
func (h *CommentHandler) HandleUnsave(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Unsave(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Save removed"})
}
