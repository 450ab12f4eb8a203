package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snapgram/internal/model"
	"github.com/sakif/snapgram/internal/repository"
	"github.com/sakif/snapgram/internal/service"
)

type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// updateUserRequest is the body of PUT /users/{id}. Omitted fields are
// left unchanged.
type updateUserRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	PhotoURL  *string `json:"photoUrl"`
}

type userResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

type deleteUserResponse struct {
	Message      string `json:"message"`
	DeletedPosts int    `json:"deletedPosts"`
}

// HandleList returns users, 20 per page.
//
// HTTP: GET /users?cursor=N
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	cursor, err := cursorParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	users, err := h.users.List(r.Context(), repository.ListOptions{Offset: cursor})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HTTP: GET /users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGetByIdentity looks a user up by identity-provider id, which is what
// the frontend has right after sign-in.
//
// HTTP: GET /users/by-identity/{externalId}
func (h *UserHandler) HandleGetByIdentity(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByExternalID(r.Context(), chi.URLParam(r, "externalId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: PUT /users/{id}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), chi.URLParam(r, "id"), service.UpdateProfileInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		PhotoURL:  req.PhotoURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "User updated", User: user})
}

// HandleDelete removes a user and their posts.
//
// HTTP: DELETE /users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.users.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteUserResponse{Message: "User deleted", DeletedPosts: removed})
}

// HTTP: PATCH /users/{id}/follow/{targetId}
func (h *UserHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Follow(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "targetId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: PATCH /users/{id}/unfollow/{targetId}
func (h *UserHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Unfollow(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "targetId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: GET /users/{id}/saves
func (h *UserHandler) HandleListSaves(w http.ResponseWriter, r *http.Request) {
	saves, err := h.users.ListSaves(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saves)
}
