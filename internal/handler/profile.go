package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/authors-haven/internal/service"
)

// ProfileHandler serves public profiles and the follow graph.
type ProfileHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewProfileHandler(users *service.UserService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, logger: logger}
}

// HandleGet is GET /api/profiles/{username}. A signed-in caller also learns
// whether they follow the user.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.Profile(r.Context(), viewerID(r), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"profile": p})
}

// HandleFollow is POST /api/profiles/{username}/follow.
func (h *ProfileHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	p, err := h.users.Follow(r.Context(), me.UserID, chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": fmt.Sprintf("you just followed %s", p.Username),
		"profile": p,
	})
}

// HandleUnfollow is DELETE /api/profiles/{username}/follow.
func (h *ProfileHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	p, err := h.users.Unfollow(r.Context(), me.UserID, chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": fmt.Sprintf("%s has been unfollowed", p.Username),
		"profile": p,
	})
}

// HandleFollowers is GET /api/profiles/{username}/followers.
func (h *ProfileHandler) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.Followers(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	msg := "these are your followers"
	if len(list) == 0 {
		msg = "nobody is currently following you"
	}
	writeJSON(w, http.StatusOK, envelope{"message": msg, "followers": list})
}

// HandleFollowing is GET /api/profiles/{username}/following.
func (h *ProfileHandler) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.Following(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	msg := "people you are following"
	if len(list) == 0 {
		msg = "you are not following anyone"
	}
	writeJSON(w, http.StatusOK, envelope{"message": msg, "following": list})
}
