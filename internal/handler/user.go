package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/authors-haven/internal/service"
	"github.com/sakif/authors-haven/internal/validation"
)

// UserHandler serves the signed-in user's own account: profile, settings,
// notifications and bookmarks.
type UserHandler struct {
	users         *service.UserService
	articles      *service.ArticleService
	notifications *service.NotificationService
	logger        *slog.Logger
}

func NewUserHandler(
	users *service.UserService,
	articles *service.ArticleService,
	notifications *service.NotificationService,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		users:         users,
		articles:      articles,
		notifications: notifications,
		logger:        logger,
	}
}

// HandleMe is GET /api/user.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	u, err := h.users.Get(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"user": u})
}

// HandleUpdateProfile is PUT /api/user.
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := bodyOf[validation.ProfileUpdateRequest](w, r, h.logger)
	if !ok {
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), p.UserID, service.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Image:     req.Image,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Profile updated", "user": u})
}

// HandleNotificationSettings is PATCH /api/users/notification.
func (h *UserHandler) HandleNotificationSettings(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := bodyOf[validation.NotificationSettingsRequest](w, r, h.logger)
	if !ok {
		return
	}

	email, inApp := req.Values()
	u, err := h.users.UpdateNotificationSettings(r.Context(), p.UserID, email, inApp)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Notification settings updated", "user": u})
}

// HandleListNotifications is GET /api/users/notifications.
func (h *UserHandler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	notes, err := h.notifications.List(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"notifications": notes})
}

// HandleMarkNotificationRead is PATCH /api/users/notifications/{id}/read.
func (h *UserHandler) HandleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.notifications.MarkRead(r.Context(), id, p.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Notification marked as read"})
}

// HandleBookmarks is GET /api/user/bookmarks.
func (h *UserHandler) HandleBookmarks(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	list, err := h.articles.Bookmarks(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"bookmarks": list})
}
