package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/authors-haven/internal/service"
	"github.com/sakif/authors-haven/internal/validation"
)

// CommentHandler serves comments under /api/articles/{slug}.
type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// HandleCreate is POST /api/articles/{slug}/comment.
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := bodyOf[validation.CommentRequest](w, r, h.logger)
	if !ok {
		return
	}

	c, err := h.comments.Create(r.Context(), me.UserID, chi.URLParam(r, "slug"), req.Comment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "comment created successfully", "comment": c})
}

// HandleList is GET /api/articles/{slug}/comments.
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.comments.List(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"comments": list})
}

// HandleUpdate is PUT /api/articles/{slug}/comments/{id}.
func (h *CommentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req, ok := bodyOf[validation.CommentRequest](w, r, h.logger)
	if !ok {
		return
	}

	c, err := h.comments.Update(r.Context(), me.UserID, chi.URLParam(r, "slug"), id, req.Comment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "comment updated successfully", "comment": c})
}

// HandleDelete is DELETE /api/articles/{slug}/comments/{id}.
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.comments.Delete(r.Context(), me.UserID, chi.URLParam(r, "slug"), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "comment deleted successfully"})
}

// HandleLike is POST /api/articles/{slug}/comments/{id}/like.
func (h *CommentHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	total, err := h.comments.Like(r.Context(), me.UserID, chi.URLParam(r, "slug"), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "you liked this comment", "totalLikes": total})
}

// HandleHistory is GET /api/articles/{slug}/comments/{id}/history.
func (h *CommentHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	edits, err := h.comments.History(r.Context(), chi.URLParam(r, "slug"), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"history": edits})
}
