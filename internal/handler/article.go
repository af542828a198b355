package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/authors-haven/internal/repository"
	"github.com/sakif/authors-haven/internal/service"
	"github.com/sakif/authors-haven/internal/validation"
)

// ArticleHandler serves articles, tags, ratings, claps, bookmarks and
// reports.
type ArticleHandler struct {
	articles *service.ArticleService
	logger   *slog.Logger
}

func NewArticleHandler(articles *service.ArticleService, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, logger: logger}
}

// listOptions reads ?limit= and ?offset=.
func listOptions(r *http.Request) (repository.ListOptions, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return repository.ListOptions{}, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return repository.ListOptions{}, err
	}
	return repository.ListOptions{Limit: limit, Offset: offset}, nil
}

// HandleList is GET /api/articles?tagId=&authorId=&limit=&offset=
func (h *ArticleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	tagID, err := queryInt(r, "tagId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	authorID, err := queryInt(r, "authorId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	list, err := h.articles.List(r.Context(), repository.ArticleFilter{
		ListOptions: opts,
		TagID:       int64(tagID),
		AuthorID:    int64(authorID),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"articles": list})
}

// HandleCreate is POST /api/articles.
func (h *ArticleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := bodyOf[validation.ArticleRequest](w, r, h.logger)
	if !ok {
		return
	}

	a, err := h.articles.Create(r.Context(), me.UserID, service.ArticleInput{
		Title:       req.Title,
		Description: req.Description,
		Body:        req.Body,
		TagID:       req.TagID,
		CoverURL:    req.CoverURL,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "article created successfully", "article": a})
}

// HandleGet is GET /api/articles/{slug}.
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.articles.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"article": a})
}

// HandleUpdate is PUT /api/articles/{slug}. Only the author may edit.
func (h *ArticleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := bodyOf[validation.ArticleUpdateRequest](w, r, h.logger)
	if !ok {
		return
	}

	a, err := h.articles.Update(r.Context(), me.UserID, chi.URLParam(r, "slug"), service.ArticleInput{
		Title:       req.Title,
		Description: req.Description,
		Body:        req.Body,
		TagID:       req.TagID,
		CoverURL:    req.CoverURL,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "article updated successfully", "article": a})
}

// HandleDelete is DELETE /api/articles/{slug}. The author or an admin may
// delete.
func (h *ArticleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.articles.Delete(r.Context(), me.UserID, chi.URLParam(r, "slug")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "article deleted successfully"})
}

// HandleRate is POST /api/articles/{slug}/rating.
func (h *ArticleHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := bodyOf[validation.RatingRequest](w, r, h.logger)
	if !ok {
		return
	}

	a, err := h.articles.Rate(r.Context(), me.UserID, chi.URLParam(r, "slug"), req.Rating)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "article rated successfully", "article": a})
}

// HandleClap is POST /api/articles/{slug}/clap.
func (h *ArticleHandler) HandleClap(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	total, err := h.articles.Clap(r.Context(), me.UserID, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "you clapped for this article", "totalClaps": total})
}

// HandleBookmark is POST /api/articles/{slug}/bookmark.
func (h *ArticleHandler) HandleBookmark(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	a, err := h.articles.Bookmark(r.Context(), me.UserID, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "article bookmarked", "article": a})
}

// HandleRemoveBookmark is DELETE /api/articles/{slug}/bookmark.
func (h *ArticleHandler) HandleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.articles.RemoveBookmark(r.Context(), me.UserID, chi.URLParam(r, "slug")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "bookmark removed"})
}

// HandleReport is POST /api/articles/{slug}/report.
func (h *ArticleHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := bodyOf[validation.ReportRequest](w, r, h.logger)
	if !ok {
		return
	}

	report, err := h.articles.Report(r.Context(), me.UserID, chi.URLParam(r, "slug"), req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "article reported", "report": report})
}

// HandleReports is GET /api/reports (admin only).
func (h *ArticleHandler) HandleReports(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := h.articles.Reports(r.Context(), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"reports": list})
}

// =========================================================================
// TAGS
// =========================================================================

// HandleTags is GET /api/articles/tags.
func (h *ArticleHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.articles.Tags(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"tags": tags})
}

// HandleDeleteTag is DELETE /api/articles/tags/{id} (admin only). The tag's
// articles go with it.
func (h *ArticleHandler) HandleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.articles.DeleteTag(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "tag deleted"})
}
