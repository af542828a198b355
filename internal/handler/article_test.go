package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/validation"
)

func TestArticleHandler_CreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	writer := env.seedUser(t, "writer", model.RoleUser)

	slug := env.createArticle(t, writer, "How to make pancakes")
	assert.Contains(t, slug, "how-to-make-pancakes")

	rr := call(t, env.articles.HandleGet, http.MethodGet, "/api/articles/"+slug, param("slug", slug))
	require.Equal(t, http.StatusOK, rr.Code)
	a := object(t, decode(t, rr), "article")
	assert.Equal(t, "How to make pancakes", a["title"])
	assert.Equal(t, "< 1 min read", a["readTime"])
	assert.Equal(t, float64(2), a["tagId"])

	rr = call(t, env.articles.HandleGet, http.MethodGet, "/api/articles/nope", param("slug", "nope"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestArticleHandler_CreateUnknownTag(t *testing.T) {
	env := newTestEnv(t)
	writer := env.seedUser(t, "writer", model.RoleUser)
	tag := int64(99)

	rr := call(t, env.articles.HandleCreate, http.MethodPost, "/api/articles",
		as(writer),
		withBody(validation.ArticleRequest{Title: "t", Description: "d", Body: "b", TagID: &tag}),
	)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestArticleHandler_List(t *testing.T) {
	env := newTestEnv(t)
	writer := env.seedUser(t, "writer", model.RoleUser)
	other := env.seedUser(t, "other", model.RoleUser)

	env.createArticle(t, writer, "first")
	env.createArticle(t, writer, "second")
	env.createArticle(t, other, "third")

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"all", "/api/articles", 3},
		{"page", "/api/articles?limit=2", 2},
		{"offset", "/api/articles?limit=2&offset=2", 1},
		{"by author", "/api/articles?authorId=1", 2},
		{"by tag", "/api/articles?tagId=2", 3},
		{"empty tag", "/api/articles?tagId=3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := call(t, env.articles.HandleList, http.MethodGet, tt.target)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.Len(t, list(t, decode(t, rr), "articles"), tt.want)
		})
	}

	rr := call(t, env.articles.HandleList, http.MethodGet, "/api/articles?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestArticleHandler_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	writer := env.seedUser(t, "writer", model.RoleUser)
	other := env.seedUser(t, "other", model.RoleUser)
	admin := env.seedUser(t, "boss", model.RoleAdmin)
	slug := env.createArticle(t, writer, "draft")

	update := withBody(validation.ArticleUpdateRequest{Description: "updated description"})

	rr := call(t, env.articles.HandleUpdate, http.MethodPut, "/api/articles/"+slug, as(other), param("slug", slug), update)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "you can only edit your own articles", decode(t, rr)["message"])

	rr = call(t, env.articles.HandleUpdate, http.MethodPut, "/api/articles/"+slug, as(writer), param("slug", slug), update)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "article updated successfully", body["message"])
	assert.Equal(t, "updated description", object(t, body, "article")["description"])
	assert.Equal(t, "draft", object(t, body, "article")["title"])

	rr = call(t, env.articles.HandleDelete, http.MethodDelete, "/api/articles/"+slug, as(other), param("slug", slug))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = call(t, env.articles.HandleDelete, http.MethodDelete, "/api/articles/"+slug, as(admin), param("slug", slug))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "article deleted successfully", decode(t, rr)["message"])

	rr = call(t, env.articles.HandleGet, http.MethodGet, "/api/articles/"+slug, param("slug", slug))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestArticleHandler_DeleteUsesStoredRole(t *testing.T) {
	env := newTestEnv(t)
	writer := env.seedUser(t, "writer", model.RoleUser)
	slug := env.createArticle(t, writer, "kept")

	// The payload claims admin but the account row says user.
	demoted := env.seedUser(t, "former", model.RoleUser)
	demoted.Role = model.RoleAdmin

	rr := call(t, env.articles.HandleDelete, http.MethodDelete, "/api/articles/"+slug, as(demoted), param("slug", slug))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = call(t, env.articles.HandleGet, http.MethodGet, "/api/articles/"+slug, param("slug", slug))
	assert.Equal(t, http.StatusOK, rr.Code)
}

// =========================================================================
// RATINGS, CLAPS, BOOKMARKS
// =========================================================================

func TestArticleHandler_Rate(t *testing.T) {
	env := newTestEnv(t)
	writer := env.seedUser(t, "writer", model.RoleUser)
	reader := env.seedUser(t, "reader", model.RoleUser)
	critic := env.seedUser(t, "critic", model.RoleUser)
	slug := env.createArticle(t, writer, "rated")

	rr := call(t, env.articles.HandleRate, http.MethodPost, "/", as(reader), param("slug", slug),
		withBody(validation.RatingRequest{Rating: 5}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "article rated successfully", decode(t, rr)["message"])

	rr = call(t, env.articles.HandleRate, http.MethodPost, "/", as(critic), param("slug", slug),
		withBody(validation.RatingRequest{Rating: 2}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	a := object(t, decode(t, rr), "article")
	assert.InDelta(t, 3.5, a["rating"], 0.001)
	assert.Equal(t, float64(2), a["ratingCount"])

	rr = call(t, env.articles.HandleRate, http.MethodPost, "/", as(reader), param("slug", slug),
		withBody(validation.RatingRequest{Rating: 1}))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "you have already rated this article", decode(t, rr)["message"])

	rr = call(t, env.articles.HandleRate, http.MethodPost, "/", as(writer), param("slug", slug),
		withBody(validation.RatingRequest{Rating: 5}))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestArticleHandler_Clap(t *testing.T) {
	env := newTestEnv(t)
	writer := env.seedUser(t, "writer", model.RoleUser)
	reader := env.seedUser(t, "reader", model.RoleUser)
	slug := env.createArticle(t, writer, "clapped")

	rr := call(t, env.articles.HandleClap, http.MethodPost, "/", as(reader), param("slug", slug))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "you clapped for this article", body["message"])
	assert.Equal(t, float64(1), body["totalClaps"])

	rr = call(t, env.articles.HandleClap, http.MethodPost, "/", as(reader), param("slug", slug))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestArticleHandler_Bookmarks(t *testing.T) {
	env := newTestEnv(t)
	writer := env.seedUser(t, "writer", model.RoleUser)
	reader := env.seedUser(t, "reader", model.RoleUser)
	slug := env.createArticle(t, writer, "saved")

	rr := call(t, env.articles.HandleBookmark, http.MethodPost, "/", as(reader), param("slug", slug))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "article bookmarked", decode(t, rr)["message"])

	rr = call(t, env.articles.HandleBookmark, http.MethodPost, "/", as(reader), param("slug", slug))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = call(t, env.users.HandleBookmarks, http.MethodGet, "/api/user/bookmarks", as(reader))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, list(t, decode(t, rr), "bookmarks"), 1)

	rr = call(t, env.articles.HandleRemoveBookmark, http.MethodDelete, "/", as(reader), param("slug", slug))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "bookmark removed", decode(t, rr)["message"])

	rr = call(t, env.articles.HandleRemoveBookmark, http.MethodDelete, "/", as(reader), param("slug", slug))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =========================================================================
// TAGS AND REPORTS
// =========================================================================

func TestArticleHandler_Tags(t *testing.T) {
	env := newTestEnv(t)
	writer := env.seedUser(t, "writer", model.RoleUser)
	slug := env.createArticle(t, writer, "tagged")

	rr := call(t, env.articles.HandleTags, http.MethodGet, "/api/articles/tags")
	require.Equal(t, http.StatusOK, rr.Code)
	tags := list(t, decode(t, rr), "tags")
	require.Len(t, tags, 5)
	assert.Equal(t, "Food", tags[0].(map[string]any)["name"])

	rr = call(t, env.articles.HandleDeleteTag, http.MethodDelete, "/api/articles/tags/2", param("id", "2"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "tag deleted", decode(t, rr)["message"])

	rr = call(t, env.articles.HandleGet, http.MethodGet, "/", param("slug", slug))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = call(t, env.articles.HandleDeleteTag, http.MethodDelete, "/api/articles/tags/abc", param("id", "abc"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = call(t, env.articles.HandleDeleteTag, http.MethodDelete, "/api/articles/tags/42", param("id", "42"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestArticleHandler_Reports(t *testing.T) {
	env := newTestEnv(t)
	writer := env.seedUser(t, "writer", model.RoleUser)
	reader := env.seedUser(t, "reader", model.RoleUser)
	slug := env.createArticle(t, writer, "spam")

	rr := call(t, env.articles.HandleReport, http.MethodPost, "/", as(reader), param("slug", slug),
		withBody(validation.ReportRequest{Reason: "  plagiarism  "}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "article reported", body["message"])
	assert.Equal(t, "plagiarism", object(t, body, "report")["reason"])

	rr = call(t, env.articles.HandleReports, http.MethodGet, "/api/articles/reports")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, list(t, decode(t, rr), "reports"), 1)
}
