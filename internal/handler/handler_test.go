package handler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/dispatch"
	"github.com/sakif/authors-haven/internal/handler"
	"github.com/sakif/authors-haven/internal/model"
	sqliteRepo "github.com/sakif/authors-haven/internal/repository/sqlite"
	"github.com/sakif/authors-haven/internal/service"
	"github.com/sakif/authors-haven/internal/validation"
)

// =========================================================================
// TEST ENVIRONMENT
// =========================================================================
//
// Handlers run against the real services and an in-memory SQLite database.
// Only the email/push dispatcher is faked. Handlers are called directly:
// the auth payload, validated body and URL parameters that the router's
// middleware would provide are put on the request by the options below.

type fakeDispatcher struct {
	mu     sync.Mutex
	emails []dispatch.Email
	pushes []string
}

func (d *fakeDispatcher) SendEmail(e dispatch.Email) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, e)
}

func (d *fakeDispatcher) Push(channel, event string, _ any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushes = append(d.pushes, channel+"/"+event)
}

type testEnv struct {
	db     *sqliteRepo.DB
	disp   *fakeDispatcher
	tokens *auth.TokenService

	root     *handler.RootHandler
	auth     *handler.AuthHandler
	users    *handler.UserHandler
	profiles *handler.ProfileHandler
	articles *handler.ArticleHandler
	comments *handler.CommentHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret", "authors-haven-test", time.Hour)
	require.NoError(t, err)

	disp := &fakeDispatcher{}
	notifications := service.NewNotificationService(db, db, db, db, disp, "http://api.test", logger)
	users := service.NewUserService(db, db, notifications, logger)
	articles := service.NewArticleService(db, db, db, db, notifications, logger)
	comments := service.NewCommentService(db, db, db, notifications, logger)
	authService := service.NewAuthService(
		db,
		service.NewSocialResolver(db, logger),
		tokens,
		auth.NewPasswordServiceForTest(),
		disp,
		service.AuthConfig{AppURL: "http://api.test", VerifyEmailTTL: time.Hour, ResetTTL: time.Hour},
		logger,
	)
	providers := auth.NewProviders(map[string]auth.Credentials{
		auth.ProviderGitHub: {ClientID: "gh-id", ClientSecret: "gh-secret"},
	}, "http://api.test")

	return &testEnv{
		db:       db,
		disp:     disp,
		tokens:   tokens,
		root:     handler.NewRootHandler(db, logger),
		auth:     handler.NewAuthHandler(authService, providers, "http://app.test/", false, logger),
		users:    handler.NewUserHandler(users, articles, notifications, logger),
		profiles: handler.NewProfileHandler(users, logger),
		articles: handler.NewArticleHandler(articles, logger),
		comments: handler.NewCommentHandler(comments, logger),
	}
}

// seedUser inserts an active user and returns the payload RequireAuth would
// put in the context for them.
func (e *testEnv) seedUser(t *testing.T, username, role string) *auth.Payload {
	t.Helper()
	u := &model.User{
		Email:             username + "@example.com",
		Username:          username,
		FirstName:         strings.ToUpper(username[:1]) + username[1:],
		Role:              role,
		Active:            true,
		EmailNotification: true,
		InAppNotification: true,
	}
	require.NoError(t, e.db.CreateUser(context.Background(), u))
	return &auth.Payload{UserID: u.ID, Username: u.Username, Email: u.Email, Role: role, Purpose: auth.PurposeAccess}
}

type reqOption func(r *http.Request) *http.Request

func as(p *auth.Payload) reqOption {
	return func(r *http.Request) *http.Request {
		return r.WithContext(auth.WithPayload(r.Context(), p))
	}
}

func param(key, value string) reqOption {
	return func(r *http.Request) *http.Request {
		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			rctx = chi.NewRouteContext()
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		}
		rctx.URLParams.Add(key, value)
		return r
	}
}

func withBody[T any](body T) reqOption {
	return func(r *http.Request) *http.Request {
		return r.WithContext(validation.WithBody(r.Context(), &body))
	}
}

func call(t *testing.T, h http.HandlerFunc, method, target string, opts ...reqOption) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, opt := range opts {
		req = opt(req)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

// decode unmarshals the response body into a generic map.
func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

// object returns body[key] as a JSON object.
func object(t *testing.T, body map[string]any, key string) map[string]any {
	t.Helper()
	v, ok := body[key].(map[string]any)
	require.True(t, ok, "%q is not an object in %v", key, body)
	return v
}

// list returns body[key] as a JSON array.
func list(t *testing.T, body map[string]any, key string) []any {
	t.Helper()
	v, ok := body[key].([]any)
	require.True(t, ok, "%q is not an array in %v", key, body)
	return v
}

// createArticle posts an article as author and returns its slug.
func (e *testEnv) createArticle(t *testing.T, author *auth.Payload, title string) string {
	t.Helper()
	tag := int64(2)
	rr := call(t, e.articles.HandleCreate, http.MethodPost, "/api/articles",
		as(author),
		withBody(validation.ArticleRequest{
			Title:       title,
			Description: "about " + title,
			Body:        "This is the body of the article",
			TagID:       &tag,
		}),
	)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return object(t, decode(t, rr), "article")["slug"].(string)
}
