// Package service contains the business rules of the API.
//
// Handlers parse HTTP and call services; services enforce rules and call
// repositories:
//
//	Handler (HTTP) → Service (rules) → Repository (SQL)
//	                        ↘ Notifier → Dispatcher (email/push queue)
//
// Services depend on the repository interfaces, never on sqlite.DB, so tests
// inject in-memory fakes. Rule violations are returned as *apperror.AppError
// values; the handler layer turns them into status codes.
package service

import (
	"context"

	"github.com/sakif/authors-haven/internal/dispatch"
	"github.com/sakif/authors-haven/internal/model"
)

// Dispatcher schedules out-of-band deliveries. Implemented by
// *dispatch.Dispatcher; calls never block on a provider.
type Dispatcher interface {
	SendEmail(e dispatch.Email)
	Push(channel, event string, data any)
}

// Notifier fans domain events out to the users who should hear about them.
// Implementations log delivery problems instead of returning them, so a
// failed notification never undoes the action that caused it.
type Notifier interface {
	ArticlePublished(ctx context.Context, author *model.User, a *model.Article)
	CommentPosted(ctx context.Context, actor *model.User, a *model.Article, c *model.Comment)
	Followed(ctx context.Context, follower, followed *model.User)
}

// Pagination bounds applied by list operations.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
