package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/authors-haven/internal/dispatch"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

// Push event fields.
const (
	PushEvent = "notification"
)

// PushChannel is the Pusher channel a user's client subscribes to.
func PushChannel(userID int64) string {
	return "user-" + strconv.FormatInt(userID, 10)
}

// NotificationService stores in-app notifications and queues their push
// and email deliveries. It implements Notifier.
//
// Per recipient:
//   - inAppNotification on: a notification row plus a push event
//   - emailNotification on: an email
//
// The actor is never a recipient of their own action.
type NotificationService struct {
	notes      repository.NotificationRepository
	users      repository.UserRepository
	follows    repository.FollowRepository
	articles   repository.ArticleRepository
	dispatcher Dispatcher
	appURL     string
	logger     *slog.Logger
}

var _ Notifier = (*NotificationService)(nil)

func NewNotificationService(
	notes repository.NotificationRepository,
	users repository.UserRepository,
	follows repository.FollowRepository,
	articles repository.ArticleRepository,
	dispatcher Dispatcher,
	appURL string,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		notes:      notes,
		users:      users,
		follows:    follows,
		articles:   articles,
		dispatcher: dispatcher,
		appURL:     appURL,
		logger:     logger,
	}
}

// ArticlePublished notifies the author's followers.
func (s *NotificationService) ArticlePublished(ctx context.Context, author *model.User, a *model.Article) {
	followers, err := s.follows.ListFollowers(ctx, author.ID)
	if err != nil {
		s.logger.Error("listing followers for article notification",
			slog.Int64("articleID", a.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	msg := fmt.Sprintf("%s published a new article: %s", author.Username, a.Title)
	for i := range followers {
		s.deliver(ctx, author.ID, &followers[i], model.NotifyNewArticle, msg, &a.ID, s.articleLink(a))
	}
}

// CommentPosted notifies the article's author and everyone who bookmarked
// the article.
func (s *NotificationService) CommentPosted(ctx context.Context, actor *model.User, a *model.Article, c *model.Comment) {
	ids := []int64{a.UserID}
	bookmarkers, err := s.articles.ListBookmarkers(ctx, a.ID)
	if err != nil {
		s.logger.Error("listing bookmarkers for comment notification",
			slog.Int64("articleID", a.ID),
			slog.String("error", err.Error()),
		)
	}
	ids = append(ids, bookmarkers...)

	// Load recipients before delivering; each lookup must finish before the
	// next write on the single database connection.
	seen := make(map[int64]bool, len(ids))
	var recipients []*model.User
	for _, id := range ids {
		if id == actor.ID || seen[id] {
			continue
		}
		seen[id] = true
		u, err := s.users.GetUserByID(ctx, id)
		if err != nil {
			s.logger.Warn("skipping comment notification recipient",
				slog.Int64("userID", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		recipients = append(recipients, u)
	}

	msg := fmt.Sprintf("%s commented on %s", actor.Username, a.Title)
	for _, u := range recipients {
		s.deliver(ctx, actor.ID, u, model.NotifyNewComment, msg, &a.ID, s.articleLink(a))
	}
}

// Followed notifies the followed user.
func (s *NotificationService) Followed(ctx context.Context, follower, followed *model.User) {
	msg := fmt.Sprintf("%s started following you", follower.Username)
	link := s.appURL + "/api/profiles/" + follower.Username
	s.deliver(ctx, follower.ID, followed, model.NotifyNewFollow, msg, nil, link)
}

func (s *NotificationService) deliver(ctx context.Context, actorID int64, to *model.User, kind, message string, articleID *int64, link string) {
	if to.ID == actorID {
		return
	}

	if to.InAppNotification {
		n := &model.Notification{
			UserID:    to.ID,
			Type:      kind,
			Message:   message,
			ArticleID: articleID,
		}
		if err := s.notes.CreateNotification(ctx, n); err != nil {
			s.logger.Error("storing notification",
				slog.Int64("userID", to.ID),
				slog.String("type", kind),
				slog.String("error", err.Error()),
			)
		} else {
			s.dispatcher.Push(PushChannel(to.ID), PushEvent, n)
		}
	}

	if to.EmailNotification {
		e, err := dispatch.NotificationMessage(to.Email, to.Username, message, link)
		if err != nil {
			s.logger.Error("rendering notification email",
				slog.Int64("userID", to.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		s.dispatcher.SendEmail(e)
	}
}

func (s *NotificationService) articleLink(a *model.Article) string {
	return s.appURL + "/api/articles/" + a.Slug
}

// List returns userID's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID int64) ([]model.Notification, error) {
	notes, err := s.notes.ListNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/notification: listing for user %d: %w", userID, err)
	}
	return notes, nil
}

// MarkRead marks one of userID's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) error {
	return s.notes.MarkNotificationRead(ctx, id, userID)
}
