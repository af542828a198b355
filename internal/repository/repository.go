// Package repository declares the persistence interfaces used by services.
//
// One concrete type (sqlite.DB) implements all of them, so method names are
// unique across interfaces. Lookups of a missing row return an
// *apperror.AppError wrapping apperror.ErrNotFound; uniqueness violations
// return one wrapping apperror.ErrConflict.
//
// Cascades are part of the contract:
//   - deleting a tag deletes its articles
//   - deleting an article deletes its comments, ratings, claps, bookmarks,
//     reports and notifications
//   - deleting a comment deletes its likes and edit history
package repository

import (
	"context"

	"github.com/sakif/authors-haven/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// ArticleFilter narrows ListArticles. Zero fields do not filter.
type ArticleFilter struct {
	ListOptions
	TagID    int64
	AuthorID int64
}

type UserRepository interface {
	// CreateUser inserts u and sets its ID and timestamps. A taken email or
	// username is a field conflict ("email already exists.").
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	// UpdateUserProfile writes firstname, lastname, bio and image.
	UpdateUserProfile(ctx context.Context, u *model.User) error
	ActivateUser(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateNotificationSettings(ctx context.Context, id int64, email, inApp bool) error
}

type FollowRepository interface {
	// Follow returns a conflict if the follow already exists.
	Follow(ctx context.Context, followerID, followedID int64) error
	// Unfollow returns not found if there was no follow.
	Unfollow(ctx context.Context, followerID, followedID int64) error
	IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error)
	ListFollowers(ctx context.Context, userID int64) ([]model.User, error)
	ListFollowing(ctx context.Context, userID int64) ([]model.User, error)
}

type TagRepository interface {
	ListTags(ctx context.Context) ([]model.Tag, error)
	GetTagByID(ctx context.Context, id int64) (*model.Tag, error)
	// DeleteTag deletes the tag and every article carrying it.
	DeleteTag(ctx context.Context, id int64) error
}

type ArticleRepository interface {
	// CreateArticle inserts a and sets its ID, Slug and timestamps.
	CreateArticle(ctx context.Context, a *model.Article) error
	GetArticleByID(ctx context.Context, id int64) (*model.Article, error)
	GetArticleBySlug(ctx context.Context, slug string) (*model.Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]model.Article, error)
	// UpdateArticle writes title, description, body, tag and cover. The slug
	// follows a changed title.
	UpdateArticle(ctx context.Context, a *model.Article) error
	DeleteArticle(ctx context.Context, id int64) error

	// RateArticle records userID's rating and folds it into the article's
	// running average in one transaction. Rating twice is a conflict.
	RateArticle(ctx context.Context, articleID, userID int64, value int) (*model.Article, error)
	// ClapArticle records a clap and returns the new total. Clapping twice
	// is a conflict.
	ClapArticle(ctx context.Context, articleID, userID int64) (int64, error)

	AddBookmark(ctx context.Context, userID, articleID int64) error
	RemoveBookmark(ctx context.Context, userID, articleID int64) error
	ListBookmarks(ctx context.Context, userID int64) ([]model.Article, error)
	// ListBookmarkers returns the ids of users who bookmarked the article.
	ListBookmarkers(ctx context.Context, articleID int64) ([]int64, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	GetCommentByID(ctx context.Context, id int64) (*model.Comment, error)
	ListComments(ctx context.Context, articleID int64) ([]model.Comment, error)
	// UpdateComment replaces the text and records the previous text in the
	// edit history, atomically.
	UpdateComment(ctx context.Context, id int64, text string) (*model.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
	// LikeComment records a like and returns the new total. Liking twice is
	// a conflict.
	LikeComment(ctx context.Context, commentID, userID int64) (int64, error)
	ListCommentEdits(ctx context.Context, commentID int64) ([]model.CommentEdit, error)
}

type ReportRepository interface {
	CreateReport(ctx context.Context, r *model.Report) error
	ListReports(ctx context.Context, opts ListOptions) ([]model.Report, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error)
	// MarkNotificationRead flips isRead for a notification owned by userID.
	MarkNotificationRead(ctx context.Context, id, userID int64) error
}
