package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

// CommentService handles comments on articles. Comment ids are only valid
// together with the slug of the article they belong to.
type CommentService struct {
	comments repository.CommentRepository
	articles repository.ArticleRepository
	users    repository.UserRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewCommentService(
	comments repository.CommentRepository,
	articles repository.ArticleRepository,
	users repository.UserRepository,
	notifier Notifier,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		comments: comments,
		articles: articles,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

// Create posts a comment and notifies the author and bookmarkers.
func (s *CommentService) Create(ctx context.Context, userID int64, slug, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("comment", "Comment field must be specified.")
	}

	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	actor, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{ArticleID: a.ID, UserID: userID, Comment: text}
	if err := s.comments.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("service/comment: creating comment on %s: %w", slug, err)
	}
	p := model.ProfileOf(actor)
	c.Author = &p

	s.logger.Info("comment created",
		slog.Int64("commentID", c.ID),
		slog.Int64("articleID", a.ID),
	)

	s.notifier.CommentPosted(ctx, actor, a, c)
	return c, nil
}

func (s *CommentService) List(ctx context.Context, slug string) ([]model.Comment, error) {
	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.comments.ListComments(ctx, a.ID)
}

// find loads comment id and checks it belongs to the article at slug.
func (s *CommentService) find(ctx context.Context, slug string, id int64) (*model.Comment, error) {
	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	c, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ArticleID != a.ID {
		return nil, apperror.NotFound("comment", strconv.FormatInt(id, 10))
	}
	return c, nil
}

// Update edits a comment; the previous text goes to its history. Only the
// comment's author may edit it.
func (s *CommentService) Update(ctx context.Context, userID int64, slug string, id int64, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("comment", "Comment field must be specified.")
	}

	c, err := s.find(ctx, slug, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, apperror.Forbidden("you can only edit your own comments")
	}
	if c.Comment == text {
		return c, nil
	}

	updated, err := s.comments.UpdateComment(ctx, id, text)
	if err != nil {
		return nil, err
	}
	s.logger.Info("comment edited", slog.Int64("commentID", id))
	return updated, nil
}

func (s *CommentService) Delete(ctx context.Context, userID int64, slug string, id int64) error {
	c, err := s.find(ctx, slug, id)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		return apperror.Forbidden("you can only delete your own comments")
	}
	if err := s.comments.DeleteComment(ctx, id); err != nil {
		return err
	}
	s.logger.Info("comment deleted", slog.Int64("commentID", id))
	return nil
}

// Like records userID's like and returns the new total.
func (s *CommentService) Like(ctx context.Context, userID int64, slug string, id int64) (int64, error) {
	if _, err := s.find(ctx, slug, id); err != nil {
		return 0, err
	}
	return s.comments.LikeComment(ctx, id, userID)
}

// History returns the previous texts of a comment, oldest first.
func (s *CommentService) History(ctx context.Context, slug string, id int64) ([]model.CommentEdit, error) {
	if _, err := s.find(ctx, slug, id); err != nil {
		return nil, err
	}
	return s.comments.ListCommentEdits(ctx, id)
}
