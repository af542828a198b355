package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/readtime"
	"github.com/sakif/authors-haven/internal/repository"
)

// ArticleService handles articles, tags and the per-user facts attached to
// an article (ratings, claps, bookmarks, reports).
//
// Every article it returns has ReadTime filled in from the body.
type ArticleService struct {
	articles repository.ArticleRepository
	tags     repository.TagRepository
	reports  repository.ReportRepository
	users    repository.UserRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewArticleService(
	articles repository.ArticleRepository,
	tags repository.TagRepository,
	reports repository.ReportRepository,
	users repository.UserRepository,
	notifier Notifier,
	logger *slog.Logger,
) *ArticleService {
	return &ArticleService{
		articles: articles,
		tags:     tags,
		reports:  reports,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

// ArticleInput is a create or update request. On update, empty strings and a
// nil TagID keep the current value.
type ArticleInput struct {
	Title       string
	Description string
	Body        string
	TagID       *int64
	CoverURL    string
}

func withReadTime(a *model.Article) *model.Article {
	a.ReadTime = readtime.Estimate(a.Body)
	return a
}

func withReadTimes(list []model.Article) []model.Article {
	for i := range list {
		withReadTime(&list[i])
	}
	return list
}

// Create publishes an article for authorID and notifies their followers.
func (s *ArticleService) Create(ctx context.Context, authorID int64, in ArticleInput) (*model.Article, error) {
	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if in.TagID != nil {
		if _, err := s.tags.GetTagByID(ctx, *in.TagID); err != nil {
			return nil, err
		}
	}

	a := &model.Article{
		UserID:      authorID,
		TagID:       in.TagID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Body:        in.Body,
		CoverURL:    strings.TrimSpace(in.CoverURL),
	}
	if err := s.articles.CreateArticle(ctx, a); err != nil {
		return nil, fmt.Errorf("service/article: creating article: %w", err)
	}

	p := model.ProfileOf(author)
	a.Author = &p

	s.logger.Info("article created",
		slog.Int64("articleID", a.ID),
		slog.String("slug", a.Slug),
		slog.Int64("authorID", authorID),
	)

	s.notifier.ArticlePublished(ctx, author, a)
	return withReadTime(a), nil
}

func (s *ArticleService) Get(ctx context.Context, slug string) (*model.Article, error) {
	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return withReadTime(a), nil
}

// List returns one page of articles, optionally filtered by tag or author.
func (s *ArticleService) List(ctx context.Context, filter repository.ArticleFilter) ([]model.Article, error) {
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	list, err := s.articles.ListArticles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/article: listing articles: %w", err)
	}
	return withReadTimes(list), nil
}

// Update edits an article. Only its author may do so.
func (s *ArticleService) Update(ctx context.Context, userID int64, slug string, in ArticleInput) (*model.Article, error) {
	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, apperror.Forbidden("you can only edit your own articles")
	}

	if v := strings.TrimSpace(in.Title); v != "" {
		a.Title = v
	}
	if v := strings.TrimSpace(in.Description); v != "" {
		a.Description = v
	}
	if in.Body != "" {
		a.Body = in.Body
	}
	if v := strings.TrimSpace(in.CoverURL); v != "" {
		a.CoverURL = v
	}
	if in.TagID != nil {
		if _, err := s.tags.GetTagByID(ctx, *in.TagID); err != nil {
			return nil, err
		}
		a.TagID = in.TagID
	}

	if err := s.articles.UpdateArticle(ctx, a); err != nil {
		return nil, fmt.Errorf("service/article: updating %s: %w", slug, err)
	}
	s.logger.Info("article updated", slog.Int64("articleID", a.ID), slog.String("slug", a.Slug))
	return withReadTime(a), nil
}

// Delete removes an article. Its author or an admin may do so; the admin
// role is read from the account, not from the caller's token.
func (s *ArticleService) Delete(ctx context.Context, userID int64, slug string) error {
	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if a.UserID != userID {
		caller, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if caller.Role != model.RoleAdmin {
			return apperror.Forbidden("you are not allowed to delete this article")
		}
	}
	if err := s.articles.DeleteArticle(ctx, a.ID); err != nil {
		return err
	}
	s.logger.Info("article deleted",
		slog.Int64("articleID", a.ID),
		slog.Int64("by", userID),
	)
	return nil
}

// =========================================================================
// RATINGS, CLAPS, BOOKMARKS
// =========================================================================

// Rate records userID's 1-5 rating and returns the article with its new
// average. Authors cannot rate their own articles and each user rates once.
func (s *ArticleService) Rate(ctx context.Context, userID int64, slug string, value int) (*model.Article, error) {
	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if a.UserID == userID {
		return nil, apperror.Forbidden("you cannot rate your own article")
	}

	rated, err := s.articles.RateArticle(ctx, a.ID, userID, value)
	if err != nil {
		return nil, err
	}
	s.logger.Info("article rated",
		slog.Int64("articleID", a.ID),
		slog.Int("value", value),
		slog.Float64("average", rated.Rating),
	)
	return withReadTime(rated), nil
}

// Clap adds userID's clap and returns the new total.
func (s *ArticleService) Clap(ctx context.Context, userID int64, slug string) (int64, error) {
	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return 0, err
	}
	if a.UserID == userID {
		return 0, apperror.Forbidden("you cannot clap for your own article")
	}
	return s.articles.ClapArticle(ctx, a.ID, userID)
}

func (s *ArticleService) Bookmark(ctx context.Context, userID int64, slug string) (*model.Article, error) {
	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.articles.AddBookmark(ctx, userID, a.ID); err != nil {
		return nil, err
	}
	return withReadTime(a), nil
}

func (s *ArticleService) RemoveBookmark(ctx context.Context, userID int64, slug string) error {
	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.articles.RemoveBookmark(ctx, userID, a.ID)
}

func (s *ArticleService) Bookmarks(ctx context.Context, userID int64) ([]model.Article, error) {
	list, err := s.articles.ListBookmarks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/article: listing bookmarks of %d: %w", userID, err)
	}
	return withReadTimes(list), nil
}

// =========================================================================
// TAGS AND REPORTS
// =========================================================================

func (s *ArticleService) Tags(ctx context.Context) ([]model.Tag, error) {
	return s.tags.ListTags(ctx)
}

// DeleteTag removes a tag together with its articles.
func (s *ArticleService) DeleteTag(ctx context.Context, id int64) error {
	if err := s.tags.DeleteTag(ctx, id); err != nil {
		return err
	}
	s.logger.Info("tag deleted", slog.Int64("tagID", id))
	return nil
}

// Report flags an article for moderation.
func (s *ArticleService) Report(ctx context.Context, userID int64, slug, reason string) (*model.Report, error) {
	a, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	r := &model.Report{ArticleID: a.ID, UserID: userID, Reason: strings.TrimSpace(reason)}
	if err := s.reports.CreateReport(ctx, r); err != nil {
		return nil, fmt.Errorf("service/article: reporting %s: %w", slug, err)
	}
	s.logger.Info("article reported", slog.Int64("articleID", a.ID), slog.Int64("reportID", r.ID))
	return r, nil
}

func (s *ArticleService) Reports(ctx context.Context, opts repository.ListOptions) ([]model.Report, error) {
	opts.Limit = clampLimit(opts.Limit)
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.reports.ListReports(ctx, opts)
}
