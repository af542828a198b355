package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/xid"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/rating"
	"github.com/sakif/authors-haven/internal/repository"
)

var (
	_ repository.ArticleRepository = (*DB)(nil)
	_ repository.TagRepository     = (*DB)(nil)
)

const articleSelect = `SELECT a.id, a.user_id, a.tag_id, a.title, a.description, a.body, a.cover_url,
	a.slug, a.rating, a.rating_count, a.total_claps, a.created_at, a.updated_at,
	u.username, u.firstname, u.lastname, u.bio, u.image
	FROM articles a JOIN users u ON u.id = a.user_id`

func scanArticle(row rowScanner, a *model.Article) error {
	author := &model.Profile{}
	err := row.Scan(
		&a.ID, &a.UserID, &a.TagID, &a.Title, &a.Description, &a.Body, &a.CoverURL,
		&a.Slug, &a.Rating, &a.RatingCount, &a.TotalClaps, &a.CreatedAt, &a.UpdatedAt,
		&author.Username, &author.FirstName, &author.LastName, &author.Bio, &author.Image,
	)
	if err != nil {
		return err
	}
	a.Author = author
	return nil
}

// makeSlug builds "<slugified title>-<id>". The id suffix keeps slugs unique
// even for identical titles.
func makeSlug(title string, id int64) string {
	base := slug.Make(title)
	if base == "" {
		base = "article"
	}
	return base + "-" + strconv.FormatInt(id, 10)
}

// CreateArticle inserts a and assigns its ID and slug in one transaction.
// The row is first written with a throwaway unique slug because the real
// one depends on the generated ID.
func (db *DB) CreateArticle(ctx context.Context, a *model.Article) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning article insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO articles (user_id, tag_id, title, description, body, cover_url, slug, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.TagID, a.Title, a.Description, a.Body, a.CoverURL, "tmp-"+xid.New().String(),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("tag", formatOptionalID(a.TagID))
		}
		return fmt.Errorf("sqlite: inserting article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new article id: %w", err)
	}

	s := makeSlug(a.Title, id)
	if _, err := tx.ExecContext(ctx, `UPDATE articles SET slug = ? WHERE id = ?`, s, id); err != nil {
		return fmt.Errorf("sqlite: setting article slug: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing article insert: %w", err)
	}

	a.ID = id
	a.Slug = s
	a.Rating = 0
	a.RatingCount = 0
	a.TotalClaps = 0
	return nil
}

func (db *DB) GetArticleByID(ctx context.Context, id int64) (*model.Article, error) {
	return db.getArticle(ctx, "a.id", id, strconv.FormatInt(id, 10))
}

func (db *DB) GetArticleBySlug(ctx context.Context, s string) (*model.Article, error) {
	return db.getArticle(ctx, "a.slug", s, s)
}

func (db *DB) getArticle(ctx context.Context, column string, value any, label string) (*model.Article, error) {
	var a model.Article
	err := scanArticle(db.conn.QueryRowContext(ctx, articleSelect+` WHERE `+column+` = ?`, value), &a)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("article", label)
		}
		return nil, fmt.Errorf("sqlite: getting article %s: %w", label, err)
	}
	return &a, nil
}

// ListArticles returns articles newest first, optionally narrowed by tag or
// author.
func (db *DB) ListArticles(ctx context.Context, filter repository.ArticleFilter) ([]model.Article, error) {
	limit, offset := clampPage(filter.ListOptions)

	var where []string
	var args []any
	if filter.TagID > 0 {
		where = append(where, "a.tag_id = ?")
		args = append(args, filter.TagID)
	}
	if filter.AuthorID > 0 {
		where = append(where, "a.user_id = ?")
		args = append(args, filter.AuthorID)
	}

	query := articleSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	return db.listArticles(ctx, query, args...)
}

func (db *DB) listArticles(ctx context.Context, query string, args ...any) ([]model.Article, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing articles: %w", err)
	}
	defer rows.Close()

	articles := make([]model.Article, 0)
	for rows.Next() {
		var a model.Article
		if err := scanArticle(rows, &a); err != nil {
			return nil, fmt.Errorf("sqlite: scanning article row: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating articles: %w", err)
	}
	return articles, nil
}

// UpdateArticle writes the editable fields. The slug is rebuilt from the
// (possibly new) title.
func (db *DB) UpdateArticle(ctx context.Context, a *model.Article) error {
	a.UpdatedAt = time.Now().UTC()
	a.Slug = makeSlug(a.Title, a.ID)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE articles
		 SET title = ?, description = ?, body = ?, tag_id = ?, cover_url = ?, slug = ?, updated_at = ?
		 WHERE id = ?`,
		a.Title, a.Description, a.Body, a.TagID, a.CoverURL, a.Slug, a.UpdatedAt, a.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("tag", formatOptionalID(a.TagID))
		}
		return fmt.Errorf("sqlite: updating article %d: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("article", strconv.FormatInt(a.ID, 10))
	}
	return nil
}

// DeleteArticle removes the article; foreign keys cascade to its comments,
// ratings, claps, bookmarks, reports and notifications.
func (db *DB) DeleteArticle(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting article %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("article", strconv.FormatInt(id, 10))
	}
	return nil
}

// =========================================================================
// RATINGS AND CLAPS
// =========================================================================

// RateArticle folds value into the article's running average.
//
// The read of (rating, rating_count), the new average and the rating row are
// written in one transaction. The pool holds a single connection, so a
// transaction has the database to itself until it commits: concurrent
// ratings queue up behind each other and each one sees the previous result.
func (db *DB) RateArticle(ctx context.Context, articleID, userID int64, value int) (*model.Article, error) {
	if value < rating.Min || value > rating.Max {
		return nil, apperror.ValidationFailed("rating", "Rating must be between 1 and 5.")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning rating: %w", err)
	}
	defer tx.Rollback()

	var avg float64
	var count int64
	err = tx.QueryRowContext(ctx,
		`SELECT rating, rating_count FROM articles WHERE id = ?`, articleID,
	).Scan(&avg, &count)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("article", strconv.FormatInt(articleID, 10))
		}
		return nil, fmt.Errorf("sqlite: reading rating of article %d: %w", articleID, err)
	}

	next, err := rating.Update(count, avg, float64(value))
	if err != nil {
		return nil, apperror.ValidationFailed("rating", err.Error())
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ratings (article_id, user_id, value, created_at) VALUES (?, ?, ?, ?)`,
		articleID, userID, value, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.New(apperror.ErrConflict, "you have already rated this article")
		}
		return nil, fmt.Errorf("sqlite: inserting rating: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE articles SET rating = ?, rating_count = ? WHERE id = ?`,
		next, count+1, articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating rating of article %d: %w", articleID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing rating: %w", err)
	}
	return db.GetArticleByID(ctx, articleID)
}

// ClapArticle records userID's clap and returns the article's new total.
func (db *DB) ClapArticle(ctx context.Context, articleID, userID int64) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning clap: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO claps (article_id, user_id, created_at) VALUES (?, ?, ?)`,
		articleID, userID, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperror.New(apperror.ErrConflict, "you have already clapped for this article")
		}
		if isForeignKeyViolation(err) {
			return 0, apperror.NotFound("article", strconv.FormatInt(articleID, 10))
		}
		return 0, fmt.Errorf("sqlite: inserting clap: %w", err)
	}

	var total int64
	err = tx.QueryRowContext(ctx,
		`UPDATE articles SET total_claps = total_claps + 1 WHERE id = ? RETURNING total_claps`,
		articleID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting clap: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing clap: %w", err)
	}
	return total, nil
}

// =========================================================================
// BOOKMARKS
// =========================================================================

func (db *DB) AddBookmark(ctx context.Context, userID, articleID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO bookmarks (user_id, article_id, created_at) VALUES (?, ?, ?)`,
		userID, articleID, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.New(apperror.ErrConflict, "article is already bookmarked")
		}
		if isForeignKeyViolation(err) {
			return apperror.NotFound("article", strconv.FormatInt(articleID, 10))
		}
		return fmt.Errorf("sqlite: bookmarking article %d: %w", articleID, err)
	}
	return nil
}

func (db *DB) RemoveBookmark(ctx context.Context, userID, articleID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE user_id = ? AND article_id = ?`, userID, articleID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing bookmark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("bookmark", strconv.FormatInt(articleID, 10))
	}
	return nil
}

// ListBookmarks returns userID's bookmarked articles, most recently
// bookmarked first.
func (db *DB) ListBookmarks(ctx context.Context, userID int64) ([]model.Article, error) {
	return db.listArticles(ctx,
		articleSelect+` JOIN bookmarks b ON b.article_id = a.id
		 WHERE b.user_id = ?
		 ORDER BY b.created_at DESC, a.id DESC`, userID)
}

func (db *DB) ListBookmarkers(ctx context.Context, articleID int64) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id FROM bookmarks WHERE article_id = ? ORDER BY user_id`, articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing bookmarkers of article %d: %w", articleID, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning bookmarker: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =========================================================================
// TAGS
// =========================================================================

func (db *DB) ListTags(ctx context.Context) ([]model.Tag, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags: %w", err)
	}
	defer rows.Close()

	tags := make([]model.Tag, 0, len(seedTags))
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (db *DB) GetTagByID(ctx context.Context, id int64) (*model.Tag, error) {
	var t model.Tag
	err := db.conn.QueryRowContext(ctx, `SELECT id, name FROM tags WHERE id = ?`, id).Scan(&t.ID, &t.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("tag", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting tag %d: %w", id, err)
	}
	return &t, nil
}

// DeleteTag removes the tag and, through the foreign key, its articles.
func (db *DB) DeleteTag(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting tag %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("tag", strconv.FormatInt(id, 10))
	}
	return nil
}

func formatOptionalID(id *int64) string {
	if id == nil {
		return "none"
	}
	return strconv.FormatInt(*id, 10)
}
